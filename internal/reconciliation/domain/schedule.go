package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=schedule.go -destination=./mocks/mock_schedule.go -package=mocks

type ScheduleQuery struct {
	ProfessionalID string
	PeriodCode     string
	AreaID         string
	ServiceID      string
}

// ScheduleReport is what the external scheduling system loaded for a query.
type ScheduleReport struct {
	LoadedHours decimal.Decimal
	ScheduleRef string
	ReportedAt  time.Time
}

// ExternalSchedule reads hours loaded into the external scheduling system.
// LoadedHours returns nil, nil when nothing has been reported yet.
type ExternalSchedule interface {
	LoadedHours(ctx context.Context, query ScheduleQuery) (*ScheduleReport, error)
}
