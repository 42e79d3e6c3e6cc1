// Package schedule reads loaded hours from the external_schedule_hours
// staging table, which the external scheduling system populates.
package schedule

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/turnos/internal/reconciliation/domain"
	"gorm.io/gorm"
)

type row struct {
	LoadedHours decimal.NullDecimal
	ScheduleRef *string
	ReportedAt  time.Time
}

type gormSchedule struct {
	db *gorm.DB
}

func NewGormSchedule(db *gorm.DB) domain.ExternalSchedule {
	return &gormSchedule{db: db}
}

func (s *gormSchedule) LoadedHours(ctx context.Context, query domain.ScheduleQuery) (*domain.ScheduleReport, error) {
	var item row
	err := s.db.WithContext(ctx).Raw(
		`SELECT loaded_hours, schedule_ref, reported_at
		 FROM external_schedule_hours
		 WHERE professional_id = ? AND period_code = ? AND area_id = ? AND service_id = ?`,
		strings.TrimSpace(query.ProfessionalID),
		strings.TrimSpace(query.PeriodCode),
		strings.TrimSpace(query.AreaID),
		strings.TrimSpace(query.ServiceID),
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if !item.LoadedHours.Valid {
		return nil, nil
	}

	report := &domain.ScheduleReport{
		LoadedHours: item.LoadedHours.Decimal,
		ReportedAt:  item.ReportedAt,
	}
	if item.ScheduleRef != nil {
		report.ScheduleRef = strings.TrimSpace(*item.ScheduleRef)
	}
	return report, nil
}
