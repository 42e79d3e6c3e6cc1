package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type ListFilter struct {
	AreaID string
	State  PeriodState
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, period *ControlPeriod) error
	FindByKey(ctx context.Context, db *gorm.DB, key Key) (*ControlPeriod, error)
	// UpdateState writes the transition only if the stored state still equals from.
	UpdateState(ctx context.Context, db *gorm.DB, period *ControlPeriod, from PeriodState) (int64, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]ControlPeriod, error)
	ListByStates(ctx context.Context, db *gorm.DB, states []PeriodState) ([]ControlPeriod, error)
	ListCovering(ctx context.Context, db *gorm.DB, states []PeriodState, day time.Time) ([]ControlPeriod, error)
	SoftDelete(ctx context.Context, db *gorm.DB, key Key, actor string, at time.Time) (int64, error)
	// LockOpen takes the row lock of a live period in one of states. Zero rows
	// means the period is gone or no longer in those states.
	LockOpen(ctx context.Context, db *gorm.DB, key Key, states []PeriodState) (int64, error)
}

// DeclarationCounter reports how many declarations reference a period.
type DeclarationCounter interface {
	CountByPeriod(ctx context.Context, db *gorm.DB, key Key) (int64, error)
}
