package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusOK          Status = "OK"
	StatusDiscrepancy Status = "DISCREPANCY"
	StatusPending     Status = "PENDING"
)

// Record is one append-only consistency check of a declaration against the
// external schedule.
type Record struct {
	ID            snowflake.ID        `json:"id" gorm:"primaryKey"`
	DeclarationID snowflake.ID        `json:"declaration_id" gorm:"not null"`
	DeclaredHours decimal.Decimal     `json:"declared_hours" gorm:"type:numeric(10,2);not null"`
	LoadedHours   decimal.NullDecimal `json:"loaded_hours" gorm:"type:numeric(10,2)"`
	Delta         decimal.NullDecimal `json:"delta" gorm:"type:numeric(10,2)"`
	Status        Status              `json:"status" gorm:"type:text;not null"`
	ScheduleRef   *string             `json:"schedule_ref,omitempty" gorm:"type:text"`
	CheckedBy     string              `json:"checked_by" gorm:"type:text;not null"`
	CheckedAt     time.Time           `json:"checked_at" gorm:"not null"`
}

func (Record) TableName() string { return "reconciliation_records" }

// Discrepancy is a declaration whose latest check is out of tolerance.
type Discrepancy struct {
	RecordID       snowflake.ID    `json:"record_id"`
	DeclarationID  snowflake.ID    `json:"declaration_id"`
	ProfessionalID string          `json:"professional_id"`
	PeriodCode     string          `json:"period_code"`
	AreaID         string          `json:"area_id"`
	ServiceID      string          `json:"service_id"`
	DeclaredHours  decimal.Decimal `json:"declared_hours"`
	LoadedHours    decimal.Decimal `json:"loaded_hours"`
	Delta          decimal.Decimal `json:"delta"`
	CheckedAt      time.Time       `json:"checked_at"`
}
