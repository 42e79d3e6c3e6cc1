package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	perioddomain "github.com/smallbiznis/turnos/internal/period/domain"
	"github.com/smallbiznis/turnos/internal/shifthours"
)

type State string

const (
	StateDraft        State = "DRAFT"
	StateSubmitted    State = "SUBMITTED"
	StateReviewed     State = "REVIEWED"
	StateSynchronized State = "SYNCHRONIZED"
)

func (s State) Valid() bool {
	switch s {
	case StateDraft, StateSubmitted, StateReviewed, StateSynchronized:
		return true
	default:
		return false
	}
}

func (s State) Terminal() bool {
	return s == StateSynchronized
}

func ParseState(value string) (State, error) {
	state := State(strings.ToUpper(strings.TrimSpace(value)))
	if !state.Valid() {
		return "", ErrInvalidState
	}
	return state, nil
}

// Declaration is a professional's availability for one period, area and service.
type Declaration struct {
	ID                 snowflake.ID    `json:"id" gorm:"primaryKey"`
	ProfessionalID     string          `json:"professional_id" gorm:"type:text;not null"`
	PeriodCode         string          `json:"period_code" gorm:"type:text;not null"`
	AreaID             string          `json:"area_id" gorm:"type:text;not null"`
	ServiceID          string          `json:"service_id" gorm:"type:text;not null"`
	RegimeID           string          `json:"regime_id" gorm:"type:text;not null"`
	State              State           `json:"state" gorm:"type:text;not null"`
	TotalHours         decimal.Decimal `json:"total_hours" gorm:"type:numeric(10,2);not null"`
	Version            int64           `json:"version" gorm:"not null"`
	SubmittedAt        *time.Time      `json:"submitted_at,omitempty"`
	ReviewedAt         *time.Time      `json:"reviewed_at,omitempty"`
	ReviewObservations *string         `json:"review_observations,omitempty"`
	RejectionReason    *string         `json:"rejection_reason,omitempty"`
	ScheduleRef        *string         `json:"schedule_ref,omitempty"`
	SynchronizedAt     *time.Time      `json:"synchronized_at,omitempty"`
	LastActor          string          `json:"last_actor" gorm:"type:text;not null"`
	CreatedAt          time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt          time.Time       `json:"updated_at" gorm:"not null"`

	Lines []DetailLine `json:"lines,omitempty" gorm:"-"`
}

func (Declaration) TableName() string { return "availability_declarations" }

func (d *Declaration) PeriodKey() perioddomain.Key {
	return perioddomain.Key{AreaID: d.AreaID, Code: d.PeriodCode}
}

// DetailLine is the shift declared for one work date.
type DetailLine struct {
	ID                     snowflake.ID         `json:"id" gorm:"primaryKey"`
	DeclarationID          snowflake.ID         `json:"declaration_id" gorm:"not null"`
	WorkDate               time.Time            `json:"work_date" gorm:"type:date;not null"`
	ShiftType              shifthours.ShiftType `json:"shift_type" gorm:"type:text;not null"`
	ComputedHours          decimal.Decimal      `json:"computed_hours" gorm:"type:numeric(10,2);not null"`
	CoordinatorObservation *string              `json:"coordinator_observation,omitempty"`
	UpdatedBy              string               `json:"updated_by" gorm:"type:text;not null"`
	CreatedAt              time.Time            `json:"created_at" gorm:"not null"`
	UpdatedAt              time.Time            `json:"updated_at" gorm:"not null"`
}

func (DetailLine) TableName() string { return "availability_detail_lines" }

// SumHours adds up the computed hours of lines.
func SumHours(lines []DetailLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.ComputedHours)
	}
	return total
}
