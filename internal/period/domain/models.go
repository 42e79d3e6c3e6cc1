package domain

import (
	"strings"
	"time"
)

type PeriodState string

const (
	PeriodStateOpen            PeriodState = "OPEN"
	PeriodStateUnderValidation PeriodState = "UNDER_VALIDATION"
	PeriodStateClosed          PeriodState = "CLOSED"
	PeriodStateReopened        PeriodState = "REOPENED"
)

func (s PeriodState) Valid() bool {
	switch s {
	case PeriodStateOpen, PeriodStateUnderValidation, PeriodStateClosed, PeriodStateReopened:
		return true
	default:
		return false
	}
}

// IsOpen reports whether declarations may be created or edited in this state.
func (s PeriodState) IsOpen() bool {
	return s == PeriodStateOpen || s == PeriodStateReopened
}

func ParseState(value string) (PeriodState, error) {
	state := PeriodState(strings.ToUpper(strings.TrimSpace(value)))
	if !state.Valid() {
		return "", ErrInvalidState
	}
	return state, nil
}

// Key identifies a control period within an organizational area.
type Key struct {
	AreaID string `json:"area_id"`
	Code   string `json:"period_code"`
}

func (k Key) Normalize() Key {
	return Key{AreaID: strings.TrimSpace(k.AreaID), Code: strings.TrimSpace(k.Code)}
}

func (k Key) Validate() error {
	if strings.TrimSpace(k.AreaID) == "" {
		return ErrInvalidAreaID
	}
	if strings.TrimSpace(k.Code) == "" {
		return ErrInvalidCode
	}
	return nil
}

func (k Key) String() string {
	return k.AreaID + "/" + k.Code
}

// ControlPeriod is a bounded date range during which declarations are accepted.
type ControlPeriod struct {
	PeriodCode string      `json:"period_code" gorm:"primaryKey;type:text"`
	AreaID     string      `json:"area_id" gorm:"primaryKey;type:text"`
	State      PeriodState `json:"state" gorm:"type:text;not null"`
	StartDate  time.Time   `json:"start_date" gorm:"type:date;not null"`
	EndDate    time.Time   `json:"end_date" gorm:"type:date;not null"`
	OpenedAt   *time.Time  `json:"opened_at,omitempty"`
	ClosedAt   *time.Time  `json:"closed_at,omitempty"`
	LastActor  string      `json:"last_actor" gorm:"type:text;not null"`
	CreatedAt  time.Time   `json:"created_at" gorm:"not null"`
	UpdatedAt  time.Time   `json:"updated_at" gorm:"not null"`
	DeletedAt  *time.Time  `json:"-"`
}

func (ControlPeriod) TableName() string { return "control_periods" }

func (p *ControlPeriod) Key() Key {
	return Key{AreaID: p.AreaID, Code: p.PeriodCode}
}

// Covers reports whether day falls inside the inclusive period range.
func (p *ControlPeriod) Covers(day time.Time) bool {
	d := DateOf(day)
	return !d.Before(DateOf(p.StartDate)) && !d.After(DateOf(p.EndDate))
}

// DateOf truncates t to midnight UTC.
func DateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
