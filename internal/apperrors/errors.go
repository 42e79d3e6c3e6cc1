// Package apperrors defines the error kinds shared by the turnos core.
//
// Domain packages declare their own sentinels with New* helpers so that the
// message stays specific (for example "invalid_date_range") while errors.Is
// still matches the kind (ErrValidation).
package apperrors

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrValidation             = errors.New("validation_error")
	ErrIllegalStateTransition = errors.New("illegal_state_transition")
	ErrMinimumHoursNotMet     = errors.New("minimum_hours_not_met")
	ErrDuplicateDeclaration   = errors.New("duplicate_declaration")
	ErrNotFound               = errors.New("not_found")
	ErrConcurrencyConflict    = errors.New("concurrency_conflict")

	// ErrInternal marks a broken invariant. Retrying will not help.
	ErrInternal = errors.New("internal_error")
)

// Error is a coded error that unwraps to one of the kinds above.
type Error struct {
	Code string
	Kind error
}

func (e *Error) Error() string {
	return e.Code
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, code string) error {
	return &Error{Code: code, Kind: kind}
}

func NewValidation(code string) error        { return newError(ErrValidation, code) }
func NewIllegalTransition(code string) error { return newError(ErrIllegalStateTransition, code) }
func NewNotFound(code string) error          { return newError(ErrNotFound, code) }
func NewDuplicate(code string) error         { return newError(ErrDuplicateDeclaration, code) }
func NewConflict(code string) error          { return newError(ErrConcurrencyConflict, code) }
func NewInternal(code string) error          { return newError(ErrInternal, code) }

// MinimumHoursNotMetError is returned by submit when the declared total is
// below the configured threshold.
type MinimumHoursNotMetError struct {
	Required  decimal.Decimal
	Total     decimal.Decimal
	Shortfall decimal.Decimal
}

func NewMinimumHoursNotMet(required, total decimal.Decimal) *MinimumHoursNotMetError {
	return &MinimumHoursNotMetError{
		Required:  required,
		Total:     total,
		Shortfall: required.Sub(total),
	}
}

func (e *MinimumHoursNotMetError) Error() string {
	return fmt.Sprintf("minimum_hours_not_met: declared %s of %s required (shortfall %s)",
		e.Total.String(), e.Required.String(), e.Shortfall.String())
}

func (e *MinimumHoursNotMetError) Unwrap() error {
	return ErrMinimumHoursNotMet
}

// KindOf returns the kind sentinel err belongs to, or nil when it is not a
// coded error.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range []error{
		ErrValidation,
		ErrIllegalStateTransition,
		ErrMinimumHoursNotMet,
		ErrDuplicateDeclaration,
		ErrNotFound,
		ErrConcurrencyConflict,
		ErrInternal,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// Code returns the specific code of a coded error, falling back to the kind.
func Code(err error) string {
	var coded *Error
	if errors.As(err, &coded) && coded != nil {
		return coded.Code
	}
	if kind := KindOf(err); kind != nil {
		return kind.Error()
	}
	return ""
}
