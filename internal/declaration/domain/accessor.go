package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Accessor is the only write path to a stored declaration. Mutate runs fn
// inside one transaction, then persists the aggregate under a version check.
type Accessor interface {
	Mutate(ctx context.Context, id snowflake.ID, expectedVersion int64, fn MutateFunc) (*Declaration, error)
}

type MutateFunc func(ctx context.Context, agg *Aggregate) error

// Aggregate is the declaration and its lines as loaded inside Mutate.
// Tx is the open transaction; side writes made through it commit or roll
// back together with the declaration.
type Aggregate struct {
	Declaration *Declaration
	Lines       []DetailLine
	Tx          *gorm.DB
	Now         time.Time

	replaced bool
	changed  map[snowflake.ID]struct{}
}

func NewAggregate(d *Declaration, lines []DetailLine, tx *gorm.DB, now time.Time) *Aggregate {
	return &Aggregate{
		Declaration: d,
		Lines:       lines,
		Tx:          tx,
		Now:         now,
		changed:     map[snowflake.ID]struct{}{},
	}
}

// TransitionTo moves the declaration to target if the transition table allows it.
func (a *Aggregate) TransitionTo(target State) error {
	if !IsTransitionAllowed(a.Declaration.State, target) {
		return ErrInvalidTransition
	}
	a.Declaration.State = target
	return nil
}

// ReplaceLines swaps the whole line set.
func (a *Aggregate) ReplaceLines(lines []DetailLine) {
	a.Lines = lines
	a.replaced = true
	a.changed = map[snowflake.ID]struct{}{}
}

// Line returns a copy of the line with id.
func (a *Aggregate) Line(id snowflake.ID) (DetailLine, bool) {
	for _, line := range a.Lines {
		if line.ID == id {
			return line, true
		}
	}
	return DetailLine{}, false
}

// UpdateLine stores line in place of the existing line with the same id.
func (a *Aggregate) UpdateLine(line DetailLine) error {
	for i := range a.Lines {
		if a.Lines[i].ID == line.ID {
			a.Lines[i] = line
			if !a.replaced {
				a.changed[line.ID] = struct{}{}
			}
			return nil
		}
	}
	return ErrLineNotFound
}

func (a *Aggregate) Replaced() bool { return a.replaced }

// ChangedLines lists lines edited through UpdateLine.
func (a *Aggregate) ChangedLines() []DetailLine {
	if len(a.changed) == 0 {
		return nil
	}
	out := make([]DetailLine, 0, len(a.changed))
	for _, line := range a.Lines {
		if _, ok := a.changed[line.ID]; ok {
			out = append(out, line)
		}
	}
	return out
}
