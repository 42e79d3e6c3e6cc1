package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/turnos/internal/clock"
	"github.com/smallbiznis/turnos/internal/declaration/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type AccessorParams struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Repo  domain.Repository
}

type Accessor struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	repo  domain.Repository
}

func NewAccessor(p AccessorParams) domain.Accessor {
	return &Accessor{
		db:    p.DB,
		log:   p.Log.Named("declaration.accessor"),
		clock: p.Clock,
		repo:  p.Repo,
	}
}

// Mutate loads the aggregate, applies fn and writes it back in one
// transaction. expectedVersion 0 accepts whatever version was loaded; the
// write itself is always conditional on that version.
func (a *Accessor) Mutate(ctx context.Context, id snowflake.ID, expectedVersion int64, fn domain.MutateFunc) (*domain.Declaration, error) {
	if id == 0 {
		return nil, domain.ErrInvalidID
	}

	var result *domain.Declaration
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		decl, err := a.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if decl == nil {
			return domain.ErrNotFound
		}

		loadedVersion := decl.Version
		if expectedVersion != 0 && expectedVersion != loadedVersion {
			return domain.ErrVersionConflict
		}
		if decl.State.Terminal() {
			return domain.ErrSynchronized
		}

		lines, err := a.repo.ListLines(ctx, tx, id)
		if err != nil {
			return err
		}

		agg := domain.NewAggregate(decl, lines, tx, a.clock.Now().UTC())
		if err := fn(ctx, agg); err != nil {
			return err
		}

		if agg.Replaced() {
			if err := a.repo.DeleteLines(ctx, tx, id); err != nil {
				return err
			}
			if err := a.repo.InsertLines(ctx, tx, agg.Lines); err != nil {
				return err
			}
		} else {
			for _, line := range agg.ChangedLines() {
				affected, err := a.repo.UpdateLine(ctx, tx, line)
				if err != nil {
					return err
				}
				if affected == 0 {
					return domain.ErrLineNotFound
				}
			}
		}

		decl.TotalHours = domain.SumHours(agg.Lines)
		decl.UpdatedAt = agg.Now

		affected, err := a.repo.UpdateVersioned(ctx, tx, decl, loadedVersion)
		if err != nil {
			return err
		}
		if affected == 0 {
			return domain.ErrVersionConflict
		}

		stored, err := a.repo.SumLineHours(ctx, tx, id)
		if err != nil {
			return err
		}
		if !stored.Round(2).Equal(decl.TotalHours.Round(2)) {
			a.log.Error("declaration total does not match its lines",
				zap.String("declaration_id", id.String()),
				zap.String("total_hours", decl.TotalHours.String()),
				zap.String("line_hours", stored.String()),
			)
			return domain.ErrTotalMismatch
		}

		decl.Version = loadedVersion + 1
		decl.Lines = agg.Lines
		result = decl
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
