package repository

import (
	"context"
	"strings"
	"time"

	"github.com/smallbiznis/turnos/internal/period/domain"
	"gorm.io/gorm"
)

const periodColumns = `period_code, area_id, state, start_date, end_date, opened_at, closed_at,
		 last_actor, created_at, updated_at, deleted_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, p *domain.ControlPeriod) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO control_periods (`+periodColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.PeriodCode,
		p.AreaID,
		p.State,
		p.StartDate,
		p.EndDate,
		p.OpenedAt,
		p.ClosedAt,
		p.LastActor,
		p.CreatedAt,
		p.UpdatedAt,
		p.DeletedAt,
	).Error
}

func (r *repo) FindByKey(ctx context.Context, db *gorm.DB, key domain.Key) (*domain.ControlPeriod, error) {
	var item domain.ControlPeriod
	err := db.WithContext(ctx).Raw(
		`SELECT `+periodColumns+`
		 FROM control_periods
		 WHERE area_id = ? AND period_code = ? AND deleted_at IS NULL`,
		key.AreaID,
		key.Code,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.PeriodCode == "" {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) UpdateState(ctx context.Context, db *gorm.DB, p *domain.ControlPeriod, from domain.PeriodState) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE control_periods
		 SET state = ?, opened_at = ?, closed_at = ?, last_actor = ?, updated_at = ?
		 WHERE area_id = ? AND period_code = ? AND state = ? AND deleted_at IS NULL`,
		p.State,
		p.OpenedAt,
		p.ClosedAt,
		p.LastActor,
		p.UpdatedAt,
		p.AreaID,
		p.PeriodCode,
		from,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.ControlPeriod, error) {
	query := `SELECT ` + periodColumns + ` FROM control_periods WHERE deleted_at IS NULL`
	args := []any{}
	if areaID := strings.TrimSpace(filter.AreaID); areaID != "" {
		query += ` AND area_id = ?`
		args = append(args, areaID)
	}
	if filter.State != "" {
		query += ` AND state = ?`
		args = append(args, filter.State)
	}
	query += ` ORDER BY start_date DESC, area_id ASC`

	var items []domain.ControlPeriod
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListByStates(ctx context.Context, db *gorm.DB, states []domain.PeriodState) ([]domain.ControlPeriod, error) {
	var items []domain.ControlPeriod
	err := db.WithContext(ctx).Raw(
		`SELECT `+periodColumns+`
		 FROM control_periods
		 WHERE state IN ? AND deleted_at IS NULL
		 ORDER BY start_date ASC, area_id ASC`,
		states,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListCovering(ctx context.Context, db *gorm.DB, states []domain.PeriodState, day time.Time) ([]domain.ControlPeriod, error) {
	var items []domain.ControlPeriod
	err := db.WithContext(ctx).Raw(
		`SELECT `+periodColumns+`
		 FROM control_periods
		 WHERE state IN ? AND start_date <= ? AND end_date >= ? AND deleted_at IS NULL
		 ORDER BY start_date ASC, area_id ASC`,
		states,
		day,
		day,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) SoftDelete(ctx context.Context, db *gorm.DB, key domain.Key, actor string, at time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE control_periods
		 SET deleted_at = ?, last_actor = ?, updated_at = ?
		 WHERE area_id = ? AND period_code = ? AND deleted_at IS NULL`,
		at,
		actor,
		at,
		key.AreaID,
		key.Code,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) LockOpen(ctx context.Context, db *gorm.DB, key domain.Key, states []domain.PeriodState) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE control_periods
		 SET state = state
		 WHERE area_id = ? AND period_code = ? AND state IN ? AND deleted_at IS NULL`,
		key.AreaID,
		key.Code,
		states,
	)
	return result.RowsAffected, result.Error
}
