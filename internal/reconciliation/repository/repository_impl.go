package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	declarationdomain "github.com/smallbiznis/turnos/internal/declaration/domain"
	"github.com/smallbiznis/turnos/internal/reconciliation/domain"
	"gorm.io/gorm"
)

const recordColumns = `id, declaration_id, declared_hours, loaded_hours, delta, status,
		 schedule_ref, checked_by, checked_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *domain.Record) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO reconciliation_records (`+recordColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.DeclarationID,
		record.DeclaredHours,
		record.LoadedHours,
		record.Delta,
		record.Status,
		record.ScheduleRef,
		record.CheckedBy,
		record.CheckedAt,
	).Error
}

func (r *repo) ListByDeclaration(ctx context.Context, db *gorm.DB, declarationID snowflake.ID) ([]domain.Record, error) {
	var records []domain.Record
	err := db.WithContext(ctx).Raw(
		`SELECT `+recordColumns+`
		 FROM reconciliation_records
		 WHERE declaration_id = ?
		 ORDER BY checked_at DESC, id DESC`,
		declarationID,
	).Scan(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

const declarationSelect = `SELECT d.id, d.professional_id, d.period_code, d.area_id, d.service_id, d.regime_id,
		        d.state, d.total_hours, d.version, d.submitted_at, d.reviewed_at,
		        d.review_observations, d.rejection_reason, d.schedule_ref, d.synchronized_at,
		        d.last_actor, d.created_at, d.updated_at
		 FROM availability_declarations d`

func (r *repo) ListPendingSync(ctx context.Context, db *gorm.DB, limit int) ([]declarationdomain.Declaration, error) {
	query := declarationSelect + `
		 WHERE d.state = ?
		   AND NOT EXISTS (
		       SELECT 1 FROM reconciliation_records r
		       WHERE r.declaration_id = d.id AND r.status = ?
		   )
		 ORDER BY d.reviewed_at ASC, d.id ASC`
	return r.listDeclarations(ctx, db, query, limit, declarationdomain.StateReviewed, domain.StatusOK)
}

func (r *repo) ListAwaitingSource(ctx context.Context, db *gorm.DB, limit int) ([]declarationdomain.Declaration, error) {
	query := declarationSelect + `
		 WHERE d.state = ?
		   AND COALESCE((
		       SELECT latest.status FROM reconciliation_records latest
		       WHERE latest.declaration_id = d.id
		       ORDER BY latest.checked_at DESC, latest.id DESC
		       LIMIT 1
		   ), ?) = ?
		 ORDER BY d.reviewed_at ASC, d.id ASC`
	return r.listDeclarations(ctx, db, query, limit,
		declarationdomain.StateReviewed, domain.StatusPending, domain.StatusPending)
}

func (r *repo) listDeclarations(ctx context.Context, db *gorm.DB, query string, limit int, args ...any) ([]declarationdomain.Declaration, error) {
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var items []declarationdomain.Declaration
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListDiscrepancies(ctx context.Context, db *gorm.DB, threshold decimal.Decimal) ([]domain.Discrepancy, error) {
	var items []domain.Discrepancy
	err := db.WithContext(ctx).Raw(
		`SELECT r.id AS record_id, r.declaration_id, d.professional_id, d.period_code, d.area_id,
		        d.service_id, r.declared_hours, r.loaded_hours, r.delta, r.checked_at
		 FROM reconciliation_records r
		 JOIN availability_declarations d ON d.id = r.declaration_id
		 WHERE r.status = ?
		   AND r.delta > ?
		   AND r.id = (
		       SELECT latest.id FROM reconciliation_records latest
		       WHERE latest.declaration_id = r.declaration_id
		       ORDER BY latest.checked_at DESC, latest.id DESC
		       LIMIT 1
		   )
		 ORDER BY r.delta DESC, r.id ASC`,
		domain.StatusDiscrepancy,
		threshold,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
