package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/turnos/internal/declaration/domain"
	perioddomain "github.com/smallbiznis/turnos/internal/period/domain"
	"gorm.io/gorm"
)

const declarationColumns = `id, professional_id, period_code, area_id, service_id, regime_id, state,
		 total_hours, version, submitted_at, reviewed_at, review_observations, rejection_reason,
		 schedule_ref, synchronized_at, last_actor, created_at, updated_at`

const lineColumns = `id, declaration_id, work_date, shift_type, computed_hours,
		 coordinator_observation, updated_by, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// ProvideCounter exposes the declaration count used to guard period deletion.
func ProvideCounter() perioddomain.DeclarationCounter {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, d *domain.Declaration) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO availability_declarations (`+declarationColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID,
		d.ProfessionalID,
		d.PeriodCode,
		d.AreaID,
		d.ServiceID,
		d.RegimeID,
		d.State,
		d.TotalHours,
		d.Version,
		d.SubmittedAt,
		d.ReviewedAt,
		d.ReviewObservations,
		d.RejectionReason,
		d.ScheduleRef,
		d.SynchronizedAt,
		d.LastActor,
		d.CreatedAt,
		d.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Declaration, error) {
	var item domain.Declaration
	err := db.WithContext(ctx).Raw(
		`SELECT `+declarationColumns+`
		 FROM availability_declarations
		 WHERE id = ?`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) UpdateVersioned(ctx context.Context, db *gorm.DB, d *domain.Declaration, expectedVersion int64) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE availability_declarations
		 SET state = ?, total_hours = ?, version = version + 1,
		     submitted_at = ?, reviewed_at = ?, review_observations = ?, rejection_reason = ?,
		     schedule_ref = ?, synchronized_at = ?, last_actor = ?, updated_at = ?
		 WHERE id = ? AND version = ?`,
		d.State,
		d.TotalHours,
		d.SubmittedAt,
		d.ReviewedAt,
		d.ReviewObservations,
		d.RejectionReason,
		d.ScheduleRef,
		d.SynchronizedAt,
		d.LastActor,
		d.UpdatedAt,
		d.ID,
		expectedVersion,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Declaration, error) {
	var items []*domain.Declaration
	stmt := db.WithContext(ctx).Model(&domain.Declaration{})

	if areaID := strings.TrimSpace(filter.AreaID); areaID != "" {
		stmt = stmt.Where("area_id = ?", areaID)
	}
	if code := strings.TrimSpace(filter.PeriodCode); code != "" {
		stmt = stmt.Where("period_code = ?", code)
	}
	if professionalID := strings.TrimSpace(filter.ProfessionalID); professionalID != "" {
		stmt = stmt.Where("professional_id = ?", professionalID)
	}
	if serviceID := strings.TrimSpace(filter.ServiceID); serviceID != "" {
		stmt = stmt.Where("service_id = ?", serviceID)
	}
	if filter.State != "" {
		stmt = stmt.Where("state = ?", filter.State)
	}
	if filter.Cursor != nil {
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			filter.Cursor.CreatedAt,
			filter.Cursor.CreatedAt,
			filter.Cursor.ID,
		)
	}

	stmt = stmt.Order("created_at desc, id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListLines(ctx context.Context, db *gorm.DB, declarationID snowflake.ID) ([]domain.DetailLine, error) {
	var lines []domain.DetailLine
	err := db.WithContext(ctx).Raw(
		`SELECT `+lineColumns+`
		 FROM availability_detail_lines
		 WHERE declaration_id = ?
		 ORDER BY work_date ASC`,
		declarationID,
	).Scan(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *repo) InsertLines(ctx context.Context, db *gorm.DB, lines []domain.DetailLine) error {
	for _, line := range lines {
		err := db.WithContext(ctx).Exec(
			`INSERT INTO availability_detail_lines (`+lineColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			line.ID,
			line.DeclarationID,
			line.WorkDate,
			line.ShiftType,
			line.ComputedHours,
			line.CoordinatorObservation,
			line.UpdatedBy,
			line.CreatedAt,
			line.UpdatedAt,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) DeleteLines(ctx context.Context, db *gorm.DB, declarationID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM availability_detail_lines WHERE declaration_id = ?`,
		declarationID,
	).Error
}

func (r *repo) UpdateLine(ctx context.Context, db *gorm.DB, line domain.DetailLine) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE availability_detail_lines
		 SET shift_type = ?, computed_hours = ?, coordinator_observation = ?, updated_by = ?, updated_at = ?
		 WHERE id = ? AND declaration_id = ?`,
		line.ShiftType,
		line.ComputedHours,
		line.CoordinatorObservation,
		line.UpdatedBy,
		line.UpdatedAt,
		line.ID,
		line.DeclarationID,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) SumLineHours(ctx context.Context, db *gorm.DB, declarationID snowflake.ID) (decimal.Decimal, error) {
	var row struct {
		Total decimal.NullDecimal
	}
	err := db.WithContext(ctx).Raw(
		`SELECT SUM(computed_hours) AS total
		 FROM availability_detail_lines
		 WHERE declaration_id = ?`,
		declarationID,
	).Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !row.Total.Valid {
		return decimal.Zero, nil
	}
	return row.Total.Decimal, nil
}

func (r *repo) CountByPeriod(ctx context.Context, db *gorm.DB, key perioddomain.Key) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1)
		 FROM availability_declarations
		 WHERE area_id = ? AND period_code = ?`,
		key.AreaID,
		key.Code,
	).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
