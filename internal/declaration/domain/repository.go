package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type DeclarationCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	AreaID         string
	PeriodCode     string
	ProfessionalID string
	ServiceID      string
	State          State
	Cursor         *DeclarationCursor
	Limit          int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, d *Declaration) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Declaration, error)
	// UpdateVersioned writes d only if the stored version still equals
	// expectedVersion, bumping it by one.
	UpdateVersioned(ctx context.Context, db *gorm.DB, d *Declaration, expectedVersion int64) (int64, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Declaration, error)

	ListLines(ctx context.Context, db *gorm.DB, declarationID snowflake.ID) ([]DetailLine, error)
	InsertLines(ctx context.Context, db *gorm.DB, lines []DetailLine) error
	DeleteLines(ctx context.Context, db *gorm.DB, declarationID snowflake.ID) error
	UpdateLine(ctx context.Context, db *gorm.DB, line DetailLine) (int64, error)
	SumLineHours(ctx context.Context, db *gorm.DB, declarationID snowflake.ID) (decimal.Decimal, error)
}
