package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	declarationdomain "github.com/smallbiznis/turnos/internal/declaration/domain"
	"gorm.io/gorm"
)

// Repository is append-only: records are inserted and read, never updated.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, record *Record) error
	ListByDeclaration(ctx context.Context, db *gorm.DB, declarationID snowflake.ID) ([]Record, error)
	// ListPendingSync returns REVIEWED declarations without an OK record.
	ListPendingSync(ctx context.Context, db *gorm.DB, limit int) ([]declarationdomain.Declaration, error)
	// ListAwaitingSource returns REVIEWED declarations never reconciled or
	// whose latest record is PENDING. DISCREPANCY waits for a person.
	ListAwaitingSource(ctx context.Context, db *gorm.DB, limit int) ([]declarationdomain.Declaration, error)
	// ListDiscrepancies returns declarations whose latest record is a
	// DISCREPANCY with delta above threshold.
	ListDiscrepancies(ctx context.Context, db *gorm.DB, threshold decimal.Decimal) ([]Discrepancy, error)
}
