package domain

import (
	"context"
	"time"

	"github.com/smallbiznis/turnos/internal/apperrors"
	"gorm.io/gorm"
)

// ProfessionalRegime assigns a labor regime to a professional.
type ProfessionalRegime struct {
	ProfessionalID string    `json:"professional_id" gorm:"primaryKey;type:text"`
	RegimeID       string    `json:"regime_id" gorm:"type:text;not null"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"not null"`
}

func (ProfessionalRegime) TableName() string { return "professional_regimes" }

type Repository interface {
	FindByProfessional(ctx context.Context, db *gorm.DB, professionalID string) (*ProfessionalRegime, error)
}

// Registry resolves the labor regime of a professional. It never writes.
type Registry interface {
	RegimeFor(ctx context.Context, professionalID string) (string, error)
	Invalidate(professionalID string)
}

var ErrInvalidProfessional = apperrors.NewValidation("invalid_professional_id")
