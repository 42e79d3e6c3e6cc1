package repository

import (
	"context"

	"github.com/smallbiznis/turnos/internal/laborregime/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByProfessional(ctx context.Context, db *gorm.DB, professionalID string) (*domain.ProfessionalRegime, error) {
	var item domain.ProfessionalRegime
	err := db.WithContext(ctx).Raw(
		`SELECT professional_id, regime_id, updated_at
		 FROM professional_regimes WHERE professional_id = ?`,
		professionalID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ProfessionalID == "" {
		return nil, nil
	}
	return &item, nil
}
