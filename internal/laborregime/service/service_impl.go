package service

import (
	"context"
	"strings"
	"time"

	"github.com/smallbiznis/turnos/internal/cache"
	"github.com/smallbiznis/turnos/internal/config"
	"github.com/smallbiznis/turnos/internal/laborregime/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultCacheTTL = 5 * time.Minute

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Rules config.RulesProvider
	Repo  domain.Repository
	Cache cache.Cache[string, string] `optional:"true"`
}

type Registry struct {
	db    *gorm.DB
	log   *zap.Logger
	rules config.RulesProvider
	repo  domain.Repository
	cache cache.Cache[string, string]
	ttl   time.Duration
}

func NewRegistry(p Params) domain.Registry {
	c := p.Cache
	if c == nil {
		c = cache.NewTTLCache[string, string]()
	}
	return &Registry{
		db:    p.DB,
		log:   p.Log.Named("laborregime.registry"),
		rules: p.Rules,
		repo:  p.Repo,
		cache: c,
		ttl:   defaultCacheTTL,
	}
}

// RegimeFor returns the regime assigned to the professional, or the
// configured default when none is registered.
func (r *Registry) RegimeFor(ctx context.Context, professionalID string) (string, error) {
	professionalID = strings.TrimSpace(professionalID)
	if professionalID == "" {
		return "", domain.ErrInvalidProfessional
	}

	if regime, ok := r.cache.Get(professionalID); ok {
		return regime, nil
	}

	item, err := r.repo.FindByProfessional(ctx, r.db, professionalID)
	if err != nil {
		return "", err
	}

	regime := ""
	if item != nil {
		regime = config.NormalizeRegimeID(item.RegimeID)
	}
	if regime == "" {
		regime = r.rules.Get().DefaultRegime
		r.log.Debug("professional has no regime, using default",
			zap.String("professional_id", professionalID),
			zap.String("regime_id", regime),
		)
	}

	r.cache.Set(professionalID, regime, r.ttl)
	return regime, nil
}

func (r *Registry) Invalidate(professionalID string) {
	r.cache.Delete(strings.TrimSpace(professionalID))
}
