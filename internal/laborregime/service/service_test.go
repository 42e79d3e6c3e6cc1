package service

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/turnos/internal/cache"
	"github.com/smallbiznis/turnos/internal/config"
	"github.com/smallbiznis/turnos/internal/laborregime/domain"
	"github.com/smallbiznis/turnos/internal/laborregime/repository"
	"github.com/smallbiznis/turnos/internal/testutil/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRegistry(t *testing.T) (*Registry, func(professionalID, regimeID string)) {
	t.Helper()
	db := testdb.Open(t)
	rules, err := config.NewStaticRulesHolder(config.DefaultRules())
	require.NoError(t, err)

	reg := NewRegistry(Params{
		DB:    db,
		Log:   zap.NewNop(),
		Rules: rules,
		Repo:  repository.Provide(),
		Cache: cache.NewTTLCache[string, string](),
	}).(*Registry)

	put := func(professionalID, regimeID string) {
		require.NoError(t, db.Exec(
			`INSERT INTO professional_regimes (professional_id, regime_id, updated_at) VALUES (?, ?, ?)`,
			professionalID, regimeID, time.Now().UTC(),
		).Error)
	}
	return reg, put
}

func TestRegimeForRegisteredProfessional(t *testing.T) {
	reg, put := newRegistry(t)
	put("prof-1", "part_time")

	regime, err := reg.RegimeFor(context.Background(), "prof-1")
	require.NoError(t, err)
	assert.Equal(t, "PART_TIME", regime)
}

func TestRegimeForFallsBackToDefault(t *testing.T) {
	reg, _ := newRegistry(t)

	regime, err := reg.RegimeFor(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Equal(t, "GENERAL", regime)
}

func TestRegimeForCachesUntilInvalidated(t *testing.T) {
	reg, put := newRegistry(t)

	regime, err := reg.RegimeFor(context.Background(), "prof-2")
	require.NoError(t, err)
	assert.Equal(t, "GENERAL", regime)

	put("prof-2", "ON_CALL")
	regime, err = reg.RegimeFor(context.Background(), "prof-2")
	require.NoError(t, err)
	assert.Equal(t, "GENERAL", regime, "cached value served")

	reg.Invalidate("prof-2")
	regime, err = reg.RegimeFor(context.Background(), "prof-2")
	require.NoError(t, err)
	assert.Equal(t, "ON_CALL", regime)
}

func TestRegimeForRejectsBlankProfessional(t *testing.T) {
	reg, _ := newRegistry(t)
	_, err := reg.RegimeFor(context.Background(), "  ")
	assert.ErrorIs(t, err, domain.ErrInvalidProfessional)
}
