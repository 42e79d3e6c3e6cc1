package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/turnos/internal/reconciliation/domain"
	"github.com/smallbiznis/turnos/internal/testutil/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadedHours(t *testing.T) {
	db := testdb.Open(t)
	require.NoError(t, db.Exec(
		`INSERT INTO external_schedule_hours
		 (professional_id, period_code, area_id, service_id, loaded_hours, schedule_ref, reported_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		"prof-1", "2024-06", "AREA-1", "telemed-general", "165.5", "EXT-77", time.Date(2024, 7, 1, 6, 0, 0, 0, time.UTC),
	).Error)

	src := NewGormSchedule(db)
	report, err := src.LoadedHours(context.Background(), domain.ScheduleQuery{
		ProfessionalID: "prof-1",
		PeriodCode:     "2024-06",
		AreaID:         "AREA-1",
		ServiceID:      "telemed-general",
	})
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.True(t, report.LoadedHours.Equal(decimal.RequireFromString("165.5")))
	assert.Equal(t, "EXT-77", report.ScheduleRef)

	missing, err := src.LoadedHours(context.Background(), domain.ScheduleQuery{
		ProfessionalID: "prof-2",
		PeriodCode:     "2024-06",
		AreaID:         "AREA-1",
		ServiceID:      "telemed-general",
	})
	require.NoError(t, err)
	assert.Nil(t, missing)
}
