package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/turnos/internal/apperrors"
	declarationdomain "github.com/smallbiznis/turnos/internal/declaration/domain"
	"github.com/smallbiznis/turnos/internal/reconciliation/domain"
	"github.com/smallbiznis/turnos/internal/reconciliation/domain/mocks"
	"github.com/smallbiznis/turnos/internal/reconciliation/repository"
	"github.com/smallbiznis/turnos/internal/reconciliation/service"
	"github.com/smallbiznis/turnos/internal/shifthours"
	"github.com/smallbiznis/turnos/internal/testutil/fixture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newEngine(t *testing.T, env *fixture.Env, schedule domain.ExternalSchedule) domain.Service {
	t.Helper()
	if schedule == nil {
		schedule = mocks.NewMockExternalSchedule(gomock.NewController(t))
	}
	return service.NewService(service.Params{
		DB:       env.DB,
		Log:      zap.NewNop(),
		GenID:    env.GenID,
		Clock:    env.Clock,
		Rules:    env.Rules,
		Repo:     repository.Provide(),
		DeclRepo: env.Repo,
		Accessor: env.Accessor,
		Schedule: schedule,
	})
}

// reviewed160 returns a REVIEWED part-time declaration totalling 160 hours.
func reviewed160(t *testing.T, env *fixture.Env, professionalID string) *declarationdomain.Declaration {
	t.Helper()
	ctx := context.Background()
	env.AssignRegime(t, professionalID, "PART_TIME")
	decl := env.CreateDraft(t, professionalID, fixture.Lines(1, 20, shifthours.ShiftMorningAfternoon))
	require.True(t, decl.TotalHours.Equal(decimal.NewFromInt(160)), decl.TotalHours.String())

	decl, err := env.Declarations.Submit(ctx, declarationdomain.SubmitRequest{ID: decl.ID})
	require.NoError(t, err)
	decl, err = env.Declarations.MarkReviewed(ctx, declarationdomain.ReviewRequest{ID: decl.ID, Actor: "coordinator"})
	require.NoError(t, err)
	return decl
}

func hours(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func TestReconcileWithinToleranceSynchronizes(t *testing.T) {
	env := fixture.New(t)
	engine := newEngine(t, env, nil)
	decl := reviewed160(t, env, "prof-1")

	record, err := engine.Reconcile(context.Background(), domain.ReconcileRequest{
		DeclarationID:   decl.ID,
		LoadedHours:     hours(165),
		ExpectedVersion: decl.Version,
		Actor:           "coordinator",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOK, record.Status)
	assert.True(t, record.Delta.Decimal.Equal(decimal.NewFromInt(5)))
	require.NotNil(t, record.ScheduleRef)
	assert.True(t, strings.HasPrefix(*record.ScheduleRef, "SCH-"))

	stored, err := env.Declarations.Get(context.Background(), decl.ID)
	require.NoError(t, err)
	assert.Equal(t, declarationdomain.StateSynchronized, stored.State)
	require.NotNil(t, stored.ScheduleRef)
	assert.Equal(t, *record.ScheduleRef, *stored.ScheduleRef)
	require.NotNil(t, stored.SynchronizedAt)
	assert.Equal(t, decl.Version+1, stored.Version)
}

func TestReconcileToleranceBoundaryAndExternalRef(t *testing.T) {
	env := fixture.New(t)
	engine := newEngine(t, env, nil)
	decl := reviewed160(t, env, "prof-1")

	record, err := engine.Reconcile(context.Background(), domain.ReconcileRequest{
		DeclarationID: decl.ID,
		LoadedHours:   hours(150),
		ScheduleRef:   "EXT-001",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOK, record.Status, "delta equal to tolerance is OK")
	assert.Equal(t, "EXT-001", *record.ScheduleRef)
}

func TestReconcileOutOfToleranceKeepsReviewed(t *testing.T) {
	env := fixture.New(t)
	engine := newEngine(t, env, nil)
	ctx := context.Background()
	decl := reviewed160(t, env, "prof-1")

	record, err := engine.Reconcile(ctx, domain.ReconcileRequest{DeclarationID: decl.ID, LoadedHours: hours(180)})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDiscrepancy, record.Status)
	assert.True(t, record.Delta.Decimal.Equal(decimal.NewFromInt(20)))
	assert.Nil(t, record.ScheduleRef)

	stored, err := env.Declarations.Get(ctx, decl.ID)
	require.NoError(t, err)
	assert.Equal(t, declarationdomain.StateReviewed, stored.State)
	assert.Nil(t, stored.ScheduleRef)

	found, err := engine.ListDiscrepancies(ctx, decimal.NewFromInt(10))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, decl.ID, found[0].DeclarationID)
	assert.True(t, found[0].LoadedHours.Equal(decimal.NewFromInt(180)))

	found, err = engine.ListDiscrepancies(ctx, decimal.NewFromInt(25))
	require.NoError(t, err)
	assert.Empty(t, found)

	pending, err := engine.ListPendingSync(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, decl.ID, pending[0].ID)

	_, err = engine.ListDiscrepancies(ctx, decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, domain.ErrInvalidThreshold)
}

func TestReconcileWithoutDataIsPending(t *testing.T) {
	env := fixture.New(t)
	engine := newEngine(t, env, nil)
	ctx := context.Background()
	decl := reviewed160(t, env, "prof-1")

	record, err := engine.Reconcile(ctx, domain.ReconcileRequest{DeclarationID: decl.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, record.Status)
	assert.False(t, record.LoadedHours.Valid)
	assert.False(t, record.Delta.Valid)

	stored, err := env.Declarations.Get(ctx, decl.ID)
	require.NoError(t, err)
	assert.Equal(t, declarationdomain.StateReviewed, stored.State)
	assert.Equal(t, decl.Version, stored.Version, "pending checks do not touch the declaration")
}

func TestReconcileRequiresReviewed(t *testing.T) {
	env := fixture.New(t)
	engine := newEngine(t, env, nil)
	ctx := context.Background()
	submitted := env.CreateSubmitted(t, "prof-1")

	_, err := engine.Reconcile(ctx, domain.ReconcileRequest{DeclarationID: submitted.ID, LoadedHours: hours(210)})
	assert.ErrorIs(t, err, domain.ErrNotReviewed)
	_, err = engine.Reconcile(ctx, domain.ReconcileRequest{DeclarationID: submitted.ID})
	assert.ErrorIs(t, err, apperrors.ErrIllegalStateTransition)

	reviewed := reviewed160(t, env, "prof-2")
	_, err = engine.Reconcile(ctx, domain.ReconcileRequest{DeclarationID: reviewed.ID, LoadedHours: hours(160)})
	require.NoError(t, err)

	_, err = engine.Reconcile(ctx, domain.ReconcileRequest{DeclarationID: reviewed.ID, LoadedHours: hours(160)})
	assert.ErrorIs(t, err, apperrors.ErrIllegalStateTransition)
	_, err = engine.Reconcile(ctx, domain.ReconcileRequest{DeclarationID: reviewed.ID})
	assert.ErrorIs(t, err, declarationdomain.ErrSynchronized)

	_, err = engine.Reconcile(ctx, domain.ReconcileRequest{DeclarationID: 424242, LoadedHours: hours(1)})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = engine.Reconcile(ctx, domain.ReconcileRequest{DeclarationID: reviewed.ID, LoadedHours: hours(-5)})
	assert.ErrorIs(t, err, domain.ErrInvalidLoadedHours)
}

func TestReconcileFromSource(t *testing.T) {
	env := fixture.New(t)
	ctrl := gomock.NewController(t)
	schedule := mocks.NewMockExternalSchedule(ctrl)
	engine := newEngine(t, env, schedule)
	ctx := context.Background()

	loaded := reviewed160(t, env, "prof-loaded")
	missing := reviewed160(t, env, "prof-missing")
	broken := reviewed160(t, env, "prof-broken")

	schedule.EXPECT().
		LoadedHours(gomock.Any(), domain.ScheduleQuery{
			ProfessionalID: "prof-loaded",
			PeriodCode:     fixture.Period.Code,
			AreaID:         fixture.Period.AreaID,
			ServiceID:      "telemed-general",
		}).
		Return(&domain.ScheduleReport{LoadedHours: decimal.NewFromInt(158), ScheduleRef: "EXT-9"}, nil)
	schedule.EXPECT().
		LoadedHours(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, q domain.ScheduleQuery) (*domain.ScheduleReport, error) {
			if q.ProfessionalID == "prof-broken" {
				return nil, errors.New("staging view offline")
			}
			return nil, nil
		}).
		Times(2)

	record, err := engine.ReconcileFromSource(ctx, loaded.ID, "scheduler")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOK, record.Status)
	assert.Equal(t, "EXT-9", *record.ScheduleRef)

	record, err = engine.ReconcileFromSource(ctx, missing.ID, "scheduler")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, record.Status)

	record, err = engine.ReconcileFromSource(ctx, broken.ID, "scheduler")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, record.Status)

	pending, err := engine.ListPendingSync(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestListRecordsNewestFirst(t *testing.T) {
	env := fixture.New(t)
	engine := newEngine(t, env, nil)
	ctx := context.Background()
	decl := reviewed160(t, env, "prof-1")

	_, err := engine.Reconcile(ctx, domain.ReconcileRequest{DeclarationID: decl.ID})
	require.NoError(t, err)
	env.Clock.Advance(time.Hour)
	_, err = engine.Reconcile(ctx, domain.ReconcileRequest{DeclarationID: decl.ID, LoadedHours: hours(120)})
	require.NoError(t, err)

	found, err := engine.ListDiscrepancies(ctx, decimal.Zero)
	require.NoError(t, err)
	require.Len(t, found, 1)

	env.Clock.Advance(time.Hour)
	_, err = engine.Reconcile(ctx, domain.ReconcileRequest{DeclarationID: decl.ID, LoadedHours: hours(162)})
	require.NoError(t, err)

	records, err := engine.ListRecords(ctx, decl.ID)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, domain.StatusOK, records[0].Status)
	assert.Equal(t, domain.StatusDiscrepancy, records[1].Status)
	assert.Equal(t, domain.StatusPending, records[2].Status)

	found, err = engine.ListDiscrepancies(ctx, decimal.Zero)
	require.NoError(t, err)
	assert.Empty(t, found, "latest record is OK")
}
