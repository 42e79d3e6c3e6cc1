package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/turnos/internal/adjustment/domain"
	"github.com/smallbiznis/turnos/internal/adjustment/service"
	"github.com/smallbiznis/turnos/internal/apperrors"
	auditdomain "github.com/smallbiznis/turnos/internal/audit/domain"
	auditrepo "github.com/smallbiznis/turnos/internal/audit/repository"
	auditservice "github.com/smallbiznis/turnos/internal/audit/service"
	declarationdomain "github.com/smallbiznis/turnos/internal/declaration/domain"
	"github.com/smallbiznis/turnos/internal/shifthours"
	"github.com/smallbiznis/turnos/internal/testutil/fixture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAdjuster(env *fixture.Env, audit auditdomain.Service) domain.Service {
	return service.NewService(service.Params{
		Log:        zap.NewNop(),
		Calculator: env.Calculator,
		Accessor:   env.Accessor,
		AuditSvc:   audit,
	})
}

func TestAdjustLineRecomputesTotal(t *testing.T) {
	env := fixture.New(t)
	svc := newAdjuster(env, nil)
	submitted := env.CreateSubmitted(t, "prof-1")
	target := submitted.Lines[0]
	require.Equal(t, shifthours.ShiftMorning, target.ShiftType)

	env.Clock.Advance(time.Hour)
	adjusted, err := svc.AdjustLine(context.Background(), domain.AdjustLineRequest{
		DeclarationID:   submitted.ID,
		LineID:          target.ID,
		ShiftType:       "morning_afternoon",
		Observation:     "covered the afternoon clinic",
		ExpectedVersion: submitted.Version,
		Actor:           "coordinator",
	})
	require.NoError(t, err)
	assert.Equal(t, declarationdomain.StateSubmitted, adjusted.State)
	assert.Equal(t, submitted.Version+1, adjusted.Version)
	assert.True(t, adjusted.TotalHours.Equal(decimal.NewFromInt(216)), adjusted.TotalHours.String())

	stored, err := env.Declarations.Get(context.Background(), submitted.ID)
	require.NoError(t, err)
	assert.True(t, declarationdomain.SumHours(stored.Lines).Equal(stored.TotalHours))

	var line declarationdomain.DetailLine
	for _, l := range stored.Lines {
		if l.ID == target.ID {
			line = l
		}
	}
	assert.Equal(t, shifthours.ShiftMorningAfternoon, line.ShiftType)
	assert.True(t, line.ComputedHours.Equal(decimal.NewFromInt(12)))
	require.NotNil(t, line.CoordinatorObservation)
	assert.Equal(t, "covered the afternoon clinic", *line.CoordinatorObservation)
	assert.Equal(t, "coordinator", line.UpdatedBy)
}

func TestAdjustLineAllowedWhileReviewed(t *testing.T) {
	env := fixture.New(t)
	svc := newAdjuster(env, nil)
	reviewed := env.CreateReviewed(t, "prof-1")

	adjusted, err := svc.AdjustLine(context.Background(), domain.AdjustLineRequest{
		DeclarationID: reviewed.ID,
		LineID:        reviewed.Lines[29].ID,
		ShiftType:     "AFTERNOON",
	})
	require.NoError(t, err)
	assert.Equal(t, declarationdomain.StateReviewed, adjusted.State)
	assert.True(t, adjusted.TotalHours.Equal(decimal.NewFromInt(204)))
}

func TestAdjustLineRefusedOutsideReview(t *testing.T) {
	env := fixture.New(t)
	svc := newAdjuster(env, nil)
	ctx := context.Background()

	draft := env.CreateDraft(t, "prof-1", fixture.StandardLines())
	_, err := svc.AdjustLine(ctx, domain.AdjustLineRequest{DeclarationID: draft.ID, LineID: draft.Lines[0].ID, ShiftType: "AFTERNOON"})
	assert.ErrorIs(t, err, domain.ErrNotAdjustable)
	assert.ErrorIs(t, err, apperrors.ErrIllegalStateTransition)

	reviewed := env.CreateReviewed(t, "prof-2")
	_, err = env.Accessor.Mutate(ctx, reviewed.ID, 0, func(ctx context.Context, agg *declarationdomain.Aggregate) error {
		return agg.TransitionTo(declarationdomain.StateSynchronized)
	})
	require.NoError(t, err)

	_, err = svc.AdjustLine(ctx, domain.AdjustLineRequest{DeclarationID: reviewed.ID, LineID: reviewed.Lines[0].ID, ShiftType: "AFTERNOON"})
	assert.ErrorIs(t, err, apperrors.ErrIllegalStateTransition)
}

func TestAdjustLineValidation(t *testing.T) {
	env := fixture.New(t)
	svc := newAdjuster(env, nil)
	ctx := context.Background()
	submitted := env.CreateSubmitted(t, "prof-1")

	_, err := svc.AdjustLine(ctx, domain.AdjustLineRequest{DeclarationID: submitted.ID, LineID: submitted.Lines[0].ID, ShiftType: "NIGHT"})
	assert.ErrorIs(t, err, shifthours.ErrInvalidShiftType)

	_, err = svc.AdjustLine(ctx, domain.AdjustLineRequest{DeclarationID: submitted.ID, ShiftType: "MORNING"})
	assert.ErrorIs(t, err, domain.ErrInvalidLineID)

	_, err = svc.AdjustLine(ctx, domain.AdjustLineRequest{DeclarationID: submitted.ID, LineID: 12345, ShiftType: "MORNING"})
	assert.ErrorIs(t, err, declarationdomain.ErrLineNotFound)

	_, err = svc.AdjustLine(ctx, domain.AdjustLineRequest{
		DeclarationID:   submitted.ID,
		LineID:          submitted.Lines[0].ID,
		ShiftType:       "MORNING",
		ExpectedVersion: submitted.Version - 1,
	})
	assert.ErrorIs(t, err, apperrors.ErrConcurrencyConflict)
}

func TestAdjustLineWritesAudit(t *testing.T) {
	env := fixture.New(t)
	audit := auditservice.NewService(auditservice.Params{
		DB:    env.DB,
		Log:   zap.NewNop(),
		GenID: env.GenID,
		Clock: env.Clock,
		Repo:  auditrepo.Provide(),
	})
	svc := newAdjuster(env, audit)
	submitted := env.CreateSubmitted(t, "prof-1")

	_, err := svc.AdjustLine(context.Background(), domain.AdjustLineRequest{
		DeclarationID: submitted.ID,
		LineID:        submitted.Lines[0].ID,
		ShiftType:     "AFTERNOON",
		Actor:         "coordinator",
	})
	require.NoError(t, err)

	resp, err := audit.List(context.Background(), auditdomain.ListAuditLogRequest{Action: auditdomain.ActionDeclarationAdjustLine})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)
	assert.Equal(t, submitted.ID.String(), *resp.AuditLogs[0].TargetID)
	assert.Equal(t, "MORNING", resp.AuditLogs[0].Metadata["from_shift"])
}
