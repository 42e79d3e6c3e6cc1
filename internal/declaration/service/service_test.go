package service_test

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/turnos/internal/apperrors"
	"github.com/smallbiznis/turnos/internal/config"
	"github.com/smallbiznis/turnos/internal/declaration/domain"
	"github.com/smallbiznis/turnos/internal/declaration/repository"
	perioddomain "github.com/smallbiznis/turnos/internal/period/domain"
	"github.com/smallbiznis/turnos/internal/shifthours"
	"github.com/smallbiznis/turnos/internal/testutil/fixture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateComputesTotalFromRegimeTable(t *testing.T) {
	env := fixture.New(t)

	decl := env.CreateDraft(t, "prof-1", fixture.StandardLines())
	assert.Equal(t, domain.StateDraft, decl.State)
	assert.Equal(t, "GENERAL", decl.RegimeID)
	assert.EqualValues(t, 1, decl.Version)
	assert.True(t, decl.TotalHours.Equal(decimal.NewFromInt(210)), decl.TotalHours.String())
	require.Len(t, decl.Lines, 30)

	env.AssignRegime(t, "prof-2", "PART_TIME")
	partTime := env.CreateDraft(t, "prof-2", fixture.Lines(1, 10, shifthours.ShiftMorningAfternoon))
	assert.Equal(t, "PART_TIME", partTime.RegimeID)
	assert.True(t, partTime.TotalHours.Equal(decimal.NewFromInt(80)))

	stored, err := env.Declarations.Get(context.Background(), decl.ID)
	require.NoError(t, err)
	assert.True(t, stored.TotalHours.Equal(decimal.NewFromInt(210)))
	assert.True(t, domain.SumHours(stored.Lines).Equal(stored.TotalHours))
}

func TestCreateRejectsDuplicateDeclaration(t *testing.T) {
	env := fixture.New(t)
	env.CreateDraft(t, "prof-1", fixture.Lines(1, 3, shifthours.ShiftMorning))

	_, err := env.Declarations.Create(context.Background(), domain.CreateDeclarationRequest{
		ProfessionalID: "prof-1",
		Period:         fixture.Period,
		ServiceID:      "telemed-general",
	})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateDeclaration)

	_, err = env.Declarations.Create(context.Background(), domain.CreateDeclarationRequest{
		ProfessionalID: "prof-1",
		Period:         fixture.Period,
		ServiceID:      "telemed-pediatrics",
	})
	assert.NoError(t, err, "another service is a separate declaration")
}

func TestCreateValidatesLines(t *testing.T) {
	env := fixture.New(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		lines []domain.LineInput
		want  error
	}{
		{
			name:  "outside_period",
			lines: []domain.LineInput{{WorkDate: fixture.Day(2024, 7, 1), ShiftType: "MORNING"}},
			want:  domain.ErrWorkDateOutsidePeriod,
		},
		{
			name:  "duplicate_date",
			lines: append(fixture.Lines(3, 1, shifthours.ShiftMorning), fixture.Lines(3, 1, shifthours.ShiftAfternoon)...),
			want:  domain.ErrDuplicateWorkDate,
		},
		{
			name:  "unknown_shift",
			lines: []domain.LineInput{{WorkDate: fixture.Day(2024, 6, 2), ShiftType: "NIGHT"}},
			want:  shifthours.ErrInvalidShiftType,
		},
		{
			name:  "missing_date",
			lines: []domain.LineInput{{ShiftType: "MORNING"}},
			want:  domain.ErrInvalidWorkDate,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.Declarations.Create(ctx, domain.CreateDeclarationRequest{
				ProfessionalID: "prof-" + tc.name,
				Period:         fixture.Period,
				ServiceID:      "telemed-general",
				Lines:          tc.lines,
			})
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, apperrors.ErrValidation)
		})
	}

	count, err := repository.ProvideCounter().CountByPeriod(ctx, env.DB, fixture.Period)
	require.NoError(t, err)
	assert.Zero(t, count, "failed creates leave nothing behind")
}

func TestCreateRequiresOpenPeriod(t *testing.T) {
	env := fixture.New(t)
	ctx := context.Background()

	_, err := env.Periods.Transition(ctx, perioddomain.TransitionRequest{Key: fixture.Period, Target: perioddomain.PeriodStateClosed})
	require.NoError(t, err)

	_, err = env.Declarations.Create(ctx, domain.CreateDeclarationRequest{
		ProfessionalID: "prof-1",
		Period:         fixture.Period,
		ServiceID:      "telemed-general",
	})
	assert.ErrorIs(t, err, perioddomain.ErrPeriodNotOpen)

	_, err = env.Declarations.Create(ctx, domain.CreateDeclarationRequest{
		ProfessionalID: "prof-1",
		Period:         perioddomain.Key{AreaID: "AREA-1", Code: "missing"},
		ServiceID:      "telemed-general",
	})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestTotalMatchesLinesAfterRandomEdits(t *testing.T) {
	env := fixture.New(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))
	shifts := []shifthours.ShiftType{shifthours.ShiftMorning, shifthours.ShiftAfternoon, shifthours.ShiftMorningAfternoon}

	randomLines := func() []domain.LineInput {
		var lines []domain.LineInput
		for d := 1; d <= 30; d++ {
			if rng.Intn(3) == 0 {
				continue
			}
			lines = append(lines, domain.LineInput{
				WorkDate:  fixture.Day(2024, 6, d),
				ShiftType: string(shifts[rng.Intn(len(shifts))]),
			})
		}
		return lines
	}

	decl := env.CreateDraft(t, "prof-1", randomLines())
	for i := 0; i < 15; i++ {
		updated, err := env.Declarations.Update(ctx, domain.UpdateDeclarationRequest{
			ID:              decl.ID,
			ExpectedVersion: decl.Version,
			Lines:           randomLines(),
			Actor:           "prof-1",
		})
		require.NoError(t, err)
		assert.Equal(t, decl.Version+1, updated.Version)
		decl = updated

		stored, err := env.Declarations.Get(ctx, decl.ID)
		require.NoError(t, err)
		assert.True(t, domain.SumHours(stored.Lines).Equal(stored.TotalHours),
			"iteration %d: lines %s total %s", i, domain.SumHours(stored.Lines), stored.TotalHours)

		dbSum, err := env.Repo.SumLineHours(ctx, env.DB, decl.ID)
		require.NoError(t, err)
		assert.True(t, dbSum.Equal(stored.TotalHours))
	}
}

func TestSubmitBelowMinimumKeepsDraft(t *testing.T) {
	env := fixture.New(t)
	ctx := context.Background()
	decl := env.CreateDraft(t, "prof-1", fixture.Lines(1, 20, shifthours.ShiftMorning))

	_, err := env.Declarations.Submit(ctx, domain.SubmitRequest{ID: decl.ID, ExpectedVersion: decl.Version})
	require.ErrorIs(t, err, apperrors.ErrMinimumHoursNotMet)

	var minErr *apperrors.MinimumHoursNotMetError
	require.True(t, errors.As(err, &minErr))
	assert.True(t, minErr.Required.Equal(decimal.NewFromInt(150)))
	assert.True(t, minErr.Total.Equal(decimal.NewFromInt(120)))
	assert.True(t, minErr.Shortfall.Equal(decimal.NewFromInt(30)))

	stored, err := env.Declarations.Get(ctx, decl.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateDraft, stored.State)
	assert.Equal(t, decl.Version, stored.Version)
	assert.Nil(t, stored.SubmittedAt)
}

func TestSubmitUsesRegimeMinimumOverride(t *testing.T) {
	rules := config.DefaultRules()
	override := 80.0
	partTime := rules.Regimes["PART_TIME"]
	partTime.MinimumRequiredHours = &override
	rules.Regimes["PART_TIME"] = partTime

	env := fixture.NewWithRules(t, rules)
	env.AssignRegime(t, "prof-pt", "part_time")
	ctx := context.Background()

	pt := env.CreateDraft(t, "prof-pt", fixture.Lines(1, 10, shifthours.ShiftMorningAfternoon))
	require.True(t, pt.TotalHours.Equal(decimal.NewFromInt(80)))
	submitted, err := env.Declarations.Submit(ctx, domain.SubmitRequest{ID: pt.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.StateSubmitted, submitted.State)

	general := env.CreateDraft(t, "prof-gen", fixture.Lines(1, 10, shifthours.ShiftMorning))
	_, err = env.Declarations.Submit(ctx, domain.SubmitRequest{ID: general.ID})
	assert.ErrorIs(t, err, apperrors.ErrMinimumHoursNotMet)
}

func TestSubmitStandardMonth(t *testing.T) {
	env := fixture.New(t)
	decl := env.CreateDraft(t, "prof-1", fixture.StandardLines())

	submitted, err := env.Declarations.Submit(context.Background(), domain.SubmitRequest{
		ID:              decl.ID,
		ExpectedVersion: decl.Version,
		Actor:           "prof-1",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StateSubmitted, submitted.State)
	assert.True(t, submitted.TotalHours.Equal(decimal.NewFromInt(210)))
	require.NotNil(t, submitted.SubmittedAt)
	assert.True(t, submitted.SubmittedAt.Equal(env.Clock.Now()))
	assert.Equal(t, decl.Version+1, submitted.Version)
}

func TestRejectThenResubmit(t *testing.T) {
	env := fixture.New(t)
	ctx := context.Background()
	submitted := env.CreateSubmitted(t, "prof-1")

	_, err := env.Declarations.Reject(ctx, domain.RejectRequest{ID: submitted.ID, Reason: "  "})
	assert.ErrorIs(t, err, domain.ErrRejectionReason)

	rejected, err := env.Declarations.Reject(ctx, domain.RejectRequest{
		ID:              submitted.ID,
		ExpectedVersion: submitted.Version,
		Reason:          "incomplete data",
		Actor:           "coordinator",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StateDraft, rejected.State)
	require.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, "incomplete data", *rejected.RejectionReason)
	assert.Nil(t, rejected.SubmittedAt)
	assert.Nil(t, rejected.ReviewedAt)

	lines := append(fixture.StandardLines()[:25], fixture.Lines(26, 5, shifthours.ShiftAfternoon)...)
	updated, err := env.Declarations.Update(ctx, domain.UpdateDeclarationRequest{
		ID:              rejected.ID,
		ExpectedVersion: rejected.Version,
		Lines:           lines,
		Actor:           "prof-1",
	})
	require.NoError(t, err)
	assert.True(t, updated.TotalHours.Equal(decimal.NewFromInt(180)))

	resubmitted, err := env.Declarations.Submit(ctx, domain.SubmitRequest{ID: updated.ID, ExpectedVersion: updated.Version})
	require.NoError(t, err)
	assert.Equal(t, domain.StateSubmitted, resubmitted.State)
}

func TestRejectFromReviewed(t *testing.T) {
	env := fixture.New(t)
	reviewed := env.CreateReviewed(t, "prof-1")
	require.NotNil(t, reviewed.ReviewedAt)

	rejected, err := env.Declarations.Reject(context.Background(), domain.RejectRequest{
		ID:     reviewed.ID,
		Reason: "missing weekend shifts",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StateDraft, rejected.State)
	assert.Nil(t, rejected.ReviewedAt)
}

func TestIllegalDeclarationTransitions(t *testing.T) {
	env := fixture.New(t)
	ctx := context.Background()
	draft := env.CreateDraft(t, "prof-1", fixture.StandardLines())

	_, err := env.Declarations.MarkReviewed(ctx, domain.ReviewRequest{ID: draft.ID})
	assert.ErrorIs(t, err, apperrors.ErrIllegalStateTransition)

	_, err = env.Declarations.Reject(ctx, domain.RejectRequest{ID: draft.ID, Reason: "no"})
	assert.ErrorIs(t, err, apperrors.ErrIllegalStateTransition)

	submitted := env.CreateSubmitted(t, "prof-2")
	_, err = env.Declarations.Update(ctx, domain.UpdateDeclarationRequest{ID: submitted.ID, Lines: fixture.StandardLines()})
	assert.ErrorIs(t, err, domain.ErrNotEditable)

	_, err = env.Declarations.Submit(ctx, domain.SubmitRequest{ID: submitted.ID})
	assert.ErrorIs(t, err, apperrors.ErrIllegalStateTransition)
}

func TestSynchronizedIsTerminal(t *testing.T) {
	env := fixture.New(t)
	ctx := context.Background()
	reviewed := env.CreateReviewed(t, "prof-1")

	synced, err := env.Accessor.Mutate(ctx, reviewed.ID, reviewed.Version, func(ctx context.Context, agg *domain.Aggregate) error {
		return agg.TransitionTo(domain.StateSynchronized)
	})
	require.NoError(t, err)
	require.Equal(t, domain.StateSynchronized, synced.State)

	attempts := map[string]func() error{
		"update": func() error {
			_, err := env.Declarations.Update(ctx, domain.UpdateDeclarationRequest{ID: synced.ID, Lines: fixture.StandardLines()})
			return err
		},
		"submit": func() error {
			_, err := env.Declarations.Submit(ctx, domain.SubmitRequest{ID: synced.ID})
			return err
		},
		"review": func() error {
			_, err := env.Declarations.MarkReviewed(ctx, domain.ReviewRequest{ID: synced.ID})
			return err
		},
		"reject": func() error {
			_, err := env.Declarations.Reject(ctx, domain.RejectRequest{ID: synced.ID, Reason: "late"})
			return err
		},
		"mutate": func() error {
			_, err := env.Accessor.Mutate(ctx, synced.ID, 0, func(context.Context, *domain.Aggregate) error { return nil })
			return err
		},
	}
	for name, attempt := range attempts {
		err := attempt()
		assert.ErrorIs(t, err, apperrors.ErrIllegalStateTransition, name)
	}

	stored, err := env.Declarations.Get(ctx, synced.ID)
	require.NoError(t, err)
	assert.Equal(t, synced.Version, stored.Version)
}

func TestStaleVersionIsRejected(t *testing.T) {
	env := fixture.New(t)
	ctx := context.Background()
	decl := env.CreateDraft(t, "prof-1", fixture.StandardLines())

	_, err := env.Declarations.Update(ctx, domain.UpdateDeclarationRequest{ID: decl.ID, ExpectedVersion: decl.Version, Lines: fixture.StandardLines()})
	require.NoError(t, err)

	_, err = env.Declarations.Submit(ctx, domain.SubmitRequest{ID: decl.ID, ExpectedVersion: decl.Version})
	assert.ErrorIs(t, err, apperrors.ErrConcurrencyConflict)
}

func TestConcurrentSubmitHasSingleWinner(t *testing.T) {
	env := fixture.New(t)
	decl := env.CreateDraft(t, "prof-1", fixture.StandardLines())

	const callers = 2
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.Declarations.Submit(context.Background(), domain.SubmitRequest{
				ID:              decl.ID,
				ExpectedVersion: decl.Version,
			})
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, apperrors.ErrConcurrencyConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)

	stored, err := env.Declarations.Get(context.Background(), decl.ID)
	require.NoError(t, err)
	assert.Equal(t, decl.Version+1, stored.Version)
}

func TestUpdateRequiresOpenPeriod(t *testing.T) {
	env := fixture.New(t)
	ctx := context.Background()
	decl := env.CreateDraft(t, "prof-1", fixture.StandardLines())

	_, err := env.Periods.Transition(ctx, perioddomain.TransitionRequest{Key: fixture.Period, Target: perioddomain.PeriodStateUnderValidation})
	require.NoError(t, err)

	_, err = env.Declarations.Update(ctx, domain.UpdateDeclarationRequest{ID: decl.ID, Lines: fixture.StandardLines()})
	assert.ErrorIs(t, err, perioddomain.ErrPeriodNotOpen)
}

func TestDeclarationWritesLockLivePeriod(t *testing.T) {
	env := fixture.New(t)
	ctx := context.Background()
	decl := env.CreateDraft(t, "prof-1", fixture.Lines(1, 2, shifthours.ShiftMorning))

	err := env.Periods.Delete(ctx, fixture.Period, "admin")
	require.ErrorIs(t, err, perioddomain.ErrPeriodInUse)
	_, err = env.Declarations.Update(ctx, domain.UpdateDeclarationRequest{ID: decl.ID, Lines: fixture.Lines(1, 3, shifthours.ShiftMorning)})
	require.NoError(t, err, "the refused delete leaves the period live")

	july := perioddomain.Key{AreaID: fixture.Period.AreaID, Code: "2024-07"}
	env.CreatePeriod(t, july, fixture.Day(2024, 7, 1), fixture.Day(2024, 7, 31))
	require.NoError(t, env.Periods.Delete(ctx, july, "admin"))
	_, err = env.Declarations.Create(ctx, domain.CreateDeclarationRequest{
		ProfessionalID: "prof-2",
		Period:         july,
		ServiceID:      "telemed-general",
	})
	assert.ErrorIs(t, err, perioddomain.ErrNotFound)

	tx := env.DB.Begin()
	defer tx.Rollback()
	locked, err := env.PeriodRepo.LockOpen(ctx, tx, fixture.Period, perioddomain.OpenFamily())
	require.NoError(t, err)
	assert.EqualValues(t, 1, locked)
	deleted, err := env.PeriodRepo.SoftDelete(ctx, tx, fixture.Period, "admin", env.Clock.Now())
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)
	locked, err = env.PeriodRepo.LockOpen(ctx, tx, fixture.Period, perioddomain.OpenFamily())
	require.NoError(t, err)
	assert.Zero(t, locked, "a deleted period cannot be locked for a declaration write")
}

func TestListPaginatesAndFilters(t *testing.T) {
	env := fixture.New(t)
	ctx := context.Background()
	for _, prof := range []string{"prof-a", "prof-b", "prof-c"} {
		env.CreateDraft(t, prof, fixture.Lines(1, 2, shifthours.ShiftMorning))
		env.Clock.Advance(time.Second)
	}
	env.CreateSubmitted(t, "prof-d")

	first, err := env.Declarations.List(ctx, domain.ListDeclarationRequest{State: "draft", PeriodCode: fixture.Period.Code})
	require.NoError(t, err)
	assert.Len(t, first.Declarations, 3)
	assert.False(t, first.HasMore)

	page := domain.ListDeclarationRequest{}
	page.PageSize = 2
	resp, err := env.Declarations.List(ctx, page)
	require.NoError(t, err)
	require.Len(t, resp.Declarations, 2)
	require.True(t, resp.HasMore)
	assert.Equal(t, "prof-d", resp.Declarations[0].ProfessionalID)

	page.PageToken = resp.NextPageToken
	next, err := env.Declarations.List(ctx, page)
	require.NoError(t, err)
	require.Len(t, next.Declarations, 2)
	assert.False(t, next.HasMore)
	assert.Equal(t, "prof-a", next.Declarations[1].ProfessionalID)

	_, err = env.Declarations.List(ctx, domain.ListDeclarationRequest{State: "archived"})
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestCountByPeriodGuardsPeriodDelete(t *testing.T) {
	env := fixture.New(t)
	env.CreateDraft(t, "prof-1", nil)

	err := env.Periods.Delete(context.Background(), fixture.Period, "admin")
	assert.ErrorIs(t, err, perioddomain.ErrPeriodInUse)
}
