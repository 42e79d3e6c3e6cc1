// Package fixture wires the period and declaration services over a test
// database so downstream packages can build declarations in any state.
package fixture

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/turnos/internal/clock"
	"github.com/smallbiznis/turnos/internal/config"
	declarationdomain "github.com/smallbiznis/turnos/internal/declaration/domain"
	declarationrepo "github.com/smallbiznis/turnos/internal/declaration/repository"
	declarationservice "github.com/smallbiznis/turnos/internal/declaration/service"
	regimerepo "github.com/smallbiznis/turnos/internal/laborregime/repository"
	regimeservice "github.com/smallbiznis/turnos/internal/laborregime/service"
	perioddomain "github.com/smallbiznis/turnos/internal/period/domain"
	periodrepo "github.com/smallbiznis/turnos/internal/period/repository"
	periodservice "github.com/smallbiznis/turnos/internal/period/service"
	"github.com/smallbiznis/turnos/internal/shifthours"
	"github.com/smallbiznis/turnos/internal/testutil/testdb"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Period is the default fixture period, June 2024 in area AREA-1.
var Period = perioddomain.Key{AreaID: "AREA-1", Code: "2024-06"}

type Env struct {
	DB           *gorm.DB
	Clock        *clock.FakeClock
	GenID        *snowflake.Node
	Log          *zap.Logger
	Rules        *config.RulesHolder
	Calculator   *shifthours.Calculator
	PeriodRepo   perioddomain.Repository
	Periods      perioddomain.Service
	Repo         declarationdomain.Repository
	Accessor     declarationdomain.Accessor
	Declarations declarationdomain.Service
}

func New(t testing.TB) *Env {
	t.Helper()
	return NewWithRules(t, config.DefaultRules())
}

func NewWithRules(t testing.TB, rules config.Rules) *Env {
	t.Helper()

	db := testdb.Open(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	holder, err := config.NewStaticRulesHolder(rules)
	require.NoError(t, err)

	env := &Env{
		DB:         db,
		Clock:      clock.NewFakeClock(time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)),
		GenID:      node,
		Log:        zap.NewNop(),
		Rules:      holder,
		Calculator: shifthours.NewCalculatorFromRules(holder),
		PeriodRepo: periodrepo.Provide(),
		Repo:       declarationrepo.Provide(),
	}

	env.Periods = periodservice.NewService(periodservice.Params{
		DB:      db,
		Log:     env.Log,
		Clock:   env.Clock,
		Repo:    env.PeriodRepo,
		Counter: declarationrepo.ProvideCounter(),
	})
	env.Accessor = declarationservice.NewAccessor(declarationservice.AccessorParams{
		DB:    db,
		Log:   env.Log,
		Clock: env.Clock,
		Repo:  env.Repo,
	})
	env.Declarations = declarationservice.NewService(declarationservice.Params{
		DB:    db,
		Log:   env.Log,
		GenID: node,
		Clock: env.Clock,
		Rules: holder,
		Registry: regimeservice.NewRegistry(regimeservice.Params{
			DB:    db,
			Log:   env.Log,
			Rules: holder,
			Repo:  regimerepo.Provide(),
		}),
		Calculator: env.Calculator,
		Repo:       env.Repo,
		PeriodRepo: env.PeriodRepo,
		Accessor:   env.Accessor,
	})

	env.CreatePeriod(t, Period, Day(2024, 6, 1), Day(2024, 6, 30))
	return env
}

func Day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (e *Env) CreatePeriod(t testing.TB, key perioddomain.Key, start, end time.Time) {
	t.Helper()
	_, err := e.Periods.Create(context.Background(), perioddomain.CreatePeriodRequest{
		AreaID:    key.AreaID,
		Code:      key.Code,
		StartDate: start,
		EndDate:   end,
		Actor:     "admin",
	})
	require.NoError(t, err)
}

// AssignRegime registers a labor regime for a professional.
func (e *Env) AssignRegime(t testing.TB, professionalID, regimeID string) {
	t.Helper()
	require.NoError(t, e.DB.Exec(
		`INSERT INTO professional_regimes (professional_id, regime_id, updated_at) VALUES (?, ?, ?)`,
		professionalID, regimeID, e.Clock.Now(),
	).Error)
}

// Lines declares shift on consecutive June 2024 days starting at from.
func Lines(from, count int, shift shifthours.ShiftType) []declarationdomain.LineInput {
	out := make([]declarationdomain.LineInput, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, declarationdomain.LineInput{
			WorkDate:  Day(2024, 6, from+i),
			ShiftType: string(shift),
		})
	}
	return out
}

// StandardLines totals 210 hours under the GENERAL regime.
func StandardLines() []declarationdomain.LineInput {
	lines := Lines(1, 25, shifthours.ShiftMorning)
	return append(lines, Lines(26, 5, shifthours.ShiftMorningAfternoon)...)
}

func (e *Env) CreateDraft(t testing.TB, professionalID string, lines []declarationdomain.LineInput) *declarationdomain.Declaration {
	t.Helper()
	decl, err := e.Declarations.Create(context.Background(), declarationdomain.CreateDeclarationRequest{
		ProfessionalID: professionalID,
		Period:         Period,
		ServiceID:      "telemed-general",
		Lines:          lines,
		Actor:          professionalID,
	})
	require.NoError(t, err)
	return decl
}

func (e *Env) CreateSubmitted(t testing.TB, professionalID string) *declarationdomain.Declaration {
	t.Helper()
	decl := e.CreateDraft(t, professionalID, StandardLines())
	decl, err := e.Declarations.Submit(context.Background(), declarationdomain.SubmitRequest{
		ID:              decl.ID,
		ExpectedVersion: decl.Version,
		Actor:           professionalID,
	})
	require.NoError(t, err)
	return decl
}

func (e *Env) CreateReviewed(t testing.TB, professionalID string) *declarationdomain.Declaration {
	t.Helper()
	decl := e.CreateSubmitted(t, professionalID)
	decl, err := e.Declarations.MarkReviewed(context.Background(), declarationdomain.ReviewRequest{
		ID:              decl.ID,
		ExpectedVersion: decl.Version,
		Actor:           "coordinator",
	})
	require.NoError(t, err)
	return decl
}
