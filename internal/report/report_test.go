package report

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"milletsmon/internal/backend"
	"milletsmon/internal/model"
)

type fakeSource map[model.Kind][]model.Activity

func (f fakeSource) Activities(_ context.Context, _ backend.Identity, kind model.Kind, _ bool) ([]model.Activity, error) {
	if acts, ok := f[kind]; ok {
		return acts, nil
	}
	return nil, nil
}

type failingSource struct{}

func (failingSource) Activities(context.Context, backend.Identity, model.Kind, bool) ([]model.Activity, error) {
	return nil, errors.New("backend unavailable")
}

var admin = backend.Identity{Token: "tok", UserID: "u1", Role: "admin"}

func day(d int) time.Time { return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC) }

func fld(district string, date time.Time, target, achieved, male, female int) model.FLD {
	return model.FLD{ActivityBase: model.ActivityBase{
		District:      district,
		Date:          date,
		Target:        target,
		Achieved:      achieved,
		Beneficiaries: model.Beneficiaries{Male: male, Female: female},
	}}
}

func sampleSource() fakeSource {
	return fakeSource{
		model.KindFLD: {
			fld("Koraput", day(1), 10, 5, 3, 4),
			fld("Koraput", day(5), 10, 10, 1, 1),
			fld("Almora", day(9), 3, 1, 0, 2),
		},
		model.KindTraining: {
			model.TrainingProgram{ActivityBase: model.ActivityBase{District: "Almora", Date: day(2), Target: 0, Achieved: 0}},
		},
	}
}

func TestBuildAggregatesByKindAndDistrict(t *testing.T) {
	b := NewBuilder(sampleSource(), zap.NewNop())

	r, err := b.Build(context.Background(), admin, "March", "u1", Filter{Kind: model.KindFLD})
	require.NoError(t, err)

	require.Len(t, r.Rows, 2)
	assert.Equal(t, Row{Kind: model.KindFLD, District: "Almora", Count: 1, Target: 3, Achieved: 1, Progress: 33.3, Male: 0, Female: 2, Beneficiaries: 2}, r.Rows[0])
	assert.Equal(t, Row{Kind: model.KindFLD, District: "Koraput", Count: 2, Target: 20, Achieved: 15, Progress: 75, Male: 4, Female: 5, Beneficiaries: 9}, r.Rows[1])

	require.Len(t, r.Totals, 1)
	assert.Equal(t, 3, r.Totals[0].Count)
	assert.Equal(t, 23, r.Totals[0].Target)
	assert.Equal(t, 16, r.Totals[0].Achieved)
	assert.Equal(t, 69.6, r.Totals[0].Progress)
	assert.Equal(t, "u1", r.GeneratedBy)
}

func TestBuildAllKindsHasTotalPerKind(t *testing.T) {
	b := NewBuilder(sampleSource(), zap.NewNop())

	r, err := b.Build(context.Background(), admin, "All", "u1", Filter{})
	require.NoError(t, err)

	assert.Len(t, r.Totals, len(model.ActivityKinds))
	for _, total := range r.Totals {
		if total.Kind == model.KindTraining {
			assert.Equal(t, 1, total.Count)
			assert.Equal(t, float64(0), total.Progress)
		}
	}
}

func TestBuildFiltersDistrictAndDates(t *testing.T) {
	b := NewBuilder(sampleSource(), zap.NewNop())

	r, err := b.Build(context.Background(), admin, "Koraput early March", "u1", Filter{
		Kind:     model.KindFLD,
		District: "koraput",
		From:     day(1),
		To:       day(3),
	})
	require.NoError(t, err)

	require.Len(t, r.Rows, 1)
	assert.Equal(t, 1, r.Rows[0].Count)
	assert.Equal(t, 50.0, r.Rows[0].Progress)
}

func TestBuildToIncludesWholeDay(t *testing.T) {
	src := fakeSource{
		model.KindFLD: {
			fld("Koraput", day(5).Add(15*time.Hour), 4, 2, 0, 0),
			fld("Koraput", day(5).Add(23*time.Hour+59*time.Minute), 4, 4, 0, 0),
			fld("Koraput", day(6), 4, 1, 0, 0),
		},
	}
	b := NewBuilder(src, zap.NewNop())

	r, err := b.Build(context.Background(), admin, "Fifth", "u1", Filter{
		Kind: model.KindFLD,
		From: day(5).Add(9 * time.Hour),
		To:   day(5),
	})
	require.NoError(t, err)

	require.Len(t, r.Totals, 1)
	assert.Equal(t, 2, r.Totals[0].Count)
	assert.Equal(t, 6, r.Totals[0].Achieved)
}

func TestBuildRejectsBadInput(t *testing.T) {
	b := NewBuilder(sampleSource(), zap.NewNop())
	ctx := context.Background()

	_, err := b.Build(ctx, admin, "x", "u1", Filter{Kind: "seeds"})
	assert.Error(t, err)

	_, err = b.Build(ctx, admin, "x", "u1", Filter{From: day(9), To: day(1)})
	assert.Error(t, err)

	_, err = NewBuilder(failingSource{}, zap.NewNop()).Build(ctx, admin, "x", "u1", Filter{})
	assert.ErrorContains(t, err, "backend unavailable")
}

func TestProgress(t *testing.T) {
	assert.Equal(t, 0.0, Progress(0, 5))
	assert.Equal(t, 100.0, Progress(4, 4))
	assert.Equal(t, 66.7, Progress(3, 2))
}

func TestWriteCSV(t *testing.T) {
	b := NewBuilder(sampleSource(), zap.NewNop())
	r, err := b.Build(context.Background(), admin, "March", "u1", Filter{Kind: model.KindFLD})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, r))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "kind,district,count,target,achieved,progress_percent,beneficiaries_male,beneficiaries_female,beneficiaries_total", lines[0])
	assert.Equal(t, "flds,Almora,1,3,1,33.3,0,2,2", lines[1])
	assert.Equal(t, "flds,TOTAL,3,23,16,69.6,4,7,11", lines[3])
}

// 需要真实 PostgreSQL：MILLETS_TEST_DATABASE_URL=postgres://...
func TestRepositoryRoundTrip(t *testing.T) {
	dsn := os.Getenv("MILLETS_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("MILLETS_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	repo := NewRepository(pool, zap.NewNop())
	require.NoError(t, repo.EnsureSchema(ctx))

	r, err := NewBuilder(sampleSource(), zap.NewNop()).Build(ctx, admin, "Round trip", "u1", Filter{Kind: model.KindFLD})
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, r))

	got, err := repo.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.Rows, got.Rows)
	assert.Equal(t, r.Filter.Kind, got.Filter.Kind)

	list, err := repo.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, list)

	_, err = repo.Get(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrReportNotFound)
	_, err = repo.Get(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrReportNotFound)
}
