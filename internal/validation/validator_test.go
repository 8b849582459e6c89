package validation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"milletsmon/internal/model"
)

func newTestValidator() *Validator {
	v := New()
	v.now = func() time.Time { return time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC) }
	return v
}

func validFLD() model.FLD {
	return model.FLD{
		ActivityBase: model.ActivityBase{
			ProjectID: "p1",
			Title:     "Finger millet demo",
			District:  "Kohima",
			Date:      time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
			Target:    10,
			Achieved:  8,
		},
		Crop:        "Finger millet",
		AreaHectare: 2.5,
	}
}

func TestValidActivityPasses(t *testing.T) {
	v := newTestValidator()
	require.NoError(t, v.Struct(context.Background(), validFLD()))
}

func TestAchievedCannotExceedTarget(t *testing.T) {
	v := newTestValidator()
	fld := validFLD()
	fld.Achieved = 11

	err := v.Struct(context.Background(), fld)

	fe, ok := err.(FieldErrors)
	require.True(t, ok, "expected FieldErrors, got %T", err)
	assert.Contains(t, fe, "achieved")
	assert.Len(t, fe, 1)
}

func TestNestedFieldPath(t *testing.T) {
	v := newTestValidator()
	fld := validFLD()
	fld.Beneficiaries.Female = -1

	fe, ok := v.Struct(context.Background(), fld).(FieldErrors)
	require.True(t, ok)
	assert.Contains(t, fe, "beneficiaries.female")
}

func TestStringLengthBounds(t *testing.T) {
	v := newTestValidator()
	fld := validFLD()
	fld.Title = "ab"

	fe, ok := v.Struct(context.Background(), fld).(FieldErrors)
	require.True(t, ok)
	assert.Contains(t, fe["title"], "title")
}

func TestEventDateNotInPast(t *testing.T) {
	v := newTestValidator()
	ev := model.UpcomingEvent{
		Title:     "Millet mela",
		Venue:     "Shillong",
		EventDate: time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC),
	}

	fe, ok := v.Struct(context.Background(), ev).(FieldErrors)
	require.True(t, ok)
	assert.Equal(t, "event_date cannot be in the past", fe["event_date"])

	// 同一天的早些时候仍然有效
	ev.EventDate = time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC)
	assert.NoError(t, v.Struct(context.Background(), ev))
}

func TestNotPastSkippedOnUpdate(t *testing.T) {
	v := newTestValidator()
	ev := model.UpcomingEvent{
		Title:     "Millet mela",
		Venue:     "Shillong",
		EventDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	assert.NoError(t, v.Struct(ForUpdate(context.Background()), ev))
}

func TestProjectDates(t *testing.T) {
	v := newTestValidator()
	p := model.Project{
		Title:     "NEH millet mission",
		State:     "Nagaland",
		District:  "Kohima",
		StartDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Status:    model.ProjectOngoing,
	}

	fe, ok := v.Struct(context.Background(), p).(FieldErrors)
	require.True(t, ok)
	assert.Contains(t, fe, "end_date")

	p.Status = "paused"
	fe, ok = v.Struct(context.Background(), p).(FieldErrors)
	require.True(t, ok)
	assert.Contains(t, fe, "status")
}

func TestFieldErrorsMessageIsStable(t *testing.T) {
	fe := FieldErrors{"b": "b is required", "a": "a is required"}
	assert.Equal(t, "validation failed: a is required; b is required", fe.Error())
}
