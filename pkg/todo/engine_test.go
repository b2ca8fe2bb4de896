package todo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/todo-runner/pkg/core"
	"github.com/devicelab-dev/todo-runner/pkg/driver/mock"
)

var sampleTexts = []string{
	"Complete project documentation",
	"Review code changes",
	"Schedule team meeting",
	"Update database schema",
	"Test new features",
}

func seed(texts ...string) []mock.Todo {
	todos := make([]mock.Todo, len(texts))
	for i, t := range texts {
		todos[i] = mock.Todo{ID: fmt.Sprintf("id%d", i+1), Text: t}
	}
	return todos
}

func newEngine(t *testing.T, cfg mock.Config) (*Engine, *mock.Driver) {
	t.Helper()
	d := mock.New(cfg)
	require.NoError(t, d.Open(context.Background(), "http://localhost:3000"))
	e := NewEngine(d, nil, Options{Timeout: 500 * time.Millisecond, Interval: 5 * time.Millisecond})
	return e, d
}

func texts(t *testing.T, e *Engine) []string {
	t.Helper()
	items, err := e.Resolver().Items()
	require.NoError(t, err)
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Text
	}
	return out
}

// ============================================================================
// Resolver
// ============================================================================

func TestResolver_ByIndexFollowsDocumentOrder(t *testing.T) {
	e, _ := newEngine(t, mock.Config{Todos: seed(sampleTexts...)})

	for i, want := range sampleTexts {
		item, err := e.Resolver().ByIndex(i + 1)
		require.NoError(t, err)
		assert.Equal(t, i+1, item.Position)
		assert.Equal(t, want, item.Text)
		assert.Equal(t, fmt.Sprintf("todo-item-id%d", i+1), item.ID)
		assert.False(t, item.Completed)
	}
}

func TestResolver_OutOfRange(t *testing.T) {
	e, d := newEngine(t, mock.Config{Todos: seed("a", "b")})

	for _, idx := range []int{0, -1, 3} {
		_, err := e.Resolver().ByIndex(idx)
		require.Error(t, err)
		assert.True(t, errors.Is(err, core.ErrIndexOutOfRange))

		var execErr *core.ExecutionError
		require.True(t, errors.As(err, &execErr))
		assert.Equal(t, 2, execErr.Details["count"])
		assert.Equal(t, idx, execErr.Details["index"])
	}
	assert.Empty(t, d.Clicks())
}

func TestResolver_ByTextFragment(t *testing.T) {
	e, _ := newEngine(t, mock.Config{Todos: seed(sampleTexts...)})

	pos, ok, err := e.Resolver().ByTextFragment("TEAM meet")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, pos)

	pos, ok, err = e.FindByText("nothing like this")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, pos)
}

// ============================================================================
// Executors
// ============================================================================

func TestAdd_IncreasesCountByOne(t *testing.T) {
	e, _ := newEngine(t, mock.Config{Latency: 20 * time.Millisecond})

	for i, text := range sampleTexts {
		res := e.Add(context.Background(), text)
		require.True(t, res.Succeeded, res.Message)
		assert.Equal(t, i+1, res.ListSize)
		n, err := e.Count()
		require.NoError(t, err)
		assert.Equal(t, i+1, n)
	}
	assert.Equal(t, sampleTexts, texts(t, e))
	assert.Equal(t, 5, e.Tracker().Snapshot().Added)
}

func TestAdd_EmptyTextRejected(t *testing.T) {
	e, d := newEngine(t, mock.Config{})
	res := e.Add(context.Background(), "  ")
	assert.False(t, res.Succeeded)
	assert.True(t, errors.Is(res.Err, core.ErrInvalidConfig))
	assert.Empty(t, d.Clicks())
	assert.Equal(t, 1, e.Tracker().Snapshot().Errors)
}

func TestAdd_NoEffectIsVerificationFailure(t *testing.T) {
	e, _ := newEngine(t, mock.Config{DropClick: func(id string) bool { return id == "todo-submit-btn" }})

	res := e.Add(context.Background(), "ignored")
	assert.False(t, res.Succeeded)
	assert.True(t, errors.Is(res.Err, core.ErrVerificationFailed))
	assert.True(t, errors.Is(res.Err, core.ErrWaitTimeout))
	assert.Contains(t, res.Message, "Failed to add todo 'ignored'")
	assert.Equal(t, core.Stats{Errors: 1}, e.Tracker().Snapshot())
}

func TestToggle_IsIdempotent(t *testing.T) {
	e, d := newEngine(t, mock.Config{Todos: seed(sampleTexts...), Latency: 10 * time.Millisecond})

	res := e.Toggle(context.Background(), 2, true)
	require.True(t, res.Succeeded, res.Message)
	assert.Equal(t, 1, e.Tracker().Snapshot().Completed)
	assert.Len(t, d.Clicks(), 1)

	res = e.Toggle(context.Background(), 2, true)
	require.True(t, res.Succeeded, res.Message)
	assert.Contains(t, res.Message, "already has the desired status")
	assert.Equal(t, 1, e.Tracker().Snapshot().Completed)
	assert.Len(t, d.Clicks(), 1)

	assert.True(t, d.Todos()[1].Completed)
}

func TestToggle_UncompleteDoesNotCount(t *testing.T) {
	todos := seed("a", "b")
	todos[0].Completed = true
	e, d := newEngine(t, mock.Config{Todos: todos})

	res := e.Toggle(context.Background(), 1, false)
	require.True(t, res.Succeeded, res.Message)
	assert.False(t, d.Todos()[0].Completed)
	assert.Equal(t, core.Stats{}, e.Tracker().Snapshot())
}

func TestToggle_RowLeavingFilteredView(t *testing.T) {
	e, d := newEngine(t, mock.Config{Todos: seed("a", "b", "c"), Latency: 10 * time.Millisecond})

	require.True(t, e.ApplyFilter(context.Background(), core.FilterActive).Succeeded)
	res := e.Toggle(context.Background(), 1, true)
	require.True(t, res.Succeeded, res.Message)

	assert.True(t, d.Todos()[0].Completed)
	assert.Equal(t, []string{"b", "c"}, texts(t, e))
	assert.Equal(t, 1, e.Tracker().Snapshot().Completed)
}

func TestToggle_OutOfRangeNeverClicks(t *testing.T) {
	e, d := newEngine(t, mock.Config{Todos: seed("a", "b")})

	res := e.Toggle(context.Background(), 3, true)
	assert.False(t, res.Succeeded)
	assert.True(t, errors.Is(res.Err, core.ErrIndexOutOfRange))
	assert.Equal(t, core.ErrCategoryAssertion, res.Category())
	assert.Contains(t, res.Message, "todo index 3 not found, only 2 todos exist")
	assert.Empty(t, d.Clicks())
	assert.Empty(t, d.Scrolls())
	assert.Equal(t, 1, e.Tracker().Snapshot().Errors)
}

func TestToggle_IgnoredClickFails(t *testing.T) {
	e, _ := newEngine(t, mock.Config{
		Todos:     seed("a"),
		DropClick: func(id string) bool { return id == "todo-checkbox-id1" },
	})

	res := e.Toggle(context.Background(), 1, true)
	assert.False(t, res.Succeeded)
	assert.True(t, errors.Is(res.Err, core.ErrVerificationFailed))
	assert.Equal(t, core.Stats{Errors: 1}, e.Tracker().Snapshot())
}

func TestDelete_ReResolvesShiftedRows(t *testing.T) {
	e, d := newEngine(t, mock.Config{Todos: seed(sampleTexts...), Latency: 15 * time.Millisecond})

	before, err := e.Resolver().ByIndex(3)
	require.NoError(t, err)
	next, err := e.Resolver().ByIndex(4)
	require.NoError(t, err)

	res := e.Delete(context.Background(), 3)
	require.True(t, res.Succeeded, res.Message)
	assert.Equal(t, 4, res.ListSize)

	after, err := e.Resolver().ByIndex(3)
	require.NoError(t, err)
	assert.Equal(t, next.Text, after.Text)
	assert.Equal(t, next.ID, after.ID)
	assert.NotEqual(t, before.ID, after.ID)

	_, err = before.Element.Text()
	assert.True(t, core.IsNotFound(err))

	assert.Len(t, d.Todos(), 4)
	assert.Equal(t, 1, e.Tracker().Snapshot().Deleted)
}

func TestDelete_OutOfRange(t *testing.T) {
	e, d := newEngine(t, mock.Config{})
	res := e.Delete(context.Background(), 1)
	assert.False(t, res.Succeeded)
	assert.True(t, errors.Is(res.Err, core.ErrIndexOutOfRange))
	assert.Empty(t, d.Clicks())
}

func TestUpdate_RoundTrip(t *testing.T) {
	e, d := newEngine(t, mock.Config{Todos: seed(sampleTexts...), Latency: 15 * time.Millisecond})

	const newText = "UPDATED: High priority task - Modified by automation"
	res := e.Update(context.Background(), 1, newText)
	require.True(t, res.Succeeded, res.Message)

	pos, ok, err := e.Resolver().ByTextFragment(newText)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, pos)

	item, err := e.Resolver().ByIndex(1)
	require.NoError(t, err)
	assert.Equal(t, newText, item.Text)
	assert.Len(t, d.Todos(), 5)
	assert.Equal(t, 1, e.Tracker().Snapshot().Updated)
}

func TestUpdate_IgnoredSubmitFails(t *testing.T) {
	tests := []struct {
		name    string
		index   int
		newText string
	}{
		{"text held by another row", 2, "alpha"},
		{"text already held by the row", 2, "beta"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, d := newEngine(t, mock.Config{
				Todos:     seed("alpha", "beta"),
				DropClick: func(id string) bool { return id == "todo-submit-btn" },
			})

			res := e.Update(context.Background(), tt.index, tt.newText)
			assert.False(t, res.Succeeded)
			assert.True(t, errors.Is(res.Err, core.ErrVerificationFailed))
			assert.Equal(t, core.Stats{Errors: 1}, e.Tracker().Snapshot())
			assert.Equal(t, "beta", d.Todos()[1].Text)
		})
	}
}

func TestUpdate_SameTextSubmitted(t *testing.T) {
	e, d := newEngine(t, mock.Config{Todos: seed("alpha", "beta"), Latency: 10 * time.Millisecond})

	res := e.Update(context.Background(), 2, "beta")
	require.True(t, res.Succeeded, res.Message)
	assert.Equal(t, "beta", d.Todos()[1].Text)
	assert.Equal(t, 1, e.Tracker().Snapshot().Updated)
}

func TestUpdate_OutOfRangeNeverClicks(t *testing.T) {
	e, d := newEngine(t, mock.Config{Todos: seed("a", "b")})

	res := e.Update(context.Background(), 3, "c")
	assert.False(t, res.Succeeded)
	assert.True(t, errors.Is(res.Err, core.ErrIndexOutOfRange))
	assert.Empty(t, d.Clicks())
	assert.Empty(t, d.Scrolls())
	assert.Equal(t, 1, e.Tracker().Snapshot().Errors)
}

func TestApplyFilter(t *testing.T) {
	todos := seed("a", "b", "c")
	todos[1].Completed = true
	e, d := newEngine(t, mock.Config{Todos: todos, Latency: 10 * time.Millisecond})

	tests := []struct {
		kind core.FilterKind
		want []string
	}{
		{core.FilterCompleted, []string{"b"}},
		{core.FilterActive, []string{"a", "c"}},
		{core.FilterAll, []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			res := e.ApplyFilter(context.Background(), tt.kind)
			require.True(t, res.Succeeded, res.Message)
			assert.Equal(t, tt.want, texts(t, e))

			current, err := e.CurrentFilter()
			require.NoError(t, err)
			assert.Equal(t, tt.kind, current)
		})
	}
	assert.Equal(t, core.FilterAll, d.Filter())
	assert.Equal(t, 0, e.Tracker().Snapshot().Errors)
}

func TestApplyFilter_EmptyListWarnsWithoutError(t *testing.T) {
	e, d := newEngine(t, mock.Config{})

	res := e.ApplyFilter(context.Background(), core.FilterActive)
	assert.False(t, res.Succeeded)
	assert.True(t, errors.Is(res.Err, core.ErrFilterUnavailable))
	assert.Empty(t, d.Clicks())
	assert.Equal(t, 0, e.Tracker().Snapshot().Errors)
}

func TestApplyFilter_UnknownKind(t *testing.T) {
	e, _ := newEngine(t, mock.Config{Todos: seed("a")})
	res := e.ApplyFilter(context.Background(), core.FilterKind("archived"))
	assert.False(t, res.Succeeded)
	assert.True(t, errors.Is(res.Err, core.ErrInvalidFilter))
	assert.Equal(t, core.ErrCategoryConfig, res.Category())
}

func TestOpenAndSignIn(t *testing.T) {
	d := mock.New(mock.Config{RequireLogin: true, Email: "demo@demo.com", Password: "demo123"})
	e := NewEngine(d, nil, Options{Timeout: 500 * time.Millisecond, Interval: 5 * time.Millisecond})
	ctx := context.Background()

	require.True(t, e.Open(ctx, "http://localhost:3000").Succeeded)
	assert.Equal(t, "http://localhost:3000", d.URL())

	res := e.WaitReady(ctx)
	assert.False(t, res.Succeeded)
	assert.True(t, errors.Is(res.Err, core.ErrWaitTimeout))

	res = e.SignIn(ctx, "demo@demo.com", "demo123")
	require.True(t, res.Succeeded, res.Message)
	require.True(t, e.WaitReady(ctx).Succeeded)

	res = e.SignIn(ctx, "demo@demo.com", "demo123")
	require.True(t, res.Succeeded)
	assert.Equal(t, "Already signed in", res.Message)
}

func TestSignIn_WrongPassword(t *testing.T) {
	d := mock.New(mock.Config{RequireLogin: true, Email: "demo@demo.com", Password: "demo123"})
	require.NoError(t, d.Open(context.Background(), "http://x"))
	e := NewEngine(d, nil, Options{Timeout: 100 * time.Millisecond, Interval: 5 * time.Millisecond})

	res := e.SignIn(context.Background(), "demo@demo.com", "wrong")
	assert.False(t, res.Succeeded)
	assert.True(t, errors.Is(res.Err, core.ErrVerificationFailed))
}

func TestSessionLostIsFatal(t *testing.T) {
	e, d := newEngine(t, mock.Config{Todos: seed("a")})
	d.Crash()

	res := e.Toggle(context.Background(), 1, true)
	assert.False(t, res.Succeeded)
	assert.True(t, res.Fatal())
	assert.Equal(t, core.ErrCategorySession, res.Category())
	assert.Equal(t, -1, res.ListSize)
	assert.Equal(t, 1, e.Tracker().Snapshot().Errors)
}

func TestTracker_Metrics(t *testing.T) {
	tr := NewTracker()
	tr.recordAdded()
	tr.recordAdded()
	tr.recordError()

	assert.Equal(t, core.Stats{Added: 2, Errors: 1}, tr.Snapshot())
	assert.Equal(t, 2.0, testutil.ToFloat64(tr.outcomes.WithLabelValues(OutcomeAdded)))
	assert.Equal(t, 0.0, testutil.ToFloat64(tr.outcomes.WithLabelValues(OutcomeDeleted)))
	assert.Equal(t, 5, testutil.CollectAndCount(tr.outcomes))

	families, err := tr.Registry().Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, "todo_runner_outcomes_total", families[0].GetName())
}

// ============================================================================
// Full scenario
// ============================================================================

func TestScenario_CountsFollowVisibleState(t *testing.T) {
	e, d := newEngine(t, mock.Config{Latency: 10 * time.Millisecond})
	ctx := context.Background()

	n, err := e.Count()
	require.NoError(t, err)
	require.Equal(t, 0, n)

	for _, text := range sampleTexts {
		require.True(t, e.Add(ctx, text).Succeeded)
	}
	n, _ = e.Count()
	assert.Equal(t, 5, n)

	require.True(t, e.Toggle(ctx, 1, true).Succeeded)
	require.True(t, e.Toggle(ctx, 2, true).Succeeded)
	require.True(t, e.ApplyFilter(ctx, core.FilterCompleted).Succeeded)
	n, _ = e.Count()
	assert.Equal(t, 2, n)

	// Position 1 of the completed view is the first original item.
	require.True(t, e.Toggle(ctx, 1, false).Succeeded)
	require.True(t, e.ApplyFilter(ctx, core.FilterActive).Succeeded)
	n, _ = e.Count()
	assert.Equal(t, 4, n)

	// Position 3 of the active view is the fourth original item.
	require.True(t, e.Delete(ctx, 3).Succeeded)
	require.True(t, e.ApplyFilter(ctx, core.FilterAll).Succeeded)
	n, _ = e.Count()
	assert.Equal(t, 4, n)

	assert.Equal(t, []string{sampleTexts[0], sampleTexts[1], sampleTexts[2], sampleTexts[4]}, texts(t, e))
	assert.Len(t, d.Todos(), 4)
	assert.Equal(t, core.Stats{Added: 5, Completed: 2, Deleted: 1}, e.Tracker().Snapshot())
}
