package hook

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constant(v any) Func {
	return func(context.Context, ...any) (any, error) { return v, nil }
}

func TestInstall_Validation(t *testing.T) {
	r := NewRegistry()

	_, err := r.Install("", "pkg", constant(1))
	assert.ErrorIs(t, err, ErrEmptyHook)

	_, err = r.Install("update", "pkg", nil)
	assert.ErrorIs(t, err, ErrNilFunc)

	id, err := r.Install("update", "pkg", constant(1))
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.True(t, r.Has("update"))
}

func TestExec_NoSubscribers(t *testing.T) {
	r := NewRegistry()
	results, ok := r.Exec(context.Background(), "missing")
	assert.False(t, ok)
	assert.Nil(t, results)
}

func TestExec_OrderAndArgs(t *testing.T) {
	r := NewRegistry()

	var seen []any
	_, err := r.Install("browser", "first", func(_ context.Context, args ...any) (any, error) {
		seen = append(seen, args...)
		return "one", nil
	})
	require.NoError(t, err)
	_, err = r.Install("browser", "second", constant("two"))
	require.NoError(t, err)

	results, ok := r.Exec(context.Background(), "browser", "https://example.com")
	require.True(t, ok)
	require.Len(t, results, 2)
	assert.Equal(t, "one", results[0].Value)
	assert.Equal(t, "first", results[0].Name)
	assert.Equal(t, "two", results[1].Value)
	assert.Equal(t, []any{"https://example.com"}, seen)
}

func TestExec_ErrorsAndPanicsAreContained(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("boom")

	_, _ = r.Install("h", "err", func(context.Context, ...any) (any, error) { return nil, boom })
	_, _ = r.Install("h", "panic", func(context.Context, ...any) (any, error) { panic("bad") })
	_, _ = r.Install("h", "ok", constant(42))

	results, ok := r.Exec(context.Background(), "h")
	require.True(t, ok)
	require.Len(t, results, 3)
	assert.ErrorIs(t, results[0].Err, boom)
	assert.ErrorContains(t, results[1].Err, "hook panic")
	assert.Equal(t, 42, results[2].Value)

	v, found := First(results)
	assert.True(t, found)
	assert.Equal(t, 42, v)
}

func TestRemove(t *testing.T) {
	r := NewRegistry()
	_, _ = r.Install("h", "a", constant(1))
	idB, _ := r.Install("h", "b", constant(2))
	_, _ = r.Install("other", "a", constant(3))

	assert.False(t, r.Remove("h", ""))
	assert.True(t, r.Remove("h", "a"))
	assert.False(t, r.Remove("h", "a"))
	assert.Equal(t, 1, r.Count("h"))

	assert.True(t, r.RemoveID(idB))
	assert.False(t, r.RemoveID(idB))
	assert.False(t, r.Has("h"))
	assert.Equal(t, []string{"other"}, r.Names())
}

func TestRemoveAll(t *testing.T) {
	r := NewRegistry()
	_, _ = r.Install("x", "pkg", constant(1))
	_, _ = r.Install("y", "pkg", constant(2))
	_, _ = r.Install("y", "keep", constant(3))

	assert.Equal(t, 2, r.RemoveAll("pkg"))
	assert.Equal(t, []string{"y"}, r.Names())
	assert.Equal(t, 1, r.Count("y"))
}

func TestExec_SubscriberMayMutateRegistry(t *testing.T) {
	r := NewRegistry()
	var id string
	id, _ = r.Install("once", "self", func(context.Context, ...any) (any, error) {
		r.RemoveID(id)
		return "done", nil
	})

	results, ok := r.Exec(context.Background(), "once")
	require.True(t, ok)
	assert.Equal(t, "done", results[0].Value)
	assert.False(t, r.Has("once"))
}
