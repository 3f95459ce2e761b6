package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangeType_String(t *testing.T) {
	tests := []struct {
		ct   ChangeType
		want string
	}{
		{ChangeSet, "set"},
		{ChangeDelete, "delete"},
		{ChangeReload, "reload"},
		{ChangeType(99), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.ct.String())
	}
}

func TestStore_SetGet(t *testing.T) {
	s := New()

	require.NoError(t, s.Set("editor.fontSize", 14.0))
	v, ok := s.Get("editor.fontSize")
	require.True(t, ok)
	assert.Equal(t, 14.0, v)
	assert.True(t, s.Has("editor.fontSize"))
	assert.Equal(t, 14.0, s.GetFloat("editor.fontSize", 0))
	assert.Equal(t, "fallback", s.GetString("editor.fontSize", "fallback"))
}

func TestStore_SetNilDeletes(t *testing.T) {
	s := New()
	require.NoError(t, s.Set("k", "v"))

	var got []Change
	s.Subscribe(func(c Change) { got = append(got, c) })

	require.NoError(t, s.Set("k", nil))
	assert.False(t, s.Has("k"))
	require.Len(t, got, 1)
	assert.Equal(t, ChangeDelete, got[0].Type)
	assert.Equal(t, "v", got[0].OldValue)

	// Deleting an absent key is silent.
	require.NoError(t, s.Delete("k"))
	assert.Len(t, got, 1)
}

func TestStore_EmptyKey(t *testing.T) {
	s := New()
	assert.ErrorIs(t, s.Set("", 1), ErrEmptyKey)
	_, err := s.SetDefault("", 1)
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestStore_SetDefault(t *testing.T) {
	s := New(WithValues(map[string]any{"present": "user"}))

	wrote, err := s.SetDefault("present", "default")
	require.NoError(t, err)
	assert.False(t, wrote)
	assert.Equal(t, "user", s.GetString("present", ""))

	wrote, err = s.SetDefault("absent", 5.0)
	require.NoError(t, err)
	assert.True(t, wrote)
	assert.Equal(t, 5.0, s.GetFloat("absent", 0))

	wrote, err = s.SetDefault("nil-default", nil)
	require.NoError(t, err)
	assert.False(t, wrote)
}

func TestStore_SubscribeKey(t *testing.T) {
	s := New()

	var hits []string
	sub := s.SubscribeKey("a", func(c Change) { hits = append(hits, c.Key) })

	require.NoError(t, s.Set("a", 1))
	require.NoError(t, s.Set("b", 2))
	assert.Equal(t, []string{"a"}, hits)

	sub.Unsubscribe()
	sub.Unsubscribe()
	require.NoError(t, s.Set("a", 3))
	assert.Equal(t, []string{"a"}, hits)
}

func TestStore_DeliveryOrder(t *testing.T) {
	s := New()

	var order []int
	s.Subscribe(func(Change) { order = append(order, 1) })
	s.SubscribeKey("x", func(Change) { order = append(order, 2) })
	s.Subscribe(func(Change) { order = append(order, 3) })

	require.NoError(t, s.Set("x", true))
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestStore_KeysAndSnapshot(t *testing.T) {
	s := New(WithValues(map[string]any{"b": 1, "a": 2, "skip": nil}))

	assert.Equal(t, []string{"a", "b"}, s.Keys())
	assert.Equal(t, 2, s.Len())

	snap := s.Snapshot()
	snap["a"] = 99
	assert.Equal(t, 2, mustGet(t, s, "a"))
}

func TestStore_FileBackendRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "settings.json")
	s := New(WithBackend(NewFileBackend(path)))
	require.NoError(t, s.Load())

	require.NoError(t, s.Set("startup.file", "/home/me/init.lua"))
	require.NoError(t, s.Set("pager.lines", 40))
	require.NoError(t, s.Set("flags", []string{"a", "b"}))
	require.NoError(t, s.Delete("flags"))

	reloaded := New(WithBackend(NewFileBackend(path)))
	require.NoError(t, reloaded.Load())

	assert.Equal(t, "/home/me/init.lua", reloaded.GetString("startup.file", ""))
	assert.Equal(t, 40.0, reloaded.GetFloat("pager.lines", 0))
	assert.False(t, reloaded.Has("flags"))
	assert.Equal(t, []string{"pager.lines", "startup.file"}, reloaded.Keys())
}

func TestStore_ReloadEmitsDiff(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"keep":1,"gone":true}`), 0o644))

	s := New(WithBackend(NewFileBackend(path)))
	require.NoError(t, s.Load())

	var got []Change
	s.Subscribe(func(c Change) { got = append(got, c) })

	require.NoError(t, os.WriteFile(path, []byte(`{"keep":1,"fresh":"yes"}`), 0o644))
	require.NoError(t, s.Reload("file"))

	require.Len(t, got, 3)
	assert.Equal(t, Change{Key: "fresh", Type: ChangeSet, NewValue: "yes", Source: "file"}, got[0])
	assert.Equal(t, ChangeDelete, got[1].Type)
	assert.Equal(t, "gone", got[1].Key)
	assert.Equal(t, ChangeReload, got[2].Type)
}

func TestFileBackend_RejectsNonObject(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`[1,2]`), 0o644))

	_, err := NewFileBackend(path).Load()
	assert.ErrorIs(t, err, ErrNotObject)
}

func TestEscapeKey(t *testing.T) {
	assert.Equal(t, `a\.b`, escapeKey("a.b"))
	assert.Equal(t, `plain`, escapeKey("plain"))
	assert.Equal(t, `x\*y\?`, escapeKey("x*y?"))
}

func TestWatch_RequiresFileBackend(t *testing.T) {
	s := New()
	assert.ErrorIs(t, s.Watch(t.Context(), 0), ErrNoFileBackend)
}

func mustGet(t *testing.T, s *Store, key string) any {
	t.Helper()
	v, ok := s.Get(key)
	require.True(t, ok, "missing %s", key)
	return v
}
