// Package settings provides the process-wide key/value settings store
// shared by the host and its packages.
//
// Setting a key to nil deletes it. Every change is written through to the
// optional Backend and broadcast to subscribers as a Change.
package settings

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
)

// ErrEmptyKey is returned when a setting key is empty.
var ErrEmptyKey = errors.New("settings: key is empty")

// Backend persists settings. Implementations must be safe for use by one
// store at a time.
type Backend interface {
	// Load returns every persisted setting. A missing store is not an error.
	Load() (map[string]any, error)

	// Save persists one key. A nil value removes it.
	Save(key string, value any) error
}

// Store is a key/value settings store with change notification.
type Store struct {
	mu     sync.RWMutex
	values map[string]any

	backend  Backend
	notifier *notifier
	logger   *log.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithBackend sets the persistence backend.
func WithBackend(b Backend) Option {
	return func(s *Store) {
		s.backend = b
	}
}

// WithLogger sets the logger used for backend failures.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithValues seeds the store without notifications or persistence.
func WithValues(values map[string]any) Option {
	return func(s *Store) {
		for k, v := range values {
			if v != nil {
				s.values[k] = v
			}
		}
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		values:   make(map[string]any),
		notifier: newNotifier(),
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the in-memory values with the backend's contents and
// broadcasts a reload. Without a backend it is a no-op.
func (s *Store) Load() error {
	if s.backend == nil {
		return nil
	}
	values, err := s.backend.Load()
	if err != nil {
		return fmt.Errorf("settings: load: %w", err)
	}

	s.mu.Lock()
	s.values = make(map[string]any, len(values))
	for k, v := range values {
		if v != nil {
			s.values[k] = v
		}
	}
	s.mu.Unlock()

	s.notifier.deliver(Change{Type: ChangeReload, Source: "backend"})
	return nil
}

// Get returns the value for key.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Has reports whether key is set.
func (s *Store) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// GetString returns a string setting or def.
func (s *Store) GetString(key, def string) string {
	if v, ok := s.Get(key); ok {
		if str, ok := v.(string); ok {
			return str
		}
	}
	return def
}

// GetBool returns a boolean setting or def.
func (s *Store) GetBool(key string, def bool) bool {
	if v, ok := s.Get(key); ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// GetFloat returns a numeric setting or def. Integer values are converted.
func (s *Store) GetFloat(key string, def float64) float64 {
	v, ok := s.Get(key)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return def
	}
}

// Set stores value under key. A nil value deletes the key.
func (s *Store) Set(key string, value any) error {
	return s.set(key, value, "user")
}

// SetFrom is Set with an explicit change source.
func (s *Store) SetFrom(key string, value any, source string) error {
	return s.set(key, value, source)
}

// SetDefault stores value only if key is unset. It reports whether the
// value was written.
func (s *Store) SetDefault(key string, value any) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	if value == nil {
		return false, nil
	}

	s.mu.Lock()
	if _, exists := s.values[key]; exists {
		s.mu.Unlock()
		return false, nil
	}
	s.values[key] = value
	s.mu.Unlock()

	err := s.persist(key, value)
	s.notifier.deliver(Change{Key: key, Type: ChangeSet, NewValue: value, Source: "default"})
	return true, err
}

// Delete removes key.
func (s *Store) Delete(key string) error {
	return s.set(key, nil, "user")
}

func (s *Store) set(key string, value any, source string) error {
	if key == "" {
		return ErrEmptyKey
	}

	s.mu.Lock()
	old, existed := s.values[key]
	if value == nil {
		if !existed {
			s.mu.Unlock()
			return nil
		}
		delete(s.values, key)
	} else {
		s.values[key] = value
	}
	s.mu.Unlock()

	err := s.persist(key, value)

	change := Change{Key: key, Type: ChangeSet, OldValue: old, NewValue: value, Source: source}
	if value == nil {
		change.Type = ChangeDelete
	}
	s.notifier.deliver(change)
	return err
}

func (s *Store) persist(key string, value any) error {
	if s.backend == nil {
		return nil
	}
	if err := s.backend.Save(key, value); err != nil {
		s.logger.Error("failed to save setting", "key", key, "err", err)
		return fmt.Errorf("settings: save %q: %w", key, err)
	}
	return nil
}

// Keys returns all set keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot returns a copy of every setting.
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Len returns the number of settings.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// Subscribe registers an observer for every change.
func (s *Store) Subscribe(observer Observer) *Subscription {
	return s.notifier.subscribe("", observer)
}

// SubscribeKey registers an observer for changes to one key. Reload events
// are delivered too.
func (s *Store) SubscribeKey(key string, observer Observer) *Subscription {
	return s.notifier.subscribe(key, observer)
}

// Reload re-reads the backend and applies only the differences, emitting a
// set or delete per changed key followed by a reload event. Nothing is
// written back.
func (s *Store) Reload(source string) error {
	if s.backend == nil {
		return nil
	}
	fresh, err := s.backend.Load()
	if err != nil {
		return fmt.Errorf("settings: reload: %w", err)
	}

	var changes []Change
	s.mu.Lock()
	for k, old := range s.values {
		if _, ok := fresh[k]; !ok {
			delete(s.values, k)
			changes = append(changes, Change{Key: k, Type: ChangeDelete, OldValue: old, Source: source})
		}
	}
	for k, v := range fresh {
		if v == nil {
			continue
		}
		old, ok := s.values[k]
		if ok && reflect.DeepEqual(old, v) {
			continue
		}
		s.values[k] = v
		changes = append(changes, Change{Key: k, Type: ChangeSet, OldValue: old, NewValue: v, Source: source})
	}
	s.mu.Unlock()

	sort.Slice(changes, func(i, j int) bool { return changes[i].Key < changes[j].Key })
	for _, c := range changes {
		s.notifier.deliver(c)
	}
	s.notifier.deliver(Change{Type: ChangeReload, Source: source})
	return nil
}
