package settings

import "sync"

// ChangeType represents the type of settings change.
type ChangeType int

const (
	// ChangeSet indicates a value was set or updated.
	ChangeSet ChangeType = iota

	// ChangeDelete indicates a value was deleted.
	ChangeDelete

	// ChangeReload indicates the store was reloaded from its backend.
	ChangeReload
)

// String returns the change type name.
func (c ChangeType) String() string {
	switch c {
	case ChangeSet:
		return "set"
	case ChangeDelete:
		return "delete"
	case ChangeReload:
		return "reload"
	default:
		return "unknown"
	}
}

// Change is a settings-change event.
type Change struct {
	// Key is the changed setting. Empty for reload events.
	Key string

	Type     ChangeType
	OldValue any
	NewValue any

	// Source identifies where the change came from ("default", "file", ...).
	Source string
}

// Observer is called when settings change.
type Observer func(change Change)

// Subscription represents an active observer subscription.
type Subscription struct {
	id       uint64
	notifier *notifier
}

// Unsubscribe removes this subscription. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s != nil && s.notifier != nil {
		s.notifier.unsubscribe(s.id)
	}
}

// notifier fans changes out to observers. Delivery is synchronous and
// happens outside the lock, so observers may read the store.
type notifier struct {
	mu sync.RWMutex

	global map[uint64]Observer
	byKey  map[string]map[uint64]Observer
	order  []uint64
	nextID uint64
}

func newNotifier() *notifier {
	return &notifier{
		global: make(map[uint64]Observer),
		byKey:  make(map[string]map[uint64]Observer),
	}
}

func (n *notifier) subscribe(key string, observer Observer) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	n.order = append(n.order, id)

	if key == "" {
		n.global[id] = observer
	} else {
		if n.byKey[key] == nil {
			n.byKey[key] = make(map[uint64]Observer)
		}
		n.byKey[key][id] = observer
	}

	return &Subscription{id: id, notifier: n}
}

func (n *notifier) unsubscribe(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	delete(n.global, id)
	for key, observers := range n.byKey {
		delete(observers, id)
		if len(observers) == 0 {
			delete(n.byKey, key)
		}
	}
	for i, v := range n.order {
		if v == id {
			n.order = append(n.order[:i], n.order[i+1:]...)
			break
		}
	}
}

// deliver calls matching observers in subscription order. Reload events
// reach every observer.
func (n *notifier) deliver(change Change) {
	n.mu.RLock()
	observers := make([]Observer, 0, len(n.order))
	for _, id := range n.order {
		if obs, ok := n.global[id]; ok {
			observers = append(observers, obs)
			continue
		}
		if change.Type == ChangeReload {
			for _, keyed := range n.byKey {
				if obs, ok := keyed[id]; ok {
					observers = append(observers, obs)
				}
			}
			continue
		}
		if obs, ok := n.byKey[change.Key][id]; ok {
			observers = append(observers, obs)
		}
	}
	n.mu.RUnlock()

	for _, obs := range observers {
		obs(change)
	}
}
