package tabs

import (
	"log/slog"
	"sync"
)

const defaultSubscriberDepth = 64

// Store is the single source of truth for the open tabs. Every change
// replaces the whole slice; readers get a consistent snapshot.
type Store struct {
	mu    sync.RWMutex
	tabs  []*Tab
	subs  map[chan []*Tab]struct{}
	depth int
}

func NewStore(initial []*Tab) *Store {
	s := &Store{
		subs:  make(map[chan []*Tab]struct{}),
		depth: defaultSubscriberDepth,
	}
	s.tabs = clone(initial)
	return s
}

// Get returns the current tabs. The slice is the caller's; the records
// must not be modified.
func (s *Store) Get() []*Tab {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.tabs)
}

// Len returns the number of tabs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tabs)
}

// Set replaces the tabs with next.
func (s *Store) Set(next []*Tab) {
	s.Update(func([]*Tab) []*Tab { return next })
}

// Update computes the next state from the current one and writes it back.
// fn must not call back into the store.
func (s *Store) Update(fn func(cur []*Tab) []*Tab) []*Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := clone(fn(clone(s.tabs)))
	s.tabs = next
	s.broadcast(next)
	return clone(next)
}

// Find returns the tab with the given id and its index, or nil and -1.
func (s *Store) Find(id string) (*Tab, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := Index(s.tabs, id)
	if i < 0 {
		return nil, -1
	}
	return s.tabs[i], i
}

// Active returns the active tab, or nil when the store is empty.
func (s *Store) Active() *Tab {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := ActiveIndex(s.tabs); i >= 0 {
		return s.tabs[i]
	}
	return nil
}

// Subscribe registers an observer that receives every new state. The
// returned func unsubscribes and closes the channel. A subscriber that
// falls behind misses intermediate states but always ends on the newest
// one.
func (s *Store) Subscribe() (<-chan []*Tab, func()) {
	ch := make(chan []*Tab, s.depth)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	count := len(s.subs)
	s.mu.Unlock()
	slog.Debug("tab store subscribe", "subs", count)

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, ch)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// broadcast runs under the write lock, so it is the only sender: dropping
// the oldest queued state always makes room for the new one.
func (s *Store) broadcast(next []*Tab) {
	for ch := range s.subs {
		select {
		case ch <- clone(next):
			continue
		default:
		}
		select {
		case <-ch:
			slog.Debug("tab store subscriber full, dropping oldest state")
		default:
		}
		select {
		case ch <- clone(next):
		default:
		}
	}
}

func clone(list []*Tab) []*Tab {
	if list == nil {
		return []*Tab{}
	}
	out := make([]*Tab, len(list))
	copy(out, list)
	return out
}
