// Package surfacetest provides in-memory surfaces for tests.
package surfacetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/pinchtab/surf/internal/surface"
)

// Surface is a scriptable surface. Tests push events with Emit and close
// the stream with Close.
type Surface struct {
	ID  string
	URL string

	events    chan surface.Event
	closeOnce sync.Once

	mu       sync.Mutex
	Reloads  int
	Backs    int
	Forwards int
	Visited  []string
}

func NewSurface(id, url string) *Surface {
	return &Surface{ID: id, URL: url, events: make(chan surface.Event, 64)}
}

func (s *Surface) ContentID() string            { return s.ID }
func (s *Surface) Events() <-chan surface.Event { return s.events }

func (s *Surface) Emit(evs ...surface.Event) {
	for _, ev := range evs {
		s.events <- ev
	}
}

func (s *Surface) Close() {
	s.closeOnce.Do(func() { close(s.events) })
}

func (s *Surface) Navigate(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Visited = append(s.Visited, url)
	return nil
}

func (s *Surface) Reload(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Reloads++
	return nil
}

func (s *Surface) GoBack(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Backs++
	return nil
}

func (s *Surface) GoForward(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Forwards++
	return nil
}

// Host hands out Surfaces and records disposals.
type Host struct {
	mu       sync.Mutex
	next     int
	Opened   []*Surface
	Disposed []string
	FailOpen bool
}

func (h *Host) Open(_ context.Context, url string) (surface.Surface, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.FailOpen {
		return nil, fmt.Errorf("open %s: host unavailable", url)
	}
	h.next++
	s := NewSurface(fmt.Sprintf("content-%d", h.next), url)
	h.Opened = append(h.Opened, s)
	return s, nil
}

func (h *Host) Dispose(_ context.Context, contentID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Disposed = append(h.Disposed, contentID)
	for _, s := range h.Opened {
		if s.ID == contentID {
			s.Close()
		}
	}
	return nil
}

// DisposedIDs returns a copy of the disposed content IDs.
func (h *Host) DisposedIDs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.Disposed...)
}

// OpenedSurfaces returns a copy of the surfaces handed out so far.
func (h *Host) OpenedSurfaces() []*Surface {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*Surface(nil), h.Opened...)
}
