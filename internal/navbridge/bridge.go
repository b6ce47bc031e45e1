// Package navbridge connects page-hosting surfaces to the tab store: it
// listens to each tab's surface and turns page events into tab updates.
package navbridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pinchtab/surf/internal/eventloop"
	"github.com/pinchtab/surf/internal/history"
	"github.com/pinchtab/surf/internal/surface"
	"github.com/pinchtab/surf/internal/tabs"
)

// ErrNoSurface is returned by page commands for tabs that have no live
// surface attached.
var ErrNoSurface = errors.New("no surface attached")

// TabOpener creates tabs for popups the page asked for. It may refuse,
// for instance when the tab limit is reached.
type TabOpener interface {
	NewTab(url string) (*tabs.Tab, error)
}

type attachment struct {
	surf   surface.Surface
	cancel context.CancelFunc
}

// Bridge owns the runtime side table of tab ID → surface. Tabs never hold
// their surface; the store only ever sees plain records.
type Bridge struct {
	store   *tabs.Store
	history *history.Log
	exec    eventloop.Executor

	mu       sync.Mutex
	attached map[string]*attachment
	opener   TabOpener
	wg       sync.WaitGroup
}

func New(store *tabs.Store, log *history.Log, exec eventloop.Executor) *Bridge {
	return &Bridge{
		store:    store,
		history:  log,
		exec:     exec,
		attached: make(map[string]*attachment),
	}
}

// SetOpener wires the component that creates tabs for popups. It is set
// after construction because the lifecycle controller depends on the
// bridge.
func (b *Bridge) SetOpener(o TabOpener) {
	b.mu.Lock()
	b.opener = o
	b.mu.Unlock()
}

// Attach starts forwarding events from s to the tab. Attaching the same
// surface to the same tab again does nothing. Attaching a different
// surface replaces the previous subscription.
func (b *Bridge) Attach(tabID string, s surface.Surface) {
	b.mu.Lock()
	if cur, ok := b.attached[tabID]; ok {
		if cur.surf.ContentID() == s.ContentID() {
			b.mu.Unlock()
			slog.Debug("surface already attached", "tabId", tabID, "content", s.ContentID())
			return
		}
		cur.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	b.attached[tabID] = &attachment{surf: s, cancel: cancel}
	b.wg.Add(1)
	b.mu.Unlock()

	slog.Debug("surface attached", "tabId", tabID, "content", s.ContentID())
	go b.pump(ctx, tabID, s)
}

func (b *Bridge) pump(ctx context.Context, tabID string, s surface.Surface) {
	defer b.wg.Done()
	events := s.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			b.exec.Post(func() {
				if ctx.Err() != nil {
					return
				}
				b.Handle(tabID, ev)
			})
		}
	}
}

// Detach stops the tab's subscription and returns the surface that was
// attached, or nil.
func (b *Bridge) Detach(tabID string) surface.Surface {
	b.mu.Lock()
	defer b.mu.Unlock()
	cur, ok := b.attached[tabID]
	if !ok {
		return nil
	}
	cur.cancel()
	delete(b.attached, tabID)
	return cur.surf
}

// Surface returns the surface attached to the tab.
func (b *Bridge) Surface(tabID string) (surface.Surface, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cur, ok := b.attached[tabID]
	if !ok {
		return nil, false
	}
	return cur.surf, true
}

// Attached reports how many tabs have a live surface.
func (b *Bridge) Attached() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.attached)
}

// Close detaches every surface and waits for the event pumps to exit.
func (b *Bridge) Close() {
	b.mu.Lock()
	for id, cur := range b.attached {
		cur.cancel()
		delete(b.attached, id)
	}
	b.mu.Unlock()
	b.wg.Wait()
}

// Wait blocks until every event pump has exited.
func (b *Bridge) Wait() {
	b.wg.Wait()
}

func (b *Bridge) withSurface(tabID string, fn func(surface.Surface) error) error {
	s, ok := b.Surface(tabID)
	if !ok {
		return fmt.Errorf("tab %s: %w", tabID, ErrNoSurface)
	}
	return fn(s)
}

// Reload reloads the tab's page. The navigation start that follows clears
// any failed state.
func (b *Bridge) Reload(ctx context.Context, tabID string) error {
	return b.withSurface(tabID, func(s surface.Surface) error {
		return s.Reload(ctx)
	})
}

func (b *Bridge) GoBack(ctx context.Context, tabID string) error {
	return b.withSurface(tabID, func(s surface.Surface) error {
		return s.GoBack(ctx)
	})
}

func (b *Bridge) GoForward(ctx context.Context, tabID string) error {
	return b.withSurface(tabID, func(s surface.Surface) error {
		return s.GoForward(ctx)
	})
}

func (b *Bridge) Navigate(ctx context.Context, tabID, url string) error {
	return b.withSurface(tabID, func(s surface.Surface) error {
		return s.Navigate(ctx, url)
	})
}
