// Package lifecycle implements the tab commands: create, activate, close,
// pin, reorder and cycle. Commands are meant to run on the event loop, one
// at a time.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/pinchtab/surf/internal/eventloop"
	"github.com/pinchtab/surf/internal/idutil"
	"github.com/pinchtab/surf/internal/navbridge"
	"github.com/pinchtab/surf/internal/surface"
	"github.com/pinchtab/surf/internal/tabs"
)

var (
	ErrTabNotFound = errors.New("tab not found")
	ErrTabPinned   = errors.New("tab is pinned")
	ErrTabLimit    = errors.New("tab limit reached")
)

const (
	defaultOpenTimeout    = 10 * time.Second
	defaultDisposeTimeout = 5 * time.Second
	maxConcurrentOpens    = 3
)

type Options struct {
	Store  *tabs.Store
	Bridge *navbridge.Bridge
	// Host opens and disposes page surfaces. Nil runs the controller
	// without any pages, which is what most tests want.
	Host surface.Host
	IDs  *idutil.Manager
	Exec eventloop.Executor
	// MaxTabs caps NewTab. Zero means no limit.
	MaxTabs     int
	OpenTimeout time.Duration
}

type Controller struct {
	store   *tabs.Store
	bridge  *navbridge.Bridge
	host    surface.Host
	ids     *idutil.Manager
	exec    eventloop.Executor
	maxTabs int
	timeout time.Duration

	mu       sync.Mutex
	home     bool
	homeSubs map[int]func(bool)
	nextSub  int

	opening *semaphore.Weighted
	wg      sync.WaitGroup
}

func New(opts Options) *Controller {
	if opts.IDs == nil {
		opts.IDs = idutil.NewManager()
	}
	if opts.Exec == nil {
		opts.Exec = eventloop.Inline{}
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = defaultOpenTimeout
	}
	c := &Controller{
		store:    opts.Store,
		bridge:   opts.Bridge,
		host:     opts.Host,
		ids:      opts.IDs,
		exec:     opts.Exec,
		maxTabs:  opts.MaxTabs,
		timeout:  opts.OpenTimeout,
		home:     opts.Store.Len() == 0,
		homeSubs: make(map[int]func(bool)),
		opening:  semaphore.NewWeighted(maxConcurrentOpens),
	}
	if c.bridge != nil {
		c.bridge.SetOpener(c)
	}
	return c
}

// CreateTab appends a new active tab for url and deactivates every other
// tab. The page surface is opened in the background and attached once it
// is ready.
func (c *Controller) CreateTab(url string) *tabs.Tab {
	t := &tabs.Tab{ID: c.ids.TabID(), URL: url, Active: true}
	c.store.Update(func(cur []*tabs.Tab) []*tabs.Tab {
		return append(tabs.Activate(cur, ""), t)
	})
	c.setHome(false)
	slog.Info("tab created", "tabId", t.ID, "url", url)
	c.open(t.ID, url)
	return t
}

// NewTab is CreateTab with the configured tab limit applied.
func (c *Controller) NewTab(url string) (*tabs.Tab, error) {
	if c.maxTabs > 0 {
		if n := c.store.Len(); n >= c.maxTabs {
			return nil, fmt.Errorf("%w (%d/%d)", ErrTabLimit, n, c.maxTabs)
		}
	}
	return c.CreateTab(url), nil
}

// SetActiveTab makes id the only active tab.
func (c *Controller) SetActiveTab(id string) error {
	list := c.store.Get()
	i := tabs.Index(list, id)
	if i < 0 {
		slog.Warn("activate: unknown tab", "tabId", id)
		return fmt.Errorf("activate %s: %w", id, ErrTabNotFound)
	}
	if tabs.ValidateActive(list) == nil && list[i].Active {
		c.setHome(false)
		return nil
	}
	c.store.Update(func(cur []*tabs.Tab) []*tabs.Tab {
		return tabs.Activate(cur, id)
	})
	c.setHome(false)
	return nil
}

// CloseTab removes the tab with the given id, or the active tab when id is
// empty. Pinned tabs are kept. When the closed tab was active, the tab that
// took its index (or the new last tab) becomes active.
func (c *Controller) CloseTab(id string) error {
	list := c.store.Get()
	if id == "" {
		if a := tabs.ActiveIndex(list); a >= 0 {
			id = list[a].ID
		}
	}
	i := tabs.Index(list, id)
	if i < 0 {
		slog.Warn("close: unknown tab", "tabId", id)
		return fmt.Errorf("close %q: %w", id, ErrTabNotFound)
	}
	if list[i].Pinned {
		slog.Debug("close: tab is pinned", "tabId", id)
		return fmt.Errorf("close %s: %w", id, ErrTabPinned)
	}

	next := c.store.Update(func(cur []*tabs.Tab) []*tabs.Tab {
		return remove(cur, id)
	})

	if s := c.detach(id); s != nil {
		c.dispose(s.ContentID())
	}
	if len(next) == 0 {
		c.setHome(true)
	}
	slog.Info("tab closed", "tabId", id, "remaining", len(next))
	return nil
}

func remove(list []*tabs.Tab, id string) []*tabs.Tab {
	i := tabs.Index(list, id)
	if i < 0 {
		return list
	}
	wasActive := list[i].Active
	next := make([]*tabs.Tab, 0, len(list)-1)
	next = append(next, list[:i]...)
	next = append(next, list[i+1:]...)
	if wasActive && len(next) > 0 {
		if i >= len(next) {
			i = len(next) - 1
		}
		next = tabs.Activate(next, next[i].ID)
	}
	return next
}

// DuplicateTab opens a copy of the tab right after it and activates it.
func (c *Controller) DuplicateTab(id string) (*tabs.Tab, error) {
	src, _ := c.store.Find(id)
	if src == nil {
		return nil, fmt.Errorf("duplicate %s: %w", id, ErrTabNotFound)
	}
	t := &tabs.Tab{ID: c.ids.TabID(), URL: src.URL, Title: src.Title, Favicon: src.Favicon, Active: true}
	c.store.Update(func(cur []*tabs.Tab) []*tabs.Tab {
		cur = tabs.Activate(cur, "")
		at := tabs.Index(cur, id) + 1
		if at <= 0 {
			return append(cur, t)
		}
		next := make([]*tabs.Tab, 0, len(cur)+1)
		next = append(next, cur[:at]...)
		next = append(next, t)
		return append(next, cur[at:]...)
	})
	c.setHome(false)
	c.open(t.ID, t.URL)
	return t, nil
}

// RestoreFromURL switches to a tab already showing url, or opens one.
func (c *Controller) RestoreFromURL(url string) *tabs.Tab {
	for _, t := range c.store.Get() {
		if t.URL == url {
			_ = c.SetActiveTab(t.ID)
			found, _ := c.store.Find(t.ID)
			return found
		}
	}
	return c.CreateTab(url)
}

// ToggleReaderMode flips the reader view flag of a tab.
func (c *Controller) ToggleReaderMode(id string) (*tabs.Tab, error) {
	return c.flip(id, "reader", func(t tabs.Tab) tabs.Tab {
		t.ReaderMode = !t.ReaderMode
		return t
	})
}

func (c *Controller) flip(id, op string, fn func(tabs.Tab) tabs.Tab) (*tabs.Tab, error) {
	var updated *tabs.Tab
	c.store.Update(func(cur []*tabs.Tab) []*tabs.Tab {
		next, ok := tabs.Replace(cur, id, fn)
		if ok {
			updated = next[tabs.Index(next, id)]
		}
		return next
	})
	if updated == nil {
		slog.Warn(op+": unknown tab", "tabId", id)
		return nil, fmt.Errorf("%s %s: %w", op, id, ErrTabNotFound)
	}
	return updated, nil
}

// HomeVisible reports whether the landing view should be shown. It is on
// while there are no tabs and after ShowHome.
func (c *Controller) HomeVisible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.home
}

// ShowHome brings up the landing view over the tabs. Activating a tab
// dismisses it again.
func (c *Controller) ShowHome() { c.setHome(true) }

// OnHomeChange registers fn to run whenever the landing view is shown or
// dismissed. fn runs on the caller of the command and must not block. The
// returned func removes it.
func (c *Controller) OnHomeChange(fn func(visible bool)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.homeSubs[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.homeSubs, id)
		c.mu.Unlock()
	}
}

func (c *Controller) setHome(v bool) {
	c.mu.Lock()
	changed := c.home != v
	c.home = v
	var subs []func(bool)
	if changed {
		for _, fn := range c.homeSubs {
			subs = append(subs, fn)
		}
	}
	c.mu.Unlock()
	for _, fn := range subs {
		fn(v)
	}
}

// Wait blocks until pending surface opens and disposals finish.
func (c *Controller) Wait() { c.wg.Wait() }

func (c *Controller) detach(id string) surface.Surface {
	if c.bridge == nil {
		return nil
	}
	return c.bridge.Detach(id)
}

func (c *Controller) open(tabID, url string) {
	if c.host == nil {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		_ = c.opening.Acquire(context.Background(), 1)
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		s, err := c.host.Open(ctx, url)
		cancel()
		c.opening.Release(1)

		c.exec.Post(func() {
			if err != nil {
				slog.Warn("open surface failed", "tabId", tabID, "url", url, "err", err)
				c.markFailed(tabID, err)
				return
			}
			if t, _ := c.store.Find(tabID); t == nil {
				slog.Debug("tab closed before its surface opened", "tabId", tabID)
				c.dispose(s.ContentID())
				return
			}
			if c.bridge != nil {
				c.bridge.Attach(tabID, s)
			}
		})
	}()
}

func (c *Controller) markFailed(tabID string, err error) {
	c.store.Update(func(cur []*tabs.Tab) []*tabs.Tab {
		next, _ := tabs.Replace(cur, tabID, func(t tabs.Tab) tabs.Tab {
			t.Loading = false
			t.Failure = &tabs.LoadFailure{Code: surface.CodeFailed, Description: err.Error()}
			t.Title = tabs.FailedTitle
			return t
		})
		return next
	})
}

func (c *Controller) dispose(contentID string) {
	if c.host == nil {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), defaultDisposeTimeout)
		defer cancel()
		if err := c.host.Dispose(ctx, contentID); err != nil {
			slog.Debug("dispose surface", "content", contentID, "err", err)
		}
	}()
}
