package navbridge

import (
	"log/slog"

	"github.com/pinchtab/surf/internal/surface"
	"github.com/pinchtab/surf/internal/tabs"
)

// Handle applies one surface event to the tab with the given id. Events for
// tabs that are no longer in the store are dropped.
func (b *Bridge) Handle(tabID string, ev surface.Event) {
	if t, _ := b.store.Find(tabID); t == nil {
		slog.Warn("dropping event for missing tab", "tabId", tabID, "event", eventName(ev))
		return
	}

	switch e := ev.(type) {
	case surface.NavigationStarted:
		b.update(tabID, func(t tabs.Tab) tabs.Tab {
			t.Loading = true
			t.Failure = nil
			return t
		})

	case surface.NavigationCommitted:
		if !e.TopLevel {
			return
		}
		b.commit(tabID, e.URL)

	case surface.InPageNavigated:
		if !e.TopLevel {
			return
		}
		b.commit(tabID, e.URL)

	case surface.TitleUpdated:
		b.update(tabID, func(t tabs.Tab) tabs.Tab {
			if t.Failure == nil {
				t.Title = e.Title
			}
			return t
		})

	case surface.FaviconUpdated:
		if len(e.URLs) == 0 {
			return
		}
		b.update(tabID, func(t tabs.Tab) tabs.Tab {
			t.Favicon = e.URLs[0]
			return t
		})

	case surface.NavigationStopped, surface.NavigationFinished, surface.NavigationFailed:
		b.update(tabID, func(t tabs.Tab) tabs.Tab {
			t.Loading = false
			return t
		})

	case surface.LoadFailed:
		if e.Transient() {
			slog.Debug("ignoring cancelled load", "tabId", tabID, "class", e.Class.String(), "code", e.Code)
			return
		}
		slog.Info("page failed to load", "tabId", tabID, "url", e.URL, "code", e.Code, "desc", e.Description)
		b.update(tabID, func(t tabs.Tab) tabs.Tab {
			t.Failure = &tabs.LoadFailure{Code: e.Code, Description: e.Description}
			t.Title = tabs.FailedTitle
			return t
		})

	case surface.NewWindowRequested:
		e.Prevent()
		b.mu.Lock()
		opener := b.opener
		b.mu.Unlock()
		if opener == nil {
			slog.Warn("popup requested but no tab opener configured", "tabId", tabID, "url", e.URL)
			return
		}
		if _, err := opener.NewTab(e.URL); err != nil {
			slog.Warn("popup blocked", "tabId", tabID, "url", e.URL, "err", err)
		}

	default:
		slog.Debug("unhandled surface event", "tabId", tabID, "event", eventName(ev))
	}
}

func (b *Bridge) commit(tabID, url string) {
	next := b.update(tabID, func(t tabs.Tab) tabs.Tab {
		t.URL = url
		return t
	})
	if next == nil || b.history == nil {
		return
	}
	b.history.Record(url, next.Title)
}

// update rewrites one tab and returns the new record, or nil if the tab
// disappeared in the meantime.
func (b *Bridge) update(tabID string, fn func(tabs.Tab) tabs.Tab) *tabs.Tab {
	var updated *tabs.Tab
	b.store.Update(func(cur []*tabs.Tab) []*tabs.Tab {
		next, ok := tabs.Replace(cur, tabID, fn)
		if ok {
			updated = next[tabs.Index(next, tabID)]
		}
		return next
	})
	if updated == nil {
		slog.Warn("dropping update for missing tab", "tabId", tabID)
	}
	return updated
}

func eventName(ev surface.Event) string {
	switch ev.(type) {
	case surface.NavigationStarted:
		return "navigation-start"
	case surface.NavigationCommitted:
		return "navigation-committed"
	case surface.InPageNavigated:
		return "in-page-navigation"
	case surface.TitleUpdated:
		return "title-updated"
	case surface.FaviconUpdated:
		return "favicon-updated"
	case surface.NavigationStopped:
		return "navigation-stop"
	case surface.NavigationFinished:
		return "navigation-finish"
	case surface.NavigationFailed:
		return "navigation-fail"
	case surface.LoadFailed:
		return "load-failure"
	case surface.NewWindowRequested:
		return "new-window-requested"
	default:
		return "unknown"
	}
}
