// Package history keeps the log of visited pages.
package history

import (
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	// DedupWindow is how long a URL is suppressed after being recorded.
	DedupWindow = 30 * time.Second
	// DefaultMaxEntries caps the log when no explicit cap is configured.
	DefaultMaxEntries = 10000
)

// Item is one visit.
type Item struct {
	URL   string    `json:"url"`
	Title string    `json:"title"`
	Date  time.Time `json:"date"`
}

// Backend persists the log. Errors are reported to the log, never to
// callers of Record.
type Backend interface {
	Append(item Item) error
	Load(limit int) ([]Item, error)
	Delete(url string) error
	Clear() error
	Trim(max int) error
}

type Options struct {
	// MaxEntries bounds the log; the oldest entries go first. Zero means
	// DefaultMaxEntries, a negative value means unbounded.
	MaxEntries int
	Backend    Backend
	Now        func() time.Time
}

// Log is an append-only visit log with short-window deduplication.
type Log struct {
	mu      sync.RWMutex
	items   []Item
	max     int
	backend Backend
	now     func() time.Time
}

func New(opts Options) *Log {
	l := &Log{
		max:     opts.MaxEntries,
		backend: opts.Backend,
		now:     opts.Now,
	}
	if l.max == 0 {
		l.max = DefaultMaxEntries
	}
	if l.now == nil {
		l.now = time.Now
	}
	if l.backend != nil {
		limit := l.max
		if limit < 0 {
			limit = 0
		}
		items, err := l.backend.Load(limit)
		if err != nil {
			slog.Warn("load history failed, starting empty", "err", err)
		} else {
			l.items = items
		}
	}
	return l
}

// Record appends a visit unless the same URL was recorded within the
// dedup window. It reports whether an entry was added.
func (l *Log) Record(rawURL, title string) bool {
	if rawURL == "" {
		return false
	}
	now := l.now()

	l.mu.Lock()
	for i := len(l.items) - 1; i >= 0; i-- {
		it := l.items[i]
		if now.Sub(it.Date) >= DedupWindow {
			break
		}
		if it.URL == rawURL {
			l.mu.Unlock()
			return false
		}
	}
	if title == "" {
		title = hostOf(rawURL)
	}
	item := Item{URL: rawURL, Title: title, Date: now}
	l.items = append(l.items, item)
	evicted := false
	if l.max > 0 && len(l.items) > l.max {
		l.items = append([]Item(nil), l.items[len(l.items)-l.max:]...)
		evicted = true
	}
	l.mu.Unlock()

	if l.backend != nil {
		if err := l.backend.Append(item); err != nil {
			slog.Error("history append", "url", rawURL, "err", err)
		}
		if evicted {
			if err := l.backend.Trim(l.max); err != nil {
				slog.Error("history trim", "err", err)
			}
		}
	}
	return true
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// Query filters the log for a search UI.
type Query struct {
	// Text is matched case-insensitively against URL and title.
	Text  string
	Limit int
}

// Search returns matching entries, newest first.
func (l *Log) Search(q Query) []Item {
	needle := strings.ToLower(strings.TrimSpace(q.Text))

	l.mu.RLock()
	out := make([]Item, 0, len(l.items))
	for _, it := range l.items {
		if needle != "" &&
			!strings.Contains(strings.ToLower(it.URL), needle) &&
			!strings.Contains(strings.ToLower(it.Title), needle) {
			continue
		}
		out = append(out, it)
	}
	l.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// Delete removes every entry for url.
func (l *Log) Delete(rawURL string) int {
	l.mu.Lock()
	kept := l.items[:0]
	removed := 0
	for _, it := range l.items {
		if it.URL == rawURL {
			removed++
			continue
		}
		kept = append(kept, it)
	}
	l.items = kept
	l.mu.Unlock()

	if removed > 0 && l.backend != nil {
		if err := l.backend.Delete(rawURL); err != nil {
			slog.Error("history delete", "url", rawURL, "err", err)
		}
	}
	return removed
}

// Clear drops every entry.
func (l *Log) Clear() {
	l.mu.Lock()
	l.items = nil
	l.mu.Unlock()
	if l.backend != nil {
		if err := l.backend.Clear(); err != nil {
			slog.Error("history clear", "err", err)
		}
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Hostname()
}
