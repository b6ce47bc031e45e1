package lifecycle

import (
	"log/slog"

	"github.com/pinchtab/surf/internal/tabs"
)

// Restore replaces the store with a saved session and reopens a surface for
// every tab. Loading and failure state from the previous run is dropped;
// reloading the page decides those again.
func (c *Controller) Restore(saved []*tabs.Tab) int {
	list := make([]*tabs.Tab, 0, len(saved))
	for _, t := range saved {
		if t == nil || t.ID == "" {
			continue
		}
		cp := *t
		cp.Loading = false
		if cp.Failure != nil {
			cp.Failure = nil
			cp.Title = ""
		}
		list = append(list, &cp)
	}
	if repaired, ok := tabs.RepairActive(list); ok {
		slog.Warn("restored session had no single active tab, repaired")
		list = repaired
	}

	c.store.Set(list)
	c.setHome(len(list) == 0)
	for _, t := range list {
		c.open(t.ID, t.URL)
	}
	if len(list) > 0 {
		slog.Info("restored tabs", "count", len(list), "concurrent_limit", maxConcurrentOpens)
	}
	return len(list)
}
