package lifecycle

import (
	"fmt"
	"log/slog"

	"github.com/pinchtab/surf/internal/tabs"
)

// TogglePin flips the pinned flag. The tab keeps its place in the store;
// grouping is applied by DisplayOrder.
func (c *Controller) TogglePin(id string) (*tabs.Tab, error) {
	return c.flip(id, "pin", func(t tabs.Tab) tabs.Tab {
		t.Pinned = !t.Pinned
		return t
	})
}

// Reorder moves the tab to newIndex, clamped to the store bounds. Every
// other tab keeps its relative order and its record.
func (c *Controller) Reorder(id string, newIndex int) error {
	list := c.store.Get()
	from := tabs.Index(list, id)
	if from < 0 {
		slog.Warn("reorder: unknown tab", "tabId", id)
		return fmt.Errorf("reorder %s: %w", id, ErrTabNotFound)
	}
	to := clamp(newIndex, 0, len(list)-1)
	if to == from {
		return nil
	}
	c.store.Update(func(cur []*tabs.Tab) []*tabs.Tab {
		return move(cur, id, newIndex)
	})
	return nil
}

// MoveDisplayed moves the tab to position index of the display order, the
// order clients see. A tab never leaves its pin group: an index past the
// group's edge lands on that edge. The store is rearranged so that only the
// moved tab changes place relative to its group.
func (c *Controller) MoveDisplayed(id string, index int) error {
	order := tabs.DisplayOrder(c.store.Get())
	from := tabs.Index(order, id)
	if from < 0 {
		slog.Warn("move: unknown tab", "tabId", id)
		return fmt.Errorf("move %s: %w", id, ErrTabNotFound)
	}
	if clamp(index, 0, len(order)-1) == from {
		return nil
	}
	pinned := order[from].Pinned
	var group []*tabs.Tab
	for _, t := range move(order, id, index) {
		if t.Pinned == pinned {
			group = append(group, t)
		}
	}
	pos := tabs.Index(group, id)
	c.store.Update(func(cur []*tabs.Tab) []*tabs.Tab {
		return placeNextTo(cur, group, pos)
	})
	return nil
}

// placeNextTo moves group[pos] in list so it sits right before its new
// successor in group, or right after its new predecessor.
func placeNextTo(list, group []*tabs.Tab, pos int) []*tabs.Tab {
	if len(group) < 2 {
		return list
	}
	id := group[pos].ID
	without := make([]*tabs.Tab, 0, len(list))
	var moved *tabs.Tab
	for _, t := range list {
		if t.ID == id {
			moved = t
			continue
		}
		without = append(without, t)
	}
	if moved == nil {
		return list
	}
	at := len(without)
	if pos+1 < len(group) {
		if i := tabs.Index(without, group[pos+1].ID); i >= 0 {
			at = i
		}
	} else if i := tabs.Index(without, group[pos-1].ID); i >= 0 {
		at = i + 1
	}
	next := make([]*tabs.Tab, 0, len(list))
	next = append(next, without[:at]...)
	next = append(next, moved)
	return append(next, without[at:]...)
}

func move(list []*tabs.Tab, id string, to int) []*tabs.Tab {
	from := tabs.Index(list, id)
	if from < 0 {
		return list
	}
	to = clamp(to, 0, len(list)-1)
	t := list[from]
	rest := make([]*tabs.Tab, 0, len(list))
	rest = append(rest, list[:from]...)
	rest = append(rest, list[from+1:]...)
	next := make([]*tabs.Tab, 0, len(list))
	next = append(next, rest[:to]...)
	next = append(next, t)
	return append(next, rest[to:]...)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// DisplayOrder returns the tabs the way the strip shows them.
func (c *Controller) DisplayOrder() []*tabs.Tab {
	return tabs.DisplayOrder(c.store.Get())
}

// CycleNext activates the next tab in display order. Inside a pin group it
// steps to the following tab; from the last tab of a group it moves to the
// first tab of the other group, or wraps to the group's first tab when the
// other group is empty.
func (c *Controller) CycleNext() *tabs.Tab { return c.cycle(1) }

// CyclePrevious is CycleNext backwards: the first tab of a group moves to
// the last tab of the other group.
func (c *Controller) CyclePrevious() *tabs.Tab { return c.cycle(-1) }

func (c *Controller) cycle(dir int) *tabs.Tab {
	order := tabs.DisplayOrder(c.store.Get())
	if len(order) == 0 {
		return nil
	}
	cur := tabs.ActiveIndex(order)
	if cur < 0 {
		_ = c.SetActiveTab(order[0].ID)
		return order[0]
	}
	target := cycleTarget(order, cur, dir)
	if target == order[cur] {
		return target
	}
	_ = c.SetActiveTab(target.ID)
	slog.Debug("cycled tab", "from", order[cur].ID, "to", target.ID)
	return target
}

// cycleTarget picks the tab that follows order[cur] in direction dir.
func cycleTarget(order []*tabs.Tab, cur, dir int) *tabs.Tab {
	pinned := order[cur].Pinned
	var group, other []*tabs.Tab
	pos := 0
	for i, t := range order {
		if t.Pinned == pinned {
			if i == cur {
				pos = len(group)
			}
			group = append(group, t)
		} else {
			other = append(other, t)
		}
	}
	next := pos + dir
	switch {
	case next >= 0 && next < len(group):
		return group[next]
	case len(other) == 0:
		return group[(next+len(group))%len(group)]
	case dir > 0:
		return other[0]
	default:
		return other[len(other)-1]
	}
}
