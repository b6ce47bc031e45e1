// Package tabs holds the ordered tab collection that every other part of
// the shell reads from.
package tabs

import (
	"fmt"
	"sort"
)

// FailedTitle replaces a tab's title while its page is in the failed state.
const FailedTitle = "Failed to load"

// LoadFailure describes why a tab's page could not be shown.
type LoadFailure struct {
	Code        int    `json:"code"`
	Description string `json:"description"`
}

// Tab is one entry of the store. Records are treated as immutable once
// they are in a store: changes produce a new *Tab and the untouched
// records keep their identity.
type Tab struct {
	ID         string       `json:"id"`
	URL        string       `json:"url"`
	Title      string       `json:"title"`
	Favicon    string       `json:"favicon,omitempty"`
	Active     bool         `json:"isActive"`
	Pinned     bool         `json:"isPinned"`
	Loading    bool         `json:"isLoading"`
	ReaderMode bool         `json:"readerMode"`
	Failure    *LoadFailure `json:"failure,omitempty"`
}

// Index returns the position of id in list, or -1.
func Index(list []*Tab, id string) int {
	for i, t := range list {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// ActiveIndex returns the position of the first active tab, or -1.
func ActiveIndex(list []*Tab) int {
	for i, t := range list {
		if t.Active {
			return i
		}
	}
	return -1
}

// Replace returns a copy of list where the tab with the given id has been
// rewritten by fn. All other records are shared with list. The boolean is
// false when id is not present, in which case list is returned unchanged.
func Replace(list []*Tab, id string, fn func(Tab) Tab) ([]*Tab, bool) {
	i := Index(list, id)
	if i < 0 {
		return list, false
	}
	next := make([]*Tab, len(list))
	copy(next, list)
	updated := fn(*list[i])
	updated.ID = list[i].ID
	next[i] = &updated
	return next, true
}

// Activate returns a copy of list with only id marked active. Records whose
// Active flag does not change are shared.
func Activate(list []*Tab, id string) []*Tab {
	next := make([]*Tab, len(list))
	for i, t := range list {
		want := t.ID == id
		if t.Active == want {
			next[i] = t
			continue
		}
		c := *t
		c.Active = want
		next[i] = &c
	}
	return next
}

// DisplayOrder returns the tabs the way the tab strip shows them: pinned
// tabs first, array order kept inside each group.
func DisplayOrder(list []*Tab) []*Tab {
	out := make([]*Tab, len(list))
	copy(out, list)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Pinned && !out[j].Pinned
	})
	return out
}

// ValidateActive checks the single-active-tab invariant.
func ValidateActive(list []*Tab) error {
	n := 0
	for _, t := range list {
		if t.Active {
			n++
		}
	}
	switch {
	case len(list) == 0 && n == 0:
		return nil
	case len(list) > 0 && n == 1:
		return nil
	default:
		return fmt.Errorf("%d active tabs in a store of %d", n, len(list))
	}
}

// RepairActive makes list satisfy the single-active invariant, keeping
// the first active tab if there are several and activating the first tab
// if there are none.
func RepairActive(list []*Tab) ([]*Tab, bool) {
	if ValidateActive(list) == nil {
		return list, false
	}
	i := ActiveIndex(list)
	if i < 0 {
		i = 0
	}
	return Activate(list, list[i].ID), true
}
