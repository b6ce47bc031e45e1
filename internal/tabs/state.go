package tabs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
)

// SnapshotFile is the fixed storage name of the tab snapshot.
const SnapshotFile = "tabs.json"

// Snapshot is the persisted form of the store. It only carries Tab
// records; live surfaces are never part of it.
type Snapshot struct {
	Tabs    []Tab  `json:"tabs"`
	SavedAt string `json:"savedAt"`
}

// Encode serializes list into snapshot JSON.
func Encode(list []*Tab, now time.Time) ([]byte, error) {
	state := Snapshot{
		Tabs:    make([]Tab, 0, len(list)),
		SavedAt: now.UTC().Format(time.RFC3339),
	}
	for _, t := range list {
		state.Tabs = append(state.Tabs, *t)
	}
	return json.MarshalIndent(state, "", "  ")
}

// Decode parses snapshot JSON.
func Decode(data []byte) ([]*Tab, error) {
	var state Snapshot
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	out := make([]*Tab, 0, len(state.Tabs))
	for i := range state.Tabs {
		t := state.Tabs[i]
		if t.ID == "" {
			continue
		}
		out = append(out, &t)
	}
	return out, nil
}

// FileStore keeps the snapshot in a directory on disk.
type FileStore struct {
	Dir string
}

func (f *FileStore) Path() string {
	return filepath.Join(f.Dir, SnapshotFile)
}

// Save writes list to disk, replacing the previous snapshot atomically.
func (f *FileStore) Save(list []*Tab) error {
	data, err := Encode(list, time.Now())
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.MkdirAll(f.Dir, 0755); err != nil {
		return fmt.Errorf("creating state dir %q: %w", f.Dir, err)
	}
	tmp := f.Path() + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, f.Path()); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Load reads the snapshot. A missing file is an empty store, not an error.
func (f *FileStore) Load() ([]*Tab, error) {
	data, err := os.ReadFile(f.Path())
	if os.IsNotExist(err) {
		return []*Tab{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return Decode(data)
}

// LoadOrEmpty loads the snapshot and falls back to an empty store on any
// error. The result always satisfies the single-active invariant.
func (f *FileStore) LoadOrEmpty() []*Tab {
	list, err := f.Load()
	if err != nil {
		slog.Warn("load tabs failed, starting empty", "path", f.Path(), "err", err)
		return []*Tab{}
	}
	list, repaired := RepairActive(list)
	if repaired {
		slog.Warn("repaired active tab in snapshot", "path", f.Path())
	}
	return list
}

// Autosave writes the store to fs whenever it changes, once the store has
// been quiet for the given period. The final state is flushed when ctx is
// cancelled.
func Autosave(ctx context.Context, s *Store, fs *FileStore, quiet time.Duration) {
	ch, cancel := s.Subscribe()
	defer cancel()

	var (
		pending []*Tab
		timer   *time.Timer
		fire    <-chan time.Time
	)
	flush := func() {
		if pending == nil {
			return
		}
		if err := fs.Save(pending); err != nil {
			slog.Error("save tabs", "err", err)
		} else {
			slog.Debug("saved tabs", "count", len(pending), "path", fs.Path())
		}
		pending = nil
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			flush()
			return
		case list, ok := <-ch:
			if !ok {
				flush()
				return
			}
			pending = list
			if timer == nil {
				timer = time.NewTimer(quiet)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(quiet)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			flush()
		}
	}
}
