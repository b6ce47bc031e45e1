package tabs

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestSnapshot_RoundTrip(t *testing.T) {
	list := []*Tab{
		{ID: "tab_00000001", URL: "https://example.com", Title: "Example", Favicon: "https://example.com/favicon.ico", Active: true, Pinned: true, ReaderMode: true},
		{ID: "tab_00000002", URL: "https://broken.test", Title: FailedTitle, Loading: true, Failure: &LoadFailure{Code: -105, Description: "net::ERR_NAME_NOT_RESOLVED"}},
	}
	data, err := Encode(list, time.Date(2026, 2, 17, 7, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != len(list) {
		t.Fatalf("expected %d tabs, got %d", len(list), len(decoded))
	}
	for i := range list {
		if !reflect.DeepEqual(*list[i], *decoded[i]) {
			t.Errorf("tab %d: got %+v, want %+v", i, *decoded[i], *list[i])
		}
	}
}

func TestSnapshot_NoSurfaceField(t *testing.T) {
	data, err := Encode([]*Tab{{ID: "tab_00000001", Active: true}}, time.Now())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for _, banned := range []string{"surface", "webview", "contentId"} {
		if searchString(string(data), banned) {
			t.Errorf("snapshot should not mention %q: %s", banned, data)
		}
	}
}

func TestDecode_SkipsEntriesWithoutID(t *testing.T) {
	list, err := Decode([]byte(`{"tabs":[{"url":"https://a.test"},{"id":"tab_1","url":"https://b.test"}]}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 || list[0].ID != "tab_1" {
		t.Errorf("unexpected tabs: %+v", list)
	}
}

func TestDecode_Invalid(t *testing.T) {
	if _, err := Decode([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestFileStore_SaveLoad(t *testing.T) {
	fs := &FileStore{Dir: filepath.Join(t.TempDir(), "nested")}
	list := []*Tab{{ID: "tab_1", URL: "https://a.test", Active: true}, {ID: "tab_2", URL: "https://b.test"}}
	if err := fs.Save(list); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(fs.Path() + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file should be renamed away")
	}
	got, err := fs.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 || got[0].URL != "https://a.test" || !got[0].Active {
		t.Errorf("unexpected tabs: %+v", got)
	}
}

func TestFileStore_LoadMissing(t *testing.T) {
	fs := &FileStore{Dir: t.TempDir()}
	got, err := fs.Load()
	if err != nil {
		t.Fatalf("missing file should not be an error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty, got %d", len(got))
	}
}

func TestFileStore_LoadOrEmpty_Corrupt(t *testing.T) {
	dir := t.TempDir()
	_ = os.WriteFile(filepath.Join(dir, SnapshotFile), []byte("{{{"), 0644)
	fs := &FileStore{Dir: dir}
	if got := fs.LoadOrEmpty(); len(got) != 0 {
		t.Errorf("expected empty store on corrupt snapshot, got %d", len(got))
	}
}

func TestFileStore_LoadOrEmpty_RepairsActive(t *testing.T) {
	dir := t.TempDir()
	_ = os.WriteFile(filepath.Join(dir, SnapshotFile),
		[]byte(`{"tabs":[{"id":"tab_1"},{"id":"tab_2"}],"savedAt":"2026-02-17T07:00:00Z"}`), 0644)
	fs := &FileStore{Dir: dir}
	got := fs.LoadOrEmpty()
	if err := ValidateActive(got); err != nil {
		t.Errorf("expected repaired snapshot: %v", err)
	}
}

func TestAutosave_FlushesOnCancel(t *testing.T) {
	fs := &FileStore{Dir: t.TempDir()}
	s := NewStore(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Autosave(ctx, s, fs, time.Hour)
		close(done)
	}()

	// Wait for the subscription to be registered.
	deadline := time.Now().Add(time.Second)
	for {
		s.mu.RLock()
		n := len(s.subs)
		s.mu.RUnlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	s.Set([]*Tab{{ID: "tab_1", URL: "https://a.test", Active: true}})
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	got, err := fs.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 1 || got[0].ID != "tab_1" {
		t.Errorf("expected flushed snapshot, got %+v", got)
	}
}

func TestAutosave_Debounces(t *testing.T) {
	fs := &FileStore{Dir: t.TempDir()}
	s := NewStore(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Autosave(ctx, s, fs, 30*time.Millisecond)

	deadline := time.Now().Add(time.Second)
	for {
		s.mu.RLock()
		n := len(s.subs)
		s.mu.RUnlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	s.Set([]*Tab{{ID: "tab_1", Active: true}})
	s.Set([]*Tab{{ID: "tab_1", Active: true}, {ID: "tab_2"}})

	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got, err := fs.Load(); err == nil && len(got) == 2 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("autosave never wrote the latest state")
}

func searchString(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
