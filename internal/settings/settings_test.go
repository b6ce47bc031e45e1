package settings

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestOpen_Defaults(t *testing.T) {
	s := Open(t.TempDir())
	if s.SearchEngine() != "google" || s.Theme() != "system" {
		t.Errorf("unexpected defaults: %v", s.All())
	}
}

func TestOpen_UnreadableFileDefaults(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("searchEngine: [unclosed\n"), 0644); err != nil {
		t.Fatal(err)
	}
	s := Open(dir)
	if s.SearchEngine() != DefaultSearchEngine {
		t.Errorf("expected default engine, got %s", s.SearchEngine())
	}
}

func TestOpen_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	data := "searchEngine: duckduckgo\ntheme: dark\nhomepage: https://start.test\n"
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	s := Open(dir)
	if s.SearchEngine() != "duckduckgo" || s.Theme() != "dark" || s.Get("homepage") != "https://start.test" {
		t.Errorf("file values not loaded: %v", s.All())
	}
}

func TestUnknownValuesFallBack(t *testing.T) {
	dir := t.TempDir()
	_ = os.WriteFile(filepath.Join(dir, FileName), []byte("searchEngine: altavista\ntheme: neon\n"), 0644)
	s := Open(dir)
	if s.SearchEngine() != DefaultSearchEngine || s.Theme() != DefaultTheme {
		t.Errorf("expected fallbacks, got %s %s", s.SearchEngine(), s.Theme())
	}
}

func TestSet_PersistsAndNotifies(t *testing.T) {
	dir := t.TempDir()
	s := Open(dir)
	var seen map[string]string
	s.OnChange(func(m map[string]string) { seen = m })

	if err := s.Set(KeySearchEngine, "bing"); err != nil {
		t.Fatal(err)
	}
	if seen[KeySearchEngine] != "bing" {
		t.Error("subscriber not notified")
	}
	if reopened := Open(dir); reopened.SearchEngine() != "bing" {
		t.Errorf("value not persisted, got %s", reopened.SearchEngine())
	}
}

func TestOnChange_Unsubscribe(t *testing.T) {
	s := Open(t.TempDir())
	calls := 0
	stop := s.OnChange(func(map[string]string) { calls++ })
	_ = s.Set(KeyTheme, "dark")
	stop()
	_ = s.Set(KeyTheme, "light")
	if calls != 1 {
		t.Errorf("expected 1 call before unsubscribe, got %d", calls)
	}
}

func TestSet_ConcurrentWritesLeaveConsistentFile(t *testing.T) {
	dir := t.TempDir()
	s := Open(dir)
	values := []string{"google", "bing", "duckduckgo"}

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(v string) {
			defer wg.Done()
			if err := s.Set(KeySearchEngine, v); err != nil {
				t.Error(err)
			}
		}(values[i%len(values)])
	}
	wg.Wait()

	if got := Open(dir).SearchEngine(); got != s.SearchEngine() {
		t.Errorf("file holds %s, memory holds %s", got, s.SearchEngine())
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != FileName {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("temp files left behind: %v", names)
	}
}

func TestSet_Validation(t *testing.T) {
	s := Open(t.TempDir())
	tests := []struct {
		key, value string
		ok         bool
	}{
		{KeySearchEngine, "duckduckgo", true},
		{KeySearchEngine, "altavista", false},
		{KeyTheme, "dark", true},
		{KeyTheme, "neon", false},
		{"homepage", "https://start.test", true},
		{"", "x", false},
	}
	for _, tt := range tests {
		err := s.Set(tt.key, tt.value)
		if (err == nil) != tt.ok {
			t.Errorf("Set(%q, %q) err = %v, want ok=%v", tt.key, tt.value, err, tt.ok)
		}
	}
}

func TestWatch_ReloadsExternalEdit(t *testing.T) {
	dir := t.TempDir()
	s := Open(dir)
	changed := make(chan string, 4)
	s.OnChange(func(m map[string]string) { changed <- m[KeyTheme] })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx) }()

	// give the watcher time to register the directory
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("theme: light\n"), 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(3 * time.Second)
	for {
		select {
		case theme := <-changed:
			if theme == "light" {
				cancel()
				if err := <-done; err != nil {
					t.Errorf("watch returned %v", err)
				}
				return
			}
		case <-deadline:
			t.Fatal("external edit was not picked up")
		}
	}
}

func TestFormatQuery(t *testing.T) {
	tests := []struct {
		in, engine, want string
	}{
		{"", "google", ""},
		{"https://go.dev", "google", "https://go.dev"},
		{"  about:blank ", "google", "about:blank"},
		{"go.dev/doc", "google", "https://go.dev/doc"},
		{"localhost:8080", "google", "https://localhost:8080"},
		{"golang tabs", "google", "https://www.google.com/search?q=golang+tabs"},
		{"golang", "duckduckgo", "https://duckduckgo.com/?q=golang"},
		{"a&b", "bing", "https://www.bing.com/search?q=a%26b"},
		{"golang", "unknown", "https://www.google.com/search?q=golang"},
		{"example.com is down", "google", "https://www.google.com/search?q=example.com+is+down"},
	}
	for _, tt := range tests {
		if got := FormatQuery(tt.in, tt.engine); got != tt.want {
			t.Errorf("FormatQuery(%q, %q) = %q, want %q", tt.in, tt.engine, got, tt.want)
		}
	}
}

func TestEngineNames(t *testing.T) {
	names := EngineNames()
	if len(names) != len(engines) || names[0] != "bing" {
		t.Errorf("unexpected engine list %v", names)
	}
}
