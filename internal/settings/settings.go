// Package settings is the user preference store: a flat key/value YAML file
// under the state directory.
package settings

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

const FileName = "settings.yaml"

const (
	KeySearchEngine = "searchEngine"
	KeyTheme        = "theme"
)

const (
	DefaultSearchEngine = "google"
	DefaultTheme        = "system"
)

var themes = map[string]bool{"system": true, "light": true, "dark": true}

// Store holds the settings in memory and writes every change back to disk.
type Store struct {
	path string

	// wmu orders Set calls so the file always ends on the last value set.
	wmu sync.Mutex

	mu     sync.RWMutex
	values map[string]string
	subs   map[int]func(map[string]string)
	nextID int
}

// Open reads <dir>/settings.yaml. A missing or unreadable file is logged
// and yields the defaults; it never fails the caller.
func Open(dir string) *Store {
	s := &Store{
		path: filepath.Join(dir, FileName),
		subs: make(map[int]func(map[string]string)),
	}
	s.values = s.read()
	return s
}

func (s *Store) Path() string { return s.path }

func defaults() map[string]string {
	return map[string]string{
		KeySearchEngine: DefaultSearchEngine,
		KeyTheme:        DefaultTheme,
	}
}

func (s *Store) read() map[string]string {
	values := defaults()
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("settings: read failed, using defaults", "path", s.path, "err", err)
		}
		return values
	}
	var fromFile map[string]string
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		slog.Warn("settings: parse failed, using defaults", "path", s.path, "err", err)
		return values
	}
	for k, v := range fromFile {
		values[k] = v
	}
	return values
}

// Get returns the value for key, or "" when it is unset.
func (s *Store) Get(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key]
}

// All returns a copy of every setting.
func (s *Store) All() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Set validates and stores a value, then saves the file.
func (s *Store) Set(key, value string) error {
	if err := validate(key, value); err != nil {
		return err
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()

	s.mu.Lock()
	s.values[key] = value
	snapshot := copyMap(s.values)
	subs := s.subscribers()
	s.mu.Unlock()

	if err := s.write(snapshot); err != nil {
		return err
	}
	for _, fn := range subs {
		fn(snapshot)
	}
	return nil
}

// OnChange registers fn to run after every Set and every external reload.
// The returned func removes it.
func (s *Store) OnChange(fn func(map[string]string)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// subscribers must be called with mu held.
func (s *Store) subscribers() []func(map[string]string) {
	out := make([]func(map[string]string), 0, len(s.subs))
	for _, fn := range s.subs {
		out = append(out, fn)
	}
	return out
}

// SearchEngine returns the selected engine, falling back to the default
// for unknown names.
func (s *Store) SearchEngine() string {
	name := s.Get(KeySearchEngine)
	if _, ok := engines[name]; !ok {
		return DefaultSearchEngine
	}
	return name
}

func (s *Store) Theme() string {
	t := s.Get(KeyTheme)
	if !themes[t] {
		return DefaultTheme
	}
	return t
}

// Reload re-reads the file, replacing the in-memory values.
func (s *Store) Reload() {
	values := s.read()
	s.mu.Lock()
	s.values = values
	snapshot := copyMap(values)
	subs := s.subscribers()
	s.mu.Unlock()
	slog.Debug("settings reloaded", "path", s.path)
	for _, fn := range subs {
		fn(snapshot)
	}
}

func (s *Store) write(values map[string]string) error {
	data, err := yaml.Marshal(values)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), FileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("create settings temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("chmod settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("rename settings: %w", err)
	}
	return nil
}

func validate(key, value string) error {
	switch key {
	case KeySearchEngine:
		if _, ok := engines[value]; !ok {
			return fmt.Errorf("unknown search engine %q (known: %v)", value, EngineNames())
		}
	case KeyTheme:
		if !themes[value] {
			return fmt.Errorf("unknown theme %q", value)
		}
	case "":
		return fmt.Errorf("empty settings key")
	}
	return nil
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// EngineNames lists the supported search engines.
func EngineNames() []string {
	names := make([]string, 0, len(engines))
	for n := range engines {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
