package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pinchtab/surf/internal/config"
	"github.com/pinchtab/surf/internal/surface/surfacetest"
)

func testConfig(t *testing.T) *config.RuntimeConfig {
	t.Helper()
	return &config.RuntimeConfig{
		StateDir:       t.TempDir(),
		HistoryBackend: "sqlite",
		HistoryMax:     100,
		MaxTabs:        10,
		OpenTimeout:    time.Second,
		AutosaveDelay:  10 * time.Millisecond,
	}
}

func TestApp_SessionSurvivesRestart(t *testing.T) {
	cfg := testConfig(t)

	first, err := newApp(cfg, &surfacetest.Host{})
	if err != nil {
		t.Fatal(err)
	}
	if err := first.start(context.Background()); err != nil {
		t.Fatal(err)
	}
	h := first.handler(nil)
	for _, url := range []string{"https://a.test/", "https://b.test/"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest("POST", "/tabs", strings.NewReader(`{"url":"`+url+`"}`)))
		if w.Code != http.StatusCreated {
			t.Fatalf("create %s: %d %s", url, w.Code, w.Body.String())
		}
	}
	first.stop()

	host := &surfacetest.Host{}
	second, err := newApp(cfg, host)
	if err != nil {
		t.Fatal(err)
	}
	if err := second.start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer second.stop()

	list := second.store.Get()
	if len(list) != 2 || list[0].URL != "https://a.test/" || !list[1].Active {
		t.Fatalf("session not restored: %+v", list)
	}
	second.ctrl.Wait()
	if got := len(host.OpenedSurfaces()); got != 2 {
		t.Errorf("expected a surface per restored tab, got %d", got)
	}
}

func TestApp_NoRestore(t *testing.T) {
	cfg := testConfig(t)
	first, err := newApp(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.start(context.Background()); err != nil {
		t.Fatal(err)
	}
	first.ctrl.CreateTab("https://a.test/")
	first.stop()

	cfg.NoRestore = true
	second, err := newApp(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := second.start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer second.stop()
	if second.store.Len() != 0 || !second.ctrl.HomeVisible() {
		t.Error("expected a fresh strip")
	}
}

func TestApp_MemoryHistory(t *testing.T) {
	cfg := testConfig(t)
	cfg.HistoryBackend = "memory"
	a, err := newApp(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer a.stop()
	if a.historyDB != nil {
		t.Error("memory backend should not open a database")
	}

	cfg.HistoryBackend = "postgres"
	if _, err := newApp(cfg, nil); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestApp_AuthWrapsRoutes(t *testing.T) {
	cfg := testConfig(t)
	cfg.Token = "secret-token"
	a, err := newApp(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer a.stop()
	w := httptest.NewRecorder()
	a.handler(nil).ServeHTTP(w, httptest.NewRequest("GET", "/tabs", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}
	if w.Header().Get("X-Request-Id") == "" {
		t.Error("request id middleware should run")
	}
}

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	if out.String() != "surf dev\n" {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestConfigShowMasksToken(t *testing.T) {
	t.Setenv("SURF_CONFIG", t.TempDir()+"/config.json")
	t.Setenv("SURF_TOKEN", "abcdefghijklmnop")
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"config", "show"})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out.String(), "abcdefghijklmnop") || !strings.Contains(out.String(), "abcd...mnop") {
		t.Errorf("token not masked: %s", out.String())
	}
}
