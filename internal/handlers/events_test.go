package handlers

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/goccy/go-json"
)

type eventStream struct {
	t  *testing.T
	rw io.ReadWriter
}

func dialEvents(t *testing.T, f *fixture) *eventStream {
	t.Helper()
	srv := httptest.NewServer(f.mux)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, br, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/events")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	// frames the server sent with the handshake may already sit in br
	var rw io.ReadWriter = conn
	if br != nil {
		rw = struct {
			io.Reader
			io.Writer
		}{io.MultiReader(br, conn), conn}
	}
	return &eventStream{t: t, rw: rw}
}

func (s *eventStream) read(v any) string {
	s.t.Helper()
	data, err := wsutil.ReadServerText(s.rw)
	if err != nil {
		s.t.Fatalf("read: %v", err)
	}
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		s.t.Fatalf("decode %s: %v", data, err)
	}
	if v != nil {
		if err := json.Unmarshal(data, v); err != nil {
			s.t.Fatalf("decode %s: %v", data, err)
		}
	}
	return head.Type
}

func TestHandleEvents_StreamsStoreChanges(t *testing.T) {
	f := newFixture(t, tab("tab_1", true))
	s := dialEvents(t, f)

	var first stateMessage
	if typ := s.read(&first); typ != "tabs" || len(first.Tabs) != 1 || first.Tabs[0].ID != "tab_1" {
		t.Fatalf("unexpected initial state %+v", first)
	}

	if w := f.call("POST", "/tab/close", ""); w.Code != 200 {
		t.Fatalf("close: %d", w.Code)
	}
	var next stateMessage
	s.read(&next)
	if len(next.Tabs) != 0 {
		t.Errorf("expected empty strip after close, got %+v", next.Tabs)
	}
}

func TestHandleEvents_PushesHomeAndSettings(t *testing.T) {
	f := newFixture(t, tab("tab_1", true))
	s := dialEvents(t, f)

	var first stateMessage
	s.read(&first)
	if first.HomeVisible {
		t.Fatal("home should start hidden with a tab open")
	}

	if w := f.call("POST", "/home", ""); w.Code != 200 {
		t.Fatalf("home: %d", w.Code)
	}
	var home stateMessage
	if typ := s.read(&home); typ != "tabs" || !home.HomeVisible || len(home.Tabs) != 1 {
		t.Errorf("expected home shown over one tab, got %+v", home)
	}

	if w := f.call("PUT", "/settings/theme", `{"value":"dark"}`); w.Code != 200 {
		t.Fatalf("settings: %d", w.Code)
	}
	var msg settingsMessage
	if typ := s.read(&msg); typ != "settings" || msg.Settings["theme"] != "dark" {
		t.Errorf("expected settings push, got %s %+v", typ, msg)
	}
}
