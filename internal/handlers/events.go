package handlers

import (
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/goccy/go-json"

	"github.com/pinchtab/surf/internal/tabs"
)

const pingInterval = 10 * time.Second

type stateMessage struct {
	Type        string      `json:"type"`
	Tabs        []*tabs.Tab `json:"tabs"`
	HomeVisible bool        `json:"homeVisible"`
}

type settingsMessage struct {
	Type     string            `json:"type"`
	Settings map[string]string `json:"settings"`
}

// wake nudges the stream without blocking the sender. Repeated signals
// before the stream catches up collapse into one.
func wake(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// HandleEvents upgrades to WebSocket and streams the tab list every time
// the store or the home view changes, starting with the current state.
// Settings changes arrive as separate "settings" messages.
func (h *Handlers) HandleEvents(w http.ResponseWriter, r *http.Request) {
	updates, unsubscribe := h.Store.Subscribe()
	defer unsubscribe()

	homeChanged := make(chan struct{}, 1)
	defer h.Controller.OnHomeChange(func(bool) { wake(homeChanged) })()
	settingsChanged := make(chan struct{}, 1)
	if h.Settings != nil {
		defer h.Settings.OnChange(func(map[string]string) { wake(settingsChanged) })()
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		slog.Error("ws upgrade failed", "err", err)
		return
	}
	defer func() { _ = conn.Close() }()

	atomic.AddInt64(&metricWSClients, 1)
	defer atomic.AddInt64(&metricWSClients, -1)

	var once sync.Once
	done := make(chan struct{})
	go func() {
		for {
			if _, _, err := wsutil.ReadClientData(conn); err != nil {
				once.Do(func() { close(done) })
				return
			}
		}
	}()

	write := func(msg any) error {
		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		return wsutil.WriteServerText(conn, data)
	}
	send := func(list []*tabs.Tab) error {
		return write(stateMessage{
			Type:        "tabs",
			Tabs:        tabs.DisplayOrder(list),
			HomeVisible: h.Controller.HomeVisible(),
		})
	}

	if err := send(h.Store.Get()); err != nil {
		return
	}
	slog.Debug("event stream opened", "remote", r.RemoteAddr)

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case list, ok := <-updates:
			if !ok {
				return
			}
			if err := send(list); err != nil {
				return
			}
		case <-homeChanged:
			if err := send(h.Store.Get()); err != nil {
				return
			}
		case <-settingsChanged:
			if err := write(settingsMessage{Type: "settings", Settings: h.Settings.All()}); err != nil {
				return
			}
		case <-done:
			slog.Debug("event stream closed", "remote", r.RemoteAddr)
			return
		case <-ping.C:
			if err := wsutil.WriteServerMessage(conn, ws.OpPing, nil); err != nil {
				return
			}
		}
	}
}
