package handlers

import (
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/pinchtab/surf/internal/web"
)

func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	web.JSON(w, 200, map[string]any{
		"status":   "ok",
		"tabs":     h.Store.Len(),
		"attached": h.Bridge.Attached(),
		"cdp":      h.Config.CdpURL,
	})
}

func (h *Handlers) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	m := snapshotMetrics()
	m["tabs"] = h.Store.Len()
	m["attached"] = h.Bridge.Attached()
	m["historyEntries"] = h.History.Len()
	web.JSON(w, 200, m)
}

func snapshotMetrics() map[string]any {
	total := atomic.LoadUint64(&metricRequestsTotal)
	failed := atomic.LoadUint64(&metricRequestsFailed)
	latencySum := atomic.LoadUint64(&metricRequestLatencyN)
	avgMs := 0.0
	if total > 0 {
		avgMs = float64(latencySum) / float64(total)
	}
	return map[string]any{
		"requestsTotal":  total,
		"requestsFailed": failed,
		"avgLatencyMs":   avgMs,
		"rateLimited":    atomic.LoadUint64(&metricRateLimited),
		"eventClients":   atomic.LoadInt64(&metricWSClients),
	}
}

func (h *Handlers) HandleShutdown(shutdownFn func()) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Info("shutdown requested via API")
		web.JSON(w, 200, map[string]any{"status": "shutting down"})

		go func() {
			time.Sleep(100 * time.Millisecond)
			shutdownFn()
		}()
	}
}
