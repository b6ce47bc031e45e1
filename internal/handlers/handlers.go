// Package handlers exposes the tab shell over HTTP.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/pinchtab/surf/internal/config"
	"github.com/pinchtab/surf/internal/history"
	"github.com/pinchtab/surf/internal/idutil"
	"github.com/pinchtab/surf/internal/lifecycle"
	"github.com/pinchtab/surf/internal/navbridge"
	"github.com/pinchtab/surf/internal/settings"
	"github.com/pinchtab/surf/internal/tabs"
	"github.com/pinchtab/surf/internal/web"
)

// Runner executes fn on the event loop and waits for it.
type Runner interface {
	Do(ctx context.Context, fn func()) error
}

type Handlers struct {
	Config     *config.RuntimeConfig
	Store      *tabs.Store
	Controller *lifecycle.Controller
	Bridge     *navbridge.Bridge
	History    *history.Log
	Settings   *settings.Store
	Loop       Runner
}

func (h *Handlers) RegisterRoutes(mux *http.ServeMux, doShutdown func()) {
	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("GET /metrics", h.HandleMetrics)

	mux.HandleFunc("GET /tabs", h.HandleTabs)
	mux.HandleFunc("POST /tabs", h.HandleCreateTab)
	mux.HandleFunc("POST /tabs/cycle", h.HandleCycle)
	mux.HandleFunc("POST /home", h.HandleShowHome)
	mux.HandleFunc("POST /tab/close", h.HandleCloseActive)
	mux.HandleFunc("POST /tabs/{id}/activate", h.HandleActivate)
	mux.HandleFunc("POST /tabs/{id}/close", h.HandleClose)
	mux.HandleFunc("POST /tabs/{id}/pin", h.HandlePin)
	mux.HandleFunc("POST /tabs/{id}/move", h.HandleMove)
	mux.HandleFunc("POST /tabs/{id}/duplicate", h.HandleDuplicate)
	mux.HandleFunc("POST /tabs/{id}/reader", h.HandleReader)
	mux.HandleFunc("POST /tabs/{id}/navigate", h.HandleNavigate)
	mux.HandleFunc("POST /tabs/{id}/reload", h.HandleReload)
	mux.HandleFunc("POST /tabs/{id}/back", h.HandleBack)
	mux.HandleFunc("POST /tabs/{id}/forward", h.HandleForward)

	mux.HandleFunc("GET /history", h.HandleHistory)
	mux.HandleFunc("DELETE /history", h.HandleHistoryDelete)
	mux.HandleFunc("POST /history/open", h.HandleHistoryOpen)

	mux.HandleFunc("GET /settings", h.HandleSettings)
	mux.HandleFunc("PUT /settings/{key}", h.HandleSettingsPut)

	mux.HandleFunc("GET /events", h.HandleEvents)

	if doShutdown != nil {
		mux.HandleFunc("POST /shutdown", h.HandleShutdown(doShutdown))
	}
}

// do runs fn on the event loop and writes an error response when either
// the loop or fn fails.
func (h *Handlers) do(w http.ResponseWriter, r *http.Request, fn func() error) bool {
	var err error
	if lerr := h.Loop.Do(r.Context(), func() { err = fn() }); lerr != nil {
		web.ErrorCode(w, 503, "loop_unavailable", lerr.Error(), true, nil)
		return false
	}
	if err != nil {
		writeTabError(w, err)
		return false
	}
	return true
}

func writeTabError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, lifecycle.ErrTabNotFound):
		web.ErrorCode(w, 404, "tab_not_found", err.Error(), false, nil)
	case errors.Is(err, lifecycle.ErrTabPinned):
		web.ErrorCode(w, 409, "tab_pinned", err.Error(), false, nil)
	case errors.Is(err, lifecycle.ErrTabLimit):
		web.ErrorCode(w, 409, "tab_limit", err.Error(), false, nil)
	case errors.Is(err, navbridge.ErrNoSurface):
		web.ErrorCode(w, 409, "no_surface", err.Error(), true, nil)
	default:
		web.Error(w, 500, err)
	}
}

// tabID reads and checks the {id} path value.
func tabID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if !idutil.IsValidID(id, idutil.TabPrefix) {
		web.ErrorCode(w, 400, "bad_tab_id", fmt.Sprintf("invalid tab id %q", id), false, nil)
		return "", false
	}
	return id, true
}

func queryParamInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
