package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pinchtab/surf/internal/settings"
	"github.com/pinchtab/surf/internal/tabs"
	"github.com/pinchtab/surf/internal/web"
)

const commandTimeout = 10 * time.Second

func (h *Handlers) tabsPayload() map[string]any {
	return map[string]any{
		"tabs":        h.Controller.DisplayOrder(),
		"homeVisible": h.Controller.HomeVisible(),
	}
}

func (h *Handlers) HandleTabs(w http.ResponseWriter, r *http.Request) {
	web.JSON(w, 200, h.tabsPayload())
}

// HandleShowHome brings up the landing view; activating a tab hides it.
func (h *Handlers) HandleShowHome(w http.ResponseWriter, r *http.Request) {
	if h.do(w, r, func() error {
		h.Controller.ShowHome()
		return nil
	}) {
		web.JSON(w, 200, h.tabsPayload())
	}
}

// formatInput turns address bar input into a URL using the configured
// search engine. Empty input stays empty.
func (h *Handlers) formatInput(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return ""
	}
	engine := settings.DefaultSearchEngine
	if h.Settings != nil {
		engine = h.Settings.SearchEngine()
	}
	return settings.FormatQuery(in, engine)
}

func (h *Handlers) HandleCreateTab(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := web.DecodeJSON(r, &req); err != nil {
		web.Error(w, 400, err)
		return
	}
	url := h.formatInput(req.URL)
	var t *tabs.Tab
	if !h.do(w, r, func() error {
		var err error
		t, err = h.Controller.NewTab(url)
		return err
	}) {
		return
	}
	web.JSON(w, 201, t)
}

func (h *Handlers) HandleActivate(w http.ResponseWriter, r *http.Request) {
	id, ok := tabID(w, r)
	if !ok {
		return
	}
	if h.do(w, r, func() error { return h.Controller.SetActiveTab(id) }) {
		web.JSON(w, 200, map[string]any{"activated": id})
	}
}

func (h *Handlers) HandleClose(w http.ResponseWriter, r *http.Request) {
	id, ok := tabID(w, r)
	if !ok {
		return
	}
	h.closeTab(w, r, id)
}

// HandleCloseActive closes whichever tab is active.
func (h *Handlers) HandleCloseActive(w http.ResponseWriter, r *http.Request) {
	h.closeTab(w, r, "")
}

func (h *Handlers) closeTab(w http.ResponseWriter, r *http.Request, id string) {
	if h.do(w, r, func() error { return h.Controller.CloseTab(id) }) {
		web.JSON(w, 200, h.tabsPayload())
	}
}

func (h *Handlers) HandlePin(w http.ResponseWriter, r *http.Request) {
	id, ok := tabID(w, r)
	if !ok {
		return
	}
	var t *tabs.Tab
	if h.do(w, r, func() error {
		var err error
		t, err = h.Controller.TogglePin(id)
		return err
	}) {
		web.JSON(w, 200, t)
	}
}

func (h *Handlers) HandleMove(w http.ResponseWriter, r *http.Request) {
	id, ok := tabID(w, r)
	if !ok {
		return
	}
	var req struct {
		Index *int `json:"index"`
	}
	if err := web.DecodeJSON(r, &req); err != nil {
		web.Error(w, 400, err)
		return
	}
	if req.Index == nil {
		web.Error(w, 400, fmt.Errorf("index required"))
		return
	}
	if h.do(w, r, func() error { return h.Controller.MoveDisplayed(id, *req.Index) }) {
		web.JSON(w, 200, h.tabsPayload())
	}
}

func (h *Handlers) HandleDuplicate(w http.ResponseWriter, r *http.Request) {
	id, ok := tabID(w, r)
	if !ok {
		return
	}
	var t *tabs.Tab
	if h.do(w, r, func() error {
		var err error
		t, err = h.Controller.DuplicateTab(id)
		return err
	}) {
		web.JSON(w, 201, t)
	}
}

func (h *Handlers) HandleReader(w http.ResponseWriter, r *http.Request) {
	id, ok := tabID(w, r)
	if !ok {
		return
	}
	var t *tabs.Tab
	if h.do(w, r, func() error {
		var err error
		t, err = h.Controller.ToggleReaderMode(id)
		return err
	}) {
		web.JSON(w, 200, t)
	}
}

func (h *Handlers) HandleCycle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Direction string `json:"direction"`
	}
	if err := web.DecodeJSON(r, &req); err != nil {
		web.Error(w, 400, err)
		return
	}
	var step func() *tabs.Tab
	switch req.Direction {
	case "", "next":
		step = h.Controller.CycleNext
	case "prev", "previous":
		step = h.Controller.CyclePrevious
	default:
		web.Error(w, 400, fmt.Errorf("direction must be next or prev, got %q", req.Direction))
		return
	}
	var t *tabs.Tab
	if !h.do(w, r, func() error {
		t = step()
		return nil
	}) {
		return
	}
	if t == nil {
		web.JSON(w, 200, map[string]any{"active": nil})
		return
	}
	web.JSON(w, 200, map[string]any{"active": t})
}

func (h *Handlers) HandleNavigate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := web.DecodeJSON(r, &req); err != nil {
		web.Error(w, 400, err)
		return
	}
	url := h.formatInput(req.URL)
	if url == "" {
		web.Error(w, 400, fmt.Errorf("url required"))
		return
	}
	h.pageCommand(w, r, func(ctx context.Context, id string) error {
		return h.Bridge.Navigate(ctx, id, url)
	})
}

func (h *Handlers) HandleReload(w http.ResponseWriter, r *http.Request) {
	h.pageCommand(w, r, h.Bridge.Reload)
}

func (h *Handlers) HandleBack(w http.ResponseWriter, r *http.Request) {
	h.pageCommand(w, r, h.Bridge.GoBack)
}

func (h *Handlers) HandleForward(w http.ResponseWriter, r *http.Request) {
	h.pageCommand(w, r, h.Bridge.GoForward)
}

// pageCommand runs a command against the tab's page surface. These talk to
// the browser and stay off the event loop.
func (h *Handlers) pageCommand(w http.ResponseWriter, r *http.Request, cmd func(context.Context, string) error) {
	id, ok := tabID(w, r)
	if !ok {
		return
	}
	if t, _ := h.Store.Find(id); t == nil {
		web.ErrorCode(w, 404, "tab_not_found", fmt.Sprintf("tab %s not found", id), false, nil)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()
	if err := cmd(ctx, id); err != nil {
		writeTabError(w, err)
		return
	}
	web.JSON(w, 200, map[string]any{"tabId": id, "status": "ok"})
}
