package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/pinchtab/surf/internal/history"
	"github.com/pinchtab/surf/internal/tabs"
	"github.com/pinchtab/surf/internal/web"
)

const defaultHistoryLimit = 100

func (h *Handlers) HandleHistory(w http.ResponseWriter, r *http.Request) {
	items := h.History.Search(history.Query{
		Text:  r.URL.Query().Get("q"),
		Limit: queryParamInt(r, "limit", defaultHistoryLimit),
	})
	web.JSON(w, 200, map[string]any{"items": items, "total": h.History.Len()})
}

// HandleHistoryDelete drops the entries for ?url=, or everything when no
// url is given.
func (h *Handlers) HandleHistoryDelete(w http.ResponseWriter, r *http.Request) {
	if url := r.URL.Query().Get("url"); url != "" {
		web.JSON(w, 200, map[string]any{"removed": h.History.Delete(url)})
		return
	}
	h.History.Clear()
	web.JSON(w, 200, map[string]any{"cleared": true})
}

func (h *Handlers) HandleHistoryOpen(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := web.DecodeJSON(r, &req); err != nil {
		web.Error(w, 400, err)
		return
	}
	url := strings.TrimSpace(req.URL)
	if url == "" {
		web.Error(w, 400, fmt.Errorf("url required"))
		return
	}
	var t *tabs.Tab
	if h.do(w, r, func() error {
		t = h.Controller.RestoreFromURL(url)
		return nil
	}) {
		web.JSON(w, 200, t)
	}
}
