package handlers

import (
	"net/http"

	"github.com/pinchtab/surf/internal/settings"
	"github.com/pinchtab/surf/internal/web"
)

func (h *Handlers) HandleSettings(w http.ResponseWriter, r *http.Request) {
	web.JSON(w, 200, map[string]any{
		"settings": h.Settings.All(),
		"engines":  settings.EngineNames(),
	})
}

func (h *Handlers) HandleSettingsPut(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value string `json:"value"`
	}
	if err := web.DecodeJSON(r, &req); err != nil {
		web.Error(w, 400, err)
		return
	}
	key := r.PathValue("key")
	if err := h.Settings.Set(key, req.Value); err != nil {
		web.ErrorCode(w, 400, "bad_setting", err.Error(), false, map[string]any{"key": key})
		return
	}
	web.JSON(w, 200, map[string]any{"settings": h.Settings.All()})
}
