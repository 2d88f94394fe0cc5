package controller

import (
	"net/http"
)

func (c *Controller) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"rows":        c.App.Store.RowCount(),
		"lastUpdated": c.App.Store.LastUpdated().UnixMilli(),
	})
}
