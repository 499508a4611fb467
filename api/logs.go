package api

import (
	"net/http"
)

func (a *Api) handleGetLogs() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a.jsonResponse(w, a.kiosk.RecentLogs(), http.StatusOK)
	}
}
