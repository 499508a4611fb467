package api

import (
	"encoding/json"
	"net/http"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (a *Api) jsonResponse(w http.ResponseWriter, v interface{}, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		a.log.Errorf("Could not respond with JSON: %v", err)
	}
}

func (a *Api) jsonError(w http.ResponseWriter, message string, code int) {
	a.jsonResponse(w, &errorResponse{
		Error: message,
	}, code)
}
