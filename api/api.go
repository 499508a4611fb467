package api

import (
	"net"
	"net/http"

	"github.com/go-errors/errors"
	"github.com/gorilla/mux"
	"github.com/glowsign/signaged/kiosk"
)

type Config struct {
	Log Logger
}

type Api struct {
	kiosk  *kiosk.Kiosk
	router *mux.Router
	log    Logger
}

func New(config *Config) *Api {
	api := &Api{
		router: mux.NewRouter(),
	}

	if config.Log != nil {
		api.log = config.Log
	} else {
		api.log = noopLogger{}
	}

	api.router.Handle("/api/v1/status", api.handleGetStatus()).Methods(http.MethodGet)

	api.router.Handle("/api/v1/updates/check", api.handlePostUpdateCheck()).Methods(http.MethodPost)
	api.router.Handle("/api/v1/updates", api.handlePostUpdate()).Methods(http.MethodPost)
	api.router.Handle("/api/v1/updates/{id}/events", api.handleGetUpdateEvents()).Methods(http.MethodGet)

	api.router.Handle("/api/v1/broadcasts/events", api.handleGetBroadcastEvents()).Methods(http.MethodGet)

	api.router.Handle("/api/v1/logs", api.handleGetLogs()).Methods(http.MethodGet)

	return api
}

func (a *Api) SetKiosk(kiosk *kiosk.Kiosk) {
	a.kiosk = kiosk
}

func (a *Api) Serve(l net.Listener) error {
	err := http.Serve(l, a.router)
	if err != nil {
		return errors.Errorf("Unable to serve api: %v", err)
	}

	return nil
}
