package api

import (
	"net/http"

	"github.com/glowsign/signaged/updater"
)

type getStatusResponse struct {
	Name             string              `json:"name"`
	Version          string              `json:"version"`
	VersionCode      int64               `json:"versionCode"`
	UpdatesSupported bool                `json:"updatesSupported"`
	AvailableUpdate  *updater.UpdateInfo `json:"availableUpdate,omitempty"`
}

func (a *Api) handleGetStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, err := a.kiosk.GetName()
		if err != nil {
			a.log.Warnf("Could not read name: %v", err)
		}

		version := a.kiosk.GetVersion()

		a.jsonResponse(w, &getStatusResponse{
			Name:             name,
			Version:          version.Name,
			VersionCode:      version.Code,
			UpdatesSupported: a.kiosk.SupportsUpdates(),
			AvailableUpdate:  a.kiosk.AvailableUpdate(),
		}, http.StatusOK)
	}
}
