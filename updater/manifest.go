package updater

import (
	"context"
	"encoding/json"
	"net/http"
)

// UpdateInfo is the parsed release manifest. The version code orders
// releases; every other field is presentation or policy input for the
// caller. A fresh UpdateInfo is produced per check and never cached.
type UpdateInfo struct {
	Version     string `json:"version"`
	VersionCode int64  `json:"versionCode"`
	DownloadUrl string `json:"downloadUrl"`
	Changelog   string `json:"changelog"`
	Mandatory   bool   `json:"mandatory"`
	ReleaseDate string `json:"releaseDate"`
	MinVersion  string `json:"minVersion,omitempty"`
}

// fetchManifest issues the single GET against the configured manifest URL.
// Every failure here is recoverable: it is logged and surfaced as "no
// manifest" so a scheduled check can simply try again next tick.
func (u *NativeUpdater) fetchManifest(ctx context.Context) *UpdateInfo {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.manifestUrl, nil)
	if err != nil {
		u.log.Errorf("Could not create manifest request: %v", err)
		return nil
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	res, err := u.client.Do(req)
	if err != nil {
		u.log.Errorf("Could not fetch update manifest: %v", err)
		return nil
	}

	defer func() {
		if err := res.Body.Close(); err != nil {
			u.log.Warnf("Could not close manifest response body: %v", err)
		}
	}()

	if res.StatusCode != http.StatusOK {
		u.log.Errorf("Update manifest request returned status %d", res.StatusCode)
		return nil
	}

	info := &UpdateInfo{}
	if err := json.NewDecoder(res.Body).Decode(info); err != nil {
		u.log.Errorf("Could not parse update manifest: %v", err)
		return nil
	}

	return info
}
