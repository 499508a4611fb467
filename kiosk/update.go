package kiosk

import (
	"context"

	"github.com/glowsign/signaged/updater"
)

func (k *Kiosk) GetVersion() updater.Version {
	return k.updater.GetVersion()
}

func (k *Kiosk) SupportsUpdates() bool {
	return k.updater.SupportsUpdates()
}

func (k *Kiosk) CheckForUpdates(ctx context.Context) (*updater.UpdateInfo, error) {
	return k.updater.CheckForUpdates(ctx)
}

func (k *Kiosk) Update(url string) (*updater.Update, error) {
	return k.updater.StartUpdate(url)
}

func (k *Kiosk) SubscribeUpdate(id string) (*updater.UpdateClient, error) {
	return k.updater.SubscribeUpdate(id)
}

// AvailableUpdate returns the most recent update a scheduled check has
// discovered, or nil.
func (k *Kiosk) AvailableUpdate() *updater.UpdateInfo {
	k.mtx.Lock()
	defer k.mtx.Unlock()

	return k.availableInfo
}
