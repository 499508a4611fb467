package updater

import (
	"context"
	"time"
)

// NoopUpdater serves platforms that cannot install updates. Checking for
// updates is a silent no-op that never touches the network, while starting
// an update is an explicit failure.
type NoopUpdater struct {
	version Version
}

// Compile time check for protocol compatibility
var _ Updater = (*NoopUpdater)(nil)

func NewNoopUpdater(version Version) *NoopUpdater {
	return &NoopUpdater{
		version: version,
	}
}

func (n *NoopUpdater) GetVersion() Version {
	return n.version
}

func (n *NoopUpdater) SupportsUpdates() bool {
	return false
}

func (n *NoopUpdater) CheckForUpdates(ctx context.Context) (*UpdateInfo, error) {
	return nil, nil
}

func (n *NoopUpdater) StartUpdate(url string) (*Update, error) {
	return nil, ErrUnsupportedPlatform
}

func (n *NoopUpdater) ScheduleChecks(interval time.Duration) {
}

func (n *NoopUpdater) SetOnUpdateAvailable(fn func(info *UpdateInfo)) {
}

func (n *NoopUpdater) SubscribeUpdate(id string) (*UpdateClient, error) {
	return nil, ErrUnsupportedPlatform
}

func (n *NoopUpdater) UnsubscribeUpdate(client *UpdateClient) error {
	return ErrUnsupportedPlatform
}
