package updater

import (
	"context"
	"time"
)

type State = string

const StateStarted State = "started"
const StateDownloading State = "downloading"
const StateInstalling State = "installing"
const StateCompleted State = "completed"
const StateFailed State = "failed"

// Update describes one download-and-install attempt from start to its
// terminal state. Progress is a percentage between 0 and 100 and is only
// meaningful while the update is downloading.
type Update struct {
	Id       string
	Started  time.Time
	Url      string
	State    State
	Progress uint8
	// Reason carries the failure message when State is StateFailed.
	Reason string
}

type Updater interface {
	GetVersion() Version
	// SupportsUpdates reports whether this platform can install updates.
	SupportsUpdates() bool
	CheckForUpdates(ctx context.Context) (*UpdateInfo, error)
	StartUpdate(url string) (*Update, error)
	ScheduleChecks(interval time.Duration)
	SetOnUpdateAvailable(fn func(info *UpdateInfo))
	SubscribeUpdate(id string) (*UpdateClient, error)
	UnsubscribeUpdate(client *UpdateClient) error
}
