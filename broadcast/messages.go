package broadcast

import "encoding/json"

type messageType string

const (
	announcementMessage messageType = "announcement"
	pingMessage         messageType = "ping"
)

type envelope struct {
	Type    messageType     `json:"type"`
	Message json.RawMessage `json:"message"`
}

// Announcement is a realtime message pushed to all connected clients. When
// VersionCode is set, the announcement targets builds that already run that
// release; builds below the gate never see it.
type Announcement struct {
	Id          string `json:"id"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	VersionCode int64  `json:"versionCode,omitempty"`
	Urgent      bool   `json:"urgent,omitempty"`
}
