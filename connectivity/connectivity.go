package connectivity

import (
	"context"
	"net/http"
	"time"
)

type State int

const (
	Offline State = iota
	Online
)

func (s State) String() string {
	switch s {
	case Offline:
		return "OFFLINE"
	case Online:
		return "ONLINE"
	default:
		return "INVALID STATE"
	}
}

type Reporter interface {
	CurrentState() State
	WaitForStateChange(context.Context, State) bool
}

// HttpReporter decides connectivity by probing a single URL. A response of
// any status below 500 counts as online; a transport error or a server
// error counts as offline.
type HttpReporter struct {
	client *http.Client
	url    string
}

func NewHttpReporter(url string) *HttpReporter {
	return &HttpReporter{
		client: &http.Client{Timeout: 10 * time.Second},
		url:    url,
	}
}

func (r *HttpReporter) CurrentState() State {
	req, err := http.NewRequest(http.MethodHead, r.url, nil)
	if err != nil {
		return Offline
	}

	res, err := r.client.Do(req)
	if err != nil {
		return Offline
	}

	res.Body.Close()

	if res.StatusCode >= http.StatusInternalServerError {
		return Offline
	}

	return Online
}

// WaitForStateChange polls until the state differs from last or the context
// is done. It reports whether a change was observed.
func (r *HttpReporter) WaitForStateChange(ctx context.Context, last State) bool {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if r.CurrentState() != last {
				return true
			}
		}
	}
}
