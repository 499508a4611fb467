package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

type getBroadcastEventsEvent struct {
	Id          string `json:"id"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	VersionCode int64  `json:"versionCode,omitempty"`
	Urgent      bool   `json:"urgent,omitempty"`
}

func (a *Api) handleGetBroadcastEvents() http.HandlerFunc {
	upgrader := &websocket.Upgrader{}

	return func(w http.ResponseWriter, r *http.Request) {
		client := a.kiosk.SubscribeAnnouncements()
		if client == nil {
			a.jsonError(w, "No announcement stream configured", http.StatusNotFound)
			return
		}

		defer client.Cancel()

		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			a.jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}

		done := make(chan struct{})

		// read pump
		go func() {
			defer c.Close()
			defer close(done)

			c.SetReadLimit(512)
			c.SetReadDeadline(time.Now().Add(60 * time.Second))
			c.SetPongHandler(func(string) error {
				c.SetReadDeadline(time.Now().Add(60 * time.Second))
				return nil
			})

			for {
				_, _, err := c.ReadMessage()
				if err != nil {
					if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
						a.log.Errorf("unexpected websocket closure: %v", err)
					}
					break
				}
			}
		}()

		// write pump
		func() {
			defer c.Close()

			ticker := time.NewTicker(54 * time.Second)
			defer ticker.Stop()

			for {
				select {
				case announcement, ok := <-client.Announcements:
					c.SetWriteDeadline(time.Now().Add(10 * time.Second))

					if !ok {
						c.WriteMessage(websocket.CloseMessage, []byte{})
						return
					}

					err := c.WriteJSON(&getBroadcastEventsEvent{
						Id:          announcement.Id,
						Title:       announcement.Title,
						Body:        announcement.Body,
						VersionCode: announcement.VersionCode,
						Urgent:      announcement.Urgent,
					})
					if err != nil {
						return
					}
				case <-ticker.C:
					c.SetWriteDeadline(time.Now().Add(10 * time.Second))
					if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()
	}
}
