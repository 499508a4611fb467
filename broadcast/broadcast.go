package broadcast

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/glowsign/signaged/updater"
)

const retryDelay = 5 * time.Second

type Config struct {
	// Url of the announcement stream. An empty Url disables the listener.
	Url string
	// VersionCode of the running build, used to gate announcements.
	VersionCode int64
	Logger      Logger
}

// Listener maintains a websocket subscription to the announcement stream
// and fans incoming announcements out to local subscribers. Announcements
// gated on a version code newer than the running build are suppressed.
type Listener struct {
	url         string
	versionCode int64
	dialer      *websocket.Dialer
	log         Logger

	mtx          sync.Mutex
	clients      map[uint32]*Client
	nextClientId uint32

	done chan struct{}
}

func NewListener(config *Config) *Listener {
	listener := &Listener{
		url:         config.Url,
		versionCode: config.VersionCode,
		dialer:      websocket.DefaultDialer,
		clients:     make(map[uint32]*Client),
		done:        make(chan struct{}),
	}

	if config.Logger != nil {
		listener.log = config.Logger
	} else {
		listener.log = noopLogger{}
	}

	return listener
}

func (l *Listener) Start() error {
	if l.url == "" {
		l.log.Infof("No announcement stream configured, not listening.")
		return nil
	}

	go l.run()

	return nil
}

func (l *Listener) Stop() error {
	close(l.done)
	return nil
}

func (l *Listener) run() {
	for {
		select {
		case <-l.done:
			return
		default:
		}

		conn, _, err := l.dialer.Dial(l.url, nil)
		if err != nil {
			l.log.Warnf("Could not connect to announcement stream: %v", err)
			l.sleep(retryDelay)
			continue
		}

		l.log.Infof("Connected to announcement stream at %v", l.url)

		l.readPump(conn)
		l.sleep(retryDelay)
	}
}

func (l *Listener) sleep(d time.Duration) {
	select {
	case <-l.done:
	case <-time.After(d):
	}
}

func (l *Listener) readPump(conn *websocket.Conn) {
	defer conn.Close()

	for {
		select {
		case <-l.done:
			return
		default:
		}

		env := envelope{}
		if err := conn.ReadJSON(&env); err != nil {
			l.log.Warnf("Lost announcement stream: %v", err)
			return
		}

		switch env.Type {
		case announcementMessage:
			announcement := &Announcement{}
			if err := json.Unmarshal(env.Message, announcement); err != nil {
				l.log.Errorf("Could not parse announcement: %v", err)
				continue
			}
			l.deliver(announcement)
		case pingMessage:
		default:
			l.log.Debugf("Ignoring message of unknown type %v", env.Type)
		}
	}
}

func (l *Listener) deliver(announcement *Announcement) {
	if l.gated(announcement) {
		l.log.Debugf("Suppressing announcement %v gated on version code %d (running %d)",
			announcement.Id, announcement.VersionCode, l.versionCode)
		return
	}

	l.mtx.Lock()
	clients := make([]*Client, 0, len(l.clients))
	for _, client := range l.clients {
		clients = append(clients, client)
	}
	l.mtx.Unlock()

	for _, client := range clients {
		select {
		case client.Announcements <- announcement:
		default:
			l.log.Debugf("Dropping announcement for slow client %d", client.Id)
		}
	}
}

// gated reports whether the announcement's version gate excludes the
// running build. The comparison is the same primitive that decides update
// availability.
func (l *Listener) gated(announcement *Announcement) bool {
	if announcement.VersionCode == 0 {
		return false
	}

	return updater.IsNewer(announcement.VersionCode, l.versionCode)
}

func (l *Listener) Subscribe() *Client {
	client := &Client{
		Announcements: make(chan *Announcement, 8),
		listener:      l,
	}

	l.mtx.Lock()
	l.nextClientId++
	client.Id = l.nextClientId
	l.clients[client.Id] = client
	l.mtx.Unlock()

	return client
}

func (l *Listener) unsubscribe(client *Client) {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	if _, ok := l.clients[client.Id]; ok {
		delete(l.clients, client.Id)
		close(client.Announcements)
	}
}
