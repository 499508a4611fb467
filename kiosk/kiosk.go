package kiosk

import (
	"net"
	"sync"
	"time"

	"github.com/go-errors/errors"
	"github.com/glowsign/signaged/broadcast"
	"github.com/glowsign/signaged/kioskdb"
	"github.com/glowsign/signaged/ringlog"
	"github.com/glowsign/signaged/updater"
)

type Config struct {
	DB        *kioskdb.DB
	Updater   updater.Updater
	Broadcast *broadcast.Listener
	RingLog   *ringlog.Log
	// CheckInterval is the update check cadence; zero disables scheduling.
	CheckInterval time.Duration
	Listen        string
	Logger        Logger
	Api           Api
}

// Kiosk is the central controller of the signage client. It owns the update
// pipeline, the announcement stream and the API the rest of the
// application talks to.
type Kiosk struct {
	db            *kioskdb.DB
	updater       updater.Updater
	broadcast     *broadcast.Listener
	ringLog       *ringlog.Log
	checkInterval time.Duration
	listen        string
	log           Logger
	api           Api
	done          chan struct{}
	apiListeners  []net.Listener

	mtx           sync.Mutex
	availableInfo *updater.UpdateInfo
}

func New(config *Config) *Kiosk {
	kiosk := &Kiosk{
		db:            config.DB,
		updater:       config.Updater,
		broadcast:     config.Broadcast,
		ringLog:       config.RingLog,
		checkInterval: config.CheckInterval,
		listen:        config.Listen,
		api:           config.Api,
		done:          make(chan struct{}),
	}

	if config.Logger != nil {
		kiosk.log = config.Logger
	} else {
		kiosk.log = noopLogger{}
	}

	config.Api.SetKiosk(kiosk)

	return kiosk
}

// Run serves the API and blocks until the kiosk is shut down.
func (k *Kiosk) Run() error {
	k.updater.SetOnUpdateAvailable(func(info *updater.UpdateInfo) {
		k.mtx.Lock()
		k.availableInfo = info
		k.mtx.Unlock()

		k.log.Infof("Update %v (code %d) is available for download", info.Version, info.VersionCode)
	})

	if k.broadcast != nil {
		if err := k.broadcast.Start(); err != nil {
			k.log.Errorf("Could not start announcement listener: %v", err)
		}
	}

	if k.checkInterval > 0 {
		k.updater.ScheduleChecks(k.checkInterval)
	}

	lis, err := net.Listen("tcp", k.listen)
	if err != nil {
		return errors.Errorf("Api server unable to listen on %v", k.listen)
	}

	k.apiListeners = append(k.apiListeners, lis)

	k.log.Infof("Serving api on %v", k.listen)

	go func() {
		if err := k.api.Serve(lis); err != nil {
			k.log.Errorf("Could not serve api: %v", err)
		}
	}()

	<-k.done

	return nil
}

func (k *Kiosk) Shutdown() {
	for _, lis := range k.apiListeners {
		if err := lis.Close(); err != nil {
			k.log.Errorf("Could not close listener: %v", err)
		}
	}

	if k.broadcast != nil {
		if err := k.broadcast.Stop(); err != nil {
			k.log.Errorf("Could not stop announcement listener: %v", err)
		}
	}

	close(k.done)
}

func (k *Kiosk) GetName() (string, error) {
	name, err := k.db.GetName()
	if err != nil {
		return "", errors.Errorf("Failed getting name: %v", err)
	}

	return name, nil
}

func (k *Kiosk) SetName(name string) error {
	k.log.Infof("Setting name")

	if err := k.db.SetName(name); err != nil {
		return errors.Errorf("Failed setting name: %v", err)
	}

	return nil
}

// SubscribeAnnouncements returns a client on the version-gated announcement
// stream, or nil when no stream is configured.
func (k *Kiosk) SubscribeAnnouncements() *broadcast.Client {
	if k.broadcast == nil {
		return nil
	}

	return k.broadcast.Subscribe()
}

// RecentLogs returns the retained log entries, oldest first.
func (k *Kiosk) RecentLogs() []ringlog.Entry {
	if k.ringLog == nil {
		return nil
	}

	return k.ringLog.Entries()
}
