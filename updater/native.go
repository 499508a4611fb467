package updater

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/go-errors/errors"
	"github.com/glowsign/signaged/connectivity"
)

// Config holds everything the native updater needs. Installer and transfer
// capability are resolved once here and never re-detected per call.
type Config struct {
	Version     Version
	ManifestUrl string
	// CacheDir is the scratch area for downloaded artifacts. Defaults to a
	// directory under the user cache dir.
	CacheDir  string
	AutoApply bool
	// Installer overrides the platform-resolved install bridge.
	Installer    Installer
	Connectivity connectivity.Reporter
	HTTPClient   *http.Client
	Logger       Logger
}

// NativeUpdater runs the full pipeline: scheduled manifest checks, version
// evaluation, artifact transfer into scratch storage and handover to the
// platform installer.
type NativeUpdater struct {
	version     Version
	manifestUrl string
	client      *http.Client
	installer   Installer
	transfer    transferStrategy
	store       *scratchStore
	autoApply   bool
	conn        connectivity.Reporter
	log         Logger

	mtx          sync.Mutex
	updates      map[string]*Update
	clients      map[string]map[uint32]*UpdateClient
	nextClientId uint32
	nextUpdateId uint32
	armed        bool

	// checkMtx serializes scheduled checks; a tick that fires while a
	// previous check is still running is skipped.
	checkMtx sync.Mutex

	listenerMtx       sync.Mutex
	onUpdateAvailable func(info *UpdateInfo)
}

// Compile time check for protocol compatibility
var _ Updater = (*NativeUpdater)(nil)

func NewNativeUpdater(config *Config) (*NativeUpdater, error) {
	if config.ManifestUrl == "" {
		return nil, errors.New("manifest URL is required")
	}

	u := &NativeUpdater{
		version:     config.Version,
		manifestUrl: config.ManifestUrl,
		autoApply:   config.AutoApply,
		conn:        config.Connectivity,
		updates:     make(map[string]*Update),
		clients:     make(map[string]map[uint32]*UpdateClient),
	}

	if config.Logger != nil {
		u.log = config.Logger
	} else {
		u.log = noopLogger{}
	}

	dir := config.CacheDir
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			base = os.TempDir()
		}
		dir = filepath.Join(base, "signaged", "updates")
	}

	store, err := newScratchStore(dir)
	if err != nil {
		return nil, err
	}
	u.store = store

	if config.HTTPClient != nil {
		u.client = config.HTTPClient
	} else {
		u.client = &http.Client{Timeout: 15 * time.Minute}
	}

	if config.Installer != nil {
		u.installer = config.Installer
	} else {
		u.installer = platformInstaller()
	}

	// Pick the transfer strategy once. Streaming writes are preferred;
	// if the scratch store can't take them, fall back to the buffered
	// transfer with its encoded write path.
	if store.streamable() {
		u.transfer = newStreamTransfer(u.client, store, u.log)
		u.log.Debugf("Using streaming artifact transfer")
	} else {
		u.transfer = newBufferedTransfer(u.client, store, u.log)
		u.log.Debugf("Using buffered artifact transfer")
	}

	return u, nil
}

func (u *NativeUpdater) GetVersion() Version {
	return u.version
}

func (u *NativeUpdater) SupportsUpdates() bool {
	return true
}

// CheckForUpdates fetches the manifest and decides whether it supersedes
// the running build. Network and parse problems are recoverable and yield
// no update rather than an error.
func (u *NativeUpdater) CheckForUpdates(ctx context.Context) (*UpdateInfo, error) {
	info := u.fetchManifest(ctx)
	if info == nil {
		return nil, nil
	}

	if !IsNewer(info.VersionCode, u.version.Code) {
		u.log.Debugf("Manifest version code %d does not supersede running code %d",
			info.VersionCode, u.version.Code)
		return nil, nil
	}

	u.log.Infof("Update %v (code %d) is available", info.Version, info.VersionCode)

	return info, nil
}

// DownloadAndInstall runs one complete transfer and handover synchronously.
// The installer bridge's error, if any, propagates unchanged.
func (u *NativeUpdater) DownloadAndInstall(ctx context.Context, url string, onProgress ProgressFunc) (string, error) {
	path, err := u.transfer.fetch(ctx, url, onProgress)
	if err != nil {
		return "", err
	}

	u.log.Infof("Downloaded artifact to %v", path)

	if err := u.installer.Install(path); err != nil {
		return "", err
	}

	return path, nil
}

// StartUpdate kicks off an asynchronous download-and-install attempt whose
// events can be observed through SubscribeUpdate.
func (u *NativeUpdater) StartUpdate(url string) (*Update, error) {
	u.mtx.Lock()

	u.nextUpdateId++
	update := &Update{
		Id:      strconv.FormatUint(uint64(u.nextUpdateId), 10),
		Started: time.Now(),
		Url:     url,
		State:   StateStarted,
	}
	u.updates[update.Id] = update
	u.clients[update.Id] = make(map[uint32]*UpdateClient)

	snapshot := *update
	u.mtx.Unlock()

	u.log.Infof("Starting update %v from %v", update.Id, url)

	go u.runUpdate(update)

	return &snapshot, nil
}

func (u *NativeUpdater) runUpdate(update *Update) {
	u.setState(update, StateDownloading)

	path, err := u.transfer.fetch(context.Background(), update.Url, func(percent int) {
		u.setProgress(update, percent)
	})
	if err != nil {
		u.failUpdate(update, err)
		return
	}

	u.log.Infof("Downloaded artifact for update %v to %v", update.Id, path)

	u.setState(update, StateInstalling)

	if err := u.installer.Install(path); err != nil {
		u.failUpdate(update, err)
		return
	}

	u.setState(update, StateCompleted)
	u.closeClients(update.Id)

	u.log.Infof("Update %v completed", update.Id)
}

func (u *NativeUpdater) setState(update *Update, state State) {
	u.mtx.Lock()
	update.State = state
	snapshot := *update
	u.mtx.Unlock()

	u.notifyClients(&snapshot)
}

func (u *NativeUpdater) setProgress(update *Update, percent int) {
	u.mtx.Lock()
	update.Progress = uint8(percent)
	snapshot := *update
	u.mtx.Unlock()

	u.notifyClients(&snapshot)
}

func (u *NativeUpdater) failUpdate(update *Update, err error) {
	u.log.Errorf("Update %v failed: %v", update.Id, err)

	u.mtx.Lock()
	update.State = StateFailed
	update.Reason = err.Error()
	snapshot := *update
	u.mtx.Unlock()

	u.notifyClients(&snapshot)
	u.closeClients(update.Id)
}

func (u *NativeUpdater) notifyClients(snapshot *Update) {
	u.mtx.Lock()
	clients := make([]*UpdateClient, 0, len(u.clients[snapshot.Id]))
	for _, client := range u.clients[snapshot.Id] {
		clients = append(clients, client)
	}
	u.mtx.Unlock()

	for _, client := range clients {
		select {
		case client.Update <- snapshot:
		default:
			// A slow consumer only misses an intermediate event; the
			// closed channel still signals the end of the attempt.
		}
	}
}

func (u *NativeUpdater) closeClients(id string) {
	u.mtx.Lock()
	clients := u.clients[id]
	delete(u.clients, id)
	u.mtx.Unlock()

	for _, client := range clients {
		close(client.Update)
	}
}

func (u *NativeUpdater) SubscribeUpdate(id string) (*UpdateClient, error) {
	u.mtx.Lock()

	update, ok := u.updates[id]
	if !ok {
		u.mtx.Unlock()
		return nil, nil
	}

	u.nextClientId++
	client := &UpdateClient{
		Update:   make(chan *Update, 8),
		Id:       u.nextClientId,
		updateId: id,
		updater:  u,
	}

	snapshot := *update
	_, active := u.clients[id]
	if active {
		u.clients[id][client.Id] = client
	}
	u.mtx.Unlock()

	client.Update <- &snapshot

	// The attempt already settled, so the snapshot is all there is.
	if !active {
		close(client.Update)
	}

	return client, nil
}

func (u *NativeUpdater) UnsubscribeUpdate(client *UpdateClient) error {
	u.mtx.Lock()
	defer u.mtx.Unlock()

	clients, ok := u.clients[client.updateId]
	if !ok {
		return nil
	}

	if _, ok := clients[client.Id]; ok {
		delete(clients, client.Id)
		close(client.Update)
	}

	return nil
}

// SetOnUpdateAvailable registers the listener notified when a scheduled
// check discovers a superseding release.
func (u *NativeUpdater) SetOnUpdateAvailable(fn func(info *UpdateInfo)) {
	u.listenerMtx.Lock()
	defer u.listenerMtx.Unlock()

	u.onUpdateAvailable = fn
}

func (u *NativeUpdater) notifyUpdateAvailable(info *UpdateInfo) {
	u.listenerMtx.Lock()
	fn := u.onUpdateAvailable
	u.listenerMtx.Unlock()

	if fn != nil {
		fn(info)
	}
}

// ScheduleChecks triggers one immediate check and then re-checks on a fixed
// period for the lifetime of the process. Arming is idempotent.
func (u *NativeUpdater) ScheduleChecks(interval time.Duration) {
	u.mtx.Lock()
	if u.armed {
		u.mtx.Unlock()
		u.log.Warnf("Update checks are already scheduled")
		return
	}
	u.armed = true
	u.mtx.Unlock()

	u.log.Infof("Scheduling update checks every %v", interval)

	go func() {
		u.runScheduledCheck()

		ticker := time.NewTicker(interval)
		for range ticker.C {
			u.runScheduledCheck()
		}
	}()
}

func (u *NativeUpdater) runScheduledCheck() {
	if !u.checkMtx.TryLock() {
		u.log.Debugf("Skipping update check, a previous check is still running")
		return
	}
	defer u.checkMtx.Unlock()

	if u.conn != nil && u.conn.CurrentState() != connectivity.Online {
		u.log.Debugf("Skipping update check while offline")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	info, err := u.CheckForUpdates(ctx)
	if err != nil || info == nil {
		return
	}

	u.notifyUpdateAvailable(info)

	if !info.Mandatory && !u.autoApply {
		return
	}

	if u.hasActiveUpdate() {
		u.log.Debugf("Not starting update, another attempt is still in flight")
		return
	}

	if _, err := u.StartUpdate(info.DownloadUrl); err != nil {
		u.log.Errorf("Could not start update: %v", err)
	}
}

func (u *NativeUpdater) hasActiveUpdate() bool {
	u.mtx.Lock()
	defer u.mtx.Unlock()

	return len(u.clients) > 0
}
