package updater

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glowsign/signaged/connectivity"
	"github.com/stretchr/testify/require"
)

// fakeInstaller records handed-over artifact locations instead of touching
// the running binary.
type fakeInstaller struct {
	mtx   sync.Mutex
	paths []string
	err   error
}

func (f *fakeInstaller) Install(path string) error {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	f.paths = append(f.paths, path)

	return f.err
}

func (f *fakeInstaller) installed() []string {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	out := make([]string, len(f.paths))
	copy(out, f.paths)

	return out
}

type fakeReporter struct {
	state connectivity.State
}

func (f *fakeReporter) CurrentState() connectivity.State {
	return f.state
}

func (f *fakeReporter) WaitForStateChange(ctx context.Context, last connectivity.State) bool {
	<-ctx.Done()
	return false
}

func collectEvents(t *testing.T, client *UpdateClient) []*Update {
	t.Helper()

	var events []*Update

	for {
		select {
		case event, ok := <-client.Update:
			if !ok {
				return events
			}
			events = append(events, event)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for update events")
		}
	}
}

func TestStartUpdate_Completes(t *testing.T) {
	payload := []byte("new release payload")
	server := artifactServer(t, payload)

	installer := &fakeInstaller{}

	u, err := NewNativeUpdater(&Config{
		Version:     Version{Name: "1.0.0", Code: 9},
		ManifestUrl: server.URL,
		CacheDir:    t.TempDir(),
		Installer:   installer,
		HTTPClient:  server.Client(),
	})
	require.NoError(t, err)

	update, err := u.StartUpdate(server.URL)
	require.NoError(t, err)
	require.Equal(t, "1", update.Id)
	require.Equal(t, server.URL, update.Url)

	client, err := u.SubscribeUpdate(update.Id)
	require.NoError(t, err)
	require.NotNil(t, client)

	events := collectEvents(t, client)
	require.NotEmpty(t, events)

	last := events[len(events)-1]
	require.Equal(t, StateCompleted, last.State)
	require.Empty(t, last.Reason)

	paths := installer.installed()
	require.Len(t, paths, 1)

	written, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	require.Equal(t, payload, written)
}

func TestStartUpdate_TransferFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	installer := &fakeInstaller{}

	u, err := NewNativeUpdater(&Config{
		Version:     Version{Name: "1.0.0", Code: 9},
		ManifestUrl: server.URL,
		CacheDir:    t.TempDir(),
		Installer:   installer,
		HTTPClient:  server.Client(),
	})
	require.NoError(t, err)

	update, err := u.StartUpdate(server.URL)
	require.NoError(t, err)

	client, err := u.SubscribeUpdate(update.Id)
	require.NoError(t, err)

	events := collectEvents(t, client)
	require.NotEmpty(t, events)

	last := events[len(events)-1]
	require.Equal(t, StateFailed, last.State)
	require.Contains(t, last.Reason, ErrTransferStatus.Error())

	// No handover happens for a failed transfer.
	require.Empty(t, installer.installed())
}

func TestSubscribeUpdate_UnknownId(t *testing.T) {
	server := artifactServer(t, []byte("payload"))

	u, err := NewNativeUpdater(&Config{
		Version:     Version{Name: "1.0.0", Code: 9},
		ManifestUrl: server.URL,
		CacheDir:    t.TempDir(),
		Installer:   &fakeInstaller{},
	})
	require.NoError(t, err)

	client, err := u.SubscribeUpdate("no-such-update")
	require.NoError(t, err)
	require.Nil(t, client)
}

func TestSubscribeUpdate_AfterSettled(t *testing.T) {
	payload := []byte("payload")
	server := artifactServer(t, payload)

	installer := &fakeInstaller{}

	u, err := NewNativeUpdater(&Config{
		Version:     Version{Name: "1.0.0", Code: 9},
		ManifestUrl: server.URL,
		CacheDir:    t.TempDir(),
		Installer:   installer,
		HTTPClient:  server.Client(),
	})
	require.NoError(t, err)

	update, err := u.StartUpdate(server.URL)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(installer.installed()) == 1
	}, 5*time.Second, 10*time.Millisecond)

	// Wait for the attempt to fully settle before the late subscription.
	require.Eventually(t, func() bool {
		return !u.hasActiveUpdate()
	}, 5*time.Second, 10*time.Millisecond)

	client, err := u.SubscribeUpdate(update.Id)
	require.NoError(t, err)
	require.NotNil(t, client)

	events := collectEvents(t, client)
	require.Len(t, events, 1)
	require.Equal(t, StateCompleted, events[0].State)
}

func TestScheduleChecks_Periodic(t *testing.T) {
	var hits int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(`{"version": "1.0.0", "versionCode": 9}`))
	}))
	defer server.Close()

	u, err := NewNativeUpdater(&Config{
		Version:     Version{Name: "1.0.0", Code: 9},
		ManifestUrl: server.URL,
		CacheDir:    t.TempDir(),
		Installer:   &fakeInstaller{},
		HTTPClient:  server.Client(),
	})
	require.NoError(t, err)

	u.ScheduleChecks(20 * time.Millisecond)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&hits) >= 3
	}, 5*time.Second, 10*time.Millisecond)
}

func TestScheduledCheck_MandatoryAutoInstalls(t *testing.T) {
	payload := []byte("mandatory release")
	artifacts := artifactServer(t, payload)

	manifests := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"version": "1.1.0",
			"versionCode": 10,
			"downloadUrl": "` + artifacts.URL + `",
			"mandatory": true
		}`))
	}))
	defer manifests.Close()

	installer := &fakeInstaller{}

	u, err := NewNativeUpdater(&Config{
		Version:     Version{Name: "1.0.0", Code: 9},
		ManifestUrl: manifests.URL,
		CacheDir:    t.TempDir(),
		Installer:   installer,
	})
	require.NoError(t, err)

	var notified int32
	u.SetOnUpdateAvailable(func(info *UpdateInfo) {
		require.Equal(t, int64(10), info.VersionCode)
		atomic.AddInt32(&notified, 1)
	})

	u.runScheduledCheck()

	require.Eventually(t, func() bool {
		return len(installer.installed()) == 1
	}, 5*time.Second, 10*time.Millisecond)

	require.Equal(t, int32(1), atomic.LoadInt32(&notified))
}

func TestScheduledCheck_OptionalWithoutAutoApply(t *testing.T) {
	manifests := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"version": "1.1.0",
			"versionCode": 10,
			"downloadUrl": "https://updates.example.com/signaged.bin",
			"mandatory": false
		}`))
	}))
	defer manifests.Close()

	installer := &fakeInstaller{}

	u, err := NewNativeUpdater(&Config{
		Version:     Version{Name: "1.0.0", Code: 9},
		ManifestUrl: manifests.URL,
		CacheDir:    t.TempDir(),
		Installer:   installer,
	})
	require.NoError(t, err)

	var available *UpdateInfo
	var mtx sync.Mutex
	u.SetOnUpdateAvailable(func(info *UpdateInfo) {
		mtx.Lock()
		defer mtx.Unlock()
		available = info
	})

	u.runScheduledCheck()

	mtx.Lock()
	require.NotNil(t, available)
	mtx.Unlock()

	// The listener fires, but nothing installs without the auto apply policy.
	require.Empty(t, installer.installed())
	require.False(t, u.hasActiveUpdate())
}

func TestScheduledCheck_SkippedOffline(t *testing.T) {
	var hits int32

	manifests := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer manifests.Close()

	u, err := NewNativeUpdater(&Config{
		Version:      Version{Name: "1.0.0", Code: 9},
		ManifestUrl:  manifests.URL,
		CacheDir:     t.TempDir(),
		Installer:    &fakeInstaller{},
		Connectivity: &fakeReporter{state: connectivity.Offline},
	})
	require.NoError(t, err)

	u.runScheduledCheck()

	require.Equal(t, int32(0), atomic.LoadInt32(&hits))
}
