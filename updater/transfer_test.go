package updater

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *scratchStore {
	t.Helper()

	store, err := newScratchStore(t.TempDir())
	require.NoError(t, err)

	return store
}

// progressRecorder collects progress events from a transfer attempt.
type progressRecorder struct {
	mtx      sync.Mutex
	percents []int
}

func (p *progressRecorder) record(percent int) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	p.percents = append(p.percents, percent)
}

func (p *progressRecorder) recorded() []int {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	out := make([]int, len(p.percents))
	copy(out, p.percents)

	return out
}

func requireMonotonicTo100(t *testing.T, percents []int) {
	t.Helper()

	require.NotEmpty(t, percents)

	last := -1
	for _, percent := range percents {
		require.GreaterOrEqual(t, percent, last)
		require.LessOrEqual(t, percent, 100)
		last = percent
	}

	require.Equal(t, 100, percents[len(percents)-1])
}

func artifactServer(t *testing.T, payload []byte) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, userAgent, r.Header.Get("User-Agent"))

		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(payload)))
		w.Write(payload)
	}))
	t.Cleanup(server.Close)

	return server
}

func TestStreamTransfer_Download(t *testing.T) {
	payload := bytes.Repeat([]byte("signage"), 100*1024)
	server := artifactServer(t, payload)

	store := newTestStore(t)
	transfer := newStreamTransfer(server.Client(), store, noopLogger{})

	recorder := &progressRecorder{}

	path, err := transfer.fetch(context.Background(), server.URL, recorder.record)
	require.NoError(t, err)

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, payload, written)

	requireMonotonicTo100(t, recorder.recorded())

	// The listener's lifetime is bounded to the attempt.
	require.Equal(t, 0, transfer.relay.size())
}

func TestStreamTransfer_FailureMidBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Announce more than gets written so the client sees the
		// connection die mid-body.
		w.Header().Set("Content-Length", "4096")
		w.Write(make([]byte, 100))
	}))
	defer server.Close()

	store := newTestStore(t)
	transfer := newStreamTransfer(server.Client(), store, noopLogger{})

	recorder := &progressRecorder{}

	_, err := transfer.fetch(context.Background(), server.URL, recorder.record)
	require.Error(t, err)
	require.Contains(t, err.Error(), ErrTransferNetwork.Error())

	// Listener deregistered despite the failure.
	require.Equal(t, 0, transfer.relay.size())

	// The partial artifact was discarded.
	entries, err := os.ReadDir(store.dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestStreamTransfer_UniqueArtifactsPerAttempt(t *testing.T) {
	payload := []byte("artifact payload")
	server := artifactServer(t, payload)

	store := newTestStore(t)
	transfer := newStreamTransfer(server.Client(), store, noopLogger{})

	var wg sync.WaitGroup
	paths := make([]string, 2)
	errs := make([]error, 2)

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			paths[i], errs[i] = transfer.fetch(context.Background(), server.URL, nil)
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	require.NotEqual(t, paths[0], paths[1])

	for _, path := range paths {
		written, err := os.ReadFile(path)
		require.NoError(t, err)
		require.Equal(t, payload, written)
	}
}

func TestBufferedTransfer_Download(t *testing.T) {
	payload := bytes.Repeat([]byte{0x42, 0x13, 0x37}, 512*1024)
	server := artifactServer(t, payload)

	store := newTestStore(t)
	transfer := newBufferedTransfer(server.Client(), store, noopLogger{})

	recorder := &progressRecorder{}

	path, err := transfer.fetch(context.Background(), server.URL, recorder.record)
	require.NoError(t, err)

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, payload, written)

	requireMonotonicTo100(t, recorder.recorded())
	require.Equal(t, 0, transfer.relay.size())
}

func TestBufferedTransfer_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	store := newTestStore(t)
	transfer := newBufferedTransfer(server.Client(), store, noopLogger{})

	_, err := transfer.fetch(context.Background(), server.URL, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), ErrTransferStatus.Error())
	require.Contains(t, err.Error(), "status 404")
}

func TestBufferedTransfer_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	store := newTestStore(t)
	transfer := newBufferedTransfer(http.DefaultClient, store, noopLogger{})

	_, err := transfer.fetch(context.Background(), server.URL, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), ErrTransferNetwork.Error())
}

func TestBufferedTransfer_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	store := newTestStore(t)
	client := &http.Client{Timeout: 50 * time.Millisecond}
	transfer := newBufferedTransfer(client, store, noopLogger{})

	_, err := transfer.fetch(context.Background(), server.URL, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), ErrTransferTimeout.Error())
}

func TestBufferedTransfer_PayloadTooLarge(t *testing.T) {
	payload := make([]byte, 64*1024)
	server := artifactServer(t, payload)

	store := newTestStore(t)
	transfer := newBufferedTransfer(server.Client(), store, noopLogger{})
	transfer.maxPayload = 1024

	_, err := transfer.fetch(context.Background(), server.URL, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), ErrTransferConversion.Error())
}

func TestProgressCounter_DedupesAndClamps(t *testing.T) {
	relay := newProgressRelay()

	recorder := &progressRecorder{}
	id := relay.add(recorder.record)
	defer relay.remove(id)

	counter := newProgressCounter(relay, 100)
	counter.count(10)
	counter.count(0)
	counter.count(40)
	counter.count(40)
	counter.count(40) // overshoot past the announced total

	require.Equal(t, []int{10, 50, 90, 100}, recorder.recorded())
}

func TestProgressCounter_SilentWithoutTotal(t *testing.T) {
	relay := newProgressRelay()

	recorder := &progressRecorder{}
	id := relay.add(recorder.record)
	defer relay.remove(id)

	counter := newProgressCounter(relay, -1)
	counter.count(1024)
	counter.count(1024)

	require.Empty(t, recorder.recorded())
}
