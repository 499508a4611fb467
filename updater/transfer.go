package updater

import (
	"bytes"
	"context"
	"encoding/base64"
	stderrors "errors"
	"io"
	"net"
	"net/http"
	"sync"

	"github.com/go-errors/errors"
)

const userAgent = "signaged-updater"

// Each transfer failure class carries its own user-facing message, so the
// caller can present the reason without unpacking anything.
var ErrUnsupportedPlatform = errors.New("updates are not supported on this platform")
var ErrTransferStatus = errors.New("update server rejected the download")
var ErrTransferNetwork = errors.New("network failure during download")
var ErrTransferTimeout = errors.New("download timed out")
var ErrTransferConversion = errors.New("could not convert downloaded payload")

// ProgressFunc receives download progress as a percentage from 0 to 100.
type ProgressFunc func(percent int)

// progressRelay is the transport's listener registry. A caller's listener
// is added before a transfer starts and removed when that transfer settles,
// success and failure alike, so its lifetime is bounded to exactly one
// attempt.
type progressRelay struct {
	mtx       sync.Mutex
	nextId    uint32
	listeners map[uint32]ProgressFunc
}

func newProgressRelay() *progressRelay {
	return &progressRelay{
		listeners: make(map[uint32]ProgressFunc),
	}
}

func (r *progressRelay) add(fn ProgressFunc) uint32 {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	id := r.nextId
	r.nextId++
	r.listeners[id] = fn

	return id
}

func (r *progressRelay) remove(id uint32) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	delete(r.listeners, id)
}

func (r *progressRelay) size() int {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	return len(r.listeners)
}

func (r *progressRelay) emit(percent int) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	for _, fn := range r.listeners {
		fn(percent)
	}
}

// progressCounter converts (transferred, total) byte tuples into percentage
// events for one transfer attempt. Nothing is emitted while the total is
// unknown, and repeated identical percentages are collapsed.
type progressCounter struct {
	relay       *progressRelay
	total       int64
	transferred int64
	lastPercent int
}

func newProgressCounter(relay *progressRelay, total int64) *progressCounter {
	return &progressCounter{
		relay:       relay,
		total:       total,
		lastPercent: -1,
	}
}

func (c *progressCounter) count(n int) {
	c.transferred += int64(n)

	if c.total <= 0 {
		return
	}

	percent := int(c.transferred * 100 / c.total)
	if percent > 100 {
		percent = 100
	}

	if percent == c.lastPercent {
		return
	}
	c.lastPercent = percent

	c.relay.emit(percent)
}

// transferStrategy downloads an artifact into scratch storage and returns
// its local location. Exactly one strategy is picked per process.
type transferStrategy interface {
	fetch(ctx context.Context, url string, onProgress ProgressFunc) (string, error)
}

// streamTransfer copies the response body directly into a scratch file as
// it arrives. This is the primary strategy.
type streamTransfer struct {
	client *http.Client
	store  *scratchStore
	relay  *progressRelay
	log    Logger
}

func newStreamTransfer(client *http.Client, store *scratchStore, log Logger) *streamTransfer {
	return &streamTransfer{
		client: client,
		store:  store,
		relay:  newProgressRelay(),
		log:    log,
	}
}

func (t *streamTransfer) fetch(ctx context.Context, url string, onProgress ProgressFunc) (string, error) {
	if onProgress != nil {
		id := t.relay.add(onProgress)
		defer t.relay.remove(id)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.Errorf("Could not create download request: %v", err)
	}

	req.Header.Set("User-Agent", userAgent)

	res, err := t.client.Do(req)
	if err != nil {
		return "", transferRequestError(err)
	}

	defer func() {
		if err := res.Body.Close(); err != nil {
			t.log.Warnf("Could not close download body: %v", err)
		}
	}()

	if res.StatusCode != http.StatusOK {
		return "", errors.Errorf("%v: status %d", ErrTransferStatus, res.StatusCode)
	}

	name := t.store.nextName()

	out, err := t.store.create(name)
	if err != nil {
		return "", errors.Errorf("Could not create artifact file: %v", err)
	}

	counter := newProgressCounter(t.relay, res.ContentLength)

	buf := make([]byte, 32*1024)
	for {
		n, readErr := res.Body.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				out.Close()
				t.discard(name)
				return "", errors.Errorf("Could not write artifact: %v", writeErr)
			}
			counter.count(n)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			out.Close()
			t.discard(name)
			return "", transferRequestError(readErr)
		}
	}

	if err := out.Close(); err != nil {
		t.discard(name)
		return "", errors.Errorf("Could not close artifact file: %v", err)
	}

	// The write call itself doesn't yield a usable location, so resolve it
	// through the store that performed the write.
	return t.store.resolve(name), nil
}

func (t *streamTransfer) discard(name string) {
	if err := t.store.remove(name); err != nil {
		t.log.Warnf("Could not remove partial artifact %v: %v", name, err)
	}
}

// bufferedTransfer holds the whole payload in memory, then hands it to the
// scratch store as an encoded string. This is the fallback strategy for
// stores without a streaming write primitive; its progress contract is
// identical to the streaming one.
type bufferedTransfer struct {
	client *http.Client
	store  *scratchStore
	relay  *progressRelay
	log    Logger
	// maxPayload bounds the in-memory buffer.
	maxPayload int64
}

const defaultMaxPayload = 512 * 1024 * 1024

func newBufferedTransfer(client *http.Client, store *scratchStore, log Logger) *bufferedTransfer {
	return &bufferedTransfer{
		client:     client,
		store:      store,
		relay:      newProgressRelay(),
		log:        log,
		maxPayload: defaultMaxPayload,
	}
}

func (t *bufferedTransfer) fetch(ctx context.Context, url string, onProgress ProgressFunc) (string, error) {
	if onProgress != nil {
		id := t.relay.add(onProgress)
		defer t.relay.remove(id)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.Errorf("Could not create download request: %v", err)
	}

	req.Header.Set("User-Agent", userAgent)

	res, err := t.client.Do(req)
	if err != nil {
		return "", transferRequestError(err)
	}

	defer func() {
		if err := res.Body.Close(); err != nil {
			t.log.Warnf("Could not close download body: %v", err)
		}
	}()

	if res.StatusCode != http.StatusOK {
		return "", errors.Errorf("%v: status %d", ErrTransferStatus, res.StatusCode)
	}

	counter := newProgressCounter(t.relay, res.ContentLength)

	var payload bytes.Buffer

	buf := make([]byte, 32*1024)
	for {
		n, readErr := res.Body.Read(buf)
		if n > 0 {
			if int64(payload.Len()+n) > t.maxPayload {
				return "", errors.Errorf("%v: payload exceeds %d bytes", ErrTransferConversion, t.maxPayload)
			}
			payload.Write(buf[:n])
			counter.count(n)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", transferRequestError(readErr)
		}
	}

	encoded := base64.StdEncoding.EncodeToString(payload.Bytes())

	name := t.store.nextName()
	if err := t.store.writeEncoded(name, encoded); err != nil {
		return "", errors.Errorf("%v: %v", ErrTransferConversion, err)
	}

	return t.store.resolve(name), nil
}

// transferRequestError distinguishes a timed out transfer from any other
// network-level failure.
func transferRequestError(err error) error {
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return errors.Errorf("%v: %v", ErrTransferTimeout, err)
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.Errorf("%v: %v", ErrTransferTimeout, err)
	}

	return errors.Errorf("%v: %v", ErrTransferNetwork, err)
}
