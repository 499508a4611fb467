package updater

import (
	"encoding/base64"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/go-errors/errors"
)

// scratchStore manages the cache-tier staging area for downloaded
// artifacts. Names are synthesized per attempt so concurrent or repeated
// downloads never collide, and stale files can be reclaimed by wiping the
// directory without affecting anything persistent.
type scratchStore struct {
	dir string
}

func newScratchStore(dir string) (*scratchStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Errorf("Could not create scratch directory %v: %v", dir, err)
	}

	return &scratchStore{dir: dir}, nil
}

// nextName returns an artifact name unique to one transfer attempt.
func (s *scratchStore) nextName() string {
	return fmt.Sprintf("artifact-%d-%04x.bin", time.Now().UnixNano(), rand.Intn(0x10000))
}

// create opens a fresh artifact file for streaming writes.
func (s *scratchStore) create(name string) (*os.File, error) {
	return os.OpenFile(s.resolve(name), os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
}

// writeEncoded accepts a base64 payload, decodes it and writes it under
// name. The encoded form is the only representation this entry point takes.
func (s *scratchStore) writeEncoded(name string, encoded string) error {
	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return err
	}

	return os.WriteFile(s.resolve(name), payload, 0644)
}

// streamable probes whether the store accepts direct streaming writes.
// Probed once per process when the transfer strategy is picked.
func (s *scratchStore) streamable() bool {
	name := s.nextName()

	f, err := s.create(name)
	if err != nil {
		return false
	}

	f.Close()
	s.remove(name)

	return true
}

// resolve returns the local location of an artifact written under name.
func (s *scratchStore) resolve(name string) string {
	return filepath.Join(s.dir, name)
}

// remove discards a partial or superseded artifact.
func (s *scratchStore) remove(name string) error {
	return os.Remove(s.resolve(name))
}
