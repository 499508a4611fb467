package kioskdb

import (
	"os"
	"path/filepath"
	"time"

	"github.com/go-errors/errors"
	"go.etcd.io/bbolt"
)

const dbFilename = "kiosk.db"

// DB persistently stores the kiosk's settings.
type DB struct {
	*bbolt.DB
}

func Open(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, errors.Errorf("Could not create data directory %v: %v", dataDir, err)
	}

	path := filepath.Join(dataDir, dbFilename)

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Errorf("Could not open database %v: %v", path, err)
	}

	return &DB{DB: db}, nil
}
