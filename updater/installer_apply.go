//go:build linux || darwin

package updater

import (
	"os"

	"github.com/inconshreveable/go-update"
)

// applyInstaller swaps the running binary for the downloaded artifact.
type applyInstaller struct{}

func (applyInstaller) Install(path string) error {
	artifact, err := os.Open(path)
	if err != nil {
		return err
	}

	defer artifact.Close()

	return update.Apply(artifact, update.Options{})
}

// platformInstaller resolves the install bridge for this platform.
func platformInstaller() Installer {
	return applyInstaller{}
}
