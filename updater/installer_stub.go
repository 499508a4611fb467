//go:build !linux && !darwin

package updater

// platformInstaller resolves the install bridge for this platform. There is
// no installer concept here, so installs succeed as no-ops.
func platformInstaller() Installer {
	return noopInstaller{}
}
