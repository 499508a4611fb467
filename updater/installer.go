package updater

// Installer is the narrow platform bridge that hands a downloaded artifact
// to the OS install flow. It is resolved once at startup and injected; any
// error it raises propagates to the caller unchanged because the original
// diagnostic is the only one there is.
type Installer interface {
	Install(path string) error
}

// noopInstaller succeeds without doing anything, for platforms that have no
// installer concept.
type noopInstaller struct{}

func (noopInstaller) Install(path string) error {
	return nil
}
