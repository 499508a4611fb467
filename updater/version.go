package updater

import "fmt"

// Version describes the running build. Releases are ordered by Code alone;
// Name is the human-readable version string and is informational only.
type Version struct {
	Name string
	Code int64
}

func (v Version) String() string {
	return fmt.Sprintf("%s (%d)", v.Name, v.Code)
}

// IsNewer reports whether a release carrying manifestCode supersedes a build
// running currentCode. Equal codes never count as newer, so there is no
// downgrade or reinstall path. The same comparison gates broadcast
// announcements that carry a version code.
func IsNewer(manifestCode int64, currentCode int64) bool {
	return manifestCode > currentCode
}
