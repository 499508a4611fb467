package kioskdb

var settingsBucket = []byte("settings")

var nameKey = []byte("name")
var manifestUrlKey = []byte("manifestUrl")
var checkIntervalKey = []byte("checkIntervalMinutes")
var autoApplyKey = []byte("autoApply")

func (db *DB) SetName(name string) error {
	return db.setJSON(settingsBucket, nameKey, name)
}

func (db *DB) GetName() (string, error) {
	var name string
	if _, err := db.getJSON(settingsBucket, nameKey, &name); err != nil {
		return "", err
	}

	return name, nil
}

// SetManifestUrl persists an override for the release manifest endpoint.
func (db *DB) SetManifestUrl(url string) error {
	return db.setJSON(settingsBucket, manifestUrlKey, url)
}

// GetManifestUrl returns the persisted manifest endpoint override, or the
// empty string when none is set.
func (db *DB) GetManifestUrl() (string, error) {
	var url string
	if _, err := db.getJSON(settingsBucket, manifestUrlKey, &url); err != nil {
		return "", err
	}

	return url, nil
}

// SetCheckInterval persists the update check cadence in minutes.
func (db *DB) SetCheckInterval(minutes int) error {
	return db.setJSON(settingsBucket, checkIntervalKey, minutes)
}

// GetCheckInterval returns the persisted check cadence in minutes, or zero
// when none is set.
func (db *DB) GetCheckInterval() (int, error) {
	var minutes int
	if _, err := db.getJSON(settingsBucket, checkIntervalKey, &minutes); err != nil {
		return 0, err
	}

	return minutes, nil
}

func (db *DB) SetAutoApply(autoApply bool) error {
	return db.setJSON(settingsBucket, autoApplyKey, autoApply)
}

// GetAutoApply reports whether non-mandatory updates should be applied
// without being offered first. Reports presence so an unset value doesn't
// override the configured default.
func (db *DB) GetAutoApply() (bool, bool, error) {
	var autoApply bool
	found, err := db.getJSON(settingsBucket, autoApplyKey, &autoApply)
	if err != nil {
		return false, false, err
	}

	return autoApply, found, nil
}
