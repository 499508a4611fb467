package kioskdb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(t.TempDir())
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})

	return db
}

func TestName(t *testing.T) {
	db := openTestDB(t)

	name, err := db.GetName()
	require.NoError(t, err)
	require.Empty(t, name)

	require.NoError(t, db.SetName("Lobby Screen"))

	name, err = db.GetName()
	require.NoError(t, err)
	require.Equal(t, "Lobby Screen", name)
}

func TestManifestUrl(t *testing.T) {
	db := openTestDB(t)

	url, err := db.GetManifestUrl()
	require.NoError(t, err)
	require.Empty(t, url)

	require.NoError(t, db.SetManifestUrl("https://updates.example.com/manifest.json"))

	url, err = db.GetManifestUrl()
	require.NoError(t, err)
	require.Equal(t, "https://updates.example.com/manifest.json", url)
}

func TestCheckInterval(t *testing.T) {
	db := openTestDB(t)

	minutes, err := db.GetCheckInterval()
	require.NoError(t, err)
	require.Zero(t, minutes)

	require.NoError(t, db.SetCheckInterval(30))

	minutes, err = db.GetCheckInterval()
	require.NoError(t, err)
	require.Equal(t, 30, minutes)
}

func TestAutoApply(t *testing.T) {
	db := openTestDB(t)

	// An unset value reports absence, not false.
	autoApply, found, err := db.GetAutoApply()
	require.NoError(t, err)
	require.False(t, found)
	require.False(t, autoApply)

	require.NoError(t, db.SetAutoApply(true))

	autoApply, found, err = db.GetAutoApply()
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, autoApply)

	require.NoError(t, db.SetAutoApply(false))

	autoApply, found, err = db.GetAutoApply()
	require.NoError(t, err)
	require.True(t, found)
	require.False(t, autoApply)
}
