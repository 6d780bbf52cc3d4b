package fixtures

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDataDir_OSHostsFileDoesNotCollideWithModeTables(t *testing.T) {
	dir, err := NewDataDir(t.TempDir())
	require.NoError(t, err)

	assert.NotEqual(t, dir.Paths.HostsDir(), dir.HostsPath)

	info, err := os.Stat(dir.HostsPath)
	require.NoError(t, err)
	assert.True(t, info.Mode().IsRegular())

	table, err := dir.HostsTable()
	require.NoError(t, err)
	assert.NotEmpty(t, table.Entries)
	assert.NotContains(t, dir.HostsContent(), "youtube.com")

	// Seeded built-ins keep their block tables in the mode hosts directory.
	social, err := dir.Modes().BlockTable("social")
	require.NoError(t, err)
	assert.Greater(t, social.Len(), 0)
}

func TestDataDir_AddModeAndRemoveAllowList(t *testing.T) {
	dir, err := NewDataDir(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, dir.AddMode("writing", []string{"Terminal"}, nil))
	assert.True(t, dir.Modes().Exists("writing"))

	require.NoError(t, dir.RemoveAllowList("writing"))
	assert.False(t, dir.Modes().Exists("writing"))
}
