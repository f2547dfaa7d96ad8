package sqlite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/cmdrelay/pkg/types"
)

// setupBackend opens a fresh store in a temp dir. The store holds the
// bootstrap commands and profile.
func setupBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := Open(filepath.Join(t.TempDir(), DatabaseFile), testOptions())
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

// setupEmptyBackend opens a fresh store and removes the bootstrap rows.
func setupEmptyBackend(t *testing.T) *Backend {
	t.Helper()
	b := setupBackend(t)
	for _, stmt := range []string{
		"DELETE FROM command_targets",
		"DELETE FROM commands",
		"DELETE FROM ssh_connections",
	} {
		_, err := b.db.Exec(stmt)
		require.NoError(t, err)
	}
	return b
}

// countTargets returns the raw number of association rows for a command.
func countTargets(t *testing.T, b *Backend, commandID int64) int {
	t.Helper()
	var n int
	require.NoError(t, b.db.QueryRow(
		"SELECT COUNT(*) FROM command_targets WHERE command_id = ?", commandID).Scan(&n))
	return n
}

func TestOpenFreshStoreBootstraps(t *testing.T) {
	b := setupBackend(t)
	assert.Equal(t, GenerationNone, b.Generation())

	commands, err := b.Commands().List()
	require.NoError(t, err)
	require.Len(t, commands, len(defaultCommands))
	for _, c := range commands {
		assert.Equal(t, []string{types.DefaultAlias}, c.Aliases, "command %s", c.Name)
		assert.False(t, c.CreatedAt.IsZero(), "command %s created_at", c.Name)
	}

	profiles, err := b.Profiles().List()
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, defaultProfile.Alias, profiles[0].Alias)
	assert.Equal(t, defaultProfile.Host, profiles[0].Host)
	assert.Equal(t, types.DefaultPort, profiles[0].Port)
}

func TestOpenCreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	b, err := OpenConfig(types.Config{DataDir: dir}, testOptions())
	require.NoError(t, err)
	defer b.Close()

	_, err = os.Stat(filepath.Join(dir, DatabaseFile))
	assert.NoError(t, err)
}

func TestOpenConfigRequiresDataDir(t *testing.T) {
	_, err := OpenConfig(types.Config{}, testOptions())
	assert.ErrorIs(t, err, types.ErrDataDirEmpty)
}

func TestCloseIsIdempotent(t *testing.T) {
	b, err := Open(filepath.Join(t.TempDir(), DatabaseFile), testOptions())
	require.NoError(t, err)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	_, err = b.Commands().List()
	assert.ErrorIs(t, err, types.ErrStoreClosed)
	_, err = b.Profiles().Get(types.DefaultAlias)
	assert.ErrorIs(t, err, types.ErrStoreClosed)
	assert.ErrorIs(t, b.EnsureCurrentSchema(), types.ErrStoreClosed)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), DatabaseFile)
	b, err := Open(path, testOptions())
	require.NoError(t, err)
	_, err = b.Commands().Add("lights", "lights.exe", []string{"Backup"})
	require.NoError(t, err)
	require.NoError(t, b.Close())

	b, err = Open(path, testOptions())
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, CurrentGeneration, b.Generation())

	c, err := b.Commands().Get("lights")
	require.NoError(t, err)
	assert.Equal(t, []string{"Backup"}, c.Aliases)
}

func TestParseTimestamp(t *testing.T) {
	assert.Equal(t, 2024, parseTimestamp("2024-03-01 10:20:30").Year())
	assert.Equal(t, 2025, parseTimestamp("2025-01-02T03:04:05Z").Year())
	assert.True(t, parseTimestamp("").IsZero())
	assert.True(t, parseTimestamp("yesterday").IsZero())
}
