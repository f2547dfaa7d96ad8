package sqlite

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/cmdrelay/pkg/types"
)

func TestExportShape(t *testing.T) {
	b := setupEmptyBackend(t)
	require.NoError(t, b.Profiles().Upsert(profile("Primary", "10.0.0.1"), ""))
	_, err := b.Commands().Add("music", "app.exe", []string{"Primary", "Backup"})
	require.NoError(t, err)
	_, err = b.Commands().Add("lonely", "x.exe", nil)
	require.NoError(t, err)

	doc, err := b.Export()
	require.NoError(t, err)
	assert.Equal(t, []types.DocumentCommand{
		{Name: "lonely", Executable: "x.exe", Aliases: []string{}},
		{Name: "music", Executable: "app.exe", Aliases: []string{"Backup", "Primary"}},
	}, doc.Commands)
	assert.Equal(t, []types.DocumentProfile{
		{Alias: "Primary", Host: "10.0.0.1", Port: 22, Username: "user", Password: "secret"},
	}, doc.Profiles)
}

func TestExportImportRoundTripThroughJSON(t *testing.T) {
	src := setupBackend(t)
	_, err := src.Commands().Add("lights", "lights.exe", []string{"Primary", "Garage"})
	require.NoError(t, err)
	exported, err := src.Export()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, types.EncodeDocument(&buf, exported, types.FormatJSON))
	decoded, err := types.DecodeDocument(&buf, types.FormatJSON)
	require.NoError(t, err)

	dst := setupEmptyBackend(t)
	summary, err := dst.Import(decoded, types.ImportReplace)
	require.NoError(t, err)
	assert.Equal(t, len(exported.Commands), summary.Commands)
	assert.Equal(t, len(exported.Profiles), summary.Profiles)

	got, err := dst.Export()
	require.NoError(t, err)
	assert.Equal(t, exported, got)
}

func TestImportMergeUpdatesByName(t *testing.T) {
	b := setupEmptyBackend(t)
	require.NoError(t, b.Profiles().Upsert(profile("Primary", "old-host"), ""))
	music, err := b.Commands().Add("music", "old.exe", []string{"Primary", "Backup"})
	require.NoError(t, err)
	_, err = b.Commands().Add("keep", "keep.exe", nil)
	require.NoError(t, err)

	summary, err := b.Import(types.Document{
		Commands: []types.DocumentCommand{
			{Name: "  MUSIC ", Executable: "new.exe", Aliases: []string{"Garage"}},
			{Name: "fresh", Executable: "fresh.exe"},
		},
		Profiles: []types.DocumentProfile{
			{Alias: "Primary", Host: "new-host", Username: "u"},
			{Alias: "Garage", Host: "g", Port: 2222, Username: "u"},
		},
	}, types.ImportMerge)
	require.NoError(t, err)
	assert.Equal(t, ImportSummary{Commands: 2, Profiles: 2}, summary)

	updated, err := b.Commands().Get("music")
	require.NoError(t, err)
	assert.Equal(t, music.ID, updated.ID, "merge updates in place")
	assert.Equal(t, "new.exe", updated.Executable)
	assert.Equal(t, []string{"Garage"}, updated.Aliases, "association set is replaced")

	fresh, err := b.Commands().Get("fresh")
	require.NoError(t, err)
	assert.Equal(t, []string{types.DefaultAlias}, fresh.Aliases)

	_, err = b.Commands().Get("keep")
	assert.NoError(t, err, "merge leaves unmentioned commands alone")

	p, err := b.Profiles().Get("Primary")
	require.NoError(t, err)
	assert.Equal(t, "new-host", p.Host)
	assert.Equal(t, types.DefaultPort, p.Port)
}

func TestImportReplaceClearsStore(t *testing.T) {
	b := setupBackend(t)

	_, err := b.Import(types.Document{
		Commands: []types.DocumentCommand{{Name: "only", Executable: "only.exe", Aliases: []string{"Solo"}}},
		Profiles: []types.DocumentProfile{{Alias: "Solo", Host: "h", Port: 22, Username: "u"}},
	}, types.ImportReplace)
	require.NoError(t, err)

	commands, err := b.Commands().List()
	require.NoError(t, err)
	require.Len(t, commands, 1)
	assert.Equal(t, "only", commands[0].Name)
	assert.Equal(t, []string{"Solo"}, commands[0].Aliases)

	aliases, err := b.Profiles().ListAliases()
	require.NoError(t, err)
	assert.Equal(t, []string{"Solo"}, aliases)

	var orphans int
	require.NoError(t, b.db.QueryRow(
		"SELECT COUNT(*) FROM command_targets WHERE command_id NOT IN (SELECT id FROM commands)").Scan(&orphans))
	assert.Zero(t, orphans)
}

func TestImportHistoricalAliasShape(t *testing.T) {
	b := setupEmptyBackend(t)

	_, err := b.Import(types.Document{
		Commands: []types.DocumentCommand{
			{Name: "single", Executable: "a.exe", Alias: "Backup"},
			{Name: "both", Executable: "b.exe", Alias: "Backup", Aliases: []string{"Primary"}},
		},
	}, types.ImportMerge)
	require.NoError(t, err)

	single, err := b.Commands().Get("single")
	require.NoError(t, err)
	assert.Equal(t, []string{"Backup"}, single.Aliases)

	both, err := b.Commands().Get("both")
	require.NoError(t, err)
	assert.Equal(t, []string{"Backup", "Primary"}, both.Aliases)
}

func TestImportInvalidRecordAppliesNothing(t *testing.T) {
	tests := []struct {
		name    string
		doc     types.Document
		wantErr error
	}{
		{
			name: "invalid profile",
			doc: types.Document{
				Commands: []types.DocumentCommand{{Name: "new", Executable: "new.exe"}},
				Profiles: []types.DocumentProfile{
					{Alias: "Good", Host: "h", Username: "u"},
					{Alias: "Bad", Host: "", Username: "u"},
				},
			},
			wantErr: types.ErrInvalidProfile,
		},
		{
			name: "command without executable",
			doc: types.Document{
				Commands: []types.DocumentCommand{
					{Name: "new", Executable: "new.exe"},
					{Name: "broken", Executable: "  "},
				},
			},
			wantErr: types.ErrInvalidExecutable,
		},
		{
			name: "command without name",
			doc: types.Document{
				Commands: []types.DocumentCommand{{Name: "", Executable: "x.exe"}},
			},
			wantErr: types.ErrInvalidName,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := setupBackend(t)
			before := snapshot(t, b)

			_, err := b.Import(tt.doc, types.ImportReplace)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, before, snapshot(t, b))
		})
	}
}

func TestImportInvalidMode(t *testing.T) {
	b := setupBackend(t)
	_, err := b.Import(types.Document{}, types.ImportMode("append"))
	assert.ErrorIs(t, err, types.ErrInvalidImportMode)
}

func TestTransferAfterClose(t *testing.T) {
	b := setupBackend(t)
	require.NoError(t, b.Close())

	_, err := b.Export()
	assert.ErrorIs(t, err, types.ErrStoreClosed)
	_, err = b.Import(types.Document{}, types.ImportMerge)
	assert.ErrorIs(t, err, types.ErrStoreClosed)
}
