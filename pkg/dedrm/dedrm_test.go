// TEST TYPE: Unit Test
package dedrm

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(t *testing.T, path string, doc any) {
	t.Helper()
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func TestKeyFromK4I(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kindlekey.k4i")
	writeJSON(t, path, map[string]any{
		"DSN":                    "d1",
		"kindle.account.secrets": []string{"s1", "s2"},
		"kindle.account.tokens":  "t1",
	})

	key, err := KeyFromK4I(path, "fallback-dsn", "fallback-tok")
	require.NoError(t, err)
	assert.Equal(t, "d1", key.DSN)
	assert.Equal(t, "t1", key.Tokens)
	assert.Equal(t, []string{"s1", "s2"}, key.Secrets)
	assert.Empty(t, key.NewSecrets)
	assert.Empty(t, key.ClearOldSecrets)
}

func TestKeyFromK4IFallsBackToExtractedIdentifiers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kindlekey.k4i")
	writeJSON(t, path, map[string]any{
		"kindle.account.secrets": []string{"s1"},
	})

	key, err := KeyFromK4I(path, "extracted-dsn", "extracted-tok")
	require.NoError(t, err)
	assert.Equal(t, "extracted-dsn", key.DSN)
	assert.Equal(t, "extracted-tok", key.Tokens)
}

func TestKeyFromK4IInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kindlekey.k4i")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))

	_, err := KeyFromK4I(path, "", "")
	require.Error(t, err)
}

func TestBuildConfigDefaultStructure(t *testing.T) {
	key := KindleKey{DSN: "d1", Secrets: []string{"s1"}}

	config, err := BuildConfig(key, `C:\keys\kindlekey.txt`, "")
	require.NoError(t, err)

	assert.Equal(t, `C:\keys\kindlekey.txt`, config["kindleextrakeyfile"])
	assert.Equal(t, true, config["configured"])

	keys := config["kindlekeys"].(map[string]any)
	assert.Equal(t, key, keys["kindlekey"])
}

func TestBuildConfigPreservesTemplateSettings(t *testing.T) {
	ref := filepath.Join(t.TempDir(), "template.json")
	writeJSON(t, ref, map[string]any{
		"adeptkeys":          map[string]any{"adobe": "secret"},
		"remove_watermarks":  true,
		"kindleextrakeyfile": "old-path.txt",
		"kindlekeys":         map[string]any{"other": map[string]any{"DSN": "keep"}},
	})

	config, err := BuildConfig(KindleKey{DSN: "d1"}, "new-path.txt", ref)
	require.NoError(t, err)

	// Settings from the template survive untouched.
	assert.Equal(t, map[string]any{"adobe": "secret"}, config["adeptkeys"])
	assert.Equal(t, true, config["remove_watermarks"])

	// Only the two owned fields change.
	assert.Equal(t, "new-path.txt", config["kindleextrakeyfile"])
	keys := config["kindlekeys"].(map[string]any)
	assert.Contains(t, keys, "other")
	assert.Contains(t, keys, "kindlekey")
}

func TestBackupWriteVerifyRoundTrip(t *testing.T) {
	dir := t.TempDir()
	dedrmPath := filepath.Join(dir, "plugins", "dedrm.json")
	backupsDir := filepath.Join(dir, "backups")

	// No existing file: no backup, no error.
	backup, err := Backup(dedrmPath, backupsDir)
	require.NoError(t, err)
	assert.Empty(t, backup)

	config, err := BuildConfig(KindleKey{DSN: "d1"}, "kindlekey.txt", "")
	require.NoError(t, err)
	require.NoError(t, Write(dedrmPath, config, ""))

	count, extra, err := Verify(dedrmPath)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, "kindlekey.txt", extra)

	// Second run backs up the file it is about to replace.
	backup, err = Backup(dedrmPath, backupsDir)
	require.NoError(t, err)
	assert.FileExists(t, backup)
}

func TestRestore(t *testing.T) {
	dir := t.TempDir()
	dedrmPath := filepath.Join(dir, "dedrm.json")
	backupPath := filepath.Join(dir, "backup.json")
	require.NoError(t, os.WriteFile(backupPath, []byte(`{"configured": true}`), 0644))
	require.NoError(t, os.WriteFile(dedrmPath, []byte("corrupted"), 0644))

	require.NoError(t, Restore(backupPath, dedrmPath))
	data, err := os.ReadFile(dedrmPath)
	require.NoError(t, err)
	assert.JSONEq(t, `{"configured": true}`, string(data))
}
