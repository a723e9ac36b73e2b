// TEST TYPE: Unit Test
package kindle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kfxtools/keyfinder/pkg/errors"
)

func makeBookFolder(t *testing.T, root, name string, files ...string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0755))
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("book"), 0644))
	}
	return dir
}

func TestScanBookFolders(t *testing.T) {
	root := t.TempDir()
	makeBookFolder(t, root, "B00ZZZZZZZ_EBOK", "book.azw", "book.res")
	makeBookFolder(t, root, "B00AAAAAAA_EBOK", "book.kfx-zip")
	makeBookFolder(t, root, "B00EMPTY_EBOK", "notes.txt")
	makeBookFolder(t, root, "NoUnderscore", "b.azw3")
	require.NoError(t, os.WriteFile(filepath.Join(root, "stray.azw"), []byte("x"), 0644))

	folders, err := ScanBookFolders(root)
	require.NoError(t, err)
	require.Len(t, folders, 3)

	// Sorted by folder name; folders without book payloads are skipped.
	assert.Equal(t, "B00AAAAAAA", folders[0].ASIN)
	assert.Equal(t, "B00AAAAAAA_EBOK", folders[0].Name)
	assert.Equal(t, "B00ZZZZZZZ", folders[1].ASIN)
	assert.Equal(t, "NoUnderscore", folders[2].ASIN)
}

func TestScanBookFoldersMissingRoot(t *testing.T) {
	_, err := ScanBookFolders(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrPathNotFound))
}

func TestFindAZWFiles(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(makeBookFolder(t, root, "B001_EBOK", "one.azw"), "one.azw")
	b := filepath.Join(makeBookFolder(t, root, "B002_EBOK", "two.AZW"), "two.AZW")
	makeBookFolder(t, root, "B003_EBOK", "three.azw3")

	files, err := FindAZWFiles(root, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{a, b}, files)
}

func TestFindAZWFilesExcludesByASIN(t *testing.T) {
	root := t.TempDir()
	makeBookFolder(t, root, "B001_EBOK", "B001_EBOK.azw")
	b := filepath.Join(makeBookFolder(t, root, "B002_EBOK", "B002_EBOK.azw"), "B002_EBOK.azw")

	files, err := FindAZWFiles(root, map[string]bool{"B001": true})
	require.NoError(t, err)
	assert.Equal(t, []string{b}, files)
}

func TestFindAZWFilesMissingRoot(t *testing.T) {
	_, err := FindAZWFiles(filepath.Join(t.TempDir(), "nope"), nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrPathNotFound))
}
