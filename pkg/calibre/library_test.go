// TEST TYPE: Integration Test
package calibre

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kfxtools/keyfinder/pkg/errors"
)

// makeLibrary creates a minimal calibre library with the metadata.db
// tables this package queries.
func makeLibrary(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	db, err := sql.Open("sqlite", filepath.Join(dir, "metadata.db"))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`
		CREATE TABLE books (id INTEGER PRIMARY KEY, title TEXT, path TEXT);
		CREATE TABLE authors (id INTEGER PRIMARY KEY, name TEXT);
		CREATE TABLE books_authors_link (book INTEGER, author INTEGER);
		CREATE TABLE data (book INTEGER, format TEXT, name TEXT);
		INSERT INTO books VALUES (1, 'First Book', 'Author One/First Book (1)');
		INSERT INTO books VALUES (2, 'Second Book', 'Author Two/Second Book (2)');
		INSERT INTO authors VALUES (10, 'Author One');
		INSERT INTO books_authors_link VALUES (1, 10);
		INSERT INTO data VALUES (2, 'KFX-ZIP', 'Second Book - Author Two');
		INSERT INTO data VALUES (1, 'EPUB', 'First Book - Author One');
	`)
	require.NoError(t, err)
	return dir
}

func TestLastUsedLibrary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "global.py.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"library_path": "D:\\Books"}`), 0644))
	assert.Equal(t, `D:\Books`, LastUsedLibrary(path))

	assert.Empty(t, LastUsedLibrary(filepath.Join(t.TempDir(), "missing.json")))
}

func TestVerifyLibrary(t *testing.T) {
	lib := makeLibrary(t)

	count, err := VerifyLibrary(lib)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestVerifyLibraryMissingPath(t *testing.T) {
	_, err := VerifyLibrary(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrLibraryInvalid))
}

func TestVerifyLibraryMissingMetadataDB(t *testing.T) {
	_, err := VerifyLibrary(t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrLibraryInvalid))
}

func TestQueryBookInfo(t *testing.T) {
	lib := makeLibrary(t)

	books, err := QueryBookInfo(lib, []string{"1", "2", "99"})
	require.NoError(t, err)
	require.Len(t, books, 2)

	assert.Equal(t, "First Book", books[0].Title)
	assert.Equal(t, "Author One", books[0].Author)
	assert.Equal(t, "Author One/First Book (1)", books[0].Path)

	// Book without an author link gets the placeholder.
	assert.Equal(t, "Unknown Author", books[1].Author)
}

func TestKFXZipBooks(t *testing.T) {
	lib := makeLibrary(t)

	books, err := KFXZipBooks(lib)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "2", books[0].BookID)
	assert.Equal(t, "Second Book - Author Two", books[0].Name)
}

func TestBookCount(t *testing.T) {
	lib := makeLibrary(t)
	count, err := BookCount(lib)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
