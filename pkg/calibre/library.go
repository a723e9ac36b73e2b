package calibre

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/kfxtools/keyfinder/pkg/errors"
)

// BookInfo is the display and filesystem metadata for one library book.
type BookInfo struct {
	ID     string
	Title  string
	Author string
	// Path is the book directory relative to the library root.
	Path string
}

// LastUsedLibrary reads the library path calibre last opened from its
// global settings file. Returns "" when the file is missing or carries
// no library path.
func LastUsedLibrary(globalConfigPath string) string {
	data, err := os.ReadFile(globalConfigPath)
	if err != nil {
		return ""
	}
	var config map[string]any
	if err := json.Unmarshal(data, &config); err != nil {
		return ""
	}
	path, _ := config["library_path"].(string)
	return path
}

// VerifyLibrary checks that path is a calibre library and returns its
// book count. The count is read from metadata.db; a readable library
// with an unqueryable database still validates, with count -1.
func VerifyLibrary(path string) (int, error) {
	if info, err := os.Stat(path); err != nil || !info.IsDir() {
		return 0, errors.Newf(errors.ErrLibraryInvalid, "library path does not exist: %s", path)
	}
	dbPath := filepath.Join(path, "metadata.db")
	if _, err := os.Stat(dbPath); err != nil {
		return 0, errors.New(errors.ErrLibraryInvalid, "not a valid calibre library (metadata.db not found)")
	}

	count, err := BookCount(path)
	if err != nil {
		return -1, nil
	}
	return count, nil
}

// BookCount returns the number of books recorded in the library's
// metadata.db.
func BookCount(libraryPath string) (int, error) {
	db, err := openMetadata(libraryPath)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM books").Scan(&count); err != nil {
		return 0, errors.Wrap(err, errors.ErrLibraryQuery, "failed to count library books")
	}
	return count, nil
}

// QueryBookInfo returns metadata for the given book ids, in the input
// order. Ids not present in the database are silently dropped.
func QueryBookInfo(libraryPath string, bookIDs []string) ([]BookInfo, error) {
	db, err := openMetadata(libraryPath)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var books []BookInfo
	for _, id := range bookIDs {
		var info BookInfo
		info.ID = id
		err := db.QueryRow("SELECT title, path FROM books WHERE id = ?", id).
			Scan(&info.Title, &info.Path)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrLibraryQuery, "failed to query book metadata")
		}

		err = db.QueryRow(`
			SELECT authors.name
			FROM authors
			JOIN books_authors_link ON authors.id = books_authors_link.author
			WHERE books_authors_link.book = ?
			LIMIT 1`, id).Scan(&info.Author)
		if err == sql.ErrNoRows {
			info.Author = "Unknown Author"
		} else if err != nil {
			return nil, errors.Wrap(err, errors.ErrLibraryQuery, "failed to query book author")
		}

		books = append(books, info)
	}
	return books, nil
}

// FormatRow identifies one stored format file in the library.
type FormatRow struct {
	BookID string
	Name   string
}

// KFXZipBooks lists the books holding a KFX-ZIP format, which are
// usually DRM-protected leftovers from earlier imports.
func KFXZipBooks(libraryPath string) ([]FormatRow, error) {
	db, err := openMetadata(libraryPath)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query("SELECT book, name FROM data WHERE format = 'KFX-ZIP'")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrLibraryQuery, "failed to query KFX-ZIP formats")
	}
	defer rows.Close()

	var books []FormatRow
	for rows.Next() {
		var row FormatRow
		if err := rows.Scan(&row.BookID, &row.Name); err != nil {
			return nil, errors.Wrap(err, errors.ErrLibraryQuery, "failed to scan KFX-ZIP row")
		}
		books = append(books, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrLibraryQuery, "failed to read KFX-ZIP rows")
	}
	return books, nil
}

// openMetadata opens the library database read-only. calibre may hold
// the file; immutable access avoids taking any lock.
func openMetadata(libraryPath string) (*sql.DB, error) {
	dbPath := filepath.Join(libraryPath, "metadata.db")
	db, err := sql.Open("sqlite", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrLibraryQuery, "failed to open metadata.db")
	}
	return db, nil
}
