package kindle

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kfxtools/keyfinder/pkg/errors"
)

// BookFolder is a per-book directory under the Kindle content root.
// Kindle for PC names these <ASIN>_EBOK or similar, one per book, with
// the book payload (.azw, voucher, resources) inside.
type BookFolder struct {
	// ASIN is the folder name up to the first underscore.
	ASIN string

	// Name is the full folder name.
	Name string

	// Path is the absolute folder path.
	Path string
}

var bookMarkerExts = map[string]bool{
	".azw":     true,
	".azw3":    true,
	".kfx":     true,
	".kfx-zip": true,
}

// ScanBookFolders lists the per-book directories under root: immediate
// subdirectories containing at least one book payload file. A missing
// root yields ErrPathNotFound so the caller can report it at phase
// level rather than per item.
func ScanBookFolders(root string) ([]BookFolder, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Newf(errors.ErrPathNotFound, "Kindle content folder not found: %s", root)
		}
		return nil, errors.Wrap(err, errors.ErrFileAccess, "failed to read Kindle content folder")
	}

	var folders []BookFolder
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if !containsBookFile(dir) {
			continue
		}
		folders = append(folders, BookFolder{
			ASIN: asinFromName(e.Name()),
			Name: e.Name(),
			Path: dir,
		})
	}

	sort.Slice(folders, func(i, j int) bool { return folders[i].Name < folders[j].Name })
	return folders, nil
}

// FindAZWFiles lists .azw files under root recursively, skipping files
// whose ASIN appears in excludeASINs. Exclusion happens during
// enumeration, so excluded books never enter a batch.
func FindAZWFiles(root string, excludeASINs map[string]bool) ([]string, error) {
	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.EqualFold(filepath.Ext(path), ".azw") {
			return nil
		}
		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if !excludeASINs[asinFromName(base)] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Newf(errors.ErrPathNotFound, "Kindle content folder not found: %s", root)
		}
		return nil, errors.Wrap(err, errors.ErrFileAccess, "failed to scan for AZW files")
	}
	sort.Strings(files)
	return files, nil
}

func containsBookFile(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if bookMarkerExts[strings.ToLower(filepath.Ext(e.Name()))] {
			return true
		}
	}
	return false
}

func asinFromName(name string) string {
	if i := strings.Index(name, "_"); i >= 0 {
		return name[:i]
	}
	return name
}
