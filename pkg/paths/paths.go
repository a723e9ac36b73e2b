// Package paths provides centralized path handling for keyfinder.
// Application state (key files, logs, backups) follows the XDG Base
// Directory specification; Kindle and calibre locations follow the fixed
// Windows layouts those applications use.
package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/kfxtools/keyfinder/pkg/errors"
)

// Environment variable names
const (
	// EnvDataDir overrides the XDG data directory for keyfinder
	EnvDataDir = "KEYFINDER_DATA_DIR"

	// EnvConfigDir overrides the XDG config directory for keyfinder
	EnvConfigDir = "KEYFINDER_CONFIG_DIR"

	// EnvProgramFilesDir overrides the global-mode Kindle installation
	// directory (used by tests)
	EnvProgramFilesDir = "KEYFINDER_PROGRAM_FILES_DIR"
)

// Fixed file and directory names.
// These define keyfinder's on-disk layout and are not user-configurable.
const (
	AppDirName = "keyfinder"

	// ConfigFileName is the unified configuration file
	ConfigFileName = "key_finder_config.json"

	// VoucherKeyFileName holds the extracted voucher key lines
	VoucherKeyFileName = "kindlekey.txt"

	// K4IFileName holds the structured account/secret document
	K4IFileName = "kindlekey.k4i"

	// ExtractorExeName is the external key extractor binary
	ExtractorExeName = "KFXKeyExtractor28.exe"

	// TempMarkerName marks a temporary Kindle installation copy
	TempMarkerName = "TEMP.txt"

	// ScratchDirName is the per-book staging directory
	ScratchDirName = "temp_extraction"

	// ReferenceJSONName is the optional dedrm.json template
	ReferenceJSONName = "dedrm filled.json"
)

// Paths provides centralized path management for keyfinder
type Paths struct {
	home      string
	dataDir   string
	configDir string
}

// New creates a Paths instance rooted at the current user's home directory.
// Pass a non-empty home to override (used by tests).
func New(home string) (*Paths, error) {
	if home == "" {
		h, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrPathNotFound, "unable to determine home directory")
		}
		home = h
	}

	dataDir := os.Getenv(EnvDataDir)
	if dataDir == "" {
		dataDir = filepath.Join(xdg.DataHome, AppDirName)
	}
	configDir := os.Getenv(EnvConfigDir)
	if configDir == "" {
		configDir = filepath.Join(xdg.ConfigHome, AppDirName)
	}

	return &Paths{home: home, dataDir: dataDir, configDir: configDir}, nil
}

// Home returns the user's home directory
func (p *Paths) Home() string { return p.home }

// DataDir returns the keyfinder data directory
func (p *Paths) DataDir() string { return p.dataDir }

// ConfigDir returns the keyfinder config directory
func (p *Paths) ConfigDir() string { return p.configDir }

// ConfigFile returns the unified configuration file path
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.configDir, ConfigFileName)
}

// KeysDir returns the directory holding the merged key artifacts
func (p *Paths) KeysDir() string {
	return filepath.Join(p.dataDir, "Keys")
}

// VoucherKeyFile returns the merged voucher key file path
func (p *Paths) VoucherKeyFile() string {
	return filepath.Join(p.KeysDir(), VoucherKeyFileName)
}

// K4IFile returns the merged k4i document path
func (p *Paths) K4IFile() string {
	return filepath.Join(p.KeysDir(), K4IFileName)
}

// LogsDir returns the phase report directory for the given phase subfolder,
// e.g. "extraction_logs".
func (p *Paths) LogsDir(sub string) string {
	return filepath.Join(p.dataDir, "Logs", sub)
}

// BackupsDir returns the dedrm.json backup directory
func (p *Paths) BackupsDir() string {
	return filepath.Join(p.dataDir, "backups")
}

// ScratchDir returns the per-book staging directory used during extraction
// and as the conversion intermediate workspace.
func (p *Paths) ScratchDir() string {
	return filepath.Join(p.dataDir, ScratchDirName)
}

// KindleAppDir returns the AppData Kindle application directory
func (p *Paths) KindleAppDir() string {
	return filepath.Join(p.home, "AppData", "Local", "Amazon", "Kindle", "application")
}

// KindleBaseDir returns the AppData Kindle base directory
func (p *Paths) KindleBaseDir() string {
	return filepath.Join(p.home, "AppData", "Local", "Amazon", "Kindle")
}

// KindleProgramFilesDir returns the global-mode Kindle installation directory
func (p *Paths) KindleProgramFilesDir() string {
	if dir := os.Getenv(EnvProgramFilesDir); dir != "" {
		return dir
	}
	return `C:\Program Files (x86)\Amazon\Kindle`
}

// DefaultContentDir returns the default Kindle content directory
func (p *Paths) DefaultContentDir() string {
	return filepath.Join(p.home, "Documents", "My Kindle Content")
}

// CalibreConfigDir returns calibre's configuration directory
func (p *Paths) CalibreConfigDir() string {
	return filepath.Join(p.home, "AppData", "Roaming", "calibre")
}

// DedrmJSON returns the DeDRM plugin configuration file path
func (p *Paths) DedrmJSON() string {
	return filepath.Join(p.CalibreConfigDir(), "plugins", "dedrm.json")
}

// CalibreGlobalConfig returns calibre's global settings file, read to
// detect the last used library.
func (p *Paths) CalibreGlobalConfig() string {
	return filepath.Join(p.CalibreConfigDir(), "global.py.json")
}

// ExtractorPath locates the key extractor binary: next to the keyfinder
// executable first, then the working directory.
func (p *Paths) ExtractorPath() (string, error) {
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), ExtractorExeName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	if wd, err := os.Getwd(); err == nil {
		candidate := filepath.Join(wd, ExtractorExeName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", errors.Newf(errors.ErrPathNotFound, "%s not found next to the keyfinder executable", ExtractorExeName)
}

// ReferenceJSON returns the optional dedrm.json template path if present,
// or "" when no template exists.
func (p *Paths) ReferenceJSON() string {
	candidate := filepath.Join(p.dataDir, ReferenceJSONName)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return ""
}
