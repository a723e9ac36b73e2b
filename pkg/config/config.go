// Package config loads and persists the unified keyfinder configuration.
// Defaults are embedded in the binary; the on-disk file is JSON so users
// can inspect and hand-edit it.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	koanfjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/kfxtools/keyfinder/pkg/errors"
)

// Version identifies the configuration schema. A saved file with a
// different version forces reconfiguration through the wizard.
const Version = "2025.11.08"

// KFX-ZIP conversion modes
const (
	KFXZipConvertAll = "convert_all"
	KFXZipSkip       = "skip_kfx_zip"
)

// Source file management modes after a successful EPUB conversion
const (
	SourceKeepBoth         = "keep_both"
	SourceDeleteSource     = "delete_source"
	SourceDeleteKFXZipOnly = "delete_kfx_zip_only"
)

// CalibreImport holds the import/conversion phase settings.
type CalibreImport struct {
	Enabled              bool   `koanf:"enabled" json:"enabled"`
	LibraryPath          string `koanf:"library_path" json:"library_path"`
	ConvertToEPUB        bool   `koanf:"convert_to_epub" json:"convert_to_epub"`
	KFXZipMode           string `koanf:"kfx_zip_mode" json:"kfx_zip_mode"`
	SourceFileManagement string `koanf:"source_file_management" json:"source_file_management"`
}

// Config is the unified configuration document. It is loaded once at
// process start and passed by reference into each phase; phases never
// re-read the file mid-run.
type Config struct {
	ScriptVersion            string        `koanf:"script_version" json:"script_version"`
	LastUpdated              string        `koanf:"last_updated" json:"last_updated"`
	KindleContentPath        string        `koanf:"kindle_content_path" json:"kindle_content_path"`
	HideSensitiveInfo        bool          `koanf:"hide_sensitive_info" json:"hide_sensitive_info"`
	FetchBookTitles          bool          `koanf:"fetch_book_titles" json:"fetch_book_titles"`
	ClearScreenBetweenPhases bool          `koanf:"clear_screen_between_phases" json:"clear_screen_between_phases"`
	SkipPhasePauses          bool          `koanf:"skip_phase_pauses" json:"skip_phase_pauses"`
	CalibreImport            CalibreImport `koanf:"calibre_import" json:"calibre_import"`
}

var defaultConfig = []byte(`{
  "script_version": "",
  "last_updated": "",
  "kindle_content_path": "",
  "hide_sensitive_info": true,
  "fetch_book_titles": false,
  "clear_screen_between_phases": true,
  "skip_phase_pauses": false,
  "calibre_import": {
    "enabled": false,
    "library_path": "",
    "convert_to_epub": false,
    "kfx_zip_mode": "convert_all",
    "source_file_management": "keep_both"
  }
}`)

// Load reads the configuration from path, layered over the embedded
// defaults. A missing file returns (nil, nil): the caller starts the
// wizard for first runs.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}

	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(defaultConfig), koanfjson.Parser()); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to load defaults")
	}
	if err := k.Load(file.Provider(path), koanfjson.Parser()); err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigParse, "failed to parse %s", path)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigParse, "failed to unmarshal configuration")
	}
	return &cfg, nil
}

// Save writes the configuration to path, stamping the schema version and
// last-updated time.
func (c *Config) Save(path string) error {
	c.ScriptVersion = Version
	c.LastUpdated = time.Now().Format(time.RFC3339)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, errors.ErrDirCreate, "failed to create config directory")
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal, "failed to encode configuration")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "failed to write %s", path)
	}
	return nil
}

// Delete removes the configuration file. Missing files are not an error.
func Delete(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, errors.ErrFileAccess, "failed to delete %s", path)
	}
	return nil
}

// VersionMatches reports whether the saved schema version matches the
// current one.
func (c *Config) VersionMatches() bool {
	return c.ScriptVersion == Version
}
