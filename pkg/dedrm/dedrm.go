// Package dedrm builds and installs the DeDRM plugin configuration
// (dedrm.json) from the accumulated k4i key document.
package dedrm

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kfxtools/keyfinder/pkg/errors"
	"github.com/kfxtools/keyfinder/pkg/logging"
)

// KindleKey is one entry under dedrm.json's "kindlekeys" map, shaped
// the way the plugin's own key finder produces it.
type KindleKey struct {
	DSN             string   `json:"DSN"`
	ClearOldSecrets []string `json:"kindle.account.clear_old_secrets"`
	NewSecrets      []string `json:"kindle.account.new_secrets"`
	Secrets         []string `json:"kindle.account.secrets"`
	Tokens          string   `json:"kindle.account.tokens"`
}

// KeyFromK4I reads the k4i document and assembles the plugin's key
// record. Fields missing from the document fall back to the identifiers
// captured from extractor output, then to empty values.
func KeyFromK4I(k4iPath, dsn, tokens string) (KindleKey, error) {
	data, err := os.ReadFile(k4iPath)
	if err != nil {
		return KindleKey{}, errors.Wrap(err, errors.ErrFileAccess, "failed to read k4i file")
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return KindleKey{}, errors.Wrap(err, errors.ErrMalformedOutput, "k4i file is not valid JSON")
	}

	key := KindleKey{
		DSN:             stringOr(doc, "DSN", dsn),
		ClearOldSecrets: stringSlice(doc, "kindle.account.clear_old_secrets"),
		NewSecrets:      stringSlice(doc, "kindle.account.new_secrets"),
		Secrets:         stringSlice(doc, "kindle.account.secrets"),
		Tokens:          stringOr(doc, "kindle.account.tokens", tokens),
	}
	return key, nil
}

// defaultConfig mirrors the structure the plugin writes on first run.
func defaultConfig() map[string]any {
	return map[string]any{
		"adeptkeys":             map[string]any{},
		"adobe_pdf_passphrases": []any{},
		"adobewineprefix":       "",
		"androidkeys":           map[string]any{},
		"bandnkeys":             map[string]any{},
		"configured":            true,
		"deobfuscate_fonts":     true,
		"ereaderkeys":           map[string]any{},
		"kindleextrakeyfile":    "",
		"kindlekeys":            map[string]any{},
		"kindlewineprefix":      "",
		"lcp_passphrases":       []any{},
		"pids":                  []any{},
		"remove_watermarks":     false,
		"serials":               []any{},
	}
}

// BuildConfig assembles the full dedrm.json document. When referencePath
// names an existing template file, that file supplies the base
// structure and all settings outside the two fields this tool owns:
// kindlekeys["kindlekey"] and kindleextrakeyfile.
func BuildConfig(key KindleKey, voucherPath, referencePath string) (map[string]any, error) {
	config := defaultConfig()

	if referencePath != "" {
		data, err := os.ReadFile(referencePath)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrFileAccess, "failed to read reference template")
		}
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, errors.Wrap(err, errors.ErrMalformedOutput, "reference template is not valid JSON")
		}
	}

	config["kindleextrakeyfile"] = voucherPath

	keys, ok := config["kindlekeys"].(map[string]any)
	if !ok {
		keys = map[string]any{}
	}
	keys["kindlekey"] = key
	config["kindlekeys"] = keys

	return config, nil
}

// Backup copies an existing dedrm.json into backupsDir with a
// timestamped name and returns the backup path. A missing dedrm.json
// yields "" and no error.
func Backup(dedrmPath, backupsDir string) (string, error) {
	data, err := os.ReadFile(dedrmPath)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, errors.ErrFileAccess, "failed to read dedrm.json")
	}

	if err := os.MkdirAll(backupsDir, 0755); err != nil {
		return "", errors.Wrap(err, errors.ErrDirCreate, "failed to create backup directory")
	}

	backupPath := filepath.Join(backupsDir,
		fmt.Sprintf("dedrm_backup_%s.json", time.Now().Format("20060102_150405")))
	if err := os.WriteFile(backupPath, data, 0644); err != nil {
		return "", errors.Wrap(err, errors.ErrFileWrite, "failed to write dedrm.json backup")
	}
	return backupPath, nil
}

// Write installs the configuration at dedrmPath using the plugin's own
// formatting (two-space indented JSON). On a write failure the backup,
// if any, is restored.
func Write(dedrmPath string, config map[string]any, backupPath string) error {
	log := logging.GetLogger("dedrm")

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrMalformedOutput, "failed to encode dedrm configuration")
	}

	if err := os.MkdirAll(filepath.Dir(dedrmPath), 0755); err != nil {
		return errors.Wrap(err, errors.ErrDirCreate, "failed to create plugin directory")
	}

	if err := os.WriteFile(dedrmPath, data, 0644); err != nil {
		if backupPath != "" {
			if restoreErr := Restore(backupPath, dedrmPath); restoreErr != nil {
				log.Error().Err(restoreErr).Msg("failed to restore dedrm.json backup")
			} else {
				log.Warn().Str("backup", backupPath).Msg("restored dedrm.json from backup")
			}
		}
		return errors.Wrap(err, errors.ErrFileWrite, "failed to write dedrm.json")
	}
	return nil
}

// Restore copies a backup file back over dedrm.json.
func Restore(backupPath, dedrmPath string) error {
	data, err := os.ReadFile(backupPath)
	if err != nil {
		return errors.Wrap(err, errors.ErrFileAccess, "failed to read backup")
	}
	if err := os.WriteFile(dedrmPath, data, 0644); err != nil {
		return errors.Wrap(err, errors.ErrFileWrite, "failed to restore dedrm.json")
	}
	return nil
}

// Verify reads back the installed configuration and returns the number
// of kindle keys and the extra key file path it carries.
func Verify(dedrmPath string) (keyCount int, extraKeyFile string, err error) {
	data, err := os.ReadFile(dedrmPath)
	if err != nil {
		return 0, "", errors.Wrap(err, errors.ErrFileAccess, "failed to read dedrm.json")
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, "", errors.Wrap(err, errors.ErrMalformedOutput, "dedrm.json is not valid JSON")
	}
	if keys, ok := doc["kindlekeys"].(map[string]any); ok {
		keyCount = len(keys)
	}
	extraKeyFile, _ = doc["kindleextrakeyfile"].(string)
	return keyCount, extraKeyFile, nil
}

func stringOr(doc map[string]any, key, fallback string) string {
	if v, ok := doc[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func stringSlice(doc map[string]any, key string) []string {
	out := []string{}
	if items, ok := doc[key].([]any); ok {
		for _, item := range items {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}
