package phases

import (
	"fmt"

	"github.com/kfxtools/keyfinder/pkg/dedrm"
	"github.com/kfxtools/keyfinder/pkg/ui"
)

// RunPluginConfig installs the extracted keys into the DeDRM plugin's
// dedrm.json. The existing file is backed up first; a failed write
// restores the backup.
func RunPluginConfig(env *Env, dsn, tokens string) error {
	p := env.Paths

	backup, err := dedrm.Backup(p.DedrmJSON(), p.BackupsDir())
	if err != nil {
		return err
	}
	if backup != "" {
		ui.OK("Backup created: %s", backup)
	} else {
		ui.Warn("No existing dedrm.json found - creating a new one")
	}

	ui.Step("Processing kindlekey.k4i...")
	key, err := dedrm.KeyFromK4I(p.K4IFile(), dsn, tokens)
	if err != nil {
		return err
	}

	ui.Step("Building DeDRM configuration...")
	if ref := p.ReferenceJSON(); ref != "" {
		ui.Info("Using reference template: %s", ref)
	}
	config, err := dedrm.BuildConfig(key, p.VoucherKeyFile(), p.ReferenceJSON())
	if err != nil {
		return err
	}

	ui.Step("Writing dedrm.json...")
	if err := dedrm.Write(p.DedrmJSON(), config, backup); err != nil {
		return err
	}
	ui.OK("DeDRM configuration updated")

	keyCount, extraKeyFile, err := dedrm.Verify(p.DedrmJSON())
	if err != nil {
		return err
	}

	dsnVal, tokensVal := key.DSN, key.Tokens
	if env.hideSensitive() {
		dsnVal = ui.Obfuscate(dsnVal)
		tokensVal = ui.Obfuscate(tokensVal)
	}
	rows := [][]string{
		{"Total Kindle Keys", fmt.Sprintf("%d", keyCount)},
		{"Extra Key File", extraKeyFile},
		{"DSN", dsnVal},
		{"Tokens", tokensVal},
		{"Secrets", fmt.Sprintf("%d", len(key.Secrets))},
		{"New Secrets", fmt.Sprintf("%d", len(key.NewSecrets))},
	}
	ui.Blank()
	ui.KeyValueTable(rows)

	return nil
}
