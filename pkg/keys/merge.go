package keys

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/kfxtools/keyfinder/pkg/errors"
)

// k4i keys whose array values accumulate across extractions.
var k4iSecretKeys = []string{
	"kindle.account.secrets",
	"kindle.account.new_secrets",
	"kindle.account.clear_old_secrets",
}

// Merge folds the per-book key files tempKey and tempK4I into the
// accumulated outKey and outK4I. Merging the same extraction twice is a
// no-op.
//
// The voucher file gains only the lines it does not already contain,
// compared byte for byte. The k4i document is merged field-wise: secret arrays take
// the union with new values appended in order, DSN and tokens are
// overwritten only when the new document carries non-empty values.
func Merge(outKey, outK4I, tempKey, tempK4I string) error {
	newKey, err := os.ReadFile(tempKey)
	if err != nil {
		return errors.Wrap(err, errors.ErrKeyMerge, "temporary key files not found")
	}
	newK4I, err := os.ReadFile(tempK4I)
	if err != nil {
		return errors.Wrap(err, errors.ErrKeyMerge, "temporary key files not found")
	}

	if err := mergeVoucher(outKey, strings.TrimSpace(string(newKey))); err != nil {
		return err
	}
	return mergeK4I(outK4I, strings.TrimSpace(string(newK4I)))
}

func mergeVoucher(outKey, newContent string) error {
	existing, err := os.ReadFile(outKey)
	if os.IsNotExist(err) {
		if err := ensureParent(outKey); err != nil {
			return err
		}
		if err := os.WriteFile(outKey, []byte(newContent), 0644); err != nil {
			return errors.Wrap(err, errors.ErrKeyMerge, "failed to write voucher key file")
		}
		return nil
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrKeyMerge, "failed to read voucher key file")
	}

	seen := map[string]bool{}
	for _, line := range strings.Split(string(existing), "\n") {
		seen[line] = true
	}
	var missing []string
	for _, line := range strings.Split(newContent, "\n") {
		if !seen[line] {
			missing = append(missing, line)
			seen[line] = true
		}
	}
	if len(missing) == 0 {
		return nil
	}

	sep := "\n"
	if len(existing) == 0 {
		sep = ""
	}

	f, err := os.OpenFile(outKey, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrap(err, errors.ErrKeyMerge, "failed to open voucher key file")
	}
	defer f.Close()
	if _, err := f.WriteString(sep + strings.Join(missing, "\n")); err != nil {
		return errors.Wrap(err, errors.ErrKeyMerge, "failed to append to voucher key file")
	}
	return nil
}

func mergeK4I(outK4I, newContent string) error {
	existingRaw, err := os.ReadFile(outK4I)
	if os.IsNotExist(err) {
		if err := ensureParent(outK4I); err != nil {
			return err
		}
		if err := os.WriteFile(outK4I, []byte(newContent), 0644); err != nil {
			return errors.Wrap(err, errors.ErrKeyMerge, "failed to write k4i file")
		}
		return nil
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrKeyMerge, "failed to read k4i file")
	}

	var existing, incoming map[string]any
	if err := json.Unmarshal(existingRaw, &existing); err != nil {
		return errors.Wrap(err, errors.ErrKeyMerge, "existing k4i file is not valid JSON")
	}
	if err := json.Unmarshal([]byte(newContent), &incoming); err != nil {
		return errors.Wrap(err, errors.ErrKeyMerge, "new k4i data is not valid JSON")
	}

	for _, key := range k4iSecretKeys {
		newItems, ok := incoming[key].([]any)
		if !ok {
			continue
		}
		have, _ := existing[key].([]any)
		for _, item := range newItems {
			if !containsValue(have, item) {
				have = append(have, item)
			}
		}
		existing[key] = have
	}

	if dsn, ok := incoming["DSN"].(string); ok && dsn != "" {
		existing["DSN"] = dsn
	}
	if tokens, ok := incoming["kindle.account.tokens"].(string); ok && tokens != "" {
		existing["kindle.account.tokens"] = tokens
	}

	merged, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrKeyMerge, "failed to encode merged k4i data")
	}
	if err := os.WriteFile(outK4I, merged, 0644); err != nil {
		return errors.Wrap(err, errors.ErrKeyMerge, "failed to write k4i file")
	}
	return nil
}

func containsValue(items []any, candidate any) bool {
	want, err := json.Marshal(candidate)
	if err != nil {
		return false
	}
	for _, item := range items {
		got, err := json.Marshal(item)
		if err != nil {
			continue
		}
		if string(got) == string(want) {
			return true
		}
	}
	return false
}

func ensureParent(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, errors.ErrDirCreate, "failed to create key directory")
	}
	return nil
}
