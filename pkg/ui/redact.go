package ui

import (
	"regexp"
	"strings"
)

// drmKeyPattern matches plugin key lines of the form
// "amzn1.drm-key.v1.<uuid>$secret_key:<hex>".
var drmKeyPattern = regexp.MustCompile(`(amzn1\.drm-key\.v1\.)([a-f0-9-]+)(\$secret_key:)([a-f0-9]+)`)

// Obfuscate masks a sensitive value, keeping the first and last two
// characters. Values of four characters or fewer are returned as-is;
// masking them would leave nothing recognizable anyway.
func Obfuscate(value string) string {
	if len(value) <= 4 {
		return value
	}
	return value[:2] + strings.Repeat("*", len(value)-4) + value[len(value)-2:]
}

// RedactLine masks the sensitive parts of a single output line when
// hide is set: DSN values, token lists, and DRM key material.
func RedactLine(line string, hide bool) string {
	if !hide {
		return line
	}

	switch {
	case strings.HasPrefix(line, "DSN "):
		value := strings.TrimSpace(strings.TrimPrefix(line, "DSN "))
		if value == "" {
			return line
		}
		return "DSN " + Obfuscate(value)

	case strings.HasPrefix(line, "Tokens "):
		value := strings.TrimSpace(strings.TrimPrefix(line, "Tokens "))
		if value == "" {
			return line
		}
		parts := strings.Split(value, ",")
		for i, part := range parts {
			parts[i] = Obfuscate(strings.TrimSpace(part))
		}
		return "Tokens " + strings.Join(parts, ",")

	case drmKeyPattern.MatchString(line):
		return drmKeyPattern.ReplaceAllStringFunc(line, func(match string) string {
			groups := drmKeyPattern.FindStringSubmatch(match)
			return groups[1] + Obfuscate(groups[2]) + groups[3] + Obfuscate(groups[4])
		})

	case strings.Contains(line, "$secret_key:"):
		prefix, secret, _ := strings.Cut(line, "$secret_key:")
		if trimmed := strings.TrimSpace(secret); trimmed != "" {
			return prefix + "$secret_key:" + Obfuscate(trimmed)
		}
		return line

	default:
		return line
	}
}

// Redact applies RedactLine to each line of a multi-line text.
func Redact(text string, hide bool) string {
	if !hide {
		return text
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = RedactLine(line, true)
	}
	return strings.Join(lines, "\n")
}
