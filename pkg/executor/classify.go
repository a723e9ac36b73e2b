package executor

import (
	"fmt"
	"strings"
)

// Known-benign noise the bundled Qt tooling writes to stderr on every
// run. These lines are stripped before an error message is built.
var noiseSubstrings = []string{
	"QObject::startTimer",
	"Fontconfig error",
	"QThread",
}

// FilterNoise strips the known-benign warning lines and blank lines from
// stderr text, returning the remaining informative lines.
func FilterNoise(stderr string) []string {
	var kept []string
	for _, line := range strings.Split(stderr, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if isNoise(line) {
			continue
		}
		kept = append(kept, trimmed)
	}
	return kept
}

func isNoise(line string) bool {
	for _, sub := range noiseSubstrings {
		if strings.Contains(line, sub) {
			return true
		}
	}
	return false
}

// FailureMessage builds a best-effort error message for a nonzero exit:
// filtered stderr first, then stdout when it mentions an error, then a
// generic exit-code string. The result is never empty.
func FailureMessage(r Result) string {
	if lines := FilterNoise(r.Stderr); len(lines) > 0 {
		return strings.Join(lines, "\n")
	}

	stdout := strings.TrimSpace(r.Stdout)
	lower := strings.ToLower(stdout)
	if stdout != "" && (strings.Contains(lower, "error") || strings.Contains(lower, "failed")) {
		return stdout
	}

	return fmt.Sprintf("exit code %d", r.ExitCode)
}
