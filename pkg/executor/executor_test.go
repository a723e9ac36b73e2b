package executor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kfxtools/keyfinder/pkg/executor"
)

func TestFilterNoise(t *testing.T) {
	tests := []struct {
		name   string
		stderr string
		want   []string
	}{
		{
			name:   "only_noise",
			stderr: "QObject::startTimer: Timers can only be used with threads started with QThread\nFontconfig error: Cannot load default config file\n",
			want:   nil,
		},
		{
			name:   "mixed",
			stderr: "Fontconfig error: Cannot load default config file\nCould not open voucher\n\n",
			want:   []string{"Could not open voucher"},
		},
		{
			name:   "empty",
			stderr: "",
			want:   nil,
		},
		{
			name:   "whitespace_trimmed",
			stderr: "  real error  \n",
			want:   []string{"real error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, executor.FilterNoise(tt.stderr))
		})
	}
}

func TestFailureMessage(t *testing.T) {
	tests := []struct {
		name   string
		result executor.Result
		want   string
	}{
		{
			name:   "stderr_wins",
			result: executor.Result{ExitCode: 2, Stderr: "bad voucher\n", Stdout: "error: ignored"},
			want:   "bad voucher",
		},
		{
			name:   "stdout_fallback_mentions_error",
			result: executor.Result{ExitCode: 2, Stderr: "QThread warning\n", Stdout: "extraction failed: no secrets"},
			want:   "extraction failed: no secrets",
		},
		{
			name:   "stdout_without_error_marker_is_ignored",
			result: executor.Result{ExitCode: 3, Stderr: "", Stdout: "processing book"},
			want:   "exit code 3",
		},
		{
			name:   "noise_only_stderr_falls_through_to_exit_code",
			result: executor.Result{ExitCode: 1, Stderr: "QObject::startTimer: nope\nFontconfig error: nope\n"},
			want:   "exit code 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := executor.FailureMessage(tt.result)
			assert.Equal(t, tt.want, got)
			assert.NotEmpty(t, got)
		})
	}
}

func TestResultOk(t *testing.T) {
	assert.True(t, executor.Result{ExitCode: 0}.Ok())
	assert.False(t, executor.Result{ExitCode: 1}.Ok())
	assert.False(t, executor.Result{ExitCode: 0, TimedOut: true}.Ok())
	assert.False(t, executor.Result{Err: assert.AnError}.Ok())
}
