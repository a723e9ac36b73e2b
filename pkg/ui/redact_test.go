// TEST TYPE: Unit Test
package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObfuscate(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"long value", "Pd545vnnr861r5P0", "Pd************P0"},
		{"exactly five chars", "abcde", "ab*de"},
		{"four chars untouched", "abcd", "abcd"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Obfuscate(tt.value))
		})
	}
}

func TestRedactLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		hide bool
		want string
	}{
		{
			name: "hide disabled passes through",
			line: "DSN abcdef123456",
			hide: false,
			want: "DSN abcdef123456",
		},
		{
			name: "dsn masked",
			line: "DSN abcdef123456",
			hide: true,
			want: "DSN ab********56",
		},
		{
			name: "token list masked per token",
			line: "Tokens abcdef,123456",
			hide: true,
			want: "Tokens ab**ef,12**56",
		},
		{
			name: "drm key uuid and secret masked",
			line: "amzn1.drm-key.v1.aabbccdd$secret_key:00112233",
			hide: true,
			want: "amzn1.drm-key.v1.aa****dd$secret_key:00****33",
		},
		{
			name: "bare secret key masked",
			line: "key $secret_key:deadbeef99",
			hide: true,
			want: "key $secret_key:de******99",
		},
		{
			name: "ordinary line untouched",
			line: "Processing book 1/3",
			hide: true,
			want: "Processing book 1/3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RedactLine(tt.line, tt.hide))
		})
	}
}

func TestRedactMultiline(t *testing.T) {
	in := "DSN abcdef\nProcessing\nTokens 123456"
	want := "DSN ab**ef\nProcessing\nTokens 12**56"
	assert.Equal(t, want, Redact(in, true))
	assert.Equal(t, in, Redact(in, false))
}
