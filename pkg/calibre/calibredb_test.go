// TEST TYPE: Unit Test
package calibre

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddedID(t *testing.T) {
	tests := []struct {
		name   string
		stdout string
		want   string
	}{
		{
			name:   "single id",
			stdout: "Backing up metadata\nAdded book ids: 123\n",
			want:   "123",
		},
		{
			name:   "multiple ids keeps first",
			stdout: "Added book ids: 45, 46, 47\n",
			want:   "45",
		},
		{
			name:   "no marker",
			stdout: "some other output\n",
			want:   "",
		},
		{
			name:   "empty output",
			stdout: "",
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseAddedID(tt.stdout))
		})
	}
}

func TestParseDuplicateTitle(t *testing.T) {
	tests := []struct {
		name   string
		stderr string
		want   string
	}{
		{
			name: "title on next line",
			stderr: "The following books were not added as they already exist in the database:\n" +
				"  The Example Title\n",
			want: "The Example Title",
		},
		{
			name: "parenthesized note skipped",
			stderr: "The following books were not added as they already exist in the database:\n" +
				"  (see --duplicates option)\n" +
				"  Another Title\n",
			want: "Another Title",
		},
		{
			name:   "no title present",
			stderr: "already exist in the database:\n",
			want:   "",
		},
		{
			name:   "unrelated error",
			stderr: "calibredb: something broke\n",
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseDuplicateTitle(tt.stderr))
		})
	}
}

func TestSourceFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cover.jpg"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "book.KFX-ZIP"), []byte("x"), 0644))

	name, isKFXZip, found := SourceFile(dir)
	assert.True(t, found)
	assert.True(t, isKFXZip)
	assert.Equal(t, "book.KFX-ZIP", name)
}

func TestSourceFileNoneFound(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metadata.opf"), []byte("x"), 0644))

	_, _, found := SourceFile(dir)
	assert.False(t, found)

	_, _, found = SourceFile(filepath.Join(dir, "missing"))
	assert.False(t, found)
}
