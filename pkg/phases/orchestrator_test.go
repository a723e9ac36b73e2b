// TEST TYPE: Unit Test
package phases

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kfxtools/keyfinder/pkg/batch"
	"github.com/kfxtools/keyfinder/pkg/config"
	"github.com/kfxtools/keyfinder/pkg/errors"
	"github.com/kfxtools/keyfinder/pkg/paths"
)

func testEnv(t *testing.T, cfg *config.Config) *Env {
	t.Helper()
	home := t.TempDir()
	t.Setenv(paths.EnvDataDir, home+"/data")
	t.Setenv(paths.EnvConfigDir, home+"/config")
	p, err := paths.New(home)
	require.NoError(t, err)
	if cfg == nil {
		cfg = &config.Config{SkipPhasePauses: true}
	}
	cfg.SkipPhasePauses = true
	cfg.ClearScreenBetweenPhases = false
	return &Env{Paths: p, Cfg: cfg}
}

func extractionWith(success, failed int, failedIDs ...string) *ExtractionResult {
	stats := batch.NewStats(success + failed)
	for i := 0; i < success; i++ {
		stats.Record(batch.Item{ID: "ok"}, batch.Outcome{Kind: batch.Success})
	}
	for _, id := range failedIDs {
		stats.Record(batch.Item{ID: id}, batch.Outcome{Kind: batch.Failure, Message: "boom"})
	}
	return &ExtractionResult{Stats: stats, DSN: "d1", Tokens: "t1"}
}

func TestPipelineStopsWhenExtractionFails(t *testing.T) {
	pl := &Pipeline{
		Env: testEnv(t, nil),
		extract: func(context.Context, *Env) (*ExtractionResult, error) {
			return nil, errors.New(errors.ErrPathNotFound, "no extractor")
		},
	}
	assert.Equal(t, 1, pl.Run(context.Background()))
}

func TestPipelineStopsWhenNoKeysExtracted(t *testing.T) {
	configured := false
	pl := &Pipeline{
		Env: testEnv(t, nil),
		extract: func(context.Context, *Env) (*ExtractionResult, error) {
			return extractionWith(0, 2, "B001", "B002"), nil
		},
		configurePlug: func(*Env, string, string) error {
			configured = true
			return nil
		},
	}
	assert.Equal(t, 1, pl.Run(context.Background()))
	assert.False(t, configured, "plugin configuration must not run without extracted keys")
}

func TestPipelineSkipsImportWhenDisabled(t *testing.T) {
	imported := false
	cfg := &config.Config{CalibreImport: config.CalibreImport{Enabled: false}}
	pl := &Pipeline{
		Env: testEnv(t, cfg),
		extract: func(context.Context, *Env) (*ExtractionResult, error) {
			return extractionWith(1, 0), nil
		},
		configurePlug: func(*Env, string, string) error { return nil },
		importBooks: func(context.Context, *Env, map[string]bool, ConfirmCleanupFunc) (*ImportResult, error) {
			imported = true
			return nil, nil
		},
	}
	assert.Equal(t, 0, pl.Run(context.Background()))
	assert.False(t, imported)
}

func TestPipelineThreadsFailedIDsIntoImportExclusion(t *testing.T) {
	var gotExclusions map[string]bool
	cfg := &config.Config{CalibreImport: config.CalibreImport{Enabled: true}}
	pl := &Pipeline{
		Env: testEnv(t, cfg),
		extract: func(context.Context, *Env) (*ExtractionResult, error) {
			return extractionWith(1, 2, "B001", "B002"), nil
		},
		configurePlug: func(*Env, string, string) error { return nil },
		importBooks: func(_ context.Context, _ *Env, exclude map[string]bool, _ ConfirmCleanupFunc) (*ImportResult, error) {
			gotExclusions = exclude
			return &ImportResult{Stats: batch.NewStats(0)}, nil
		},
	}
	assert.Equal(t, 0, pl.Run(context.Background()))
	assert.Equal(t, map[string]bool{"B001": true, "B002": true}, gotExclusions)
}

func TestPipelineSkipsConversionWithoutAcceptedBooks(t *testing.T) {
	converted := false
	cfg := &config.Config{CalibreImport: config.CalibreImport{
		Enabled:       true,
		ConvertToEPUB: true,
	}}
	pl := &Pipeline{
		Env: testEnv(t, cfg),
		extract: func(context.Context, *Env) (*ExtractionResult, error) {
			return extractionWith(1, 0), nil
		},
		configurePlug: func(*Env, string, string) error { return nil },
		importBooks: func(context.Context, *Env, map[string]bool, ConfirmCleanupFunc) (*ImportResult, error) {
			stats := batch.NewStats(1)
			stats.Record(batch.Item{ID: "b"}, batch.Outcome{Kind: batch.Duplicate})
			return &ImportResult{Stats: stats}, nil
		},
		convert: func(context.Context, *Env, []string) (*ConversionResult, error) {
			converted = true
			return nil, nil
		},
	}
	assert.Equal(t, 0, pl.Run(context.Background()))
	assert.False(t, converted, "conversion must not run without accepted book ids")
}

func TestPipelineRunsConversionWithAcceptedBooks(t *testing.T) {
	var gotIDs []string
	cfg := &config.Config{CalibreImport: config.CalibreImport{
		Enabled:       true,
		ConvertToEPUB: true,
	}}
	pl := &Pipeline{
		Env: testEnv(t, cfg),
		extract: func(context.Context, *Env) (*ExtractionResult, error) {
			return extractionWith(1, 0), nil
		},
		configurePlug: func(*Env, string, string) error { return nil },
		importBooks: func(context.Context, *Env, map[string]bool, ConfirmCleanupFunc) (*ImportResult, error) {
			stats := batch.NewStats(2)
			stats.Record(batch.Item{ID: "a"}, batch.Outcome{Kind: batch.Success, AcceptedID: "11"})
			stats.Record(batch.Item{ID: "b"}, batch.Outcome{Kind: batch.Success, AcceptedID: "12"})
			return &ImportResult{Stats: stats}, nil
		},
		convert: func(_ context.Context, _ *Env, ids []string) (*ConversionResult, error) {
			gotIDs = ids
			return &ConversionResult{Stats: batch.NewStats(2)}, nil
		},
	}
	assert.Equal(t, 0, pl.Run(context.Background()))
	assert.Equal(t, []string{"11", "12"}, gotIDs)
}

func TestPipelineStopsWhenPluginConfigFails(t *testing.T) {
	pl := &Pipeline{
		Env: testEnv(t, nil),
		extract: func(context.Context, *Env) (*ExtractionResult, error) {
			return extractionWith(1, 0), nil
		},
		configurePlug: func(*Env, string, string) error {
			return errors.New(errors.ErrFileWrite, "disk full")
		},
	}
	assert.Equal(t, 1, pl.Run(context.Background()))
}
