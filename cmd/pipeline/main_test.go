package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"go-image-pipeline/internal/config"
	"go-image-pipeline/internal/model"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, opts, err := loadConfig(nil)
	require.NoError(t, err)
	require.Equal(t, config.DefaultSpec(), cfg.BatchSpec)
	require.Empty(t, cfg.DBPath, "ledger is off by default")
	require.Empty(t, opts.export)
}

func TestLoadConfig_FileKeepsPresetUnderneath(t *testing.T) {
	path := writeConfig(t, "item_count: 25\nmode: pipelined\n")

	cfg, _, err := loadConfig([]string{"-preset", "baseline", "-config", path})
	require.NoError(t, err)
	require.Equal(t, 25, cfg.ItemCount)
	require.Equal(t, model.ModePipelined, cfg.Mode)
	require.Equal(t, model.BaselineRetry.MaxAttempts, cfg.Fetch.MaxAttempts)
}

func TestLoadConfig_FlagsWin(t *testing.T) {
	path := writeConfig(t, "item_count: 25\nworkers:\n  cpu_workers: 4\n")

	cfg, opts, err := loadConfig([]string{
		"-config", path, "-n", "7", "-cpu-workers", "16", "-mode", "pipelined", "-export", "report.csv",
	})
	require.NoError(t, err)
	require.Equal(t, 7, cfg.ItemCount)
	require.Equal(t, 16, cfg.Workers.CPU)
	require.Equal(t, model.ModePipelined, cfg.Mode)
	require.Equal(t, "report.csv", opts.export)
}

func TestLoadConfig_LedgerPath(t *testing.T) {
	path := writeConfig(t, "db_path: from-file.db\n")

	cfg, _, err := loadConfig([]string{"-config", path})
	require.NoError(t, err)
	require.Equal(t, "from-file.db", cfg.DBPath)

	cfg, _, err = loadConfig([]string{"-config", path, "-db", "from-flag.db"})
	require.NoError(t, err)
	require.Equal(t, "from-flag.db", cfg.DBPath)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, _, err := loadConfig([]string{"-preset", "turbo"})
	require.ErrorIs(t, err, config.ErrInvalidConfig)

	_, _, err = loadConfig([]string{"-config", filepath.Join(t.TempDir(), "missing.yaml")})
	require.ErrorIs(t, err, os.ErrNotExist)
}
