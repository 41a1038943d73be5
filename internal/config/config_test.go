package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "en-GB", cfg.Locale)
	assert.Equal(t, 2020, cfg.StartYear)
	assert.Equal(t, 2030, cfg.EndYear)
	assert.Equal(t, "-//Days Calendar//CYF//EN", cfg.ProductID)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("locale: fr\nstart_year: 2024\nend_year: 2022\nlookup:\n  offline: true\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "fr", cfg.Locale)
	assert.Equal(t, 2024, cfg.StartYear)
	assert.Equal(t, 2024, cfg.EndYear)
	assert.True(t, cfg.Lookup.Offline)
	assert.Equal(t, 10, cfg.Lookup.TimeoutSeconds)
	assert.Equal(t, 4, cfg.Lookup.Concurrency)
	assert.Equal(t, "127.0.0.1:8080", cfg.Listen)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("locale: fr\noutput_path: a.ics\n"), 0o600))

	t.Setenv("DAYCAL_LOCALE", "de")
	t.Setenv("DAYCAL_END_YEAR", "2040")
	t.Setenv("DAYCAL_OFFLINE", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "de", cfg.Locale)
	assert.Equal(t, 2040, cfg.EndYear)
	assert.Equal(t, "a.ics", cfg.OutputPath)
	assert.True(t, cfg.Lookup.Offline)
}

func TestLoadRejectsBadInput(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("locale: [unterminated"), 0o600))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Locale = "es"
	cfg.BasicAuth = &BasicAuthConfig{Username: "u", Password: "p"}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestWriteFileAtomicReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.ics")
	require.NoError(t, WriteFileAtomic(path, []byte("one"), 0o644))
	require.NoError(t, WriteFileAtomic(path, []byte("two"), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
