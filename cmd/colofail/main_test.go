package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xReLogic/colofail/internal/config"
	"github.com/0xReLogic/colofail/internal/registry"
)

func TestSeedRegistryMergesFileAndInline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("failing_countries:\n  CA: 500\n  BR: 100\n"), 0o644))

	fc, err := seedRegistry(config.SeedConfig{
		File:             path,
		FailingCountries: map[string]string{"br": "0", "jp": "250"},
	})
	require.NoError(t, err)
	assert.Equal(t, registry.FailingCountries{"CA": 500, "BR": 0, "JP": 250}, fc)
}

func TestSeedRegistryEmpty(t *testing.T) {
	fc, err := seedRegistry(config.SeedConfig{})
	require.NoError(t, err)
	assert.Empty(t, fc)

	_, err = seedRegistry(config.SeedConfig{File: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}
