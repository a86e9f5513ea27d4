package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Valid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"year range", func(c *Config) { c.Filter.StartYear, c.Filter.EndYear = 2020, 2010 }, "EndYear"},
		{"workers", func(c *Config) { c.Engine.Workers = 0 }, "Workers"},
		{"precision", func(c *Config) { c.Output.Precision = 13 }, "Precision"},
		{"min pages", func(c *Config) { c.Filter.MinPages = -1 }, "MinPages"},
		{"fetch url", func(c *Config) { c.Fetch.URL = "not a url" }, "URL"},
		{"empty theory area", func(c *Config) { c.Registry.TheoryParentAreas = []string{""} }, "TheoryParentAreas"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseTier(t *testing.T) {
	for _, s := range []string{"", "main", "False", "0"} {
		tier, err := ParseTier(s)
		require.NoError(t, err, s)
		assert.Equal(t, TierMain, tier, s)
	}
	for _, s := range []string{"next", "TRUE", "1", "next-tier"} {
		tier, err := ParseTier(s)
		require.NoError(t, err, s)
		assert.Equal(t, TierNext, tier, s)
	}
	_, err := ParseTier("maybe")
	assert.Error(t, err)
}
