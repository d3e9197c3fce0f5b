package config

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Model != "spring_mass" {
		t.Errorf("expected model spring_mass, got %s", cfg.Model)
	}
	if cfg.Dt <= 0 {
		t.Error("dt should be positive")
	}
	if cfg.Duration <= 0 {
		t.Error("duration should be positive")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("chain", "bdf2")
	require.NotNil(t, cfg)
	assert.Equal(t, "ms", cfg.Method)
	assert.Equal(t, 0.0, cfg.Rho)
	assert.Equal(t, 5, cfg.InitState.Masses)
	assert.Equal(t, DefaultMaxIters, cfg.MaxIters, "defaults fill the fields a preset leaves out")

	cn := GetPreset("spring_mass", "bounce")
	require.NotNil(t, cn)
	assert.Equal(t, DefaultRho, cn.Rho)
}

func TestGetPreset_NotFound(t *testing.T) {
	assert.Nil(t, GetPreset("pendulum", "nonexistent"))
	assert.Nil(t, GetPreset("nonexistent", "small"))
}

func TestListPresets(t *testing.T) {
	presets := ListPresets("pendulum")
	sort.Strings(presets)
	assert.Equal(t, []string{"large", "small"}, presets)
	assert.Nil(t, ListPresets("nonexistent"))
}

func TestLoadSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	cfg := DefaultConfig()
	cfg.Method = "ms"
	cfg.Rho = 0.25
	cfg.Derivatives.Enabled = true
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: pendulum\ndt: 0.002\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "pendulum", cfg.Model)
	assert.Equal(t, 0.002, cfg.Dt)
	assert.Equal(t, DefaultDuration, cfg.Duration)
	assert.Equal(t, DefaultCoef, cfg.Derivatives.Coef)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("STEPSOL_DT", "0.5")
	t.Setenv("STEPSOL_METHOD", "euler")
	t.Setenv("STEPSOL_DERIVATIVES_MAX_ITER_COEF", "7")

	cfg := DefaultConfig()
	require.NoError(t, ApplyEnv(cfg))
	assert.Equal(t, 0.5, cfg.Dt)
	assert.Equal(t, "euler", cfg.Method)
	assert.Equal(t, 7, cfg.Derivatives.MaxIterCoef)
	assert.Equal(t, DefaultDuration, cfg.Duration)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero dt", func(c *Config) { c.Dt = 0 }},
		{"negative duration", func(c *Config) { c.Duration = -1 }},
		{"negative iterations", func(c *Config) { c.MaxIters = -1 }},
		{"rho above one", func(c *Config) { c.Rho = 1.5 }},
		{"negative residual scale", func(c *Config) { c.ResidualScale = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParams(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModResTest = true
	p := cfg.IntegratorParams()
	assert.Equal(t, cfg.MaxIters, p.MaxIters)
	assert.True(t, p.ModResTest)

	d := cfg.DerivativeParams()
	assert.Equal(t, DefaultCoef, d.Coef)
	assert.Equal(t, DefaultMaxIterCoef, d.MaxIterCoef)
	assert.True(t, d.ModResTest)
}
