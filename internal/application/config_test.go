package application

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-postfactum/infrastructure/solver"
	"github.com/ahrav/go-postfactum/internal/ports"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 6*time.Second, cfg.Solver.TimeLimit)
	assert.False(t, cfg.Solver.Verbose)
	assert.Equal(t, solver.DefaultConfig(), cfg.Solver.EngineConfig())
}

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantKey string
		verify  func(t *testing.T, cfg Config)
	}{
		{
			name: "empty document keeps defaults",
			yaml: "",
			verify: func(t *testing.T, cfg Config) {
				assert.Equal(t, DefaultConfig(), cfg)
			},
		},
		{
			name: "overrides merge onto defaults",
			yaml: `
solver:
  time_limit: 2s
  verbose: true
  inner_method: BFGS
sweep:
  max_concurrency: 8
  sessions_per_second: 50
  burst: 10
cache:
  enabled: false
server:
  addr: "127.0.0.1:9090"
`,
			verify: func(t *testing.T, cfg Config) {
				assert.Equal(t, 2*time.Second, cfg.Solver.TimeLimit)
				assert.True(t, cfg.Solver.Verbose)
				assert.Equal(t, "BFGS", cfg.Solver.InnerMethod)
				assert.Equal(t, 1e-9, cfg.Solver.FeasibilityTolerance, "unset keys keep defaults")
				assert.Equal(t, 8, cfg.Sweep.MaxConcurrency)
				assert.Equal(t, 50.0, cfg.Sweep.SessionsPerSecond)
				assert.False(t, cfg.Cache.Enabled)
				assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr)
			},
		},
		{
			name:    "unknown inner method",
			yaml:    "solver:\n  inner_method: simplex\n",
			wantKey: "Config.Solver.InnerMethod",
		},
		{
			name:    "non-positive time limit",
			yaml:    "solver:\n  time_limit: 0s\n",
			wantKey: "Config.Solver.TimeLimit",
		},
		{
			name:    "max penalty below initial",
			yaml:    "solver:\n  initial_penalty: 100\n  max_penalty: 10\n",
			wantKey: "Config.Solver.MaxPenalty",
		},
		{
			name:    "zero concurrency",
			yaml:    "sweep:\n  max_concurrency: 0\n",
			wantKey: "Config.Sweep.MaxConcurrency",
		},
		{
			name:    "enabled cache without size",
			yaml:    "cache:\n  enabled: true\n  size: 0\n",
			wantKey: "Config.Cache.Size",
		},
		{
			name:    "bad listen address",
			yaml:    "server:\n  addr: localhost\n",
			wantKey: "Config.Server.Addr",
		},
		{
			name:    "unknown key",
			yaml:    "solver:\n  time_limt: 2s\n",
			wantKey: "yaml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseConfig([]byte(tt.yaml))
			if tt.wantKey != "" {
				var cerr *ports.ConfigError
				require.ErrorAs(t, err, &cerr)
				assert.Equal(t, tt.wantKey, cerr.ConfigKey)
				return
			}
			require.NoError(t, err)
			tt.verify(t, cfg)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("reads file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "postfactum.yaml")
		require.NoError(t, os.WriteFile(path, []byte("solver:\n  time_limit: 3s\n"), 0o600))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, 3*time.Second, cfg.Solver.TimeLimit)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.ErrorIs(t, err, ports.ErrConfigNotFound)
	})
}

func TestSolverConfig_EngineConfig(t *testing.T) {
	cfg := DefaultConfig().Solver
	cfg.MaxOuterIterations = 5
	cfg.InnerMethod = solver.MethodCG
	cfg.FeasibilityTolerance = 1e-7

	engine := cfg.EngineConfig()
	assert.Equal(t, 5, engine.MaxOuterIterations)
	assert.Equal(t, solver.MethodCG, engine.InnerMethod)
	assert.Equal(t, 1e-7, engine.FeasibilityTolerance)
	assert.NoError(t, engine.Validate())
}
