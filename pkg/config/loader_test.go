package config_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifyq/pkg/config"
)

type workerConfig struct {
	PollInterval time.Duration `env:"CFGTEST_POLL_INTERVAL" envDefault:"1s"`
	BatchSize    int           `env:"CFGTEST_BATCH_SIZE" envDefault:"20"`
	Channels     []string      `env:"CFGTEST_CHANNELS" envSeparator:","`
}

type requiredConfig struct {
	Token string `env:"CFGTEST_REQUIRED_TOKEN,required"`
}

type cachedConfig struct {
	Value string `env:"CFGTEST_CACHED" envDefault:"first"`
}

type concurrentConfig struct {
	Value string `env:"CFGTEST_CONCURRENT" envDefault:"shared"`
}

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("CFGTEST_POLL_INTERVAL", "250ms")
	t.Setenv("CFGTEST_CHANNELS", "email,sms")
	config.ResetCache()

	var cfg workerConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 20, cfg.BatchSize)
	assert.Equal(t, []string{"email", "sms"}, cfg.Channels)

	assert.ErrorIs(t, config.Load[workerConfig](nil), config.ErrNilPointer)
}

func TestLoad_Required(t *testing.T) {
	config.ResetCache()
	require.NoError(t, os.Unsetenv("CFGTEST_REQUIRED_TOKEN"))

	var cfg requiredConfig
	assert.ErrorIs(t, config.Load(&cfg), config.ErrParsingConfig)
	assert.Panics(t, func() { config.MustLoad(&cfg) })

	t.Setenv("CFGTEST_REQUIRED_TOKEN", "secret")
	require.NoError(t, config.Load(&cfg), "failed parses are not cached")
	assert.Equal(t, "secret", cfg.Token)
}

func TestLoad_Cached(t *testing.T) {
	config.ResetCache()
	t.Setenv("CFGTEST_CACHED", "first")

	var cfg cachedConfig
	require.NoError(t, config.Load(&cfg))

	t.Setenv("CFGTEST_CACHED", "second")
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "first", cfg.Value)

	require.NoError(t, config.ForceReloadConfig(&cfg))
	assert.Equal(t, "second", cfg.Value)
}

func TestLoad_Concurrent(t *testing.T) {
	config.ResetCache()

	var wg sync.WaitGroup
	results := make([]string, 20)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var cfg concurrentConfig
			if err := config.Load(&cfg); err == nil {
				results[i] = cfg.Value
			}
		}()
	}
	wg.Wait()

	for _, v := range results {
		assert.Equal(t, "shared", v)
	}
}

func TestLoadEnv(t *testing.T) {
	base := writeEnvFile(t, "CFGTEST_BATCH_SIZE=50\nCFGTEST_CHANNELS=\"push,in_app\"\n")
	override := writeEnvFile(t, "CFGTEST_BATCH_SIZE=75\n")
	t.Setenv("CFGTEST_BATCH_SIZE", "1")
	t.Setenv("CFGTEST_CHANNELS", "")

	require.NoError(t, config.LoadEnv(base, override))
	config.ResetCache()

	var cfg workerConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, 75, cfg.BatchSize)
	assert.Equal(t, []string{"push", "in_app"}, cfg.Channels)

	err := config.LoadEnv(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorIs(t, err, config.ErrLoadingEnvFile)
	assert.Panics(t, func() { config.MustLoadEnv(filepath.Join(t.TempDir(), "missing.env")) })
	assert.NotPanics(t, func() { config.MustLoadEnv(base) })
}
