package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/leveledu/pkg/config"
)

type serverConfig struct {
	Addr    string        `env:"LEVELEDU_TEST_ADDR" envDefault:":8080"`
	Timeout time.Duration `env:"LEVELEDU_TEST_TIMEOUT" envDefault:"5s"`
}

type requiredConfig struct {
	Secret string `env:"LEVELEDU_TEST_REQUIRED_SECRET,required"`
}

type cachedConfig struct {
	Value string `env:"LEVELEDU_TEST_CACHED"`
}

func TestLoad(t *testing.T) {
	t.Run("defaults and overrides", func(t *testing.T) {
		config.Reset()
		t.Setenv("LEVELEDU_TEST_TIMEOUT", "30s")

		var cfg serverConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, ":8080", cfg.Addr)
		assert.Equal(t, 30*time.Second, cfg.Timeout)
	})

	t.Run("missing required value", func(t *testing.T) {
		config.Reset()

		var cfg requiredConfig
		err := config.Load(&cfg)
		require.Error(t, err)
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})

	t.Run("nil pointer", func(t *testing.T) {
		var cfg *serverConfig
		assert.ErrorIs(t, config.Load(cfg), config.ErrNilPointer)
	})

	t.Run("value is cached per type", func(t *testing.T) {
		config.Reset()
		t.Setenv("LEVELEDU_TEST_CACHED", "first")

		var a cachedConfig
		require.NoError(t, config.Load(&a))

		t.Setenv("LEVELEDU_TEST_CACHED", "second")
		var b cachedConfig
		require.NoError(t, config.Load(&b))

		assert.Equal(t, "first", b.Value)
	})
}

func TestMustLoad(t *testing.T) {
	config.Reset()
	assert.Panics(t, func() {
		var cfg requiredConfig
		config.MustLoad(&cfg)
	})
}
