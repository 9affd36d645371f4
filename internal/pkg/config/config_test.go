package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		JWT:      JWTConfig{Secret: "0123456789abcdef0123456789abcdef", Expire: 24},
		Database: DatabaseConfig{Host: "localhost", User: "blog", DBName: "blog"},
		Session:  SessionConfig{Secret: "session-secret"},
		Media:    MediaConfig{Driver: "local"},
	}
}

func TestValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		cfg := validConfig()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("short jwt secret", func(t *testing.T) {
		cfg := validConfig()
		cfg.JWT.Secret = "short"
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing session secret", func(t *testing.T) {
		cfg := validConfig()
		cfg.Session.Secret = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("oss without bucket", func(t *testing.T) {
		cfg := validConfig()
		cfg.Media.Driver = "oss"
		assert.Error(t, cfg.Validate())
	})
}

func TestDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 1200, cfg.Media.PostMaxWidth)
	assert.Equal(t, 300, cfg.Media.AvatarMaxSize)
	assert.Equal(t, 85, cfg.Media.JPEGQuality)
	assert.Equal(t, int64(5), cfg.Media.MaxUploadMB)
	assert.False(t, cfg.Push.Enabled())
}
