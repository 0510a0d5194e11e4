package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func productionConfig() *Config {
	return &Config{
		Env:        "production",
		Port:       "8460",
		JWTSecret:  "secure-secret-at-least-32-chars-long",
		DBPassword: "secure-password",
		DBSSLMode:  "require",
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Run("missing port", func(t *testing.T) {
		c := productionConfig()
		c.Port = ""
		assert.Error(t, c.Validate())
	})

	t.Run("missing JWT secret", func(t *testing.T) {
		c := productionConfig()
		c.JWTSecret = ""
		assert.Error(t, c.Validate())
	})

	t.Run("production rejects default JWT secret", func(t *testing.T) {
		c := productionConfig()
		c.JWTSecret = "your-secret-key-change-in-production"
		assert.Error(t, c.Validate())
	})

	t.Run("production rejects short JWT secret", func(t *testing.T) {
		c := productionConfig()
		c.JWTSecret = "too-short"
		assert.Error(t, c.Validate())
	})

	t.Run("production rejects weak DB password", func(t *testing.T) {
		c := productionConfig()
		c.DBPassword = "password"
		assert.Error(t, c.Validate())

		c.DBPassword = ""
		assert.Error(t, c.Validate())
	})

	t.Run("prod alias gets the same checks", func(t *testing.T) {
		c := productionConfig()
		c.Env = "prod"
		c.JWTSecret = "too-short"
		assert.Error(t, c.Validate())
	})

	t.Run("valid production config", func(t *testing.T) {
		assert.NoError(t, productionConfig().Validate())
	})

	t.Run("development tolerates a short secret", func(t *testing.T) {
		c := &Config{Env: "development", Port: "8460", JWTSecret: "dev-secret"}
		assert.NoError(t, c.Validate())
	})
}

func TestLoadConfig_Defaults(t *testing.T) {
	defer os.Unsetenv("APP_ENV")
	defer viper.Reset()

	os.Setenv("APP_ENV", "development")

	c, err := LoadConfig()
	assert.NoError(t, err)
	assert.Equal(t, "8460", c.Port)
	assert.Equal(t, "murmur", c.DBName)
	assert.Equal(t, "localhost:6379", c.RedisURL)
	assert.Equal(t, "development", c.Env)
	assert.NotEmpty(t, c.EmailFrom)
	assert.NotEmpty(t, c.ResetURLBase)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	defer os.Unsetenv("APP_ENV")
	defer os.Unsetenv("PORT")
	defer viper.Reset()

	os.Setenv("APP_ENV", "development")
	os.Setenv("PORT", "9999")

	c, err := LoadConfig()
	assert.NoError(t, err)
	assert.Equal(t, "9999", c.Port)
}
