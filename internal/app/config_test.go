package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			Commerce: CommerceConfig{BaseURL: "https://shop.example/api"},
			Storage:  StorageConfig{Driver: DriverFile, Dir: "./data"},
		}
	}
	require.NoError(t, func() error { c := valid(); return c.Validate() }())

	for _, tt := range []struct {
		name   string
		mutate func(*Config)
		msg    string
	}{
		{"NoCommerce", func(c *Config) { c.Commerce.BaseURL = "" }, "commerce base URL"},
		{"UnknownDriver", func(c *Config) { c.Storage.Driver = "sqlite" }, "unknown storage driver"},
		{"FileWithoutDir", func(c *Config) { c.Storage.Dir = "" }, "storage dir"},
		{"PostgresWithoutURL", func(c *Config) { c.Storage.Driver = DriverPostgres }, "database URL"},
		{"NegativeSync", func(c *Config) { c.Sync.Interval = -1 }, "sync interval"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestConfig_PlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u@db/kart")
	t.Setenv("PORT", "9000")

	c := Config{Addr: "127.0.0.1:8080"}
	c.applyPlatformDefaults()
	assert.Equal(t, "postgres://u@db/kart", c.Storage.DatabaseURL)
	assert.Equal(t, "127.0.0.1:9000", c.Addr)
}
