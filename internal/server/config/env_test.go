package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_parseEnv_Overlay(t *testing.T) {
	t.Setenv("DATABASE_DSN", "postgres://env")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("SMTP_PORT", "2525")

	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)

	assert.Equal(t, "postgres://env", cfg.DatabaseDSN)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 2525, cfg.SMTPPort)
	// untouched fields keep defaults
	assert.Equal(t, ":8080", cfg.EndpointAddrHTTP)
	assert.Equal(t, "secretKey", cfg.SecretKey)
}

func Test_parseEnv_InvalidInt(t *testing.T) {
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := &Config{}
	cfg.LoadDefaults()
	require.Panics(t, func() { parseEnv(cfg) })
}
