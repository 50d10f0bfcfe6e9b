package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/crewdeck/internal/config"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CREWDECK_JWT_SECRET", testSecret)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "crewdeck", cfg.Database.User)
	assert.Equal(t, "crewdeck_dev", cfg.Database.DBName)
	assert.Equal(t, 25, cfg.Database.MaxConns)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTTL)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "default", cfg.Crew.Model)
	assert.Nil(t, cfg.Crew.APIKeys)
	assert.False(t, cfg.SelfHosted)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("CREWDECK_JWT_SECRET", testSecret)
	t.Setenv("CREWDECK_DB_HOST", "db.internal")
	t.Setenv("CREWDECK_DB_PORT", "5433")
	t.Setenv("CREWDECK_JWT_ACCESS_TTL", "1h")
	t.Setenv("CREWDECK_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("CREWDECK_SELF_HOSTED", "true")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, time.Hour, cfg.JWT.AccessTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.True(t, cfg.SelfHosted)
}

func TestLoad_CrewAPIKeys(t *testing.T) {
	t.Setenv("CREWDECK_JWT_SECRET", testSecret)
	t.Setenv("CREWDECK_CREW_API_KEYS", "researcher=cdk_aaaa1111,coder=cdk_bbbb2222")

	cfg, err := config.Load()
	require.NoError(t, err)

	require.Len(t, cfg.Crew.APIKeys, 2)
	assert.Equal(t, "cdk_aaaa1111", cfg.Crew.APIKeys["researcher"])
	assert.Equal(t, "cdk_bbbb2222", cfg.Crew.APIKeys["coder"])
}

func TestLoad_MalformedAPIKeyPair(t *testing.T) {
	t.Setenv("CREWDECK_JWT_SECRET", testSecret)
	t.Setenv("CREWDECK_CREW_API_KEYS", "researcher")

	_, err := config.Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed pair")
}

func TestLoad_MissingJWTSecret(t *testing.T) {
	t.Setenv("CREWDECK_JWT_SECRET", "")

	_, err := config.Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "CREWDECK_JWT_SECRET is required")
}

func TestLoad_ShortJWTSecret(t *testing.T) {
	t.Setenv("CREWDECK_JWT_SECRET", "too-short")

	_, err := config.Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 32 characters")
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"non-numeric port", "CREWDECK_DB_PORT", "not-a-port"},
		{"port out of range", "CREWDECK_DB_PORT", "70000"},
		{"zero max conns", "CREWDECK_DB_MAX_CONNS", "0"},
		{"bad duration", "CREWDECK_JWT_ACCESS_TTL", "fifteen minutes"},
		{"negative ttl", "CREWDECK_JWT_ACCESS_TTL", "-5m"},
		{"bad bool", "CREWDECK_SELF_HOSTED", "maybe"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("CREWDECK_JWT_SECRET", testSecret)
			t.Setenv(tc.key, tc.value)

			_, err := config.Load()

			require.Error(t, err)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Parallel()

	db := config.DatabaseConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "crewdeck",
		Password: "hunter2",
		DBName:   "crewdeck",
		SSLMode:  "require",
	}

	assert.Equal(t,
		"host=db.internal port=5433 user=crewdeck password=hunter2 dbname=crewdeck sslmode=require",
		db.DSN())
}
