package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("MEDREPORT_DEBUG", "")
	t.Setenv("DB_TYPE", "")
	t.Setenv("JWT_ACCESS_TOKEN_EXPIRATION", "")
	t.Setenv("PREDICTION_URL", "")
	t.Setenv("MEDREPORT_PORT", "")
	t.Setenv("MEDREPORT_ENV", "")
	t.Setenv("MEDREPORT_TRUSTED_PROXIES", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, time.Hour, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, time.Hour, cfg.Auth.ResetTokenTTL)
	assert.Equal(t, "http://localhost:5000/predict", cfg.Prediction.URL)
	assert.Equal(t, 10*time.Second, cfg.Prediction.Timeout)
	assert.Equal(t, DatabaseTypeSQLite, cfg.Database.Type)
	assert.Equal(t, 90, cfg.AuditRetentionDays)
}

func TestLoadRequiresSecretOutsideDebug(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("MEDREPORT_DEBUG", "")

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("MEDREPORT_DEBUG", "true")
	cfg, err := Load()
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Auth.JWTSecret)
}

func TestLoadRequiresSMTPInProduction(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("MEDREPORT_DEBUG", "")
	t.Setenv("MEDREPORT_ENV", "production")
	t.Setenv("SMTP_HOST", "")

	_, err := Load()
	assert.ErrorContains(t, err, "SMTP_HOST")

	t.Setenv("SMTP_HOST", "smtp.example.com")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Auth.CookieSecure)
}

func TestGetenvDuration(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"go duration", "90m", 90 * time.Minute},
		{"days", "7d", 7 * 24 * time.Hour},
		{"seconds", "3600", time.Hour},
		{"garbage falls back", "soon", 5 * time.Second},
		{"empty falls back", "", 5 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.value)
			assert.Equal(t, tt.want, getenvDuration("TEST_DURATION", 5*time.Second))
		})
	}
}

func TestGetenvList(t *testing.T) {
	t.Setenv("TEST_LIST", " http://a.example , ,http://b.example")
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, getenvList("TEST_LIST"))
}

func TestDatabaseConfigDSN(t *testing.T) {
	pg := DatabaseConfig{
		Type: DatabaseTypePostgreSQL,
		Server: ServerDBConfig{
			Host: "db", Port: 5432, Database: "med", Username: "u", Password: "p",
			SSLMode: "disable", TimeZone: "UTC",
		},
	}
	assert.Equal(t, "host=db user=u password=p dbname=med port=5432 sslmode=disable TimeZone=UTC", pg.GetDSN())
	require.NoError(t, pg.ValidateConfig())

	my := pg
	my.Type = DatabaseTypeMySQL
	my.Server.Port = 3306
	assert.Equal(t, "u:p@tcp(db:3306)/med?charset=utf8mb4&parseTime=True&loc=UTC", my.GetDSN())

	bad := DatabaseConfig{Type: "oracle"}
	assert.Error(t, bad.ValidateConfig())
}
