package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	path := writeTempJSON(t, map[string]any{
		"endpoint_addr":           ":4000",
		"mongo_uri":               "mongodb://db:27017",
		"mongo_db":                "memberdb",
		"digest_salt":             "::salt",
		"register_key_digest":     "regdigest",
		"admin_secret_digest":     "admindigest",
		"email_validity_duration": "12h",
		"smtp_addr":               "mail:465",
		"public_base_url":         "https://member.example.com",
	})

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", path}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, ":4000", cfg.EndpointAddr)
		assert.Equal(t, "mongodb://db:27017", cfg.MongoURI)
		assert.Equal(t, "memberdb", cfg.MongoDatabase)
		assert.Equal(t, "::salt", cfg.DigestSalt)
		assert.Equal(t, "regdigest", cfg.RegisterKeyDigest)
		assert.Equal(t, "admindigest", cfg.AdminSecretDigest)
		assert.Equal(t, 12*time.Hour, cfg.EmailValidityDuration)
		assert.Equal(t, "mail:465", cfg.SMTPAddr)
		assert.Equal(t, "https://member.example.com", cfg.PublicBaseURL)
	})

	t.Run("absent fields keep current values", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", path}

		cfg := &Config{}
		cfg.LoadDefaults()
		wantScore := cfg.ScoreAdminSecretDigest
		wantSite := cfg.SiteURL
		parseJson(cfg)

		assert.Equal(t, wantScore, cfg.ScoreAdminSecretDigest)
		assert.Equal(t, wantSite, cfg.SiteURL)
		assert.Equal(t, "mail:465", cfg.SMTPAddr)
	})

	t.Run("no config flag leaves config unchanged", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{}
		cfg.LoadDefaults()
		want := *cfg
		parseJson(cfg)

		assert.Equal(t, want, *cfg)
	})
}
