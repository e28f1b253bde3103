// Package config handles configuration for the server component, including
// defaults, environment variables, JSON overlay, and command-line flags.
package config

import (
	"context"
	"time"

	"github.com/sethvargo/go-envconfig"

	"github.com/winds-n/member-api/internal/cryptox"
)

// Config holds runtime settings for the member-api server.
//
// All secrets are carried here and injected at construction time; nothing in
// the service layer embeds a literal. The admin and registration secrets are
// stored as digests (computed with DigestSalt), not as the secrets themselves.
type Config struct {
	EndpointAddr  string `env:"MEMBER_ENDPOINT_ADDR"`
	MongoURI      string `env:"MEMBER_MONGO_URI"`
	MongoDatabase string `env:"MEMBER_MONGO_DB"`

	DigestSalt             string `env:"MEMBER_DIGEST_SALT"`
	RegisterKeyDigest      string `env:"MEMBER_REGISTER_KEY_DIGEST"`
	AdminSecretDigest      string `env:"MEMBER_ADMIN_SECRET_DIGEST"`
	ScoreAdminSecretDigest string `env:"MEMBER_SCORE_ADMIN_SECRET_DIGEST"`

	EmailValidityDuration time.Duration `env:"MEMBER_EMAIL_VALIDITY_DURATION"`

	SMTPAddr     string `env:"MEMBER_SMTP_ADDR"`
	SMTPUser     string `env:"MEMBER_SMTP_USER"`
	SMTPPassword string `env:"MEMBER_SMTP_PASSWORD"`
	MailFrom     string `env:"MEMBER_MAIL_FROM"`

	PublicBaseURL string `env:"MEMBER_PUBLIC_BASE_URL"`
	SiteURL       string `env:"MEMBER_SITE_URL"`
}

// LoadDefaults populates Config with development defaults.
// NOTE: These values are insecure for production and should be overridden.
func (c *Config) LoadDefaults() {
	c.EndpointAddr = ":3003"
	c.MongoURI = "mongodb://localhost:27017"
	c.MongoDatabase = "member"
	c.DigestSalt = "::devsalt"

	h := cryptox.NewHasher(c.DigestSalt)
	c.RegisterKeyDigest = h.Hash("regkey")
	c.AdminSecretDigest = h.Hash("adminkey")
	c.ScoreAdminSecretDigest = h.Hash("scorekey")

	c.EmailValidityDuration = 24 * time.Hour

	c.SMTPAddr = "localhost:465"
	c.SMTPUser = "noreply@localhost"
	c.SMTPPassword = ""
	c.MailFrom = "noreply@localhost"

	c.PublicBaseURL = "http://localhost:3003"
	c.SiteURL = "http://localhost:3003"
}

// LoadConfig builds a Config by applying defaults, then overlaying values from
// the environment, an optional JSON file, and finally command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}

// parseEnv overlays values from environment variables. Unset variables leave
// the existing values untouched.
func parseEnv(cfg *Config) {
	if err := envconfig.Process(context.Background(), cfg); err != nil {
		panic(err)
	}
}
