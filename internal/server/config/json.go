package config

import (
	"encoding/json"
	"os"

	"github.com/winds-n/member-api/internal/flagx"
	"github.com/winds-n/member-api/internal/timex"
)

// JsonConfig is the DTO used for reading JSON configuration files. Interval
// fields use timex.Duration, which accepts both string values such as "24h"
// and integer nanoseconds. After unmarshalling, non-empty values are copied
// into the runtime Config.
type JsonConfig struct {
	EndpointAddr  string `json:"endpoint_addr"`
	MongoURI      string `json:"mongo_uri"`
	MongoDatabase string `json:"mongo_db"`

	DigestSalt             string `json:"digest_salt"`
	RegisterKeyDigest      string `json:"register_key_digest"`
	AdminSecretDigest      string `json:"admin_secret_digest"`
	ScoreAdminSecretDigest string `json:"score_admin_secret_digest"`

	EmailValidityDuration timex.Duration `json:"email_validity_duration"`

	SMTPAddr     string `json:"smtp_addr"`
	SMTPUser     string `json:"smtp_user"`
	SMTPPassword string `json:"smtp_password"`
	MailFrom     string `json:"mail_from"`

	PublicBaseURL string `json:"public_base_url"`
	SiteURL       string `json:"site_url"`
}

// parseJson loads configuration values from the JSON file named by the -c or
// -config flags into the provided Config. Absent fields keep their current
// values. If no file is named, nothing is loaded; if the file cannot be read
// or contains invalid JSON, the function panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}

	setString(&config.EndpointAddr, c.EndpointAddr)
	setString(&config.MongoURI, c.MongoURI)
	setString(&config.MongoDatabase, c.MongoDatabase)
	setString(&config.DigestSalt, c.DigestSalt)
	setString(&config.RegisterKeyDigest, c.RegisterKeyDigest)
	setString(&config.AdminSecretDigest, c.AdminSecretDigest)
	setString(&config.ScoreAdminSecretDigest, c.ScoreAdminSecretDigest)
	setString(&config.SMTPAddr, c.SMTPAddr)
	setString(&config.SMTPUser, c.SMTPUser)
	setString(&config.SMTPPassword, c.SMTPPassword)
	setString(&config.MailFrom, c.MailFrom)
	setString(&config.PublicBaseURL, c.PublicBaseURL)
	setString(&config.SiteURL, c.SiteURL)

	if c.EmailValidityDuration.Duration != 0 {
		config.EmailValidityDuration = c.EmailValidityDuration.Duration
	}
}
