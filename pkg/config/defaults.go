package config

import (
	"github.com/macreleaser/xcdeploy/pkg/env"
)

// Default values applied by ApplyDefaults.
const (
	DefaultProjectGlob         = "**/*.xcodeproj"
	DefaultConfiguration       = "Release"
	DefaultExportOption        = "development"
	DefaultArchiveType         = "app"
	DefaultLocale              = "en-US"
	DefaultPollAttempts        = 180
	DefaultPollInterval        = 30
	DefaultKeychainLockTimeout = 21600
	DefaultCommits             = 1
)

// Environment variables consulted when a credential is not configured.
var credentialEnv = map[string][]string{
	"key_id":               {"APP_STORE_CONNECT_KEY_ID"},
	"issuer_id":            {"APP_STORE_CONNECT_ISSUER_ID"},
	"api_key":              {"APP_STORE_CONNECT_KEY"},
	"certificate":          {"CERTIFICATE"},
	"certificate_password": {"CERTIFICATE_PASSWORD"},
}

// ApplyDefaults fills every unset field with its default.
func (c *Config) ApplyDefaults() {
	setDefault(&c.Project.Path, DefaultProjectGlob)
	setDefault(&c.Project.Configuration, DefaultConfiguration)
	setDefault(&c.Export.Option, DefaultExportOption)
	setDefault(&c.Export.ArchiveType, DefaultArchiveType)
	setDefault(&c.TestFlight.Locale, DefaultLocale)

	if c.TestFlight.Poll.Attempts <= 0 {
		c.TestFlight.Poll.Attempts = DefaultPollAttempts
	}
	if c.TestFlight.Poll.IntervalSeconds <= 0 {
		c.TestFlight.Poll.IntervalSeconds = DefaultPollInterval
	}
	if c.TestFlight.Commits <= 0 {
		c.TestFlight.Commits = DefaultCommits
	}
	if c.Credentials.KeychainLockTimeout <= 0 {
		c.Credentials.KeychainLockTimeout = DefaultKeychainLockTimeout
	}

	creds := &c.Credentials
	for field, ptr := range map[string]*string{
		"key_id":               &creds.KeyID,
		"issuer_id":            &creds.IssuerID,
		"api_key":              &creds.APIKey,
		"certificate":          &creds.Certificate,
		"certificate_password": &creds.CertificatePassword,
	} {
		if *ptr == "" {
			*ptr = env.FirstNonEmpty(credentialEnv[field]...)
		}
	}
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

// Bool returns *b, or def when b is unset.
func Bool(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
