package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/goccy/go-yaml/parser"
	"github.com/macreleaser/xcdeploy/pkg/env"
)

// DefaultPath is the config file looked up when --config is not given.
const DefaultPath = ".xcdeploy.yaml"

// Config represents the complete xcdeploy configuration
type Config struct {
	Project     ProjectConfig     `yaml:"project"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Export      ExportConfig      `yaml:"export"`
	Version     VersionConfig     `yaml:"version"`
	Upload      UploadConfig      `yaml:"upload"`
	TestFlight  TestFlightConfig  `yaml:"testflight"`
	State       StateConfig       `yaml:"state"`
}

// ProjectConfig selects and describes the Xcode project to build
type ProjectConfig struct {
	Path               string `yaml:"path,omitempty"`
	Scheme             string `yaml:"scheme,omitempty"`
	Platform           string `yaml:"platform,omitempty"`
	Destination        string `yaml:"destination,omitempty"`
	Configuration      string `yaml:"configuration,omitempty"`
	BundleID           string `yaml:"bundle_id,omitempty"`
	PlatformSDKVersion string `yaml:"platform_sdk_version,omitempty"`
	XcodeVersion       string `yaml:"xcode_version,omitempty"`
}

// CredentialsConfig holds App Store Connect and signing secrets.
// SECURITY NOTE: use env(VAR_NAME) or awssm(secret-id) references instead
// of literal secrets in committed config files.
type CredentialsConfig struct {
	KeyID                     string `yaml:"key_id,omitempty"`
	IssuerID                  string `yaml:"issuer_id,omitempty"`
	APIKey                    string `yaml:"api_key,omitempty"`
	Certificate               string `yaml:"certificate,omitempty"`
	CertificatePassword       string `yaml:"certificate_password,omitempty"`
	SigningIdentity           string `yaml:"signing_identity,omitempty"`
	ProvisioningProfile       string `yaml:"provisioning_profile,omitempty"`
	ProvisioningProfileName   string `yaml:"provisioning_profile_name,omitempty"`
	TeamID                    string `yaml:"team_id,omitempty"`
	KeychainLockTimeout       int    `yaml:"keychain_lock_timeout,omitempty"`
	CreateMissingCertificates bool   `yaml:"create_missing_certificates,omitempty"`
	AWSRegion                 string `yaml:"aws_region,omitempty"`
}

// ExportConfig controls archive export and macOS packaging
type ExportConfig struct {
	Option            string `yaml:"option,omitempty"`
	OptionsPlist      string `yaml:"options_plist,omitempty"`
	EntitlementsPlist string `yaml:"entitlements_plist,omitempty"`
	ArchiveType       string `yaml:"archive_type,omitempty"`
	Notarize          *bool  `yaml:"notarize,omitempty"`
}

// VersionConfig controls build number reconciliation
type VersionConfig struct {
	AutoIncrementBuildNumber bool `yaml:"auto_increment_build_number,omitempty"`
}

// UploadConfig gates validation and upload to App Store Connect. Unset means
// upload whenever the export method targets the App Store.
type UploadConfig struct {
	Enabled *bool `yaml:"enabled,omitempty"`
}

// TestFlightConfig controls release notes and tester distribution
type TestFlightConfig struct {
	WhatsNew        string        `yaml:"whats_new,omitempty"`
	Commits         int           `yaml:"commits,omitempty"`
	Filters         FiltersConfig `yaml:"filters,omitempty"`
	TestGroups      []string      `yaml:"test_groups,omitempty"`
	SubmitForReview bool          `yaml:"submit_for_review,omitempty"`
	Locale          string        `yaml:"locale,omitempty"`
	Poll            PollConfig    `yaml:"poll,omitempty"`
}

// FiltersConfig selects commits for generated release notes by message regexp
type FiltersConfig struct {
	Include []string `yaml:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty"`
}

// PollConfig bounds the wait for build processing
type PollConfig struct {
	Attempts        int `yaml:"attempts,omitempty"`
	IntervalSeconds int `yaml:"interval_seconds,omitempty"`
}

// StateConfig locates the record shared by run and cleanup
type StateConfig struct {
	Path string `yaml:"path,omitempty"`
}

// LoadConfig loads and parses a configuration file
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config file path is required")
	}

	cleanPath, err := validateConfigPath(path)
	if err != nil {
		return nil, err
	}

	data, err := readConfigFile(cleanPath)
	if err != nil {
		return nil, err
	}

	file, err := parser.ParseBytes(data, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if len(file.Docs) == 0 || file.Docs[0].Body == nil {
		return &Config{}, nil
	}

	if err := env.SubstituteEnvVarsNode(file.Docs[0].Body); err != nil {
		return nil, fmt.Errorf("environment variable substitution failed: %w", err)
	}

	var config Config
	if err := yaml.NodeToValue(file.Docs[0].Body, &config, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// LoadOptional loads path like LoadConfig, but a missing file yields an
// empty configuration.
func LoadOptional(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return &Config{}, nil
	}
	return LoadConfig(path)
}

// SaveConfig saves a configuration to a file
func SaveConfig(path string, config *Config) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Use restrictive permissions (0600) since config may contain sensitive data
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func validateConfigPath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}
	cleanPath := filepath.Clean(absPath)

	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	wd = filepath.Clean(wd)

	// Paths inside the working directory must stay local to it.
	if strings.HasPrefix(cleanPath, wd+string(filepath.Separator)) || cleanPath == wd {
		relPath, err := filepath.Rel(wd, cleanPath)
		if err != nil {
			return "", fmt.Errorf("invalid config path: %w", err)
		}
		if !filepath.IsLocal(relPath) {
			return "", fmt.Errorf("invalid config path: path traversal detected")
		}
	}

	return cleanPath, nil
}

func readConfigFile(cleanPath string) ([]byte, error) {
	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to access config file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("config path is not a regular file")
	}

	const maxConfigSize = 1024 * 1024
	if info.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file too large: maximum size is 1MB")
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return data, nil
}
