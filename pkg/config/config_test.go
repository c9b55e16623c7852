package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create temporary config file: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name          string
		yamlContent   string
		expectError   bool
		expectedError string
	}{
		{
			name: "valid full config",
			yamlContent: `
project:
  path: "ios/**/*.xcodeproj"
  scheme: "MyApp"
  configuration: "Release"
credentials:
  key_id: "[TEST_KEY_ID]"
  issuer_id: "[TEST_ISSUER]"
  api_key: "[TEST_KEY]"
  signing_identity: "Apple Distribution: Test (ABCDE12345)"
export:
  option: "app-store"
  notarize: false
version:
  auto_increment_build_number: true
upload:
  enabled: true
testflight:
  test_groups: ["QA", "Beta"]
  submit_for_review: true
  poll:
    attempts: 20
    interval_seconds: 10
`,
		},
		{
			name:        "empty document loads as empty config",
			yamlContent: "",
		},
		{
			name: "invalid YAML",
			yamlContent: `
project:
  scheme: "MyApp"
  invalid_yaml: [unclosed array
`,
			expectError: true,
		},
		{
			name: "unknown field rejected",
			yamlContent: `
project:
  scheme: "MyApp"
  workspace: "MyApp.xcworkspace"
`,
			expectError:   true,
			expectedError: "workspace",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := LoadConfig(writeConfig(t, tt.yamlContent))

			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error but got none")
				}
				if tt.expectedError != "" && !strings.Contains(err.Error(), tt.expectedError) {
					t.Errorf("error = %v, want containing %q", err, tt.expectedError)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if config == nil {
				t.Fatal("Expected config but got nil")
			}
		})
	}
}

func TestLoadConfigTriState(t *testing.T) {
	config, err := LoadConfig(writeConfig(t, "export:\n  notarize: false\n"))
	if err != nil {
		t.Fatal(err)
	}
	if config.Export.Notarize == nil || *config.Export.Notarize {
		t.Errorf("Notarize = %v, want explicit false", config.Export.Notarize)
	}
	if config.Upload.Enabled != nil {
		t.Errorf("Upload.Enabled = %v, want unset", *config.Upload.Enabled)
	}
	if Bool(config.Upload.Enabled, true) != true || Bool(config.Export.Notarize, true) != false {
		t.Error("Bool() did not honour explicit and default values")
	}
}

func TestLoadOptional(t *testing.T) {
	config, err := LoadOptional(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadOptional() error = %v", err)
	}
	if config.Project.Scheme != "" {
		t.Errorf("expected empty config, got %+v", config.Project)
	}
}

func TestApplyDefaults(t *testing.T) {
	t.Setenv("APP_STORE_CONNECT_KEY_ID", "ENVKEY")
	t.Setenv("APP_STORE_CONNECT_ISSUER_ID", "")

	config := &Config{Credentials: CredentialsConfig{IssuerID: "configured"}}
	config.ApplyDefaults()

	checks := map[string][2]string{
		"project.path":          {config.Project.Path, DefaultProjectGlob},
		"project.configuration": {config.Project.Configuration, "Release"},
		"export.option":         {config.Export.Option, "development"},
		"export.archive_type":   {config.Export.ArchiveType, "app"},
		"testflight.locale":     {config.TestFlight.Locale, "en-US"},
		"credentials.key_id":    {config.Credentials.KeyID, "ENVKEY"},
		"credentials.issuer_id": {config.Credentials.IssuerID, "configured"},
	}
	for field, c := range checks {
		if c[0] != c[1] {
			t.Errorf("%s = %q, want %q", field, c[0], c[1])
		}
	}
	if config.TestFlight.Poll.Attempts != 180 || config.TestFlight.Poll.IntervalSeconds != 30 {
		t.Errorf("poll = %+v", config.TestFlight.Poll)
	}
	if config.Credentials.KeychainLockTimeout != 21600 {
		t.Errorf("keychain lock timeout = %d", config.Credentials.KeychainLockTimeout)
	}
}

func TestSaveConfig(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "saved-config.yaml")

	if err := SaveConfig(tmpFile, ExampleConfig()); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	info, err := os.Stat(tmpFile)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := LoadConfig(tmpFile)
	if err != nil {
		t.Fatalf("Failed to load saved config: %v", err)
	}
	if loaded.Project.Scheme != "MyApp" || loaded.Export.Option != "app-store" {
		t.Errorf("loaded = %+v", loaded)
	}
	if len(loaded.TestFlight.TestGroups) != 1 {
		t.Errorf("test groups = %v", loaded.TestFlight.TestGroups)
	}
}

func TestSaveConfigNil(t *testing.T) {
	if err := SaveConfig(filepath.Join(t.TempDir(), "x.yaml"), nil); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestEnvironmentVariableSubstitution(t *testing.T) {
	t.Setenv("TEST_SIGNING_IDENTITY", "Developer ID Application: Test (1234567890)")
	t.Setenv("TEST_KEY_ID", "KEY123")

	config, err := LoadConfig(writeConfig(t, `
credentials:
  key_id: "env(TEST_KEY_ID)"
  signing_identity: "env(TEST_SIGNING_IDENTITY)"
  api_key: "env(TEST_MISSING_KEY_VAR)"
`))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if config.Credentials.KeyID != "KEY123" {
		t.Errorf("key_id = %q", config.Credentials.KeyID)
	}
	if config.Credentials.SigningIdentity != "Developer ID Application: Test (1234567890)" {
		t.Errorf("signing_identity = %q", config.Credentials.SigningIdentity)
	}
	if config.Credentials.APIKey != "env(TEST_MISSING_KEY_VAR)" {
		t.Errorf("unresolved reference should be kept, got %q", config.Credentials.APIKey)
	}
}

func TestLoadConfigRejectsDirectory(t *testing.T) {
	if _, err := LoadConfig(t.TempDir()); err == nil {
		t.Error("expected error for directory path")
	}
}
