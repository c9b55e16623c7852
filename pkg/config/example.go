package config

// ExampleConfig returns a configuration with example values for use with `xcdeploy init`
func ExampleConfig() *Config {
	return &Config{
		Project: ProjectConfig{
			Path:          DefaultProjectGlob,
			Scheme:        "MyApp",
			Configuration: DefaultConfiguration,
		},
		Credentials: CredentialsConfig{
			KeyID:                   "env(APP_STORE_CONNECT_KEY_ID)",
			IssuerID:                "env(APP_STORE_CONNECT_ISSUER_ID)",
			APIKey:                  "env(APP_STORE_CONNECT_KEY)",
			Certificate:             "env(CERTIFICATE)",
			CertificatePassword:     "awssm(ci/ios/certificate-password)",
			SigningIdentity:         "Apple Distribution: Your Name (TEAM_ID)",
			ProvisioningProfile:     "env(PROVISIONING_PROFILE)",
			ProvisioningProfileName: "MyApp_AppStore.mobileprovision",
		},
		Export: ExportConfig{
			Option: "app-store",
		},
		Version: VersionConfig{
			AutoIncrementBuildNumber: true,
		},
		TestFlight: TestFlightConfig{
			TestGroups: []string{"Internal Testers"},
			Filters: FiltersConfig{
				Exclude: []string{"^chore:", "^ci:"},
			},
		},
	}
}
