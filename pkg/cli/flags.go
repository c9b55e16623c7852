package cli

import (
	"fmt"
	"strings"

	"github.com/macreleaser/xcdeploy/pkg/config"
	"github.com/macreleaser/xcdeploy/pkg/env"
	"github.com/spf13/pflag"
)

// stringFlags maps each string option flag to the config field it overrides.
var stringFlags = []struct {
	name  string
	usage string
	field func(*config.Config) *string
}{
	{"project-path", "project path or glob, relative to the workspace", func(c *config.Config) *string { return &c.Project.Path }},
	{"scheme", "scheme to archive", func(c *config.Config) *string { return &c.Project.Scheme }},
	{"platform", "ios, macos, tvos, visionos or watchos", func(c *config.Config) *string { return &c.Project.Platform }},
	{"destination", "xcodebuild -destination", func(c *config.Config) *string { return &c.Project.Destination }},
	{"configuration", "build configuration", func(c *config.Config) *string { return &c.Project.Configuration }},
	{"bundle-id", "bundle identifier, read from build settings when unset", func(c *config.Config) *string { return &c.Project.BundleID }},
	{"platform-sdk-version", "platform SDK build version to download when missing", func(c *config.Config) *string { return &c.Project.PlatformSDKVersion }},
	{"xcode-version", "Xcode to select: exact version, 16.x or latest", func(c *config.Config) *string { return &c.Project.XcodeVersion }},
	{"export-option", "app-store, ad-hoc, development, developer-id or steam", func(c *config.Config) *string { return &c.Export.Option }},
	{"export-option-plist", "existing export options plist", func(c *config.Config) *string { return &c.Export.OptionsPlist }},
	{"entitlements-plist", "entitlements for macOS signing", func(c *config.Config) *string { return &c.Export.EntitlementsPlist }},
	{"archive-type", "macOS artifact: app, pkg or dmg", func(c *config.Config) *string { return &c.Export.ArchiveType }},
	{"whats-new", "TestFlight release notes, generated from commits when unset", func(c *config.Config) *string { return &c.TestFlight.WhatsNew }},
}

// addConfigFlags registers one flag per configuration option.
func addConfigFlags(fs *pflag.FlagSet) {
	for _, f := range stringFlags {
		fs.String(f.name, "", f.usage)
	}
	fs.Bool("auto-increment-build-number", false, "bump the build number past the latest uploaded build")
	fs.Bool("notarize", false, "notarize macOS output (default: on for developer-id)")
	fs.Bool("upload", false, "upload to App Store Connect (default: on for app-store)")
	fs.String("test-groups", "", "comma-separated TestFlight groups to add the build to")
	fs.Bool("submit-for-review", false, "submit for beta review and notify testers")
}

// applyFlags overrides cfg with every flag given on the command line.
// Flags left at their zero value do not touch the config file's values.
// String values may carry env(VAR) references like the config file.
func applyFlags(fs *pflag.FlagSet, cfg *config.Config) error {
	for _, f := range stringFlags {
		if !fs.Changed(f.name) {
			continue
		}
		raw, _ := fs.GetString(f.name)
		v, err := env.Expand(raw)
		if err != nil {
			return fmt.Errorf("--%s: %w", f.name, err)
		}
		*f.field(cfg) = v
	}
	if fs.Changed("auto-increment-build-number") {
		cfg.Version.AutoIncrementBuildNumber, _ = fs.GetBool("auto-increment-build-number")
	}
	if fs.Changed("notarize") {
		v, _ := fs.GetBool("notarize")
		cfg.Export.Notarize = &v
	}
	if fs.Changed("upload") {
		v, _ := fs.GetBool("upload")
		cfg.Upload.Enabled = &v
	}
	if fs.Changed("submit-for-review") {
		cfg.TestFlight.SubmitForReview, _ = fs.GetBool("submit-for-review")
	}
	if fs.Changed("test-groups") {
		raw, _ := fs.GetString("test-groups")
		cfg.TestFlight.TestGroups = splitList(raw)
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
