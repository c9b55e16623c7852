package xcode

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/macreleaser/xcdeploy/pkg/actions"
	"github.com/macreleaser/xcdeploy/pkg/shell"
	"github.com/sirupsen/logrus"
)

// ArchiveArgs holds the inputs of `xcodebuild archive`.
type ArchiveArgs struct {
	Project       Located
	Scheme        string
	Destination   string
	Configuration string
	ArchivePath   string
	Platform      Platform
	ExportMethod  string

	APIKeyID   string
	APIKeyPath string
	IssuerID   string

	TeamID                  string
	SigningIdentity         string
	KeychainPath            string
	ProvisioningProfileUUID string
	EntitlementsPath        string

	// Settings are extra NAME=value overrides, appended last.
	Settings []string
	Quiet    bool
}

// BuildArchiveArgs constructs the argument list for xcodebuild archive.
func BuildArchiveArgs(a ArchiveArgs) []string {
	args := []string{
		"archive",
		a.Project.Type.Flag(), a.Project.Path,
		"-scheme", a.Scheme,
		"-destination", a.Destination,
		"-configuration", a.Configuration,
		"-archivePath", a.ArchivePath,
	}
	args = append(args, authArgs(a.APIKeyID, a.APIKeyPath, a.IssuerID)...)

	if a.TeamID != "" {
		args = append(args, "DEVELOPMENT_TEAM="+a.TeamID)
	}
	if a.SigningIdentity != "" {
		args = append(args,
			"CODE_SIGN_IDENTITY="+a.SigningIdentity,
			"OTHER_CODE_SIGN_FLAGS=--keychain "+a.KeychainPath,
		)
	} else {
		args = append(args, "CODE_SIGN_IDENTITY=-")
	}
	if a.ProvisioningProfileUUID != "" || a.SigningIdentity != "" {
		args = append(args, "CODE_SIGN_STYLE=Manual")
	} else {
		args = append(args, "CODE_SIGN_STYLE=Automatic")
	}
	if a.ProvisioningProfileUUID != "" {
		args = append(args, "PROVISIONING_PROFILE="+a.ProvisioningProfileUUID)
	} else {
		args = append(args, "AD_HOC_CODE_SIGNING_ALLOWED=YES", "-allowProvisioningUpdates")
	}
	if a.EntitlementsPath != "" {
		args = append(args, "CODE_SIGN_ENTITLEMENTS="+a.EntitlementsPath)
	}
	if a.Platform == PlatformIOS {
		args = append(args, "COPY_PHASE_STRIP=NO")
	}
	if a.Platform == PlatformMacOS && !IsAppStoreMethod(a.ExportMethod) {
		args = append(args, "ENABLE_HARDENED_RUNTIME=YES")
	}
	args = append(args, a.Settings...)
	if a.Quiet {
		args = append(args, "-quiet")
	}
	return args
}

// ExportArgs holds the inputs of `xcodebuild -exportArchive`.
type ExportArgs struct {
	ArchivePath        string
	ExportPath         string
	ExportOptionsPlist string

	APIKeyID   string
	APIKeyPath string
	IssuerID   string

	Quiet bool
}

// BuildExportArgs constructs the argument list for xcodebuild -exportArchive.
func BuildExportArgs(a ExportArgs) []string {
	args := []string{
		"-exportArchive",
		"-archivePath", a.ArchivePath,
		"-exportPath", a.ExportPath,
		"-exportOptionsPlist", a.ExportOptionsPlist,
		"-allowProvisioningUpdates",
	}
	args = append(args, authArgs(a.APIKeyID, a.APIKeyPath, a.IssuerID)...)
	if a.Quiet {
		args = append(args, "-quiet")
	}
	return args
}

func authArgs(keyID, keyPath, issuerID string) []string {
	if keyID == "" || keyPath == "" || issuerID == "" {
		return nil
	}
	return []string{
		"-authenticationKeyID", keyID,
		"-authenticationKeyPath", keyPath,
		"-authenticationKeyIssuerID", issuerID,
	}
}

var diagnosticsPattern = regexp.MustCompile(`Created bundle at path "([^"]+\.xcdistributionlogs)"`)

// DiagnosticBundle returns the distribution log bundle xcodebuild reported
// in output, if any.
func DiagnosticBundle(output string) (string, bool) {
	m := diagnosticsPattern.FindStringSubmatch(output)
	if m == nil {
		return "", false
	}
	return m[1], true
}

const (
	maxDiagnosticFile = 256 * 1024
	outputTailLines   = 40
)

// LogDiagnostics writes every regular file in bundle to the log.
func LogDiagnostics(logger *logrus.Logger, bundle string) {
	err := filepath.WalkDir(bundle, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warnf("Failed to read %s: %v", path, err)
			return nil
		}
		if len(data) > maxDiagnosticFile {
			data = append(data[:maxDiagnosticFile], "\n[truncated]"...)
		}
		rel, _ := filepath.Rel(bundle, path)
		logger.Errorf("----- %s -----\n%s", rel, data)
		return nil
	})
	if err != nil {
		logger.Warnf("Failed to read diagnostics bundle %s: %v", bundle, err)
	}
}

// Xcodebuild runs xcodebuild actions inside a log group and surfaces the
// diagnostics of a failed export.
type Xcodebuild struct {
	Runner  shell.Runner
	Logger  *logrus.Logger
	Outputs *actions.Outputs
}

// Run executes xcodebuild with args.
func (x *Xcodebuild) Run(ctx context.Context, title string, args []string) (*shell.Result, error) {
	if x.Outputs != nil {
		x.Outputs.Group(title)
		defer x.Outputs.EndGroup()
	}

	// Unbuffered so long archives stream progress to the job log.
	res, err := x.Runner.Run(ctx, "xcodebuild", args, shell.WithEnv("NSUnbufferedIO", "YES"))
	if err == nil {
		return res, nil
	}

	var output string
	if res != nil {
		output = res.Combined
	}
	if ee, ok := shell.AsExitError(err); ok {
		x.Logger.Error(ee.Tail(outputTailLines))
	}
	if bundle, ok := DiagnosticBundle(output); ok {
		x.Logger.Errorf("xcodebuild wrote diagnostics to %s", bundle)
		LogDiagnostics(x.Logger, bundle)
	}

	switch {
	case strings.Contains(output, "xcodebuild: error: The workspace"):
		return res, fmt.Errorf("workspace not found, check project.path in your config: %w", err)
	case strings.Contains(output, "xcodebuild: error: The project"):
		return res, fmt.Errorf("project not found, check project.path in your config: %w", err)
	case strings.Contains(output, "Scheme") && strings.Contains(output, "is not currently configured"):
		return res, fmt.Errorf("scheme not configured for this action, check project.scheme in your config: %w", err)
	case strings.Contains(output, "No signing certificate"):
		return res, fmt.Errorf("no signing certificate matches the build, check credentials.signing_identity: %w", err)
	}
	return res, fmt.Errorf("%s failed: %w", title, err)
}
