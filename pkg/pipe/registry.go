package pipe

import (
	"github.com/macreleaser/xcdeploy/internal/pipe/archive"
	"github.com/macreleaser/xcdeploy/internal/pipe/changelog"
	"github.com/macreleaser/xcdeploy/internal/pipe/credentials"
	"github.com/macreleaser/xcdeploy/internal/pipe/export"
	"github.com/macreleaser/xcdeploy/internal/pipe/notarize"
	"github.com/macreleaser/xcdeploy/internal/pipe/outputs"
	"github.com/macreleaser/xcdeploy/internal/pipe/project"
	"github.com/macreleaser/xcdeploy/internal/pipe/sign"
	"github.com/macreleaser/xcdeploy/internal/pipe/testflight"
	"github.com/macreleaser/xcdeploy/internal/pipe/upload"
	"github.com/macreleaser/xcdeploy/internal/pipe/version"
	"github.com/macreleaser/xcdeploy/internal/pipe/xcode"
)

// ValidationPipes contains all validation pipes, run by check and as the
// first stage of run.
var ValidationPipes = []Piper{
	credentials.CheckPipe{}, // Validate API key and signing inputs
	project.CheckPipe{},     // Validate project and export config
	sign.CheckPipe{},        // Validate signing config
	notarize.CheckPipe{},    // Validate notarization config
	upload.CheckPipe{},      // Validate upload gating
	changelog.CheckPipe{},   // Validate release notes config
	testflight.CheckPipe{},  // Validate TestFlight distribution config
}

// ExecutionPipes contains all execution pipes, run after validation
// succeeds. Teardown is not a pipe: the cleanup command runs it as a
// separate process.
var ExecutionPipes = []Piper{
	credentials.Pipe{},    // Keychain, certificate, profile, API key
	xcode.Pipe{},          // Select and detect Xcode
	project.Pipe{},        // Resolve project descriptor
	version.Pipe{},        // Reconcile build number with App Store Connect
	archive.Pipe{},        // xcodebuild archive
	export.Pipe{},         // xcodebuild -exportArchive
	sign.Pipe{},           // Re-sign and package macOS direct distribution
	notarize.Pipe{},       // Submit, wait, staple
	upload.ValidatePipe{}, // altool --validate-app
	upload.Pipe{},         // altool --upload-package
	changelog.Pipe{},      // What's new from config or commit history
	testflight.Pipe{},     // Poll, notes, groups, review
	outputs.Pipe{},        // Job outputs
}
