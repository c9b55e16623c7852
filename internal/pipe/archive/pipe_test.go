package archive

import (
	"strings"
	"testing"

	"github.com/macreleaser/xcdeploy/internal/pipetest"
	"github.com/macreleaser/xcdeploy/pkg/shell"
	"github.com/macreleaser/xcdeploy/pkg/xcode"
)

func archiveLine(t *testing.T, f *pipetest.Fixture) string {
	t.Helper()
	for _, l := range f.Runner.Lines() {
		if strings.HasPrefix(l, "xcodebuild archive") {
			return l
		}
	}
	t.Fatalf("no archive command in %v", f.Runner.Lines())
	return ""
}

func TestPipeManualSigning(t *testing.T) {
	f := pipetest.New(t, nil)
	f.SetProject(xcode.PlatformIOS, "app-store-connect")
	c := f.SetCredential("Apple Distribution: Example Corp (ABCDE12345)")
	c.ProvisioningProfileUUID = "0f1e2d3c"

	if err := (Pipe{}).Run(f.Ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	line := archiveLine(t, f)
	for _, want := range []string{
		"-scheme MyApp",
		"-destination generic/platform=iOS",
		"-authenticationKeyID KEY123",
		"CODE_SIGN_IDENTITY=Apple Distribution: Example Corp (ABCDE12345)",
		"CODE_SIGN_STYLE=Manual",
		"PROVISIONING_PROFILE=0f1e2d3c",
		"COPY_PHASE_STRIP=NO",
		"-quiet",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("archive command missing %q: %s", want, line)
		}
	}
}

func TestPipeAutomaticSigning(t *testing.T) {
	f := pipetest.New(t, nil)
	f.SetProject(xcode.PlatformMacOS, "developer-id")
	f.SetCredential("")
	f.Ctx.Project.EntitlementsPath = "/src/MyApp.xcodeproj/Entitlements.plist"

	if err := (Pipe{}).Run(f.Ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	line := archiveLine(t, f)
	for _, want := range []string{
		"CODE_SIGN_IDENTITY=-",
		"CODE_SIGN_STYLE=Automatic",
		"-allowProvisioningUpdates",
		"CODE_SIGN_ENTITLEMENTS=/src/MyApp.xcodeproj/Entitlements.plist",
		"ENABLE_HARDENED_RUNTIME=YES",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("archive command missing %q: %s", want, line)
		}
	}
}

func TestPipeFailure(t *testing.T) {
	f := pipetest.New(t, nil)
	f.SetProject(xcode.PlatformIOS, "debugging")
	f.SetCredential("")
	f.Runner.On("xcodebuild archive", shell.Response{Stderr: "** ARCHIVE FAILED **", ExitCode: 65})

	err := (Pipe{}).Run(f.Ctx)
	if err == nil || !strings.Contains(err.Error(), "archive failed") {
		t.Fatalf("Run() error = %v", err)
	}
	if _, ok := shell.AsExitError(err); !ok {
		t.Errorf("error should wrap the command failure: %v", err)
	}
}
