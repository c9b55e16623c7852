package xcode

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/macreleaser/xcdeploy/pkg/plist"
	"github.com/macreleaser/xcdeploy/pkg/shell"
	"github.com/sirupsen/logrus"
)

func TestNormalizeShortVersion(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"1.2.3.4", "1.2.3", false},
		{"1.2.3", "1.2.3", false},
		{"1.2", "1.2.0", false},
		{"7", "7.0.0", false},
		{"01.02.3", "1.2.3", false},
		{"1.2-beta", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeShortVersion(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("NormalizeShortVersion(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrInvalidVersion) {
			t.Errorf("NormalizeShortVersion(%q) error = %v, want ErrInvalidVersion", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("NormalizeShortVersion(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if err == nil {
			again, _ := NormalizeShortVersion(got)
			if again != got {
				t.Errorf("normalizing %q twice gave %q", got, again)
			}
		}
	}
}

func writeInfoPlist(t *testing.T, dir string, values map[string]string) string {
	t.Helper()
	doc := map[string]plist.Value{}
	for k, v := range values {
		doc[k] = plist.NewString(v)
	}
	path := filepath.Join(dir, "App", "Info.plist")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := plist.Write(path, plist.NewDict(doc), plist.XMLFormat); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadVersionMetadataNormalizesOnce(t *testing.T) {
	dir := t.TempDir()
	path := writeInfoPlist(t, dir, map[string]string{
		"CFBundleShortVersionString": "2.4.1.9",
		"CFBundleVersion":            "12",
	})
	settings := ParseBuildSettings("    INFOPLIST_FILE = App/Info.plist\n")

	m, err := ReadVersionMetadata(dir, settings)
	if err != nil {
		t.Fatalf("ReadVersionMetadata() error = %v", err)
	}
	if m.ShortVersion != "2.4.1" || m.BuildNumber != "12" {
		t.Errorf("got %q / %q", m.ShortVersion, m.BuildNumber)
	}

	doc, _, err := plist.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := doc.GetString("CFBundleShortVersionString"); got != "2.4.1" {
		t.Errorf("file short version = %q, want rewritten to 2.4.1", got)
	}

	before, _ := os.ReadFile(path)
	if _, err := ReadVersionMetadata(dir, settings); err != nil {
		t.Fatal(err)
	}
	after, _ := os.ReadFile(path)
	if !bytes.Equal(before, after) {
		t.Error("second read rewrote an already normalized file")
	}
}

func TestReadVersionMetadataSettingReferences(t *testing.T) {
	dir := t.TempDir()
	path := writeInfoPlist(t, dir, map[string]string{
		"CFBundleShortVersionString": "$(MARKETING_VERSION)",
		"CFBundleVersion":            "${CURRENT_PROJECT_VERSION}",
	})
	settings := ParseBuildSettings("    INFOPLIST_FILE = App/Info.plist\n    MARKETING_VERSION = 3.1\n    CURRENT_PROJECT_VERSION = 40\n")
	before, _ := os.ReadFile(path)

	m, err := ReadVersionMetadata(dir, settings)
	if err != nil {
		t.Fatalf("ReadVersionMetadata() error = %v", err)
	}
	if m.ShortVersion != "3.1.0" || m.BuildNumber != "40" {
		t.Errorf("got %q / %q", m.ShortVersion, m.BuildNumber)
	}
	if err := m.SetBuildNumber("41"); err != nil {
		t.Fatal(err)
	}

	after, _ := os.ReadFile(path)
	if !bytes.Equal(before, after) {
		t.Error("setting-backed values must not be written to the plist")
	}
	want := []string{"MARKETING_VERSION=3.1.0", "CURRENT_PROJECT_VERSION=41"}
	if got := m.BuildSettingOverrides(); !reflect.DeepEqual(got, want) {
		t.Errorf("BuildSettingOverrides() = %v, want %v", got, want)
	}
}

func TestSetBuildNumberWritesLiteral(t *testing.T) {
	dir := t.TempDir()
	path := writeInfoPlist(t, dir, map[string]string{
		"CFBundleShortVersionString": "1.0.0",
		"CFBundleVersion":            "5",
	})
	m, err := ReadVersionMetadata(dir, ParseBuildSettings("    INFOPLIST_FILE = "+path+"\n"))
	if err != nil {
		t.Fatal(err)
	}
	if err := m.SetBuildNumber("6"); err != nil {
		t.Fatal(err)
	}
	doc, _, _ := plist.Load(path)
	if got := doc.GetString("CFBundleVersion"); got != "6" {
		t.Errorf("CFBundleVersion = %q, want 6", got)
	}
	if len(m.BuildSettingOverrides()) != 0 {
		t.Errorf("unexpected overrides %v", m.BuildSettingOverrides())
	}
}

func TestReadVersionMetadataGeneratedPlist(t *testing.T) {
	m, err := ReadVersionMetadata(t.TempDir(), ParseBuildSettings("    MARKETING_VERSION = 1.0\n    CURRENT_PROJECT_VERSION = 3\n"))
	if err != nil {
		t.Fatal(err)
	}
	if m.InfoPlistPath != "" || m.ShortVersion != "1.0.0" || m.BuildNumber != "3" {
		t.Errorf("got %+v", m)
	}
}

func TestExportMethod(t *testing.T) {
	old := semver.MustParse("15.2")
	current := semver.MustParse("16.0")

	tests := []struct {
		option   string
		platform Platform
		xcode    *semver.Version
		want     string
		wantErr  bool
	}{
		{ExportAppStore, PlatformIOS, old, "app-store", false},
		{ExportAppStore, PlatformIOS, current, "app-store-connect", false},
		{ExportAdHoc, PlatformIOS, old, "ad-hoc", false},
		{ExportAdHoc, PlatformIOS, current, "release-testing", false},
		{ExportAdHoc, PlatformMacOS, old, "development", false},
		{ExportAdHoc, PlatformMacOS, current, "debugging", false},
		{ExportDevelopment, PlatformTVOS, old, "development", false},
		{ExportDevelopment, PlatformTVOS, current, "debugging", false},
		{ExportDeveloperID, PlatformMacOS, current, "developer-id", false},
		{ExportSteam, PlatformMacOS, old, "developer-id", false},
		{ExportSteam, PlatformMacOS, current, "developer-id", false},
		{ExportSteam, PlatformIOS, current, "", true},
		{"app-store-connect", PlatformIOS, old, "app-store", false},
		{"enterprise", PlatformIOS, current, "", true},
		{ExportAppStore, PlatformIOS, semver.MustParse("15.3.0"), "app-store-connect", false},
		{ExportAppStore, PlatformIOS, nil, "app-store-connect", false},
	}
	for _, tt := range tests {
		name := tt.option + "/" + string(tt.platform)
		if tt.xcode != nil {
			name += "/" + tt.xcode.String()
		}
		t.Run(name, func(t *testing.T) {
			got, err := ExportMethod(tt.option, tt.platform, tt.xcode)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ExportMethod() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ExportMethod() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExportOptionsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exportOptions.plist")
	opts := NewExportOptions("app-store-connect", "ABCDE12345", "Apple Distribution: X (ABCDE12345)", "com.example.app", "uuid-1")
	if err := WriteExportOptions(path, opts); err != nil {
		t.Fatal(err)
	}

	method, err := ReadExportMethod(path)
	if err != nil || method != "app-store-connect" {
		t.Fatalf("ReadExportMethod() = %q, %v", method, err)
	}
	doc, _, _ := plist.Load(path)
	if doc.GetString("signingStyle") != "manual" {
		t.Errorf("signingStyle = %q", doc.GetString("signingStyle"))
	}
	profiles, _ := doc.Get("provisioningProfiles")
	if profiles.GetString("com.example.app") != "uuid-1" {
		t.Errorf("provisioningProfiles = %+v", profiles)
	}

	auto := NewExportOptions("debugging", "", "", "com.example.app", "uuid-1")
	if auto.SigningStyle != "automatic" || auto.ProvisioningProfiles != nil {
		t.Errorf("automatic options = %+v", auto)
	}
}

func TestEnsureEntitlements(t *testing.T) {
	dir := t.TempDir()

	appStore := filepath.Join(dir, "store.plist")
	created, err := EnsureEntitlements(appStore, "app-store-connect")
	if err != nil || !created {
		t.Fatalf("EnsureEntitlements() = %v, %v", created, err)
	}
	doc, _, _ := plist.Load(appStore)
	if !plist.Equal(doc, DefaultEntitlements("app-store")) {
		t.Errorf("app store entitlements = %v", doc.Keys())
	}

	direct := filepath.Join(dir, "direct.plist")
	if _, err := EnsureEntitlements(direct, "developer-id"); err != nil {
		t.Fatal(err)
	}
	doc, _, _ = plist.Load(direct)
	if _, ok := doc.Get("com.apple.security.cs.disable-library-validation"); !ok {
		t.Errorf("direct entitlements = %v", doc.Keys())
	}

	if err := os.WriteFile(direct, []byte("user supplied"), 0644); err != nil {
		t.Fatal(err)
	}
	created, err = EnsureEntitlements(direct, "developer-id")
	if err != nil || created {
		t.Errorf("existing file must be kept: created=%v err=%v", created, err)
	}
}

func TestBuildArchiveArgs(t *testing.T) {
	project := Located{Path: "/src/MyApp.xcodeproj", Type: Project}

	tests := []struct {
		name string
		args ArchiveArgs
		want []string
	}{
		{
			name: "manual signing on iOS",
			args: ArchiveArgs{
				Project: project, Scheme: "MyApp", Destination: "generic/platform=iOS", Configuration: "Release",
				ArchivePath: "/src/MyApp.xcarchive", Platform: PlatformIOS,
				APIKeyID: "KEY", APIKeyPath: "/k/AuthKey_KEY.p8", IssuerID: "ISS",
				TeamID: "ABCDE12345", SigningIdentity: "Apple Distribution: X", KeychainPath: "/tmp/t.keychain-db",
				ProvisioningProfileUUID: "uuid-1", Quiet: true,
			},
			want: []string{
				"archive", "-project", "/src/MyApp.xcodeproj", "-scheme", "MyApp",
				"-destination", "generic/platform=iOS", "-configuration", "Release",
				"-archivePath", "/src/MyApp.xcarchive",
				"-authenticationKeyID", "KEY", "-authenticationKeyPath", "/k/AuthKey_KEY.p8", "-authenticationKeyIssuerID", "ISS",
				"DEVELOPMENT_TEAM=ABCDE12345",
				"CODE_SIGN_IDENTITY=Apple Distribution: X", "OTHER_CODE_SIGN_FLAGS=--keychain /tmp/t.keychain-db",
				"CODE_SIGN_STYLE=Manual", "PROVISIONING_PROFILE=uuid-1",
				"COPY_PHASE_STRIP=NO", "-quiet",
			},
		},
		{
			name: "automatic signing on macOS direct distribution",
			args: ArchiveArgs{
				Project: Located{Path: "/src/Game.xcworkspace", Type: Workspace}, Scheme: "Game",
				Destination: "generic/platform=macOS", Configuration: "Release", ArchivePath: "/src/Game.xcarchive",
				Platform: PlatformMacOS, ExportMethod: "developer-id", EntitlementsPath: "/src/Entitlements.plist",
				Settings: []string{"CURRENT_PROJECT_VERSION=7"},
			},
			want: []string{
				"archive", "-workspace", "/src/Game.xcworkspace", "-scheme", "Game",
				"-destination", "generic/platform=macOS", "-configuration", "Release",
				"-archivePath", "/src/Game.xcarchive",
				"CODE_SIGN_IDENTITY=-", "CODE_SIGN_STYLE=Automatic",
				"AD_HOC_CODE_SIGNING_ALLOWED=YES", "-allowProvisioningUpdates",
				"CODE_SIGN_ENTITLEMENTS=/src/Entitlements.plist",
				"ENABLE_HARDENED_RUNTIME=YES", "CURRENT_PROJECT_VERSION=7",
			},
		},
		{
			name: "macOS app store has no hardened runtime flag",
			args: ArchiveArgs{Project: project, Platform: PlatformMacOS, ExportMethod: "app-store-connect"},
			want: []string{
				"archive", "-project", "/src/MyApp.xcodeproj", "-scheme", "", "-destination", "",
				"-configuration", "", "-archivePath", "",
				"CODE_SIGN_IDENTITY=-", "CODE_SIGN_STYLE=Automatic",
				"AD_HOC_CODE_SIGNING_ALLOWED=YES", "-allowProvisioningUpdates",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildArchiveArgs(tt.args)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("BuildArchiveArgs() =\n%q\nwant\n%q", got, tt.want)
			}
		})
	}
}

func TestBuildExportArgs(t *testing.T) {
	got := BuildExportArgs(ExportArgs{
		ArchivePath: "/a.xcarchive", ExportPath: "/out", ExportOptionsPlist: "/opts.plist",
		APIKeyID: "KEY", APIKeyPath: "/k.p8", IssuerID: "ISS",
	})
	want := []string{
		"-exportArchive", "-archivePath", "/a.xcarchive", "-exportPath", "/out",
		"-exportOptionsPlist", "/opts.plist", "-allowProvisioningUpdates",
		"-authenticationKeyID", "KEY", "-authenticationKeyPath", "/k.p8", "-authenticationKeyIssuerID", "ISS",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("BuildExportArgs() = %q", got)
	}
}

func writeZip(t *testing.T, path string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("Payload/App.app/Info.plist")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("<plist/>")); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestFindArtifact(t *testing.T) {
	dir := t.TempDir()
	writeZip(t, filepath.Join(dir, "MyApp.ipa"))

	got, err := FindArtifact(dir, ArtifactSuffix(PlatformIOS, "app-store-connect"))
	if err != nil {
		t.Fatalf("FindArtifact() error = %v", err)
	}
	if got != filepath.Join(dir, "MyApp.ipa") {
		t.Errorf("FindArtifact() = %q", got)
	}

	if _, err := FindArtifact(dir, ".pkg"); err == nil {
		t.Error("expected an error for a missing .pkg")
	}
}

func TestVerifyArtifact(t *testing.T) {
	dir := t.TempDir()

	fake := filepath.Join(dir, "Fake.ipa")
	if err := os.WriteFile(fake, []byte("definitely not a zip archive"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := VerifyArtifact(fake); err == nil || !strings.Contains(err.Error(), "expected application/zip") {
		t.Errorf("VerifyArtifact(fake ipa) = %v", err)
	}

	app := filepath.Join(dir, "Game.app")
	if err := os.MkdirAll(filepath.Join(app, "Contents"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := VerifyArtifact(app); err == nil {
		t.Error("bundle without Info.plist accepted")
	}
	if err := os.WriteFile(filepath.Join(app, "Contents", "Info.plist"), []byte("<plist/>"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := VerifyArtifact(app); err != nil {
		t.Errorf("VerifyArtifact(app) = %v", err)
	}

	if ArtifactSuffix(PlatformMacOS, "app-store") != ".pkg" || ArtifactSuffix(PlatformMacOS, "developer-id") != ".app" {
		t.Error("unexpected macOS artifact suffixes")
	}
}

func TestXcodebuildSurfacesDiagnostics(t *testing.T) {
	bundle := filepath.Join(t.TempDir(), "MyApp_2024.xcdistributionlogs")
	if err := os.MkdirAll(bundle, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(bundle, "IDEDistribution.standard.log"), []byte("profile mismatch for com.example"), 0644); err != nil {
		t.Fatal(err)
	}

	var logs bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&logs)

	runner := shell.NewFakeRunner().On("xcodebuild -exportArchive", shell.Response{
		ExitCode: 70,
		Stderr:   `error: exportArchive: No profiles found` + "\n" + `Created bundle at path "` + bundle + `".`,
	})
	x := &Xcodebuild{Runner: runner, Logger: logger}

	_, err := x.Run(context.Background(), "Exporting archive", []string{"-exportArchive"})
	if err == nil || !strings.Contains(err.Error(), "Exporting archive failed") {
		t.Fatalf("Run() error = %v", err)
	}
	if _, ok := shell.AsExitError(err); !ok {
		t.Error("exit error lost from chain")
	}
	if !strings.Contains(logs.String(), "profile mismatch for com.example") {
		t.Errorf("diagnostics not logged:\n%s", logs.String())
	}

	if _, ok := DiagnosticBundle("no bundle here"); ok {
		t.Error("DiagnosticBundle matched unrelated output")
	}
}

const xcodesList = `14.3 Beta 2 (14E5207e)
14.3 Release Candidate (14E222a)
14.3 (14E222b)
14.3.1 (14E300c)
15.0 (15A240d)
15.4 (15F31d)
16.0 Beta (16A5171c)
16.1 (16B40)`

func TestResolveXcodeRequest(t *testing.T) {
	available := ParseXcodesList(xcodesList)
	if len(available) != 5 {
		t.Fatalf("parsed %d versions, want 5 (betas and RCs dropped)", len(available))
	}

	tests := []struct {
		request string
		want    string
		wantErr bool
	}{
		{"latest", "16.1.0", false},
		{"14.x", "14.3.1", false},
		{"15.4", "15.4.0", false},
		{"14.3", "14.3.0", false},
		{"13.0", "", true},
		{"not-a-version", "", true},
	}
	for _, tt := range tests {
		got, err := ResolveXcodeRequest(tt.request, available)
		if (err != nil) != tt.wantErr {
			t.Errorf("ResolveXcodeRequest(%q) error = %v, wantErr %v", tt.request, err, tt.wantErr)
			continue
		}
		if err == nil && got.String() != tt.want {
			t.Errorf("ResolveXcodeRequest(%q) = %s, want %s", tt.request, got, tt.want)
		}
	}
}

func TestSelectXcode(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})

	t.Run("installed version is selected without install", func(t *testing.T) {
		runner := shell.NewFakeRunner().On("xcodes installed", shell.Response{Stdout: "15.4 (15F31d) /Applications/Xcode-15.4.0.app\n16.1 (16B40) (Selected) /Applications/Xcode.app\n"})
		if err := SelectXcode(context.Background(), runner, logger, "15.4"); err != nil {
			t.Fatal(err)
		}
		want := []string{"xcodes installed", "xcodes select 15.4"}
		if got := runner.Lines(); !reflect.DeepEqual(got, want) {
			t.Errorf("commands = %v, want %v", got, want)
		}
	})

	t.Run("missing version is installed", func(t *testing.T) {
		runner := shell.NewFakeRunner().
			On("xcodes installed", shell.Response{Stdout: "15.4 (15F31d) /Applications/Xcode.app\n"}).
			On("xcodes list", shell.Response{Stdout: xcodesList})
		if err := SelectXcode(context.Background(), runner, logger, "16.x"); err != nil {
			t.Fatal(err)
		}
		want := []string{"xcodes installed", "xcodes list", "xcodes install 16.1", "xcodes select 16.1"}
		if got := runner.Lines(); !reflect.DeepEqual(got, want) {
			t.Errorf("commands = %v, want %v", got, want)
		}
	})
}

func TestActiveXcodeVersion(t *testing.T) {
	runner := shell.NewFakeRunner().On("xcodebuild -version", shell.Response{Stdout: "Xcode 15.2\nBuild version 15C500b\n"})
	v, err := ActiveXcodeVersion(context.Background(), runner)
	if err != nil || v.String() != "15.2.0" {
		t.Errorf("ActiveXcodeVersion() = %v, %v", v, err)
	}
}

func TestEnsurePlatformSDK(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})

	runner := shell.NewFakeRunner().On("xcrun --sdk", shell.Response{ExitCode: 1})
	if err := EnsurePlatformSDK(context.Background(), runner, logger, PlatformVisionOS, "2.0"); err != nil {
		t.Fatal(err)
	}
	if !runner.Called("xcodebuild -downloadPlatform visionOS -buildVersion 2.0") {
		t.Errorf("commands = %v", runner.Lines())
	}
	if got := runner.Calls[len(runner.Calls)-1].Options.MaxRetries; got != 3 {
		t.Errorf("MaxRetries = %d, want 3", got)
	}

	mac := shell.NewFakeRunner()
	if err := EnsurePlatformSDK(context.Background(), mac, logger, PlatformMacOS, ""); err != nil || len(mac.Calls) != 0 {
		t.Errorf("macOS should never download: %v %v", err, mac.Lines())
	}
}
