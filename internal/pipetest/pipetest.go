// Package pipetest builds pipeline contexts backed by fakes for pipe tests.
package pipetest

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/macreleaser/xcdeploy/pkg/actions"
	"github.com/macreleaser/xcdeploy/pkg/asc"
	"github.com/macreleaser/xcdeploy/pkg/config"
	macContext "github.com/macreleaser/xcdeploy/pkg/context"
	"github.com/macreleaser/xcdeploy/pkg/credential"
	"github.com/macreleaser/xcdeploy/pkg/plist"
	"github.com/macreleaser/xcdeploy/pkg/redact"
	"github.com/macreleaser/xcdeploy/pkg/shell"
	"github.com/macreleaser/xcdeploy/pkg/state"
	"github.com/macreleaser/xcdeploy/pkg/xcode"
	"github.com/sirupsen/logrus"
)

// Fixture is a context wired to a FakeRunner and a MockClient, with every
// file it writes under Dir.
type Fixture struct {
	Ctx    *macContext.Context
	Runner *shell.FakeRunner
	ASC    *asc.MockClient
	Logs   *bytes.Buffer
	Dir    string
	// OutputFile receives job outputs.
	OutputFile string
}

// New returns a Fixture for cfg. Defaults are applied to cfg.
func New(t testing.TB, cfg *config.Config) *Fixture {
	t.Helper()
	dir := t.TempDir()
	for _, d := range []string{"workspace", "runner", "keys"} {
		if err := os.MkdirAll(filepath.Join(dir, d), 0700); err != nil {
			t.Fatal(err)
		}
	}

	logs := &bytes.Buffer{}
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	logger.SetOutput(logs)

	if cfg == nil {
		cfg = &config.Config{}
	}
	cfg.ApplyDefaults()

	runner := shell.NewFakeRunner()
	client := asc.NewMockClient()
	factory := func(asc.Credentials) (asc.ClientInterface, error) { return client, nil }

	ctx := macContext.NewContext(context.Background(), cfg, logger)
	ctx.Runner = runner
	ctx.Masker = redact.New(&bytes.Buffer{}, false)
	outputFile := filepath.Join(dir, "outputs")
	ctx.Outputs = &actions.Outputs{Logger: logger, Out: &bytes.Buffer{}, File: outputFile}
	ctx.Store = &state.Store{Path: filepath.Join(dir, "state.yaml")}
	ctx.NewASCClient = factory
	ctx.Sleep = func(context.Context, time.Duration) error { return nil }
	ctx.Workspace = filepath.Join(dir, "workspace")
	ctx.Credentials = &credential.Manager{
		Runner:    runner,
		Logger:    logger,
		Masker:    ctx.Masker,
		Store:     ctx.Store,
		Outputs:   ctx.Outputs,
		TempDir:   filepath.Join(dir, "runner"),
		KeyDir:    filepath.Join(dir, "keys"),
		NewToken:  func() string { return "token-0001" },
		NewClient: factory,
	}

	return &Fixture{Ctx: ctx, Runner: runner, ASC: client, Logs: logs, Dir: dir, OutputFile: outputFile}
}

// Outputs returns the job outputs written so far.
func (f *Fixture) Outputs() string {
	data, err := os.ReadFile(f.OutputFile)
	if err != nil {
		return ""
	}
	return string(data)
}

// WriteFile writes content to a path relative to Dir, creating parents.
func (f *Fixture) WriteFile(t testing.TB, rel, content string) string {
	t.Helper()
	path := filepath.Join(f.Dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// Fail returns a scripted command failure with output on stderr.
func Fail(output string) shell.Response {
	return shell.Response{Stderr: output, ExitCode: 1}
}

// WriteInfoPlist writes an Info.plist with the given version keys at rel
// under Dir and returns its path.
func (f *Fixture) WriteInfoPlist(t testing.TB, rel, shortVersion, buildNumber string) string {
	t.Helper()
	path := filepath.Join(f.Dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	doc := plist.NewDict(map[string]plist.Value{
		"CFBundleShortVersionString": plist.NewString(shortVersion),
		"CFBundleVersion":            plist.NewString(buildNumber),
	})
	if err := plist.Write(path, doc, plist.XMLFormat); err != nil {
		t.Fatal(err)
	}
	return path
}

// ReadInfoPlistValue returns a string key of the plist at path.
func ReadInfoPlistValue(t testing.TB, path, key string) string {
	t.Helper()
	doc, _, err := plist.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	return doc.GetString(key)
}

// SetProject fills ctx.Project as the project pipe would for a project named
// MyApp in the workspace.
func (f *Fixture) SetProject(platform xcode.Platform, method string) *macContext.Project {
	ws := f.Ctx.Workspace
	p := &f.Ctx.Project
	p.Located = xcode.Located{Path: filepath.Join(ws, "MyApp.xcodeproj"), Type: xcode.Project}
	p.Scheme = "MyApp"
	p.Configuration = "Release"
	p.Platform = platform
	p.Destination = platform.Destination()
	p.BundleID = "com.example.myapp"
	p.AppID = "app-1"
	p.ExportMethod = method
	p.ArchivePath = filepath.Join(ws, "MyApp.xcarchive")
	p.ExportPath = filepath.Join(ws, "MyApp")
	p.Version = &xcode.VersionMetadata{ShortVersion: "1.4.0", BuildNumber: "6"}
	return p
}

// SetCredential installs a signing context without running the credential
// manager.
func (f *Fixture) SetCredential(identity string) *credential.Credential {
	c := &credential.Credential{
		Token:           "token-0001",
		KeychainPath:    filepath.Join(f.Dir, "runner", "token-0001.keychain-db"),
		APIKeyID:        "KEY123",
		IssuerID:        "issuer-1",
		APIKeyPath:      filepath.Join(f.Dir, "keys", "AuthKey_KEY123.p8"),
		TeamID:          "ABCDE12345",
		SigningIdentity: identity,
	}
	f.Ctx.Credential = c
	f.Ctx.ASC = f.ASC
	return c
}
