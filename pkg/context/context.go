// Package context carries configuration, collaborators and resolved build
// state through the pipeline.
package context

import (
	"context"

	"github.com/Masterminds/semver/v3"
	"github.com/macreleaser/xcdeploy/pkg/actions"
	"github.com/macreleaser/xcdeploy/pkg/asc"
	"github.com/macreleaser/xcdeploy/pkg/config"
	"github.com/macreleaser/xcdeploy/pkg/credential"
	"github.com/macreleaser/xcdeploy/pkg/github"
	"github.com/macreleaser/xcdeploy/pkg/redact"
	"github.com/macreleaser/xcdeploy/pkg/secrets"
	"github.com/macreleaser/xcdeploy/pkg/shell"
	"github.com/macreleaser/xcdeploy/pkg/state"
	"github.com/macreleaser/xcdeploy/pkg/testflight"
	"github.com/macreleaser/xcdeploy/pkg/xcode"
	"github.com/sirupsen/logrus"
)

// Context provides shared state for all pipes
type Context struct {
	StdCtx context.Context // Standard context for cancellation support
	Config *config.Config
	Logger *logrus.Logger

	Runner      shell.Runner
	Masker      *redact.Masker
	Outputs     *actions.Outputs
	Store       *state.Store
	Credentials *credential.Manager
	Secrets     *secrets.Resolver

	// NewASCClient builds the App Store Connect client once credentials
	// exist. NewGitHubClient is used only when release notes must come from
	// the GitHub API.
	NewASCClient    credential.ClientFactory
	NewGitHubClient func(token string) (github.ClientInterface, error)
	Sleep           testflight.SleepFunc

	// Workspace is the root searched for the project.
	Workspace string

	// Resolved during the run.
	Credential   *credential.Credential
	ASC          asc.ClientInterface
	XcodeVersion *semver.Version
	Project      Project
	WhatsNew     string
	Uploaded     bool
	Build        *asc.Build
}

// Project is the resolved build descriptor.
type Project struct {
	xcode.Located

	Scheme        string
	Configuration string
	Destination   string
	Platform      xcode.Platform
	BundleID      string
	AppID         string
	Settings      *xcode.BuildSettings
	Version       *xcode.VersionMetadata

	ExportMethod      string
	ExportOptionsPath string
	EntitlementsPath  string

	ArchivePath  string
	ExportPath   string
	ArtifactPath string
}

// NewContext creates a new context with the given standard context, config, and logger.
// If stdCtx is nil, context.Background() is used. Collaborators default to
// their real implementations and may be replaced before the pipeline runs.
func NewContext(stdCtx context.Context, cfg *config.Config, logger *logrus.Logger) *Context {
	if stdCtx == nil {
		stdCtx = context.Background()
	}
	masker := redact.New(logger.Out, actions.IsActions())
	return &Context{
		StdCtx:       stdCtx,
		Config:       cfg,
		Logger:       logger,
		Runner:       shell.NewExecRunner(logger, masker),
		Masker:       masker,
		Outputs:      actions.NewOutputs(logger),
		Secrets:      &secrets.Resolver{},
		NewASCClient: credential.DefaultClientFactory,
		NewGitHubClient: func(token string) (github.ClientInterface, error) {
			return github.NewClientForRunner(token)
		},
		Sleep:     testflight.Sleep,
		Workspace: actions.Workspace(),
	}
}

// Done returns the done channel from the standard context for cancellation support
func (c *Context) Done() <-chan struct{} {
	return c.StdCtx.Done()
}

// Err returns the error from the standard context
func (c *Context) Err() error {
	return c.StdCtx.Err()
}

// CredentialManager returns the credential manager, creating it on first use.
func (c *Context) CredentialManager() *credential.Manager {
	if c.Credentials == nil {
		c.Credentials = credential.NewManager(c.Runner, c.Logger, c.Masker, c.Store)
		c.Credentials.Outputs = c.Outputs
		c.Credentials.NewClient = c.NewASCClient
	}
	return c.Credentials
}
