package credentials

import (
	"fmt"

	"github.com/macreleaser/xcdeploy/pkg/context"
	"github.com/macreleaser/xcdeploy/pkg/credential"
	"github.com/macreleaser/xcdeploy/pkg/state"
)

// Pipe establishes the ephemeral signing context and the App Store Connect
// client used by every later stage.
type Pipe struct{}

func (Pipe) String() string { return "establishing credentials" }

func (Pipe) Run(ctx *context.Context) error {
	cfg := &ctx.Config.Credentials

	if ctx.Secrets != nil {
		if ctx.Secrets.Region == "" {
			ctx.Secrets.Region = cfg.AWSRegion
		}
		if err := ctx.Secrets.Resolve(ctx.StdCtx,
			&cfg.KeyID, &cfg.IssuerID, &cfg.APIKey,
			&cfg.Certificate, &cfg.CertificatePassword, &cfg.ProvisioningProfile,
		); err != nil {
			return fmt.Errorf("failed to resolve secrets: %w", err)
		}
	}

	if ctx.Store == nil {
		store, err := state.NewStore(ctx.Config.State.Path)
		if err != nil {
			return err
		}
		ctx.Store = store
	}

	c, err := ctx.CredentialManager().Establish(ctx.StdCtx, credential.Inputs{
		KeyID:                   cfg.KeyID,
		IssuerID:                cfg.IssuerID,
		APIKey:                  cfg.APIKey,
		Certificate:             cfg.Certificate,
		CertificatePassword:     cfg.CertificatePassword,
		SigningIdentity:         cfg.SigningIdentity,
		ProvisioningProfile:     cfg.ProvisioningProfile,
		ProvisioningProfileName: cfg.ProvisioningProfileName,
		TeamID:                  cfg.TeamID,
		LockTimeout:             cfg.KeychainLockTimeout,
	})
	if err != nil {
		return err
	}
	ctx.Credential = c

	if ctx.ASC == nil {
		creds, err := c.ASCCredentials()
		if err != nil {
			return fmt.Errorf("failed to load API key: %w", err)
		}
		client, err := ctx.NewASCClient(creds)
		if err != nil {
			return fmt.Errorf("failed to create App Store Connect client: %w", err)
		}
		ctx.ASC = client
	}

	if c.SigningIdentity != "" {
		ctx.Logger.Infof("Signing as %q (team %s)", c.SigningIdentity, c.TeamID)
	} else {
		ctx.Logger.Info("No signing certificate supplied, using automatic signing")
	}
	return nil
}
