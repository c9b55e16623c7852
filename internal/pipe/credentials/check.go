package credentials

import (
	"github.com/macreleaser/xcdeploy/pkg/context"
	"github.com/macreleaser/xcdeploy/pkg/env"
	"github.com/macreleaser/xcdeploy/pkg/errs"
	"github.com/macreleaser/xcdeploy/pkg/secrets"
	"github.com/macreleaser/xcdeploy/pkg/validate"
)

// CheckPipe validates credentials configuration
type CheckPipe struct{}

func (CheckPipe) String() string { return "validating credentials configuration" }

func (CheckPipe) Run(ctx *context.Context) error {
	cfg := ctx.Config.Credentials

	if err := validate.RequiredString(cfg.KeyID, "credentials.key_id"); err != nil {
		return err
	}
	if err := validate.RequiredString(cfg.IssuerID, "credentials.issuer_id"); err != nil {
		return err
	}
	if err := validate.RequiredString(cfg.APIKey, "credentials.api_key"); err != nil {
		return err
	}
	if err := validate.RequiredTogether(map[string]string{
		"credentials.provisioning_profile":      cfg.ProvisioningProfile,
		"credentials.provisioning_profile_name": cfg.ProvisioningProfileName,
	}); err != nil {
		return err
	}
	if err := validate.Positive(cfg.KeychainLockTimeout, "credentials.keychain_lock_timeout"); err != nil {
		return err
	}

	for field, v := range map[string]string{
		"credentials.key_id":               cfg.KeyID,
		"credentials.issuer_id":            cfg.IssuerID,
		"credentials.api_key":              cfg.APIKey,
		"credentials.certificate":          cfg.Certificate,
		"credentials.certificate_password": cfg.CertificatePassword,
	} {
		if err := env.CheckResolved(v, field); err != nil {
			return errs.E(errs.CodeInvalidConfig, "", err)
		}
	}

	for _, v := range []string{cfg.APIKey, cfg.Certificate, cfg.CertificatePassword, cfg.ProvisioningProfile} {
		if _, ok := secrets.Ref(v); ok {
			ctx.Logger.Debug("Secret references will be resolved from AWS Secrets Manager")
			break
		}
	}

	ctx.Logger.Debug("Credentials configuration validated successfully")
	return nil
}
