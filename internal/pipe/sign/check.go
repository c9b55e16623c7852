package sign

import (
	"github.com/macreleaser/xcdeploy/pkg/context"
	"github.com/macreleaser/xcdeploy/pkg/errs"
)

// skipError signals an intentional skip. It satisfies the pipe.IsSkip interface
// checked by the pipeline runner, without importing pkg/pipe (which would cause
// an import cycle through pkg/pipe/registry.go).
type skipError string

func (e skipError) Error() string { return string(e) }
func (e skipError) IsSkip() bool  { return true }

// CheckPipe validates signing configuration
type CheckPipe struct{}

func (CheckPipe) String() string { return "validating signing configuration" }

func (CheckPipe) Run(ctx *context.Context) error {
	cfg := ctx.Config.Credentials

	if cfg.Certificate == "" && cfg.SigningIdentity == "" && cfg.ProvisioningProfile != "" {
		return errs.Config("credentials.provisioning_profile requires credentials.certificate or credentials.signing_identity")
	}
	if cfg.Certificate != "" && cfg.CertificatePassword == "" {
		ctx.Logger.Warn("credentials.certificate is set without credentials.certificate_password")
	}

	ctx.Logger.Debug("Signing configuration validated successfully")
	return nil
}
