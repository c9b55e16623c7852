package sign

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/macreleaser/xcdeploy/pkg/archive"
	"github.com/macreleaser/xcdeploy/pkg/context"
	"github.com/macreleaser/xcdeploy/pkg/credential"
	"github.com/macreleaser/xcdeploy/pkg/errs"
	"github.com/macreleaser/xcdeploy/pkg/keychain"
	"github.com/macreleaser/xcdeploy/pkg/sign"
	"github.com/macreleaser/xcdeploy/pkg/xcode"
)

// Pipe re-signs a macOS app exported for direct distribution with a
// Developer ID identity and packages it as configured (app, pkg or dmg).
type Pipe struct{}

func (Pipe) String() string { return "signing application" }

func (Pipe) Run(ctx *context.Context) error {
	p := &ctx.Project
	if p.Platform != xcode.PlatformMacOS || xcode.IsAppStoreMethod(p.ExportMethod) {
		return skipError("signing only applies to macOS direct distribution")
	}
	if filepath.Ext(p.ArtifactPath) != ".app" {
		return fmt.Errorf("no .app found to sign, ensure the export step completed successfully")
	}
	c := ctx.Credential
	if c == nil {
		return fmt.Errorf("no signing context available")
	}
	if c.Keychain == nil {
		c.Keychain = keychain.New(ctx.Runner, c.KeychainPath, c.Token)
	}

	app := p.ArtifactPath
	signer := &sign.Signer{Runner: ctx.Runner, Logger: ctx.Logger, Keychain: c.KeychainPath}

	if err := signer.StripAttributes(ctx.StdCtx, app); err != nil {
		return err
	}

	identities, err := c.Keychain.FindIdentities(ctx.StdCtx)
	if err != nil {
		return err
	}
	identity, err := findIdentity(ctx, c, identities, keychain.ClassDeveloperIDApplication)
	if err != nil {
		return err
	}

	ctx.Logger.Infof("Signing %s as %q", filepath.Base(app), identity.Name)
	if err := signer.SignBundle(ctx.StdCtx, app, identity.Name, p.EntitlementsPath); err != nil {
		return err
	}
	if err := signer.Verify(ctx.StdCtx, app); err != nil {
		return err
	}
	if p.EntitlementsPath != "" {
		if err := signer.VerifyEntitlements(ctx.StdCtx, app, p.EntitlementsPath); err != nil {
			return err
		}
	}

	base := strings.TrimSuffix(app, ".app")
	switch ctx.Config.Export.ArchiveType {
	case "pkg":
		all, err := c.Keychain.FindAllIdentities(ctx.StdCtx)
		if err != nil {
			return err
		}
		installer, err := findIdentity(ctx, c, all, keychain.ClassDeveloperIDInstaller)
		if err != nil {
			return err
		}
		pkg := base + ".pkg"
		ctx.Logger.Infof("Building installer package %s", filepath.Base(pkg))
		if err := signer.BuildInstaller(ctx.StdCtx, app, pkg, installer.Name); err != nil {
			return err
		}
		p.ArtifactPath = pkg

	case "dmg":
		dmg := base + ".dmg"
		ctx.Logger.Infof("Creating disk image %s", filepath.Base(dmg))
		if err := archive.CreateDMG(ctx.StdCtx, ctx.Runner, app, dmg, p.Name()); err != nil {
			return err
		}
		if err := signer.Sign(ctx.StdCtx, dmg, identity.Name, ""); err != nil {
			return err
		}
		p.ArtifactPath = dmg
	}

	ctx.Logger.Infof("Signed and verified: %s", p.ArtifactPath)
	return nil
}

// findIdentity returns the first identity of class, issuing a certificate
// through the API when none is installed and that is allowed.
func findIdentity(ctx *context.Context, c *credential.Credential, identities []keychain.Identity, class string) (keychain.Identity, error) {
	if id, ok := keychain.FindByClass(identities, class); ok {
		return id, nil
	}
	if !ctx.Config.Credentials.CreateMissingCertificates {
		return keychain.Identity{}, errs.Config("no %q identity in the keychain; supply one in credentials.certificate or enable credentials.create_missing_certificates", class)
	}
	certType, ok := credential.CertificateTypeFor(class)
	if !ok || ctx.ASC == nil {
		return keychain.Identity{}, fmt.Errorf("cannot create a %q certificate", class)
	}

	ctx.Logger.Infof("No %q identity installed, creating a certificate", class)
	id, err := ctx.CredentialManager().CreateAdditionalSigningCertificate(ctx.StdCtx, c, ctx.ASC, certType)
	if err != nil {
		return keychain.Identity{}, err
	}
	return *id, nil
}
