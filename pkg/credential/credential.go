// Package credential establishes and tears down the run's signing context:
// the App Store Connect API key file, a temporary keychain holding the
// signing certificate, and the provisioning profile.
//
// Establishment and teardown run in different processes. Every resource is
// recorded in the state store as soon as it exists, so teardown can find it
// even when establishment failed halfway.
package credential

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/google/uuid"
	"github.com/macreleaser/xcdeploy/pkg/actions"
	"github.com/macreleaser/xcdeploy/pkg/asc"
	"github.com/macreleaser/xcdeploy/pkg/errs"
	"github.com/macreleaser/xcdeploy/pkg/keychain"
	"github.com/macreleaser/xcdeploy/pkg/plist"
	"github.com/macreleaser/xcdeploy/pkg/redact"
	"github.com/macreleaser/xcdeploy/pkg/shell"
	"github.com/macreleaser/xcdeploy/pkg/state"
	"github.com/sirupsen/logrus"
)

// Inputs are the secrets and identifiers supplied by the job.
type Inputs struct {
	KeyID    string
	IssuerID string
	// APIKey is the .p8 private key, base64 encoded or raw PEM.
	APIKey string

	// Certificate is a base64 encoded .p12 bundle.
	Certificate         string
	CertificatePassword string
	SigningIdentity     string

	// ProvisioningProfile is a base64 encoded profile named
	// ProvisioningProfileName.
	ProvisioningProfile     string
	ProvisioningProfileName string

	TeamID      string
	LockTimeout int
}

// Credential is the established signing context.
type Credential struct {
	Token        string
	KeychainPath string
	Keychain     *keychain.Keychain

	APIKeyID   string
	IssuerID   string
	APIKeyPath string

	TeamID                  string
	SigningIdentity         string
	ProvisioningProfilePath string
	ProvisioningProfileUUID string

	state *state.State
}

// ASCCredentials returns the API credentials backed by the key file.
func (c *Credential) ASCCredentials() (asc.Credentials, error) {
	return asc.LoadCredentials(c.APIKeyID, c.IssuerID, c.APIKeyPath)
}

// ClientFactory builds an App Store Connect client.
type ClientFactory func(asc.Credentials) (asc.ClientInterface, error)

// DefaultClientFactory builds a production client.
func DefaultClientFactory(c asc.Credentials) (asc.ClientInterface, error) {
	return asc.NewClient(c)
}

// Manager creates and removes signing contexts.
type Manager struct {
	Runner  shell.Runner
	Logger  *logrus.Logger
	Masker  *redact.Masker
	Store   *state.Store
	Outputs *actions.Outputs

	// TempDir holds the keychain, the .p12 and the profile. Defaults to the
	// runner temp directory.
	TempDir string
	// KeyDir receives AuthKey_<id>.p8. Defaults to
	// ~/.appstoreconnect/private_keys, where Apple's tools look for it.
	KeyDir string

	NewToken  func() string
	NewClient ClientFactory
}

// NewManager returns a Manager with production defaults.
func NewManager(runner shell.Runner, logger *logrus.Logger, masker *redact.Masker, store *state.Store) *Manager {
	return &Manager{
		Runner:    runner,
		Logger:    logger,
		Masker:    masker,
		Store:     store,
		Outputs:   actions.NewOutputs(logger),
		NewToken:  uuid.NewString,
		NewClient: DefaultClientFactory,
	}
}

func (m *Manager) tempDir() string {
	if m.TempDir != "" {
		return m.TempDir
	}
	return actions.TempDir()
}

func (m *Manager) keyDir() string {
	if m.KeyDir != "" {
		return m.KeyDir
	}
	return filepath.Join(xdg.Home, ".appstoreconnect", "private_keys")
}

func (m *Manager) save(c *Credential) error {
	if err := m.Store.Save(c.state); err != nil {
		return fmt.Errorf("failed to persist signing state: %w", err)
	}
	return nil
}

// Establish creates the signing context described by in.
func (m *Manager) Establish(ctx context.Context, in Inputs) (*Credential, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	// Secrets are masked before anything can log or pass them to a command.
	m.Masker.Register(in.APIKey, in.Certificate, in.CertificatePassword, in.ProvisioningProfile, in.KeyID, in.IssuerID)

	token := m.NewToken()
	m.Masker.Register(token)

	c := &Credential{
		Token:    token,
		APIKeyID: in.KeyID,
		IssuerID: in.IssuerID,
		TeamID:   in.TeamID,
		state:    &state.State{Token: token, APIKeyID: in.KeyID, IssuerID: in.IssuerID},
	}
	if err := m.save(c); err != nil {
		return nil, err
	}

	if err := m.writeAPIKey(c, in); err != nil {
		return nil, err
	}

	if m.Outputs != nil {
		m.Outputs.Group("Setting up signing keychain")
		defer m.Outputs.EndGroup()
	}

	if err := m.createKeychain(ctx, c, in.LockTimeout); err != nil {
		return nil, err
	}

	if in.Certificate != "" {
		if err := m.importCertificate(ctx, c, in); err != nil {
			return nil, err
		}
	} else if in.SigningIdentity != "" {
		c.SigningIdentity = in.SigningIdentity
	}

	if in.ProvisioningProfile != "" {
		if err := m.installProfile(c, in); err != nil {
			return nil, err
		}
	}

	m.Logger.Infof("Signing context ready (keychain %s)", c.KeychainPath)
	return c, nil
}

func (in Inputs) validate() error {
	switch {
	case in.KeyID == "":
		return errs.Config("credentials.key_id is required")
	case in.IssuerID == "":
		return errs.Config("credentials.issuer_id is required")
	case in.APIKey == "":
		return errs.Config("credentials.api_key is required")
	case in.ProvisioningProfile != "" && in.ProvisioningProfileName == "":
		return errs.Config("credentials.provisioning_profile_name is required when a provisioning profile is supplied")
	case in.ProvisioningProfileName != "" &&
		!strings.HasSuffix(in.ProvisioningProfileName, ".mobileprovision") &&
		!strings.HasSuffix(in.ProvisioningProfileName, ".provisionprofile"):
		return errs.Config("credentials.provisioning_profile_name must end with .mobileprovision or .provisionprofile, got %q", in.ProvisioningProfileName)
	}
	return nil
}

// decodeSecret accepts base64 or, for PEM material, the raw text.
func decodeSecret(value, field string) ([]byte, error) {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "-----BEGIN") {
		return []byte(trimmed + "\n"), nil
	}
	data, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(trimmed), ""))
	if err != nil {
		return nil, errs.E(errs.CodeInvalidConfig, field+" is not valid base64", err)
	}
	return data, nil
}

func (m *Manager) writeAPIKey(c *Credential, in Inputs) error {
	key, err := decodeSecret(in.APIKey, "credentials.api_key")
	if err != nil {
		return err
	}

	dir := m.keyDir()
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}
	path := filepath.Join(dir, "AuthKey_"+in.KeyID+".p8")

	c.APIKeyPath = path
	c.state.APIKeyPath = path
	if err := m.save(c); err != nil {
		return err
	}

	if err := os.WriteFile(path, key, 0600); err != nil {
		return fmt.Errorf("failed to write API key: %w", err)
	}
	m.Logger.Debugf("Wrote API key to %s", path)
	return nil
}

func (m *Manager) createKeychain(ctx context.Context, c *Credential, lockTimeout int) error {
	path := filepath.Join(m.tempDir(), c.Token+".keychain-db")
	c.KeychainPath = path
	c.Keychain = keychain.New(m.Runner, path, c.Token)
	c.state.KeychainPath = path
	if err := m.save(c); err != nil {
		return err
	}
	return c.Keychain.Create(ctx, lockTimeout)
}

func (m *Manager) importCertificate(ctx context.Context, c *Credential, in Inputs) error {
	p12, err := decodeSecret(in.Certificate, "credentials.certificate")
	if err != nil {
		return err
	}

	p12Path := filepath.Join(m.tempDir(), c.Token+".p12")
	if err := os.WriteFile(p12Path, p12, 0600); err != nil {
		return fmt.Errorf("failed to stage certificate: %w", err)
	}
	defer func() {
		if err := os.Remove(p12Path); err != nil && !os.IsNotExist(err) {
			m.Logger.Warnf("Failed to remove %s: %v", p12Path, err)
		}
	}()

	if err := c.Keychain.ImportPKCS12(ctx, p12Path, in.CertificatePassword); err != nil {
		return err
	}

	identities, err := c.Keychain.FindIdentities(ctx)
	if err != nil {
		return err
	}

	if in.SigningIdentity != "" {
		if err := keychain.ValidateIdentity(in.SigningIdentity, identities); err != nil {
			return errs.E(errs.CodeInvalidConfig, "", err)
		}
		c.SigningIdentity = in.SigningIdentity
	} else {
		if len(identities) == 0 {
			return errs.Config("the imported certificate contains no valid signing identity")
		}
		c.SigningIdentity = identities[0].Name
		m.Logger.Infof("Discovered signing identity %q", c.SigningIdentity)
	}

	if c.TeamID == "" {
		c.TeamID = keychain.Identity{Name: c.SigningIdentity}.TeamID()
	}
	return nil
}

func (m *Manager) installProfile(c *Credential, in Inputs) error {
	data, err := decodeSecret(in.ProvisioningProfile, "credentials.provisioning_profile")
	if err != nil {
		return err
	}

	path := filepath.Join(m.tempDir(), filepath.Base(in.ProvisioningProfileName))
	c.ProvisioningProfilePath = path
	c.state.ProvisioningProfilePath = path
	if err := m.save(c); err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write provisioning profile: %w", err)
	}

	profile, err := plist.ParseProfile(data)
	if err != nil {
		return errs.E(errs.CodeInvalidConfig, "invalid provisioning profile", err)
	}
	c.ProvisioningProfileUUID = profile.UUID
	if c.TeamID == "" && len(profile.TeamIDs) > 0 {
		c.TeamID = profile.TeamIDs[0]
	}
	m.Logger.Infof("Installed provisioning profile %s (%s)", in.ProvisioningProfileName, profile.UUID)
	return nil
}
