// Package keychain manages the temporary keychain that holds the run's
// signing identities, driving the macOS security tool.
package keychain

import (
	"context"
	"fmt"
	"strconv"

	"github.com/macreleaser/xcdeploy/pkg/shell"
)

// DefaultLockTimeout is the keychain auto-lock timeout in seconds.
const DefaultLockTimeout = 21600

// Keychain is a password-protected keychain file.
type Keychain struct {
	Path     string
	Password string
	Runner   shell.Runner
}

// New returns a Keychain handle. Nothing is created until Create is called.
func New(runner shell.Runner, path, password string) *Keychain {
	return &Keychain{Path: path, Password: password, Runner: runner}
}

func (k *Keychain) security(ctx context.Context, args ...string) (*shell.Result, error) {
	return k.Runner.Run(ctx, "security", args, shell.Silent())
}

// Create creates, configures and unlocks the keychain.
func (k *Keychain) Create(ctx context.Context, lockTimeout int) error {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	if _, err := k.security(ctx, "create-keychain", "-p", k.Password, k.Path); err != nil {
		return fmt.Errorf("failed to create keychain: %w", err)
	}
	if _, err := k.security(ctx, "set-keychain-settings", "-lut", strconv.Itoa(lockTimeout), k.Path); err != nil {
		return fmt.Errorf("failed to configure keychain: %w", err)
	}
	if err := k.Unlock(ctx); err != nil {
		return err
	}
	return nil
}

// Unlock unlocks the keychain with its password.
func (k *Keychain) Unlock(ctx context.Context) error {
	if _, err := k.security(ctx, "unlock-keychain", "-p", k.Password, k.Path); err != nil {
		return fmt.Errorf("failed to unlock keychain: %w", err)
	}
	return nil
}

// ImportPKCS12 imports a .p12 bundle, grants codesign access to its key and
// puts the keychain on the user search list.
func (k *Keychain) ImportPKCS12(ctx context.Context, p12Path, password string) error {
	if _, err := k.security(ctx, "import", p12Path, "-P", password, "-A", "-t", "cert", "-f", "pkcs12", "-k", k.Path); err != nil {
		return fmt.Errorf("failed to import certificate: %w", err)
	}
	if err := k.allowCodesign(ctx); err != nil {
		return err
	}
	return k.addToSearchList(ctx)
}

// ImportKey imports a PEM private key.
func (k *Keychain) ImportKey(ctx context.Context, keyPath string) error {
	if _, err := k.security(ctx, "import", keyPath, "-A", "-t", "priv", "-f", "openssl", "-k", k.Path); err != nil {
		return fmt.Errorf("failed to import private key: %w", err)
	}
	return k.allowCodesign(ctx)
}

// ImportCertificate imports a DER certificate.
func (k *Keychain) ImportCertificate(ctx context.Context, certPath string) error {
	if _, err := k.security(ctx, "import", certPath, "-A", "-t", "cert", "-f", "x509", "-k", k.Path); err != nil {
		return fmt.Errorf("failed to import certificate: %w", err)
	}
	return k.addToSearchList(ctx)
}

func (k *Keychain) allowCodesign(ctx context.Context) error {
	if _, err := k.security(ctx, "set-key-partition-list", "-S", "apple-tool:,apple:,codesign:", "-s", "-k", k.Password, k.Path); err != nil {
		return fmt.Errorf("failed to set key partition list: %w", err)
	}
	return nil
}

func (k *Keychain) addToSearchList(ctx context.Context) error {
	if _, err := k.security(ctx, "list-keychains", "-d", "user", "-s", k.Path, "login.keychain-db"); err != nil {
		return fmt.Errorf("failed to add keychain to search list: %w", err)
	}
	return nil
}

// FindIdentities lists the valid code-signing identities in the keychain.
func (k *Keychain) FindIdentities(ctx context.Context) ([]Identity, error) {
	res, err := k.Runner.Run(ctx, "security", []string{"find-identity", "-v", "-p", "codesigning", k.Path})
	if err != nil {
		return nil, fmt.Errorf("failed to list signing identities: %w", err)
	}
	return ParseIdentities(res.Stdout), nil
}

// FindAllIdentities lists every valid identity regardless of policy.
// Installer identities are not code-signing identities and only show here.
func (k *Keychain) FindAllIdentities(ctx context.Context) ([]Identity, error) {
	res, err := k.Runner.Run(ctx, "security", []string{"find-identity", "-v", k.Path})
	if err != nil {
		return nil, fmt.Errorf("failed to list identities: %w", err)
	}
	return ParseIdentities(res.Stdout), nil
}

// Delete removes the keychain file and drops it from the search list.
func (k *Keychain) Delete(ctx context.Context) error {
	if _, err := k.security(ctx, "delete-keychain", k.Path); err != nil {
		return fmt.Errorf("failed to delete keychain %s: %w", k.Path, err)
	}
	return nil
}
