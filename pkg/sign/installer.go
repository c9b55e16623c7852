package sign

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// BuildInstaller wraps app in an installer package signed with identity.
// The unsigned intermediate package is removed.
func (s *Signer) BuildInstaller(ctx context.Context, app, output, identity string) error {
	unsigned := strings.TrimSuffix(output, ".pkg") + "-unsigned.pkg"
	defer os.Remove(unsigned)

	if _, err := s.Runner.Run(ctx, "productbuild", []string{"--component", app, "/Applications", unsigned}); err != nil {
		return fmt.Errorf("productbuild failed: %w", err)
	}

	args := []string{"--sign", identity}
	if s.Keychain != "" {
		args = append(args, "--keychain", s.Keychain)
	}
	args = append(args, "--timestamp", unsigned, output)
	if _, err := s.Runner.Run(ctx, "productsign", args); err != nil {
		return fmt.Errorf("productsign failed: %w", err)
	}
	return s.CheckPackage(ctx, output)
}

// CheckPackage verifies an installer package signature.
func (s *Signer) CheckPackage(ctx context.Context, pkg string) error {
	if _, err := s.Runner.Run(ctx, "pkgutil", []string{"--check-signature", pkg}); err != nil {
		return fmt.Errorf("package signature check failed for %s: %w", pkg, err)
	}
	return nil
}
