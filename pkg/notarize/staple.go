package notarize

import (
	"context"
	"fmt"
	"strings"

	"github.com/macreleaser/xcdeploy/pkg/shell"
)

// Staple attaches the notarization ticket to path.
func (n *Notary) Staple(ctx context.Context, path string) error {
	_, err := n.Runner.Run(ctx, "xcrun", []string{"stapler", "staple", path})
	if err != nil {
		if ee, ok := shell.AsExitError(err); ok && strings.Contains(ee.Output, "Could not find ticket") {
			return fmt.Errorf("stapling failed, the notarization ticket was not found; ensure notarytool submission succeeded: %w", err)
		}
		return fmt.Errorf("stapler staple failed: %w", err)
	}
	return nil
}

// ValidateStaple checks that path carries a valid stapled ticket.
func (n *Notary) ValidateStaple(ctx context.Context, path string) error {
	if _, err := n.Runner.Run(ctx, "xcrun", []string{"stapler", "validate", path}, shell.Silent()); err != nil {
		return fmt.Errorf("stapler validate failed: %w", err)
	}
	return nil
}
