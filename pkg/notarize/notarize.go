package notarize

import (
	"context"
	"path/filepath"
)

// Notarize submits submitPath and staples the ticket to staplePath. For a
// .app the submission is usually a zip of the bundle while the ticket goes
// on the bundle itself. Artifacts that are already notarized are left alone.
func (n *Notary) Notarize(ctx context.Context, submitPath, staplePath string) error {
	if n.IsNotarized(ctx, staplePath) {
		n.Logger.Infof("%s is already notarized, skipping submission", filepath.Base(staplePath))
		return nil
	}
	if _, err := n.Submit(ctx, submitPath); err != nil {
		return err
	}
	if err := n.Staple(ctx, staplePath); err != nil {
		return err
	}
	if err := n.ValidateStaple(ctx, staplePath); err != nil {
		return err
	}
	if _, err := n.Assess(ctx, staplePath); err != nil {
		return err
	}
	n.Logger.Infof("Notarized and stapled %s", filepath.Base(staplePath))
	return nil
}
