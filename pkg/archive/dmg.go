package archive

import (
	"context"
	"fmt"

	"github.com/macreleaser/xcdeploy/pkg/shell"
)

// CreateDMG creates a compressed disk image containing appPath.
// volumeName is the name shown when the image is mounted.
func CreateDMG(ctx context.Context, runner shell.Runner, appPath, outputPath, volumeName string) error {
	_, err := runner.Run(ctx, "hdiutil", []string{
		"create",
		"-volname", volumeName,
		"-srcfolder", appPath,
		"-ov",
		"-format", "UDZO",
		outputPath,
	})
	if err != nil {
		return fmt.Errorf("failed to create DMG image: %w", err)
	}
	return nil
}
