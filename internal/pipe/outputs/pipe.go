// Package outputs publishes the build results as job outputs.
package outputs

import (
	"fmt"
	"os"

	"github.com/macreleaser/xcdeploy/pkg/archive"
	"github.com/macreleaser/xcdeploy/pkg/context"
)

// Pipe sets output-directory, executable and, for file artifacts,
// artifact-sha256.
type Pipe struct{}

func (Pipe) String() string { return "setting outputs" }

func (Pipe) Run(ctx *context.Context) error {
	p := &ctx.Project
	if p.ArtifactPath == "" {
		return fmt.Errorf("no artifact to report, ensure the export step completed successfully")
	}

	if err := ctx.Outputs.Set("output-directory", p.ExportPath); err != nil {
		return err
	}
	if err := ctx.Outputs.Set("executable", p.ArtifactPath); err != nil {
		return err
	}

	info, err := os.Stat(p.ArtifactPath)
	if err != nil {
		return fmt.Errorf("failed to stat artifact: %w", err)
	}
	if info.IsDir() {
		ctx.Logger.Infof("Artifact: %s", p.ArtifactPath)
		return nil
	}
	sum, err := archive.SHA256(p.ArtifactPath)
	if err != nil {
		return err
	}
	ctx.Logger.Infof("Artifact: %s (sha256 %s)", p.ArtifactPath, sum)
	return ctx.Outputs.Set("artifact-sha256", sum)
}
