package xcode

import (
	"context"
	"fmt"
	"time"

	"github.com/macreleaser/xcdeploy/pkg/shell"
	"github.com/sirupsen/logrus"
)

const (
	sdkDownloadRetries    = 3
	sdkDownloadRetryDelay = 30 * time.Second
)

// EnsurePlatformSDK downloads the platform SDK when xcrun cannot find it.
// macOS always ships with Xcode and is never downloaded.
func EnsurePlatformSDK(ctx context.Context, runner shell.Runner, logger *logrus.Logger, platform Platform, sdkVersion string) error {
	if platform == PlatformMacOS {
		return nil
	}

	sdk := platform.SDK() + sdkVersion
	if _, err := runner.Run(ctx, "xcrun", []string{"--sdk", sdk, "--show-sdk-path"}, shell.Silent()); err == nil {
		logger.Debugf("%s SDK %s is installed", platform, sdk)
		return nil
	}

	logger.Infof("Downloading %s platform support", platform)
	args := []string{"-downloadPlatform", string(platform)}
	if sdkVersion != "" {
		args = append(args, "-buildVersion", sdkVersion)
	}
	if _, err := runner.Run(ctx, "xcodebuild", args, shell.WithRetry(sdkDownloadRetries, sdkDownloadRetryDelay)); err != nil {
		return fmt.Errorf("failed to download %s platform: %w", platform, err)
	}
	return nil
}
