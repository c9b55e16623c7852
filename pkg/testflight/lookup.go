package testflight

import (
	"context"

	"github.com/macreleaser/xcdeploy/pkg/asc"
	"github.com/sirupsen/logrus"
)

// LatestBuildNumber returns the version string of the newest build uploaded
// for q.ShortVersion, or "" when there is none. Unauthorized errors are
// returned; every other lookup failure means no remote build.
func LatestBuildNumber(ctx context.Context, client asc.ClientInterface, logger *logrus.Logger, q Query) (string, error) {
	if q.AppID == "" {
		return "", nil
	}
	prv, build, err := client.GetLatestPreReleaseVersion(ctx, q.AppID, q.Platform, q.ShortVersion)
	if err == nil && build == nil {
		build, err = client.GetLatestBuild(ctx, prv.ID)
	}
	if err != nil {
		if asc.IsUnauthorized(err) {
			return "", err
		}
		logger.WithError(err).Debugf("No remote build found for version %s", q.ShortVersion)
		return "", nil
	}
	return build.Version, nil
}
