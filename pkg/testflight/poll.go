// Package testflight waits for uploaded builds to finish processing and
// publishes their TestFlight metadata.
package testflight

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/macreleaser/xcdeploy/pkg/asc"
	"github.com/macreleaser/xcdeploy/pkg/errs"
	"github.com/sirupsen/logrus"
)

// Default polling bounds.
const (
	DefaultMaxAttempts = 180
	DefaultInterval    = 30 * time.Second
)

// Query identifies the build being waited for.
type Query struct {
	AppID        string
	Platform     asc.Platform
	ShortVersion string
	BuildNumber  string
}

// TimeoutError reports that polling exhausted its attempts.
type TimeoutError struct {
	Query    Query
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for build %s (%s) to become valid after %d attempts",
		e.Query.BuildNumber, e.Query.ShortVersion, e.Attempts)
}

func (e *TimeoutError) Code() errs.Code { return errs.CodeTimeout }

// RemoteRejectedError reports a build that App Store Connect failed to
// process.
type RemoteRejectedError struct {
	Version string
	State   string
}

func (e *RemoteRejectedError) Error() string {
	return fmt.Sprintf("build %s processing ended in state %s", e.Version, e.State)
}

func (e *RemoteRejectedError) Code() errs.Code { return errs.CodeRemoteRejected }

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the real SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Poller waits for an uploaded build to become valid.
type Poller struct {
	Client asc.ClientInterface
	Logger *logrus.Logger
	Sleep  SleepFunc
}

// Poll makes exactly maxAttempts lookups, sleeping interval between them,
// until the latest build of q's pre-release version is VALID and matches
// q.BuildNumber. A FAILED or INVALID build ends polling immediately.
func (p *Poller) Poll(ctx context.Context, q Query, maxAttempts int, interval time.Duration) (*asc.Build, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	p.Logger.Infof("Waiting for build %s (%s) to finish processing", q.BuildNumber, q.ShortVersion)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, interval); err != nil {
				return nil, err
			}
		}
		p.Logger.Debugf("Polling for build, attempt %d/%d", attempt, maxAttempts)

		build, err := p.latest(ctx, q)
		if err != nil {
			switch {
			case asc.IsUnauthorized(err):
				return nil, err
			case asc.IsNotFound(err):
				p.Logger.Infof("Waiting for pre-release version %s...", q.ShortVersion)
				continue
			case asc.IsServerError(err):
				p.Logger.WithError(err).Warn("App Store Connect lookup failed, retrying")
				continue
			default:
				return nil, err
			}
		}

		switch build.ProcessingState {
		case asc.StateValid:
			if VersionsEqual(build.Version, q.BuildNumber) {
				p.Logger.Infof("Build %s is VALID", build.Version)
				return build, nil
			}
			p.Logger.Infof("Waiting for build %s, latest is %s...", q.BuildNumber, build.Version)
		case asc.StateFailed, asc.StateInvalid:
			return nil, &RemoteRejectedError{Version: build.Version, State: build.ProcessingState}
		default:
			p.Logger.Infof("Build %s is %s...", build.Version, build.ProcessingState)
		}
	}
	return nil, &TimeoutError{Query: q, Attempts: maxAttempts}
}

func (p *Poller) latest(ctx context.Context, q Query) (*asc.Build, error) {
	prv, build, err := p.Client.GetLatestPreReleaseVersion(ctx, q.AppID, q.Platform, q.ShortVersion)
	if err != nil {
		return nil, err
	}
	if build != nil {
		return build, nil
	}
	return p.Client.GetLatestBuild(ctx, prv.ID)
}

// VersionsEqual compares dotted build numbers component-wise as integers so
// "1.02" equals "1.2". Non-numeric components compare textually.
func VersionsEqual(a, b string) bool {
	pa, pb := strings.Split(a, "."), strings.Split(b, ".")
	if len(pa) != len(pb) {
		return false
	}
	for i := range pa {
		na, errA := strconv.Atoi(pa[i])
		nb, errB := strconv.Atoi(pb[i])
		if errA == nil && errB == nil {
			if na != nb {
				return false
			}
			continue
		}
		if pa[i] != pb[i] {
			return false
		}
	}
	return true
}
