package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/macreleaser/xcdeploy/pkg/config"
	macContext "github.com/macreleaser/xcdeploy/pkg/context"
	"github.com/macreleaser/xcdeploy/pkg/errs"
	"github.com/macreleaser/xcdeploy/pkg/logging"
	"github.com/macreleaser/xcdeploy/pkg/redact"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// SetupLogger creates and configures a logger based on debug mode
func SetupLogger(debug bool) *logrus.Logger {
	logger := logrus.New()

	if debug {
		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   true,
		})
	} else {
		logger.SetLevel(logrus.InfoLevel)
		logger.SetFormatter(&logging.BulletFormatter{})
	}

	return logger
}

// loadContext loads the optional config file, applies command line
// overrides and defaults, and returns a context whose logger redacts every
// registered secret.
func loadContext(cmd *cobra.Command, logger *logrus.Logger) (*macContext.Context, error) {
	cfg, err := config.LoadOptional(GetConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := applyFlags(cmd.Flags(), cfg); err != nil {
		return nil, err
	}
	if path := GetStateFile(); path != "" {
		cfg.State.Path = path
	}
	cfg.ApplyDefaults()

	ctx := macContext.NewContext(cmd.Context(), cfg, logger)
	logger.AddHook(redact.NewHook(ctx.Masker))
	return ctx, nil
}

// formatDuration renders d for the run summary: milliseconds below one
// second, then whole seconds and minutes. Past an hour, which long
// TestFlight processing waits reach, seconds are dropped.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d >= time.Hour {
		d = d.Round(time.Minute)
		h, m := int(d/time.Hour), int((d%time.Hour)/time.Minute)
		if m == 0 {
			return fmt.Sprintf("%dh", h)
		}
		return fmt.Sprintf("%dh%dm", h, m)
	}
	d = d.Round(time.Second)
	m, s := int(d/time.Minute), int((d%time.Minute)/time.Second)
	switch {
	case m == 0:
		return fmt.Sprintf("%ds", s)
	case s == 0:
		return fmt.Sprintf("%dm", m)
	default:
		return fmt.Sprintf("%dm%ds", m, s)
	}
}

// ExitWithErrorf logs an error with the provided logger and exits with code 1
func ExitWithErrorf(logger *logrus.Logger, format string, args ...interface{}) {
	logger.Errorf(format, args...)
	os.Exit(1)
}

// ExitWithError logs err with its failure class and exits with code 1
func ExitWithError(logger *logrus.Logger, msg string, err error) {
	logger.WithField("code", errs.CodeOf(err)).Errorf("%s: %v", msg, err)
	os.Exit(1)
}
