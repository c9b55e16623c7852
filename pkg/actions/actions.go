// Package actions integrates with the GitHub Actions runner: job outputs,
// collapsible log groups and the workspace/temp directories it provides.
package actions

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// IsActions reports whether the process runs inside a GitHub Actions job.
func IsActions() bool {
	return os.Getenv("GITHUB_ACTIONS") == "true"
}

// Workspace returns GITHUB_WORKSPACE, falling back to the working directory.
func Workspace() string {
	if ws := os.Getenv("GITHUB_WORKSPACE"); ws != "" {
		return ws
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

// TempDir returns RUNNER_TEMP, falling back to the OS temp directory.
func TempDir() string {
	if dir := os.Getenv("RUNNER_TEMP"); dir != "" {
		return dir
	}
	return os.TempDir()
}

// Outputs writes job outputs and log groups.
type Outputs struct {
	Logger *logrus.Logger
	// Out receives workflow commands such as ::group::. Defaults to stdout.
	Out io.Writer
	// File is the GITHUB_OUTPUT path. Empty means outputs are only logged.
	File string
}

// NewOutputs returns Outputs bound to the current runner environment.
func NewOutputs(logger *logrus.Logger) *Outputs {
	return &Outputs{Logger: logger, Out: os.Stdout, File: os.Getenv("GITHUB_OUTPUT")}
}

// Set records a job output. Values are written with a random heredoc
// delimiter so multi-line values cannot terminate the block early.
func (o *Outputs) Set(name, value string) error {
	if o.File == "" {
		o.Logger.Infof("output %s=%s", name, value)
		return nil
	}

	delim := "ghadelimiter_" + uuid.NewString()
	if strings.Contains(name, delim) || strings.Contains(value, delim) {
		return fmt.Errorf("output %s collides with its delimiter", name)
	}

	f, err := os.OpenFile(filepath.Clean(o.File), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open GITHUB_OUTPUT: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := fmt.Fprintf(f, "%s<<%s\n%s\n%s\n", name, delim, value, delim); err != nil {
		return fmt.Errorf("failed to write output %s: %w", name, err)
	}
	o.Logger.Debugf("output %s=%s", name, value)
	return nil
}

// Group starts a collapsible log group. It is a no-op outside Actions.
func (o *Outputs) Group(title string) {
	if IsActions() {
		_, _ = fmt.Fprintf(o.writer(), "::group::%s\n", title)
	}
}

// EndGroup closes the current log group.
func (o *Outputs) EndGroup() {
	if IsActions() {
		_, _ = fmt.Fprintln(o.writer(), "::endgroup::")
	}
}

func (o *Outputs) writer() io.Writer {
	if o.Out == nil {
		return os.Stdout
	}
	return o.Out
}
