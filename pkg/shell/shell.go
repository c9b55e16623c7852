// Package shell runs the external tools the pipeline drives (xcodebuild,
// security, codesign, notarytool, altool and friends).
//
// Every invocation is echoed before it runs with secrets redacted, and a
// non-zero exit is returned as an *ExitError carrying the captured output so
// callers can surface tool diagnostics.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/macreleaser/xcdeploy/pkg/errs"
	"github.com/macreleaser/xcdeploy/pkg/redact"
	"github.com/sirupsen/logrus"
)

// Result holds the captured output of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	Combined string
	ExitCode int
}

// Runner executes external commands.
type Runner interface {
	Run(ctx context.Context, name string, args []string, opts ...Option) (*Result, error)
}

// Options configures a single invocation.
type Options struct {
	Dir        string
	Env        map[string]string
	Silent     bool // capture output without logging it
	MaxRetries int
	RetryDelay time.Duration
}

// Option modifies Options.
type Option func(*Options)

// WithDir sets the working directory.
func WithDir(dir string) Option {
	return func(o *Options) { o.Dir = dir }
}

// WithEnv adds an environment variable on top of the current environment.
func WithEnv(key, value string) Option {
	return func(o *Options) {
		if o.Env == nil {
			o.Env = make(map[string]string)
		}
		o.Env[key] = value
	}
}

// Silent keeps command output out of the log. The command line is still echoed.
func Silent() Option {
	return func(o *Options) { o.Silent = true }
}

// WithRetry retries a failing command up to n more times, waiting delay between attempts.
func WithRetry(n int, delay time.Duration) Option {
	return func(o *Options) {
		o.MaxRetries = n
		o.RetryDelay = delay
	}
}

// Apply folds opts into a fresh Options value.
func Apply(opts ...Option) Options {
	o := Options{RetryDelay: time.Second}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ExitError reports a command that ran but exited non-zero.
type ExitError struct {
	Name     string
	Args     []string // redacted
	ExitCode int
	Output   string // redacted combined output
	Err      error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Name, e.ExitCode)
}

func (e *ExitError) Unwrap() error { return e.Err }

// Tail returns the last n non-empty lines of the captured output.
func (e *ExitError) Tail(n int) string {
	var lines []string
	for _, l := range strings.Split(e.Output, "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

func (e *ExitError) Code() errs.Code { return errs.CodeExecutionFailed }

// AsExitError returns the *ExitError in err's chain, if any.
func AsExitError(err error) (*ExitError, bool) {
	var ee *ExitError
	ok := errors.As(err, &ee)
	return ee, ok
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	Logger *logrus.Logger
	Masker *redact.Masker
}

// NewExecRunner returns a Runner that logs through logger and redacts with masker.
func NewExecRunner(logger *logrus.Logger, masker *redact.Masker) *ExecRunner {
	return &ExecRunner{Logger: logger, Masker: masker}
}

// Run executes name with args, retrying per the supplied options.
func (r *ExecRunner) Run(ctx context.Context, name string, args []string, opts ...Option) (*Result, error) {
	o := Apply(opts...)
	attempts := o.MaxRetries + 1

	var (
		res *Result
		err error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		res, err = r.runOnce(ctx, name, args, o)
		if err == nil || attempt == attempts {
			return res, err
		}

		r.Logger.Warnf("%s failed (attempt %d/%d), retrying in %s", name, attempt, attempts, o.RetryDelay)
		select {
		case <-ctx.Done():
			return res, fmt.Errorf("cancelled while retrying %s: %w", name, ctx.Err())
		case <-time.After(o.RetryDelay):
		}
	}
	return res, err
}

func (r *ExecRunner) runOnce(ctx context.Context, name string, args []string, o Options) (*Result, error) {
	redacted := r.Masker.RedactAll(args)
	r.Logger.Infof("[command]%s %s", name, strings.Join(redacted, " "))

	cmd := exec.CommandContext(ctx, name, args...)
	if o.Dir != "" {
		cmd.Dir = o.Dir
	}
	if len(o.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range o.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}

	var stdout, stderr bytes.Buffer
	combined := &lockedBuffer{}
	cmd.Stdout = io.MultiWriter(&stdout, combined)
	cmd.Stderr = io.MultiWriter(&stderr, combined)

	runErr := cmd.Run()

	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Combined: combined.String(),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	if !o.Silent && res.Combined != "" {
		r.Logger.Debug(strings.TrimRight(res.Combined, "\n"))
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return res, &ExitError{
				Name:     name,
				Args:     redacted,
				ExitCode: res.ExitCode,
				Output:   r.Masker.Redact(res.Combined),
				Err:      runErr,
			}
		}
		return res, fmt.Errorf("failed to run %s: %w", name, runErr)
	}
	return res, nil
}

// lockedBuffer serializes writes from the stdout and stderr copiers.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
