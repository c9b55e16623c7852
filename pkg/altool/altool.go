// Package altool validates and uploads exported builds with
// xcrun altool, authenticated by an App Store Connect API key.
package altool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/macreleaser/xcdeploy/pkg/errs"
	"github.com/macreleaser/xcdeploy/pkg/shell"
	"github.com/sirupsen/logrus"
)

// Tool runs altool with API key authentication. altool finds the key file
// by id under ~/.appstoreconnect/private_keys.
type Tool struct {
	Runner   shell.Runner
	Logger   *logrus.Logger
	KeyID    string
	IssuerID string
}

// Package identifies the artifact being validated or uploaded.
type Package struct {
	Path         string
	Type         string // ios, macos, appletvos, visionos
	AppID        string
	BundleID     string
	BuildNumber  string
	ShortVersion string
}

// ProductError is one entry of altool's product-errors list.
type ProductError struct {
	Code     int            `json:"code"`
	Message  string         `json:"message"`
	UserInfo map[string]any `json:"userInfo"`
}

// Response is altool's JSON output.
type Response struct {
	SuccessMessage string         `json:"success-message"`
	ProductErrors  []ProductError `json:"product-errors"`
	raw            string
}

// Error is a failed validation or upload, carrying the structured payload.
type Error struct {
	Action   string
	Response *Response
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "altool %s failed", e.Action)
	if e.Response != nil {
		for _, pe := range e.Response.ProductErrors {
			fmt.Fprintf(&b, "\n  %s", pe.Message)
			if reason, ok := pe.UserInfo["NSLocalizedFailureReason"].(string); ok && reason != "" {
				fmt.Fprintf(&b, ": %s", reason)
			}
		}
		if e.Response.raw != "" {
			b.WriteString("\n")
			b.WriteString(e.Response.raw)
		}
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Code() errs.Code { return errs.CodeExecutionFailed }

func (t *Tool) args(action string, pkg Package) []string {
	args := []string{"altool", action, "-f", pkg.Path, "-t", pkg.Type,
		"--apiKey", t.KeyID, "--apiIssuer", t.IssuerID, "--output-format", "json"}
	if action == "--upload-package" {
		args = append(args,
			"--apple-id", pkg.AppID,
			"--bundle-id", pkg.BundleID,
			"--bundle-version", pkg.BuildNumber,
			"--bundle-short-version-string", pkg.ShortVersion,
		)
	}
	return args
}

// Validate checks the artifact against App Store requirements.
func (t *Tool) Validate(ctx context.Context, pkg Package) error {
	return t.run(ctx, "validation", t.args("--validate-app", pkg))
}

// Upload sends the artifact to App Store Connect.
func (t *Tool) Upload(ctx context.Context, pkg Package) error {
	for name, v := range map[string]string{"app id": pkg.AppID, "bundle id": pkg.BundleID, "build number": pkg.BuildNumber, "short version": pkg.ShortVersion} {
		if v == "" {
			return errs.Config("altool upload requires the %s", name)
		}
	}
	return t.run(ctx, "upload", t.args("--upload-package", pkg))
}

func (t *Tool) run(ctx context.Context, action string, args []string) error {
	res, err := t.Runner.Run(ctx, "xcrun", args)
	var out string
	if res != nil {
		out = res.Stdout
	}
	resp := ParseResponse(out)
	if err != nil {
		return &Error{Action: action, Response: resp, Err: err}
	}
	if resp != nil && len(resp.ProductErrors) > 0 {
		return &Error{Action: action, Response: resp}
	}
	if resp != nil && resp.SuccessMessage != "" {
		t.Logger.Info(resp.SuccessMessage)
	}
	return nil
}

// ParseResponse decodes altool's JSON output. Text preceding the JSON object
// is ignored. It returns nil when the output holds no JSON object.
func ParseResponse(output string) *Response {
	start := strings.Index(output, "{")
	if start < 0 {
		return nil
	}
	body := []byte(output[start:])
	var resp Response
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&resp); err != nil {
		return nil
	}
	var pretty bytes.Buffer
	if json.Indent(&pretty, bytes.TrimSpace(body), "", "  ") == nil {
		resp.raw = pretty.String()
	}
	return &resp
}
