// Package notarize submits signed artifacts to Apple's notary service and
// staples the resulting tickets.
package notarize

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/macreleaser/xcdeploy/pkg/errs"
	"github.com/macreleaser/xcdeploy/pkg/shell"
	"github.com/sirupsen/logrus"
)

var submissionIDRe = regexp.MustCompile(`id:\s*([0-9a-fA-F-]{36})`)

// StatusAccepted is the notarytool status of a successful submission.
const StatusAccepted = "Accepted"

// Notary runs notarytool authenticated with an App Store Connect API key.
type Notary struct {
	Runner   shell.Runner
	Logger   *logrus.Logger
	KeyPath  string
	KeyID    string
	IssuerID string
}

// Submission is the JSON summary notarytool prints for a submission.
type Submission struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (n *Notary) authArgs() []string {
	return []string{"--key", n.KeyPath, "--key-id", n.KeyID, "--issuer", n.IssuerID}
}

// BuildSubmitArgs returns the argument list for xcrun notarytool submit.
func (n *Notary) BuildSubmitArgs(path string) []string {
	args := []string{"notarytool", "submit", path}
	args = append(args, n.authArgs()...)
	return append(args, "--wait", "--output-format", "json")
}

// Submit uploads path and waits for Apple's verdict. A verdict other than
// Accepted fails with the notary log attached.
func (n *Notary) Submit(ctx context.Context, path string) (*Submission, error) {
	res, err := n.Runner.Run(ctx, "xcrun", n.BuildSubmitArgs(path))
	if err != nil {
		output := ""
		if res != nil {
			output = res.Combined
		}
		if strings.Contains(output, "Unable to authenticate") {
			return nil, errs.E(errs.CodeUnauthorized, "notarytool authentication failed, verify the App Store Connect API key", err)
		}
		if id := ParseSubmissionID(output); id != "" {
			return nil, n.rejected(ctx, &Submission{ID: id, Status: "Invalid"})
		}
		return nil, fmt.Errorf("notarytool submit failed: %w", err)
	}

	sub, err := ParseSubmission(res.Stdout)
	if err != nil {
		return nil, err
	}
	n.Logger.Infof("Notarization submission %s finished with status %s", sub.ID, sub.Status)
	if sub.Status != StatusAccepted {
		return sub, n.rejected(ctx, sub)
	}
	return sub, nil
}

func (n *Notary) rejected(ctx context.Context, sub *Submission) error {
	msg := fmt.Sprintf("Apple rejected notarization submission %s (status %s)", sub.ID, sub.Status)
	if log, err := n.Log(ctx, sub.ID); err == nil && log != "" {
		msg += "\n" + log
	} else {
		msg += fmt.Sprintf(", run: xcrun notarytool log %s to view details", sub.ID)
	}
	return errs.E(errs.CodeRemoteRejected, msg, nil)
}

// Log fetches the notary log of a submission.
func (n *Notary) Log(ctx context.Context, id string) (string, error) {
	args := append([]string{"notarytool", "log", id}, n.authArgs()...)
	res, err := n.Runner.Run(ctx, "xcrun", args, shell.Silent())
	if err != nil {
		return "", fmt.Errorf("notarytool log failed: %w", err)
	}
	return strings.TrimSpace(res.Stdout), nil
}

// ParseSubmission decodes the JSON summary printed by notarytool. Any text
// preceding the JSON object is ignored.
func ParseSubmission(output string) (*Submission, error) {
	start := strings.Index(output, "{")
	if start < 0 {
		return nil, fmt.Errorf("notarytool printed no submission summary")
	}
	var sub Submission
	if err := json.NewDecoder(strings.NewReader(output[start:])).Decode(&sub); err != nil {
		return nil, fmt.Errorf("failed to parse notarytool output: %w", err)
	}
	if sub.ID == "" {
		sub.ID = ParseSubmissionID(output)
	}
	return &sub, nil
}

// ParseSubmissionID extracts the submission UUID from notarytool text
// output. Returns an empty string if no UUID is found.
func ParseSubmissionID(output string) string {
	matches := submissionIDRe.FindStringSubmatch(output)
	if len(matches) < 2 {
		return ""
	}
	return matches[1]
}
