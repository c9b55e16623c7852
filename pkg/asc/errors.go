package asc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/macreleaser/xcdeploy/pkg/errs"
)

// ErrNotFound is returned when a lookup matches no resource.
var ErrNotFound = errs.E(errs.CodeNotFound, "resource not found", nil)

// UnauthorizedError reports rejected credentials (HTTP 401). Callers that
// otherwise tolerate lookup failures must propagate it.
type UnauthorizedError struct {
	Body string
}

func (e *UnauthorizedError) Error() string {
	if e.Body == "" {
		return "App Store Connect rejected the API key (401 Unauthorized)"
	}
	return "App Store Connect rejected the API key (401 Unauthorized):\n" + e.Body
}

func (e *UnauthorizedError) Code() errs.Code { return errs.CodeUnauthorized }

// IsUnauthorized reports whether err's chain contains an UnauthorizedError.
func IsUnauthorized(err error) bool {
	var ue *UnauthorizedError
	return errors.As(err, &ue)
}

// APIError is any other non-2xx response.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string // pretty-printed when the body is JSON
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Body != "" {
		msg += "\n" + e.Body
	}
	return msg
}

func (e *APIError) Code() errs.Code {
	if e.StatusCode == http.StatusNotFound {
		return errs.CodeNotFound
	}
	return errs.CodeRemoteRejected
}

// IsServerError reports whether err is a 5xx APIError.
func IsServerError(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.StatusCode >= 500
}

// IsNotFound reports whether err is ErrNotFound or a 404 APIError.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var ae *APIError
	return errors.As(err, &ae) && ae.StatusCode == http.StatusNotFound
}

func prettyBody(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}
	var out bytes.Buffer
	if err := json.Indent(&out, body, "", "  "); err != nil {
		return string(body)
	}
	return out.String()
}
