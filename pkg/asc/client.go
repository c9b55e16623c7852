// Package asc is a typed client for the subset of the App Store Connect API
// the release pipeline uses: apps, pre-release versions, builds, beta
// localizations, beta groups, beta review submissions, build beta details
// and signing certificates.
//
// A Client is constructed explicitly and passed to whatever needs it. Every
// method reports HTTP 401 as *UnauthorizedError.
package asc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/macreleaser/xcdeploy/pkg/version"
	"golang.org/x/oauth2"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://api.appstoreconnect.apple.com"

// ClientInterface defines the App Store Connect client contract
type ClientInterface interface {
	GetAppID(ctx context.Context, bundleID string) (string, error)
	GetLatestPreReleaseVersion(ctx context.Context, appID string, platform Platform, version string) (*PreReleaseVersion, *Build, error)
	GetLatestBuild(ctx context.Context, preReleaseVersionID string) (*Build, error)

	GetBetaBuildLocalization(ctx context.Context, buildID, locale string) (*BetaBuildLocalization, error)
	CreateBetaBuildLocalization(ctx context.Context, buildID, locale, whatsNew string) (*BetaBuildLocalization, error)
	UpdateBetaBuildLocalization(ctx context.Context, id, whatsNew string) (*BetaBuildLocalization, error)

	CreateCertificate(ctx context.Context, certType CertificateType, csrPEM []byte) (*Certificate, error)
	DeleteCertificate(ctx context.Context, id string) error
	ListCertificates(ctx context.Context, certType CertificateType) ([]Certificate, error)

	GetBetaGroups(ctx context.Context, appID string, names []string) ([]BetaGroup, error)
	AddBuildToBetaGroups(ctx context.Context, buildID string, groupIDs []string) error

	GetBetaAppReviewSubmission(ctx context.Context, buildID string) (*BetaAppReviewSubmission, error)
	CreateBetaAppReviewSubmission(ctx context.Context, buildID string) (*BetaAppReviewSubmission, error)

	GetBuildBetaDetail(ctx context.Context, buildID string) (*BuildBetaDetail, error)
	UpdateBuildBetaDetail(ctx context.Context, id string, autoNotify bool) (*BuildBetaDetail, error)
}

// Ensure Client implements ClientInterface
var _ ClientInterface = (*Client)(nil)

// Client talks to the App Store Connect API.
type Client struct {
	baseURL string
	http    *http.Client
}

type options struct {
	baseURL   string
	transport http.RoundTripper
	timeout   time.Duration
}

// Option configures a Client.
type Option func(*options)

// WithBaseURL points the client at another API root, such as a test server.
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = strings.TrimRight(u, "/") }
}

// WithTransport sets the transport underneath the authenticating layer.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// NewClient returns a Client authenticating with creds.
func NewClient(creds Credentials, opts ...Option) (*Client, error) {
	o := options{baseURL: DefaultBaseURL, timeout: 2 * time.Minute}
	for _, opt := range opts {
		opt(&o)
	}

	ts, err := newTokenSource(creds)
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL: o.baseURL,
		http: &http.Client{
			Timeout: o.timeout,
			Transport: &oauth2.Transport{
				Source: oauth2.ReuseTokenSource(nil, ts),
				Base:   o.transport,
			},
		},
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("%s %s: failed to read response: %w", method, path, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return &UnauthorizedError{Body: prettyBody(data)}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: prettyBody(data)}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
	}
	return nil
}

func (c *Client) list(ctx context.Context, path string, query url.Values) (*document, []resource, error) {
	var doc document
	if err := c.do(ctx, http.MethodGet, path, query, nil, &doc); err != nil {
		return nil, nil, err
	}
	items, err := doc.list()
	if err != nil {
		return nil, nil, fmt.Errorf("GET %s: unexpected response shape: %w", path, err)
	}
	return &doc, items, nil
}

func (c *Client) write(ctx context.Context, method, path string, body any) (resource, error) {
	var doc document
	if err := c.do(ctx, method, path, nil, body, &doc); err != nil {
		return resource{}, err
	}
	r, err := doc.one()
	if err != nil {
		return resource{}, fmt.Errorf("%s %s: unexpected response shape: %w", method, path, err)
	}
	return r, nil
}

// GetAppID returns the id of the app with bundleID. When the filter matches
// several apps (prefix matches), the exact bundle id wins.
func (c *Client) GetAppID(ctx context.Context, bundleID string) (string, error) {
	q := url.Values{}
	q.Set("filter[bundleId]", bundleID)

	_, items, err := c.list(ctx, "/v1/apps", q)
	if err != nil {
		return "", err
	}
	if len(items) == 0 {
		return "", fmt.Errorf("app %s: %w", bundleID, ErrNotFound)
	}
	if len(items) == 1 {
		return items[0].ID, nil
	}
	for _, item := range items {
		var a appAttributes
		if err := decodeAttributes(item, &a); err == nil && a.BundleID == bundleID {
			return item.ID, nil
		}
	}
	return "", fmt.Errorf("app %s: %d apps match but none exactly: %w", bundleID, len(items), ErrNotFound)
}

// GetLatestPreReleaseVersion returns the newest pre-release version of app
// for platform and version, together with its newest build when one is
// included in the response.
func (c *Client) GetLatestPreReleaseVersion(ctx context.Context, appID string, platform Platform, version string) (*PreReleaseVersion, *Build, error) {
	q := url.Values{}
	q.Set("filter[app]", appID)
	q.Set("filter[platform]", string(platform))
	if version != "" {
		q.Set("filter[version]", version)
	}
	q.Set("include", "builds")
	q.Set("limit[builds]", "1")
	q.Set("sort", "-version")
	q.Set("limit", "1")

	doc, items, err := c.list(ctx, "/v1/preReleaseVersions", q)
	if err != nil {
		return nil, nil, err
	}
	if len(items) == 0 {
		return nil, nil, fmt.Errorf("pre-release version %s for app %s: %w", version, appID, ErrNotFound)
	}

	item := items[0]
	var a preReleaseVersionAttributes
	if err := decodeAttributes(item, &a); err != nil {
		return nil, nil, fmt.Errorf("failed to decode pre-release version: %w", err)
	}
	prv := &PreReleaseVersion{ID: item.ID, Version: a.Version, Platform: a.Platform}

	buildID := item.Relationships["builds"].firstID()
	if buildID == "" {
		return prv, nil, nil
	}
	for _, inc := range doc.Included {
		if inc.Type == "builds" && inc.ID == buildID {
			b, err := toBuild(inc)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to decode build: %w", err)
			}
			return prv, b, nil
		}
	}
	return prv, nil, nil
}

// GetLatestBuild returns the newest build uploaded under a pre-release version.
func (c *Client) GetLatestBuild(ctx context.Context, preReleaseVersionID string) (*Build, error) {
	q := url.Values{}
	q.Set("filter[preReleaseVersion]", preReleaseVersionID)
	q.Set("sort", "-version")
	q.Set("limit", "1")

	_, items, err := c.list(ctx, "/v1/builds", q)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("builds for pre-release version %s: %w", preReleaseVersionID, ErrNotFound)
	}
	return toBuild(items[0])
}

// GetBetaBuildLocalization returns the localization of build for locale.
func (c *Client) GetBetaBuildLocalization(ctx context.Context, buildID, locale string) (*BetaBuildLocalization, error) {
	q := url.Values{}
	q.Set("filter[build]", buildID)
	q.Set("filter[locale]", locale)
	q.Set("fields[betaBuildLocalizations]", "whatsNew,locale")

	_, items, err := c.list(ctx, "/v1/betaBuildLocalizations", q)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%s localization for build %s: %w", locale, buildID, ErrNotFound)
	}
	return toLocalization(items[0])
}

// CreateBetaBuildLocalization attaches what's-new text to a build.
func (c *Client) CreateBetaBuildLocalization(ctx context.Context, buildID, locale, whatsNew string) (*BetaBuildLocalization, error) {
	body := map[string]any{
		"data": map[string]any{
			"type":       "betaBuildLocalizations",
			"attributes": localizationAttributes{Locale: locale, WhatsNew: whatsNew},
			"relationships": map[string]any{
				"build": map[string]any{"data": linkage{Type: "builds", ID: buildID}},
			},
		},
	}
	r, err := c.write(ctx, http.MethodPost, "/v1/betaBuildLocalizations", body)
	if err != nil {
		return nil, err
	}
	return toLocalization(r)
}

// UpdateBetaBuildLocalization replaces the what's-new text of a localization.
func (c *Client) UpdateBetaBuildLocalization(ctx context.Context, id, whatsNew string) (*BetaBuildLocalization, error) {
	body := map[string]any{
		"data": map[string]any{
			"type":       "betaBuildLocalizations",
			"id":         id,
			"attributes": localizationAttributes{WhatsNew: whatsNew},
		},
	}
	r, err := c.write(ctx, http.MethodPatch, "/v1/betaBuildLocalizations/"+url.PathEscape(id), body)
	if err != nil {
		return nil, err
	}
	return toLocalization(r)
}

func toLocalization(r resource) (*BetaBuildLocalization, error) {
	var a localizationAttributes
	if err := decodeAttributes(r, &a); err != nil {
		return nil, fmt.Errorf("failed to decode localization: %w", err)
	}
	return &BetaBuildLocalization{ID: r.ID, Locale: a.Locale, WhatsNew: a.WhatsNew}, nil
}

// CreateCertificate submits a certificate signing request.
func (c *Client) CreateCertificate(ctx context.Context, certType CertificateType, csrPEM []byte) (*Certificate, error) {
	body := map[string]any{
		"data": map[string]any{
			"type": "certificates",
			"attributes": map[string]any{
				"certificateType": certType,
				"csrContent":      string(csrPEM),
			},
		},
	}
	r, err := c.write(ctx, http.MethodPost, "/v1/certificates", body)
	if err != nil {
		return nil, err
	}
	return toCertificate(r)
}

// DeleteCertificate revokes a certificate.
func (c *Client) DeleteCertificate(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/certificates/"+url.PathEscape(id), nil, nil, nil)
}

// ListCertificates returns certificates of certType.
func (c *Client) ListCertificates(ctx context.Context, certType CertificateType) ([]Certificate, error) {
	q := url.Values{}
	q.Set("filter[certificateType]", string(certType))
	q.Set("limit", "200")

	_, items, err := c.list(ctx, "/v1/certificates", q)
	if err != nil {
		return nil, err
	}
	certs := make([]Certificate, 0, len(items))
	for _, item := range items {
		cert, err := toCertificate(item)
		if err != nil {
			return nil, err
		}
		certs = append(certs, *cert)
	}
	return certs, nil
}

func toCertificate(r resource) (*Certificate, error) {
	var a certificateAttributes
	if err := decodeAttributes(r, &a); err != nil {
		return nil, fmt.Errorf("failed to decode certificate: %w", err)
	}
	return &Certificate{
		ID:             r.ID,
		Name:           a.Name,
		Type:           a.CertificateType,
		SerialNumber:   a.SerialNumber,
		ExpirationDate: a.ExpirationDate,
		Content:        a.CertificateContent,
	}, nil
}

// GetBetaGroups returns the beta groups of app whose names are in names.
func (c *Client) GetBetaGroups(ctx context.Context, appID string, names []string) ([]BetaGroup, error) {
	q := url.Values{}
	q.Set("filter[app]", appID)
	// filter[name] is comma-separated, so a name containing a comma can only
	// be matched locally.
	want := make(map[string]bool, len(names))
	serverFilter := len(names) > 0
	for _, n := range names {
		want[n] = true
		if strings.Contains(n, ",") {
			serverFilter = false
		}
	}
	if serverFilter {
		q.Set("filter[name]", strings.Join(names, ","))
	}
	q.Set("limit", strconv.Itoa(200))

	_, items, err := c.list(ctx, "/v1/betaGroups", q)
	if err != nil {
		return nil, err
	}
	groups := make([]BetaGroup, 0, len(items))
	for _, item := range items {
		var a betaGroupAttributes
		if err := decodeAttributes(item, &a); err != nil {
			return nil, fmt.Errorf("failed to decode beta group: %w", err)
		}
		if len(names) > 0 && !want[a.Name] {
			continue
		}
		groups = append(groups, BetaGroup{ID: item.ID, Name: a.Name})
	}
	return groups, nil
}

// AddBuildToBetaGroups attaches a build to every group in one request.
func (c *Client) AddBuildToBetaGroups(ctx context.Context, buildID string, groupIDs []string) error {
	data := make([]linkage, len(groupIDs))
	for i, id := range groupIDs {
		data[i] = linkage{Type: "betaGroups", ID: id}
	}
	path := "/v1/builds/" + url.PathEscape(buildID) + "/relationships/betaGroups"
	return c.do(ctx, http.MethodPost, path, nil, map[string]any{"data": data}, nil)
}

// GetBetaAppReviewSubmission returns the review submission for a build.
func (c *Client) GetBetaAppReviewSubmission(ctx context.Context, buildID string) (*BetaAppReviewSubmission, error) {
	q := url.Values{}
	q.Set("filter[build]", buildID)

	_, items, err := c.list(ctx, "/v1/betaAppReviewSubmissions", q)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("review submission for build %s: %w", buildID, ErrNotFound)
	}
	return toSubmission(items[0])
}

// CreateBetaAppReviewSubmission submits a build for beta app review.
func (c *Client) CreateBetaAppReviewSubmission(ctx context.Context, buildID string) (*BetaAppReviewSubmission, error) {
	body := map[string]any{
		"data": map[string]any{
			"type": "betaAppReviewSubmissions",
			"relationships": map[string]any{
				"build": map[string]any{"data": linkage{Type: "builds", ID: buildID}},
			},
		},
	}
	r, err := c.write(ctx, http.MethodPost, "/v1/betaAppReviewSubmissions", body)
	if err != nil {
		return nil, err
	}
	return toSubmission(r)
}

func toSubmission(r resource) (*BetaAppReviewSubmission, error) {
	var a reviewSubmissionAttributes
	if err := decodeAttributes(r, &a); err != nil {
		return nil, fmt.Errorf("failed to decode review submission: %w", err)
	}
	return &BetaAppReviewSubmission{ID: r.ID, State: a.BetaReviewState}, nil
}

// GetBuildBetaDetail returns the TestFlight settings of a build.
func (c *Client) GetBuildBetaDetail(ctx context.Context, buildID string) (*BuildBetaDetail, error) {
	q := url.Values{}
	q.Set("filter[build]", buildID)

	_, items, err := c.list(ctx, "/v1/buildBetaDetails", q)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("beta details for build %s: %w", buildID, ErrNotFound)
	}
	return toBetaDetail(items[0])
}

// UpdateBuildBetaDetail sets the auto-notify flag.
func (c *Client) UpdateBuildBetaDetail(ctx context.Context, id string, autoNotify bool) (*BuildBetaDetail, error) {
	body := map[string]any{
		"data": map[string]any{
			"type":       "buildBetaDetails",
			"id":         id,
			"attributes": map[string]any{"autoNotifyEnabled": autoNotify},
		},
	}
	r, err := c.write(ctx, http.MethodPatch, "/v1/buildBetaDetails/"+url.PathEscape(id), body)
	if err != nil {
		return nil, err
	}
	return toBetaDetail(r)
}

func toBetaDetail(r resource) (*BuildBetaDetail, error) {
	var a buildBetaDetailAttributes
	if err := decodeAttributes(r, &a); err != nil {
		return nil, fmt.Errorf("failed to decode build beta detail: %w", err)
	}
	return &BuildBetaDetail{
		ID:                r.ID,
		AutoNotifyEnabled: a.AutoNotifyEnabled,
		InternalState:     a.InternalState,
		ExternalState:     a.ExternalState,
	}, nil
}
