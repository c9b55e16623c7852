package asc

import (
	"context"
	"fmt"
	"sync"
)

// Ensure MockClient implements ClientInterface
var _ ClientInterface = (*MockClient)(nil)

// MockClient is an in-memory ClientInterface for tests.
type MockClient struct {
	mu sync.Mutex

	Apps               map[string]string // bundle id -> app id
	PreReleaseVersions map[string]*PreReleaseVersion
	// Builds is the sequence returned for a pre-release version id. Each call
	// to GetLatestPreReleaseVersion or GetLatestBuild pops the head until one
	// element remains, which then repeats.
	Builds        map[string][]*Build
	Localizations map[string]*BetaBuildLocalization // key: buildID/locale
	BetaGroups    map[string][]BetaGroup            // key: app id
	Submissions   map[string]*BetaAppReviewSubmission
	BetaDetails   map[string]*BuildBetaDetail
	Certificates  map[string]*Certificate

	// Calls records method names in order.
	Calls []string
	// GroupAttachments records AddBuildToBetaGroups arguments.
	GroupAttachments map[string][]string
	// DeletedCertificates records revoked certificate ids.
	DeletedCertificates []string

	ErrorToReturn error
	// Errors, when set for a method name, overrides ErrorToReturn for it.
	Errors map[string]error

	nextID int
}

// NewMockClient creates a new mock App Store Connect client
func NewMockClient() *MockClient {
	return &MockClient{
		Apps:               make(map[string]string),
		PreReleaseVersions: make(map[string]*PreReleaseVersion),
		Builds:             make(map[string][]*Build),
		Localizations:      make(map[string]*BetaBuildLocalization),
		BetaGroups:         make(map[string][]BetaGroup),
		Submissions:        make(map[string]*BetaAppReviewSubmission),
		BetaDetails:        make(map[string]*BuildBetaDetail),
		Certificates:       make(map[string]*Certificate),
		GroupAttachments:   make(map[string][]string),
		Errors:             make(map[string]error),
	}
}

// SetError sets an error to be returned by all mock operations
func (m *MockClient) SetError(err error) {
	m.ErrorToReturn = err
}

// AddApp registers an app under bundleID.
func (m *MockClient) AddApp(bundleID, appID string) {
	m.Apps[bundleID] = appID
}

// AddPreReleaseVersion registers a version for app/platform with a build
// sequence.
func (m *MockClient) AddPreReleaseVersion(appID string, platform Platform, version string, builds ...*Build) *PreReleaseVersion {
	prv := &PreReleaseVersion{ID: "prv-" + appID + "-" + version, Version: version, Platform: platform}
	m.PreReleaseVersions[prvKey(appID, platform, version)] = prv
	m.Builds[prv.ID] = builds
	return prv
}

func prvKey(appID string, platform Platform, version string) string {
	return appID + "/" + string(platform) + "/" + version
}

func (m *MockClient) enter(method string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, method)
	if err, ok := m.Errors[method]; ok && err != nil {
		return err
	}
	return m.ErrorToReturn
}

func (m *MockClient) id(prefix string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

// CallCount returns how often method was called.
func (m *MockClient) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Calls {
		if c == method {
			n++
		}
	}
	return n
}

func (m *MockClient) GetAppID(ctx context.Context, bundleID string) (string, error) {
	if err := m.enter("GetAppID"); err != nil {
		return "", err
	}
	if id, ok := m.Apps[bundleID]; ok {
		return id, nil
	}
	return "", fmt.Errorf("app %s: %w", bundleID, ErrNotFound)
}

func (m *MockClient) GetLatestPreReleaseVersion(ctx context.Context, appID string, platform Platform, version string) (*PreReleaseVersion, *Build, error) {
	if err := m.enter("GetLatestPreReleaseVersion"); err != nil {
		return nil, nil, err
	}
	prv, ok := m.PreReleaseVersions[prvKey(appID, platform, version)]
	if !ok {
		return nil, nil, fmt.Errorf("pre-release version %s: %w", version, ErrNotFound)
	}
	return prv, m.popBuild(prv.ID), nil
}

func (m *MockClient) GetLatestBuild(ctx context.Context, preReleaseVersionID string) (*Build, error) {
	if err := m.enter("GetLatestBuild"); err != nil {
		return nil, err
	}
	if b := m.popBuild(preReleaseVersionID); b != nil {
		return b, nil
	}
	return nil, fmt.Errorf("builds for %s: %w", preReleaseVersionID, ErrNotFound)
}

func (m *MockClient) popBuild(prvID string) *Build {
	m.mu.Lock()
	defer m.mu.Unlock()
	seq := m.Builds[prvID]
	if len(seq) == 0 {
		return nil
	}
	b := seq[0]
	if len(seq) > 1 {
		m.Builds[prvID] = seq[1:]
	}
	return b
}

func (m *MockClient) GetBetaBuildLocalization(ctx context.Context, buildID, locale string) (*BetaBuildLocalization, error) {
	if err := m.enter("GetBetaBuildLocalization"); err != nil {
		return nil, err
	}
	if loc, ok := m.Localizations[buildID+"/"+locale]; ok {
		cp := *loc
		return &cp, nil
	}
	return nil, fmt.Errorf("localization: %w", ErrNotFound)
}

func (m *MockClient) CreateBetaBuildLocalization(ctx context.Context, buildID, locale, whatsNew string) (*BetaBuildLocalization, error) {
	if err := m.enter("CreateBetaBuildLocalization"); err != nil {
		return nil, err
	}
	key := buildID + "/" + locale
	if _, exists := m.Localizations[key]; exists {
		return nil, &APIError{Method: "POST", Path: "/v1/betaBuildLocalizations", StatusCode: 409}
	}
	loc := &BetaBuildLocalization{ID: m.id("loc"), Locale: locale, WhatsNew: whatsNew}
	m.Localizations[key] = loc
	return loc, nil
}

func (m *MockClient) UpdateBetaBuildLocalization(ctx context.Context, id, whatsNew string) (*BetaBuildLocalization, error) {
	if err := m.enter("UpdateBetaBuildLocalization"); err != nil {
		return nil, err
	}
	for _, loc := range m.Localizations {
		if loc.ID == id {
			loc.WhatsNew = whatsNew
			return loc, nil
		}
	}
	return nil, fmt.Errorf("localization %s: %w", id, ErrNotFound)
}

func (m *MockClient) CreateCertificate(ctx context.Context, certType CertificateType, csrPEM []byte) (*Certificate, error) {
	if err := m.enter("CreateCertificate"); err != nil {
		return nil, err
	}
	cert := &Certificate{ID: m.id("cert"), Type: certType, Name: string(certType), Content: []byte("DER")}
	m.Certificates[cert.ID] = cert
	return cert, nil
}

func (m *MockClient) DeleteCertificate(ctx context.Context, id string) error {
	if err := m.enter("DeleteCertificate"); err != nil {
		return err
	}
	m.DeletedCertificates = append(m.DeletedCertificates, id)
	delete(m.Certificates, id)
	return nil
}

func (m *MockClient) ListCertificates(ctx context.Context, certType CertificateType) ([]Certificate, error) {
	if err := m.enter("ListCertificates"); err != nil {
		return nil, err
	}
	var out []Certificate
	for _, c := range m.Certificates {
		if c.Type == certType {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *MockClient) GetBetaGroups(ctx context.Context, appID string, names []string) ([]BetaGroup, error) {
	if err := m.enter("GetBetaGroups"); err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []BetaGroup
	for _, g := range m.BetaGroups[appID] {
		if len(names) == 0 || want[g.Name] {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *MockClient) AddBuildToBetaGroups(ctx context.Context, buildID string, groupIDs []string) error {
	if err := m.enter("AddBuildToBetaGroups"); err != nil {
		return err
	}
	m.GroupAttachments[buildID] = append(m.GroupAttachments[buildID], groupIDs...)
	return nil
}

func (m *MockClient) GetBetaAppReviewSubmission(ctx context.Context, buildID string) (*BetaAppReviewSubmission, error) {
	if err := m.enter("GetBetaAppReviewSubmission"); err != nil {
		return nil, err
	}
	if s, ok := m.Submissions[buildID]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("submission: %w", ErrNotFound)
}

func (m *MockClient) CreateBetaAppReviewSubmission(ctx context.Context, buildID string) (*BetaAppReviewSubmission, error) {
	if err := m.enter("CreateBetaAppReviewSubmission"); err != nil {
		return nil, err
	}
	s := &BetaAppReviewSubmission{ID: m.id("sub"), State: "WAITING_FOR_REVIEW"}
	m.Submissions[buildID] = s
	return s, nil
}

func (m *MockClient) GetBuildBetaDetail(ctx context.Context, buildID string) (*BuildBetaDetail, error) {
	if err := m.enter("GetBuildBetaDetail"); err != nil {
		return nil, err
	}
	if d, ok := m.BetaDetails[buildID]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("beta detail: %w", ErrNotFound)
}

func (m *MockClient) UpdateBuildBetaDetail(ctx context.Context, id string, autoNotify bool) (*BuildBetaDetail, error) {
	if err := m.enter("UpdateBuildBetaDetail"); err != nil {
		return nil, err
	}
	for _, d := range m.BetaDetails {
		if d.ID == id {
			d.AutoNotifyEnabled = autoNotify
			return d, nil
		}
	}
	return nil, fmt.Errorf("beta detail %s: %w", id, ErrNotFound)
}
