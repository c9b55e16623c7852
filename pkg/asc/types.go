package asc

import "encoding/json"

// Platform is an App Store Connect platform identifier.
type Platform string

const (
	PlatformIOS      Platform = "IOS"
	PlatformMacOS    Platform = "MAC_OS"
	PlatformTVOS     Platform = "TV_OS"
	PlatformVisionOS Platform = "VISION_OS"
)

// Build processing states.
const (
	StateProcessing = "PROCESSING"
	StateValid      = "VALID"
	StateFailed     = "FAILED"
	StateInvalid    = "INVALID"
)

// CertificateType names a signing certificate class.
type CertificateType string

const (
	CertDistribution           CertificateType = "DISTRIBUTION"
	CertDevelopment            CertificateType = "DEVELOPMENT"
	CertDeveloperIDApplication CertificateType = "DEVELOPER_ID_APPLICATION_G2"
	CertDeveloperIDInstaller   CertificateType = "DEVELOPER_ID_INSTALLER"
	CertMacInstaller           CertificateType = "MAC_INSTALLER_DISTRIBUTION"
	CertMacApp                 CertificateType = "MAC_APP_DISTRIBUTION"
)

// App is an application record.
type App struct {
	ID       string
	BundleID string
	Name     string
}

// PreReleaseVersion is a version lineage that builds are uploaded under.
type PreReleaseVersion struct {
	ID       string
	Version  string
	Platform Platform
}

// Build is one uploaded binary.
type Build struct {
	ID              string
	Version         string
	ProcessingState string
	Expired         bool
	UploadedDate    string
}

// BetaBuildLocalization holds the per-locale "what's new" text of a build.
type BetaBuildLocalization struct {
	ID       string
	Locale   string
	WhatsNew string
}

// Certificate is a signing certificate. Content is DER encoded.
type Certificate struct {
	ID             string
	Name           string
	Type           CertificateType
	SerialNumber   string
	ExpirationDate string
	Content        []byte
}

// BetaGroup is a TestFlight tester group.
type BetaGroup struct {
	ID   string
	Name string
}

// BetaAppReviewSubmission is a request for beta app review.
type BetaAppReviewSubmission struct {
	ID    string
	State string
}

// BuildBetaDetail carries TestFlight settings for a build.
type BuildBetaDetail struct {
	ID                string
	AutoNotifyEnabled bool
	InternalState     string
	ExternalState     string
}

// Wire types for the JSON:API envelope.

type linkage struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type relationship struct {
	Data json.RawMessage `json:"data,omitempty"`
}

// firstID returns the id of the first linkage in a to-one or to-many
// relationship.
func (r relationship) firstID() string {
	if len(r.Data) == 0 {
		return ""
	}
	var many []linkage
	if err := json.Unmarshal(r.Data, &many); err == nil {
		if len(many) > 0 {
			return many[0].ID
		}
		return ""
	}
	var one linkage
	if err := json.Unmarshal(r.Data, &one); err == nil {
		return one.ID
	}
	return ""
}

type resource struct {
	Type          string                  `json:"type"`
	ID            string                  `json:"id,omitempty"`
	Attributes    json.RawMessage         `json:"attributes,omitempty"`
	Relationships map[string]relationship `json:"relationships,omitempty"`
}

type document struct {
	Data     json.RawMessage `json:"data"`
	Included []resource      `json:"included,omitempty"`
}

func (d *document) list() ([]resource, error) {
	var out []resource
	if len(d.Data) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(d.Data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *document) one() (resource, error) {
	var out resource
	err := json.Unmarshal(d.Data, &out)
	return out, err
}

type appAttributes struct {
	BundleID string `json:"bundleId"`
	Name     string `json:"name"`
}

type preReleaseVersionAttributes struct {
	Version  string   `json:"version"`
	Platform Platform `json:"platform"`
}

type buildAttributes struct {
	Version         string `json:"version"`
	ProcessingState string `json:"processingState"`
	Expired         bool   `json:"expired"`
	UploadedDate    string `json:"uploadedDate"`
}

type localizationAttributes struct {
	Locale   string `json:"locale,omitempty"`
	WhatsNew string `json:"whatsNew"`
}

type certificateAttributes struct {
	Name               string          `json:"name"`
	CertificateType    CertificateType `json:"certificateType"`
	SerialNumber       string          `json:"serialNumber"`
	ExpirationDate     string          `json:"expirationDate"`
	CertificateContent []byte          `json:"certificateContent"`
}

type betaGroupAttributes struct {
	Name string `json:"name"`
}

type reviewSubmissionAttributes struct {
	BetaReviewState string `json:"betaReviewState"`
}

type buildBetaDetailAttributes struct {
	AutoNotifyEnabled bool   `json:"autoNotifyEnabled"`
	InternalState     string `json:"internalBuildState"`
	ExternalState     string `json:"externalBuildState"`
}

func decodeAttributes(r resource, v any) error {
	if len(r.Attributes) == 0 {
		return nil
	}
	return json.Unmarshal(r.Attributes, v)
}

func toBuild(r resource) (*Build, error) {
	var a buildAttributes
	if err := decodeAttributes(r, &a); err != nil {
		return nil, err
	}
	return &Build{
		ID:              r.ID,
		Version:         a.Version,
		ProcessingState: a.ProcessingState,
		Expired:         a.Expired,
		UploadedDate:    a.UploadedDate,
	}, nil
}
