package asc

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/macreleaser/xcdeploy/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCredentials(t *testing.T) (Credentials, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	p8 := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	return Credentials{KeyID: "KEY1234567", IssuerID: "issuer-uuid", PrivateKey: p8}, key
}

type recorded struct {
	Method string
	Path   string
	Query  string
	Body   string
	Agent  string
}

// newServer serves canned JSON per "METHOD /path" and records requests.
func newServer(t *testing.T, key *ecdsa.PrivateKey, routes map[string]func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, *[]recorded) {
	t.Helper()
	var reqs []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		tok, err := jwt.Parse(raw, func(tok *jwt.Token) (any, error) {
			assert.Equal(t, "KEY1234567", tok.Header["kid"])
			return &key.PublicKey, nil
		}, jwt.WithAudience("appstoreconnect-v1"), jwt.WithIssuer("issuer-uuid"), jwt.WithValidMethods([]string{"ES256"}))
		if err != nil || !tok.Valid {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"errors":[{"status":"401","code":"NOT_AUTHORIZED"}]}`)
			return
		}

		body, _ := io.ReadAll(r.Body)
		reqs = append(reqs, recorded{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: string(body), Agent: r.Header.Get("User-Agent")})

		h, ok := routes[r.Method+" "+r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"errors":[{"status":"404"}]}`)
			return
		}
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &reqs
}

func reply(status int, body string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func newTestClient(t *testing.T, routes map[string]func(http.ResponseWriter, *http.Request)) (*Client, *[]recorded) {
	t.Helper()
	creds, key := testCredentials(t)
	srv, reqs := newServer(t, key, routes)
	c, err := NewClient(creds, WithBaseURL(srv.URL))
	require.NoError(t, err)
	return c, reqs
}

func TestGetAppIDPrefersExactMatch(t *testing.T) {
	c, reqs := newTestClient(t, map[string]func(http.ResponseWriter, *http.Request){
		"GET /v1/apps": reply(200, `{"data":[
			{"type":"apps","id":"1","attributes":{"bundleId":"com.example.app.widget"}},
			{"type":"apps","id":"2","attributes":{"bundleId":"com.example.app"}}]}`),
	})

	id, err := c.GetAppID(context.Background(), "com.example.app")
	require.NoError(t, err)
	assert.Equal(t, "2", id)
	assert.Contains(t, (*reqs)[0].Query, "filter%5BbundleId%5D=com.example.app")
	assert.Equal(t, "xcdeploy/dev", (*reqs)[0].Agent)
}

func TestGetAppIDNotFound(t *testing.T) {
	c, _ := newTestClient(t, map[string]func(http.ResponseWriter, *http.Request){
		"GET /v1/apps": reply(200, `{"data":[]}`),
	})
	_, err := c.GetAppID(context.Background(), "com.example.none")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, IsNotFound(err))
}

func TestUnauthorized(t *testing.T) {
	c, _ := newTestClient(t, map[string]func(http.ResponseWriter, *http.Request){
		"GET /v1/apps": reply(401, `{"errors":[{"status":"401","title":"Authentication credentials are missing or invalid."}]}`),
	})
	_, err := c.GetAppID(context.Background(), "com.example.app")
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, errs.CodeUnauthorized, errs.CodeOf(err))
	assert.Contains(t, err.Error(), "\n  \"errors\": [", "body should be pretty-printed")
}

func TestBadKeyIsRejectedByServer(t *testing.T) {
	creds, _ := testCredentials(t)
	_, otherKey := testCredentials(t)
	srv, _ := newServer(t, otherKey, nil)

	c, err := NewClient(creds, WithBaseURL(srv.URL))
	require.NoError(t, err)
	_, err = c.GetAppID(context.Background(), "com.example.app")
	assert.True(t, IsUnauthorized(err), "got %v", err)
}

func TestNewClientRejectsInvalidKey(t *testing.T) {
	_, err := NewClient(Credentials{KeyID: "K", IssuerID: "I", PrivateKey: []byte("nope")})
	assert.Error(t, err)
}

func TestAPIErrorPrettyPrintsBody(t *testing.T) {
	c, _ := newTestClient(t, map[string]func(http.ResponseWriter, *http.Request){
		"GET /v1/builds": reply(500, `{"errors":[{"status":"500","detail":"boom"}]}`),
	})
	_, err := c.GetLatestBuild(context.Background(), "prv-1")
	require.Error(t, err)
	assert.True(t, IsServerError(err))
	assert.Contains(t, err.Error(), "GET /v1/builds: 500 Internal Server Error")
	assert.Contains(t, err.Error(), `"detail": "boom"`)
}

func TestGetLatestPreReleaseVersionWithIncludedBuild(t *testing.T) {
	c, reqs := newTestClient(t, map[string]func(http.ResponseWriter, *http.Request){
		"GET /v1/preReleaseVersions": reply(200, `{
			"data":[{"type":"preReleaseVersions","id":"prv-1",
				"attributes":{"version":"1.2.0","platform":"IOS"},
				"relationships":{"builds":{"data":[{"type":"builds","id":"b-2"}]}}}],
			"included":[
				{"type":"builds","id":"b-1","attributes":{"version":"41","processingState":"VALID"}},
				{"type":"builds","id":"b-2","attributes":{"version":"42","processingState":"PROCESSING"}}]}`),
	})

	prv, build, err := c.GetLatestPreReleaseVersion(context.Background(), "app-1", PlatformIOS, "1.2.0")
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", prv.Version)
	require.NotNil(t, build)
	assert.Equal(t, "b-2", build.ID)
	assert.Equal(t, "42", build.Version)
	assert.Equal(t, StateProcessing, build.ProcessingState)

	q := (*reqs)[0].Query
	for _, want := range []string{"filter%5Bapp%5D=app-1", "filter%5Bplatform%5D=IOS", "filter%5Bversion%5D=1.2.0", "include=builds", "sort=-version", "limit=1"} {
		assert.Contains(t, q, want)
	}
}

func TestGetLatestPreReleaseVersionWithoutBuild(t *testing.T) {
	c, _ := newTestClient(t, map[string]func(http.ResponseWriter, *http.Request){
		"GET /v1/preReleaseVersions": reply(200, `{"data":[{"type":"preReleaseVersions","id":"prv-1","attributes":{"version":"1.2.0"}}]}`),
	})
	prv, build, err := c.GetLatestPreReleaseVersion(context.Background(), "app-1", PlatformMacOS, "1.2.0")
	require.NoError(t, err)
	assert.Equal(t, "prv-1", prv.ID)
	assert.Nil(t, build)
}

func TestLocalizationCreateAndUpdate(t *testing.T) {
	c, reqs := newTestClient(t, map[string]func(http.ResponseWriter, *http.Request){
		"POST /v1/betaBuildLocalizations":        reply(201, `{"data":{"type":"betaBuildLocalizations","id":"loc-1","attributes":{"locale":"en-US","whatsNew":"first"}}}`),
		"PATCH /v1/betaBuildLocalizations/loc-1": reply(200, `{"data":{"type":"betaBuildLocalizations","id":"loc-1","attributes":{"locale":"en-US","whatsNew":"second"}}}`),
	})
	ctx := context.Background()

	loc, err := c.CreateBetaBuildLocalization(ctx, "b-1", "en-US", "first")
	require.NoError(t, err)
	assert.Equal(t, "loc-1", loc.ID)

	var sent struct {
		Data struct {
			Type          string `json:"type"`
			Attributes    map[string]string
			Relationships map[string]struct {
				Data linkage `json:"data"`
			}
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte((*reqs)[0].Body), &sent))
	assert.Equal(t, "betaBuildLocalizations", sent.Data.Type)
	assert.Equal(t, "first", sent.Data.Attributes["whatsNew"])
	assert.Equal(t, "en-US", sent.Data.Attributes["locale"])
	assert.Equal(t, linkage{Type: "builds", ID: "b-1"}, sent.Data.Relationships["build"].Data)

	loc, err = c.UpdateBetaBuildLocalization(ctx, "loc-1", "second")
	require.NoError(t, err)
	assert.Equal(t, "second", loc.WhatsNew)
}

func TestGetBetaGroupsMatchesExactNames(t *testing.T) {
	groups := `{"data":[
		{"type":"betaGroups","id":"g-1","attributes":{"name":"QA, internal"}},
		{"type":"betaGroups","id":"g-2","attributes":{"name":"QA"}},
		{"type":"betaGroups","id":"g-3","attributes":{"name":"Friends"}}]}`
	c, reqs := newTestClient(t, map[string]func(http.ResponseWriter, *http.Request){
		"GET /v1/betaGroups": reply(200, groups),
	})
	ctx := context.Background()

	got, err := c.GetBetaGroups(ctx, "app-1", []string{"QA, internal"})
	require.NoError(t, err)
	assert.Equal(t, []BetaGroup{{ID: "g-1", Name: "QA, internal"}}, got)
	assert.NotContains(t, (*reqs)[0].Query, "filter%5Bname%5D")

	got, err = c.GetBetaGroups(ctx, "app-1", []string{"QA", "Friends"})
	require.NoError(t, err)
	assert.Equal(t, []BetaGroup{{ID: "g-2", Name: "QA"}, {ID: "g-3", Name: "Friends"}}, got)
	assert.Contains(t, (*reqs)[1].Query, "filter%5Bname%5D=QA%2CFriends")
}

func TestAddBuildToBetaGroups(t *testing.T) {
	c, reqs := newTestClient(t, map[string]func(http.ResponseWriter, *http.Request){
		"POST /v1/builds/b-1/relationships/betaGroups": reply(204, ``),
	})
	require.NoError(t, c.AddBuildToBetaGroups(context.Background(), "b-1", []string{"g-1", "g-2"}))
	assert.JSONEq(t, `{"data":[{"type":"betaGroups","id":"g-1"},{"type":"betaGroups","id":"g-2"}]}`, (*reqs)[0].Body)
}

func TestCertificateLifecycle(t *testing.T) {
	c, reqs := newTestClient(t, map[string]func(http.ResponseWriter, *http.Request){
		"POST /v1/certificates":       reply(201, `{"data":{"type":"certificates","id":"c-1","attributes":{"certificateType":"DEVELOPER_ID_APPLICATION_G2","certificateContent":"REVS","expirationDate":"2027-01-01T00:00:00.000+0000"}}}`),
		"DELETE /v1/certificates/c-1": reply(204, ``),
	})
	ctx := context.Background()

	cert, err := c.CreateCertificate(ctx, CertDeveloperIDApplication, []byte("-----BEGIN CERTIFICATE REQUEST-----"))
	require.NoError(t, err)
	assert.Equal(t, "c-1", cert.ID)
	assert.Equal(t, []byte("DER"), cert.Content)
	assert.Contains(t, (*reqs)[0].Body, `"csrContent":"-----BEGIN CERTIFICATE REQUEST-----"`)

	require.NoError(t, c.DeleteCertificate(ctx, "c-1"))
	assert.Equal(t, "DELETE", (*reqs)[1].Method)
}

func TestBuildBetaDetail(t *testing.T) {
	c, reqs := newTestClient(t, map[string]func(http.ResponseWriter, *http.Request){
		"GET /v1/buildBetaDetails":       reply(200, `{"data":[{"type":"buildBetaDetails","id":"d-1","attributes":{"autoNotifyEnabled":false}}]}`),
		"PATCH /v1/buildBetaDetails/d-1": reply(200, `{"data":{"type":"buildBetaDetails","id":"d-1","attributes":{"autoNotifyEnabled":true}}}`),
	})
	ctx := context.Background()

	d, err := c.GetBuildBetaDetail(ctx, "b-1")
	require.NoError(t, err)
	assert.False(t, d.AutoNotifyEnabled)

	d, err = c.UpdateBuildBetaDetail(ctx, d.ID, true)
	require.NoError(t, err)
	assert.True(t, d.AutoNotifyEnabled)
	assert.JSONEq(t, `{"data":{"type":"buildBetaDetails","id":"d-1","attributes":{"autoNotifyEnabled":true}}}`, (*reqs)[1].Body)
}
