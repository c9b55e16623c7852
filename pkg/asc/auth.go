package asc

import (
	"crypto/ecdsa"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

const (
	audience      = "appstoreconnect-v1"
	tokenLifetime = 20 * time.Minute
)

// Credentials identify an App Store Connect API key.
type Credentials struct {
	KeyID      string
	IssuerID   string
	PrivateKey []byte // PEM encoded .p8 contents
}

// LoadCredentials reads the private key from a .p8 file on disk.
func LoadCredentials(keyID, issuerID, keyPath string) (Credentials, error) {
	data, err := os.ReadFile(filepath.Clean(keyPath))
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to read API key: %w", err)
	}
	return Credentials{KeyID: keyID, IssuerID: issuerID, PrivateKey: data}, nil
}

// tokenSource mints ES256 bearer tokens for the API.
type tokenSource struct {
	keyID    string
	issuerID string
	key      *ecdsa.PrivateKey
	now      func() time.Time
}

func newTokenSource(c Credentials) (*tokenSource, error) {
	if c.KeyID == "" || c.IssuerID == "" {
		return nil, fmt.Errorf("API key id and issuer id are required")
	}
	key, err := jwt.ParseECPrivateKeyFromPEM(c.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid API private key: %w", err)
	}
	return &tokenSource{keyID: c.KeyID, issuerID: c.IssuerID, key: key, now: time.Now}, nil
}

func (ts *tokenSource) Token() (*oauth2.Token, error) {
	now := ts.now()
	exp := now.Add(tokenLifetime)

	tok := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.RegisteredClaims{
		Issuer:    ts.issuerID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
		Audience:  jwt.ClaimStrings{audience},
	})
	tok.Header["kid"] = ts.keyID

	signed, err := tok.SignedString(ts.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign API token: %w", err)
	}

	// Refresh a minute early so a token never expires mid-request.
	return &oauth2.Token{
		AccessToken: signed,
		TokenType:   "Bearer",
		Expiry:      exp.Add(-time.Minute),
	}, nil
}
