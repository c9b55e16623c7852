package credential

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"

	"github.com/macreleaser/xcdeploy/pkg/asc"
	"github.com/macreleaser/xcdeploy/pkg/keychain"
)

const certificateKeyBits = 2048

// CreateAdditionalSigningCertificate issues a new certificate of certType
// through the API and imports it with a freshly generated key into the run's
// keychain. The certificate id is recorded before the import so teardown
// revokes it even when the import fails.
func (m *Manager) CreateAdditionalSigningCertificate(ctx context.Context, c *Credential, client asc.ClientInterface, certType asc.CertificateType) (*keychain.Identity, error) {
	key, err := rsa.GenerateKey(rand.Reader, certificateKeyBits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}

	csr, err := x509.CreateCertificateRequest(rand.Reader, &x509.CertificateRequest{
		Subject: pkix.Name{CommonName: "xcdeploy " + string(certType)},
	}, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate request: %w", err)
	}
	csrPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE REQUEST", Bytes: csr})

	cert, err := client.CreateCertificate(ctx, certType, csrPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s certificate: %w", certType, err)
	}
	m.Logger.Infof("Created %s certificate %s", certType, cert.ID)

	dir := filepath.Join(m.tempDir(), c.Token+"-certificates")
	c.state.CertificateIDs = append(c.state.CertificateIDs, cert.ID)
	c.state.CertificateDir = dir
	if err := m.save(c); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create certificate directory: %w", err)
	}

	keyPath := filepath.Join(dir, cert.ID+".key")
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	if err := os.WriteFile(keyPath, keyPEM, 0600); err != nil {
		return nil, fmt.Errorf("failed to stage private key: %w", err)
	}
	certPath := filepath.Join(dir, cert.ID+".cer")
	if err := os.WriteFile(certPath, cert.Content, 0600); err != nil {
		return nil, fmt.Errorf("failed to stage certificate: %w", err)
	}

	if err := c.Keychain.ImportKey(ctx, keyPath); err != nil {
		return nil, err
	}
	if err := c.Keychain.ImportCertificate(ctx, certPath); err != nil {
		return nil, err
	}

	// Installer identities are invisible under the code-signing policy.
	find := c.Keychain.FindIdentities
	if isInstaller(certType) {
		find = c.Keychain.FindAllIdentities
	}
	identities, err := find(ctx)
	if err != nil {
		return nil, err
	}
	for _, id := range identities {
		if id.Name == cert.Name {
			return &id, nil
		}
	}
	class := classFor(certType)
	if id, ok := keychain.FindByClass(identities, class); ok {
		return &id, nil
	}
	return nil, fmt.Errorf("certificate %s was imported but no %q identity is available", cert.ID, class)
}

func isInstaller(t asc.CertificateType) bool {
	return t == asc.CertDeveloperIDInstaller || t == asc.CertMacInstaller
}

func classFor(t asc.CertificateType) string {
	switch t {
	case asc.CertDeveloperIDApplication:
		return keychain.ClassDeveloperIDApplication
	case asc.CertDeveloperIDInstaller:
		return keychain.ClassDeveloperIDInstaller
	case asc.CertMacInstaller:
		return keychain.ClassMacInstaller
	case asc.CertDevelopment:
		return keychain.ClassAppleDevelopment
	default:
		return keychain.ClassAppleDistribution
	}
}

// CertificateTypeFor maps an identity class to the certificate type that
// provides it.
func CertificateTypeFor(class string) (asc.CertificateType, bool) {
	switch class {
	case keychain.ClassDeveloperIDApplication:
		return asc.CertDeveloperIDApplication, true
	case keychain.ClassDeveloperIDInstaller:
		return asc.CertDeveloperIDInstaller, true
	case keychain.ClassMacInstaller:
		return asc.CertMacInstaller, true
	case keychain.ClassAppleDistribution:
		return asc.CertDistribution, true
	case keychain.ClassAppleDevelopment:
		return asc.CertDevelopment, true
	}
	return "", false
}
