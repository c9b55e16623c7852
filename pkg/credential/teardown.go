package credential

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/macreleaser/xcdeploy/pkg/asc"
	"github.com/macreleaser/xcdeploy/pkg/keychain"
	"github.com/macreleaser/xcdeploy/pkg/state"
)

// Teardown removes everything recorded in the state store. Each step runs
// regardless of earlier failures; failures are logged and never returned.
//
// The only error Teardown returns is a state file that exists but cannot be
// read. A missing state file means there is nothing to clean up.
func (m *Manager) Teardown(ctx context.Context) error {
	st, err := m.Store.Load()
	if errors.Is(err, state.ErrNoState) {
		m.Logger.Info("No signing state found, nothing to clean up")
		return nil
	}
	if err != nil {
		return err
	}

	m.Masker.Register(st.Token, st.APIKeyID, st.IssuerID)

	steps := []struct {
		name string
		run  func() error
	}{
		{"provisioning profile", func() error { return removeFile(st.ProvisioningProfilePath) }},
		{"keychain", func() error { return m.deleteKeychain(ctx, st) }},
		{"signing certificates", func() error { return m.revokeCertificates(ctx, st) }},
		{"API key", func() error { return removeFile(st.APIKeyPath) }},
		{"certificate staging directory", func() error { return removeAll(st.CertificateDir) }},
		{"state file", m.Store.Remove},
	}

	failed := 0
	for _, step := range steps {
		if err := step.run(); err != nil {
			failed++
			m.Logger.WithError(err).Warnf("cleanup failed: %s", step.name)
			continue
		}
		m.Logger.Debugf("Cleaned up %s", step.name)
	}

	if failed == 0 {
		m.Logger.Info("Signing context removed")
	} else {
		m.Logger.Warnf("Signing context removed with %d failed step(s)", failed)
	}
	return nil
}

func (m *Manager) deleteKeychain(ctx context.Context, st *state.State) error {
	if st.KeychainPath == "" {
		return nil
	}
	if err := keychain.New(m.Runner, st.KeychainPath, st.Token).Delete(ctx); err != nil {
		// The keychain may never have been registered; drop the file anyway.
		if rmErr := removeFile(st.KeychainPath); rmErr != nil {
			return errors.Join(err, rmErr)
		}
		if _, statErr := os.Stat(st.KeychainPath); statErr == nil {
			return err
		}
		m.Logger.Debugf("delete-keychain failed, removed %s directly", st.KeychainPath)
	}
	return nil
}

func (m *Manager) revokeCertificates(ctx context.Context, st *state.State) error {
	if len(st.CertificateIDs) == 0 {
		return nil
	}

	creds, err := asc.LoadCredentials(st.APIKeyID, st.IssuerID, st.APIKeyPath)
	if err != nil {
		return fmt.Errorf("cannot revoke %d certificate(s): %w", len(st.CertificateIDs), err)
	}
	client, err := m.NewClient(creds)
	if err != nil {
		return err
	}

	var errList []error
	for _, id := range st.CertificateIDs {
		if err := client.DeleteCertificate(ctx, id); err != nil {
			if asc.IsNotFound(err) {
				continue
			}
			errList = append(errList, fmt.Errorf("certificate %s: %w", id, err))
			continue
		}
		m.Logger.Infof("Revoked signing certificate %s", id)
	}
	return errors.Join(errList...)
}

func removeFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func removeAll(path string) error {
	if path == "" {
		return nil
	}
	return os.RemoveAll(path)
}
