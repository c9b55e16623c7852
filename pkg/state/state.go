// Package state persists the small record that links the run and cleanup
// phases. The run phase saves it after every resource it creates; the cleanup
// phase, a separate process, loads it to find what to remove.
package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/goccy/go-yaml"
)

// ErrNoState is returned by Load when no state file exists.
var ErrNoState = errors.New("no saved state")

const fileName = "xcdeploy-state.yaml"

// State records every resource the signing context created.
type State struct {
	Token                   string   `yaml:"token,omitempty"`
	KeychainPath            string   `yaml:"keychain_path,omitempty"`
	APIKeyID                string   `yaml:"api_key_id,omitempty"`
	IssuerID                string   `yaml:"issuer_id,omitempty"`
	APIKeyPath              string   `yaml:"api_key_path,omitempty"`
	ProvisioningProfilePath string   `yaml:"provisioning_profile_path,omitempty"`
	CertificateDir          string   `yaml:"certificate_dir,omitempty"`
	CertificateIDs          []string `yaml:"certificate_ids,omitempty"`
}

// Store reads and writes a State at Path.
type Store struct {
	Path string
}

// NewStore returns a Store at path, or at DefaultPath when path is empty.
func NewStore(path string) (*Store, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return &Store{Path: path}, nil
}

// DefaultPath is $RUNNER_TEMP/xcdeploy-state.yaml on a CI runner and the XDG
// state directory elsewhere.
func DefaultPath() (string, error) {
	if dir := os.Getenv("RUNNER_TEMP"); dir != "" {
		return filepath.Join(dir, fileName), nil
	}
	p, err := xdg.StateFile(filepath.Join("xcdeploy", "state.yaml"))
	if err != nil {
		return "", fmt.Errorf("failed to resolve state path: %w", err)
	}
	return p, nil
}

// Save writes s atomically with owner-only permissions.
func (st *Store) Save(s *State) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	dir := filepath.Dir(st.Path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".xcdeploy-state-*")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to set state file mode: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close state file: %w", err)
	}

	if err := os.Rename(tmpName, st.Path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// Load reads the saved state. It returns ErrNoState when nothing was saved.
func (st *Store) Load() (*State, error) {
	data, err := os.ReadFile(st.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoState
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state: %w", err)
	}

	var s State
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse state %s: %w", st.Path, err)
	}
	return &s, nil
}

// Remove deletes the state file. A missing file is not an error.
func (st *Store) Remove() error {
	if err := os.Remove(st.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove state: %w", err)
	}
	return nil
}
