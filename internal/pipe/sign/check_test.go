package sign

import (
	"context"
	"strings"
	"testing"

	"github.com/macreleaser/xcdeploy/pkg/config"
	macCtx "github.com/macreleaser/xcdeploy/pkg/context"
	"github.com/sirupsen/logrus"
)

func TestCheckPipe(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	tests := []struct {
		name    string
		config  config.CredentialsConfig
		wantErr bool
		errMsg  string
	}{
		{
			name:   "automatic signing",
			config: config.CredentialsConfig{},
		},
		{
			name:   "certificate and profile",
			config: config.CredentialsConfig{Certificate: "cDEy", CertificatePassword: "pw", ProvisioningProfile: "cHJvZmlsZQ=="},
		},
		{
			name:    "profile without certificate",
			config:  config.CredentialsConfig{ProvisioningProfile: "cHJvZmlsZQ=="},
			wantErr: true,
			errMsg:  "requires credentials.certificate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := macCtx.NewContext(context.Background(), &config.Config{Credentials: tt.config}, logger)
			err := CheckPipe{}.Run(ctx)

			if (err != nil) != tt.wantErr {
				t.Errorf("Run() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Run() error = %v, want error containing %q", err, tt.errMsg)
			}
		})
	}
}

func TestCheckPipeString(t *testing.T) {
	if got := (CheckPipe{}).String(); got != "validating signing configuration" {
		t.Errorf("String() = %q", got)
	}
}
