package notarize

import (
	"context"
	"testing"

	"github.com/macreleaser/xcdeploy/pkg/config"
	macContext "github.com/macreleaser/xcdeploy/pkg/context"
	"github.com/sirupsen/logrus"
)

func TestCheckPipe(t *testing.T) {
	on, off := true, false
	tests := []struct {
		name     string
		cfg      config.Config
		wantErr  bool
		wantSkip bool
	}{
		{
			name: "default",
			cfg:  config.Config{},
		},
		{
			name:     "disabled",
			cfg:      config.Config{Export: config.ExportConfig{Notarize: &off}},
			wantSkip: true,
		},
		{
			name: "forced on for macOS",
			cfg: config.Config{
				Project: config.ProjectConfig{Platform: "macos"},
				Export:  config.ExportConfig{Notarize: &on},
			},
		},
		{
			name: "forced on for iOS",
			cfg: config.Config{
				Project: config.ProjectConfig{Platform: "ios"},
				Export:  config.ExportConfig{Notarize: &on},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := logrus.New()
			logger.SetLevel(logrus.DebugLevel)
			cfg := tt.cfg
			ctx := macContext.NewContext(context.Background(), &cfg, logger)

			err := CheckPipe{}.Run(ctx)
			_, skipped := err.(skipError)
			if skipped != tt.wantSkip {
				t.Fatalf("Run() error = %v, wantSkip %v", err, tt.wantSkip)
			}
			if !skipped && (err != nil) != tt.wantErr {
				t.Errorf("Run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCheckPipeString(t *testing.T) {
	if got := (CheckPipe{}).String(); got != "validating notarization configuration" {
		t.Errorf("String() = %q", got)
	}
}
