package upload

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
			name:     "development export is not uploaded by default",
			cfg:      config.Config{},
			wantSkip: true,
		},
		{
			name: "app store export uploads by default",
			cfg:  config.Config{Export: config.ExportConfig{Option: "app-store"}},
		},
		{
			name: "explicitly disabled",
			cfg:  config.Config{Export: config.ExportConfig{Option: "app-store-connect"}, Upload: config.UploadConfig{Enabled: &off}},
		},
		{
			name:    "forced on for ad hoc export",
			cfg:     config.Config{Export: config.ExportConfig{Option: "ad-hoc"}, Upload: config.UploadConfig{Enabled: &on}},
			wantErr: true,
		},
		{
			name: "forced on with a supplied options plist",
			cfg: config.Config{
				Export: config.ExportConfig{Option: "ad-hoc", OptionsPlist: "ExportOptions.plist"},
				Upload: config.UploadConfig{Enabled: &on},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := logrus.New()
			logger.SetLevel(logrus.DebugLevel)
			cfg := tt.cfg
			cfg.ApplyDefaults()
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
	if got := (CheckPipe{}).String(); got != "validating upload configuration" {
		t.Errorf("String() = %q", got)
	}
}
