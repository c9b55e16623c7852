package testflight

import (
	"context"
	"testing"

	"github.com/macreleaser/xcdeploy/pkg/config"
	macCtx "github.com/macreleaser/xcdeploy/pkg/context"
	"github.com/sirupsen/logrus"
)

func TestCheckPipe(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.TestFlightConfig
		wantErr bool
	}{
		{name: "defaults"},
		{name: "groups", cfg: config.TestFlightConfig{TestGroups: []string{"QA", "Friends"}, SubmitForReview: true}},
		{name: "blank group", cfg: config.TestFlightConfig{TestGroups: []string{"QA", " "}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := logrus.New()
			logger.SetLevel(logrus.DebugLevel)
			cfg := &config.Config{TestFlight: tt.cfg}
			cfg.ApplyDefaults()
			ctx := macCtx.NewContext(context.Background(), cfg, logger)

			err := CheckPipe{}.Run(ctx)
			if (err != nil) != tt.wantErr {
				t.Errorf("Run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCheckPipeString(t *testing.T) {
	if got := (CheckPipe{}).String(); got != "validating TestFlight configuration" {
		t.Errorf("String() = %q", got)
	}
}
