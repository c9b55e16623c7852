package redact

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestRedact(t *testing.T) {
	m := New(&bytes.Buffer{}, false)
	m.Register("s3cr3t-token", "", "NO", "s3cr3t")

	tests := []struct {
		in   string
		want string
	}{
		{"security unlock-keychain -p s3cr3t-token /tmp/k", "security unlock-keychain -p *** /tmp/k"},
		{"password s3cr3t", "password ***"},
		{"nothing to see", "nothing to see"},
		{"NO is too short to mask", "NO is too short to mask"},
	}

	for _, tt := range tests {
		if got := m.Redact(tt.in); got != tt.want {
			t.Errorf("Redact(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRegisterAnnouncesToActions(t *testing.T) {
	var out bytes.Buffer
	m := New(&out, true)
	m.Register("-----BEGIN KEY-----\nabcdefgh\n-----END KEY-----", "abcdefgh")

	got := out.String()
	if !strings.Contains(got, "::add-mask::abcdefgh\n") {
		t.Errorf("output = %q, want an add-mask line per secret line", got)
	}
	if strings.Count(got, "::add-mask::abcdefgh\n") != 1 {
		t.Errorf("output = %q, want duplicate values announced once", got)
	}
}

func TestRegisterSilentOutsideActions(t *testing.T) {
	var out bytes.Buffer
	m := New(&out, false)
	m.Register("some-long-secret")
	if out.Len() != 0 {
		t.Errorf("output = %q, want nothing outside GitHub Actions", out.String())
	}
}

func TestNilMaskerRedact(t *testing.T) {
	var m *Masker
	if got := m.Redact("abc"); got != "abc" {
		t.Errorf("Redact() = %q, want input unchanged", got)
	}
}

func TestHook(t *testing.T) {
	m := New(&bytes.Buffer{}, false)
	m.Register("hunter2hunter2")

	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableQuote: true})
	logger.AddHook(NewHook(m))

	logger.WithField("password", "hunter2hunter2").
		WithField("error", errors.New("bad hunter2hunter2")).
		Infof("using hunter2hunter2")

	got := buf.String()
	if strings.Contains(got, "hunter2hunter2") {
		t.Errorf("log output leaked secret: %q", got)
	}
	if !strings.Contains(got, "using ***") {
		t.Errorf("log output = %q, want redacted message", got)
	}
}
