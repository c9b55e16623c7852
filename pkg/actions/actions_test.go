package actions

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestSetWritesHeredocBlock(t *testing.T) {
	file := filepath.Join(t.TempDir(), "output")
	o := &Outputs{Logger: logrus.New(), File: file}

	if err := o.Set("executable", "/tmp/export/MyApp.ipa"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := o.Set("notes", "line one\nline two"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}

	re := regexp.MustCompile(`(?s)^executable<<(ghadelimiter_[0-9a-f-]+)\n/tmp/export/MyApp\.ipa\n(ghadelimiter_[0-9a-f-]+)\nnotes<<(ghadelimiter_[0-9a-f-]+)\nline one\nline two\n(ghadelimiter_[0-9a-f-]+)\n$`)
	m := re.FindStringSubmatch(string(data))
	if m == nil {
		t.Fatalf("output file = %q, want two heredoc blocks", data)
	}
	if m[1] != m[2] || m[3] != m[4] {
		t.Errorf("delimiters do not match: %v", m[1:])
	}
	if m[1] == m[3] {
		t.Error("expected a fresh delimiter per output")
	}
}

func TestSetWithoutFileLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	o := &Outputs{Logger: logger}

	if err := o.Set("output-directory", "/tmp/export"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("output output-directory=/tmp/export")) {
		t.Errorf("log = %q, want output line", buf.String())
	}
}

func TestGroup(t *testing.T) {
	t.Setenv("GITHUB_ACTIONS", "true")
	var out bytes.Buffer
	o := &Outputs{Logger: logrus.New(), Out: &out}

	o.Group("xcodebuild archive")
	o.EndGroup()

	want := "::group::xcodebuild archive\n::endgroup::\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

func TestGroupOutsideActions(t *testing.T) {
	t.Setenv("GITHUB_ACTIONS", "")
	var out bytes.Buffer
	o := &Outputs{Logger: logrus.New(), Out: &out}
	o.Group("ignored")
	o.EndGroup()
	if out.Len() != 0 {
		t.Errorf("output = %q, want nothing", out.String())
	}
}

func TestDirectories(t *testing.T) {
	t.Setenv("GITHUB_WORKSPACE", "/work")
	t.Setenv("RUNNER_TEMP", "/runner/tmp")
	if got := Workspace(); got != "/work" {
		t.Errorf("Workspace() = %q, want /work", got)
	}
	if got := TempDir(); got != "/runner/tmp" {
		t.Errorf("TempDir() = %q, want /runner/tmp", got)
	}
}
