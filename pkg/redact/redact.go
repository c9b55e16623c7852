// Package redact keeps secret values out of logs and echoed commands.
//
// Every secret is registered with a Masker as soon as it is created. The
// Masker replaces registered values with "***" and, when running under GitHub
// Actions, also asks the runner to mask them in its own log stream.
package redact

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Mask replaces every registered value in redacted text.
const Mask = "***"

// minSecretLength avoids masking short values such as "1" or "NO" that
// would shred unrelated log output.
const minSecretLength = 4

// Masker records secret values and scrubs them from strings.
type Masker struct {
	mu      sync.RWMutex
	values  []string
	out     io.Writer
	actions bool
}

// New returns a Masker. When actions is true every registered value is also
// announced to the GitHub Actions runner through out.
func New(out io.Writer, actions bool) *Masker {
	if out == nil {
		out = os.Stdout
	}
	return &Masker{out: out, actions: actions}
}

// Register adds secret values. Empty and very short values are ignored.
// Multi-line values are registered line by line as well as whole.
func (m *Masker) Register(values ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, v := range values {
		candidates := []string{v}
		if strings.Contains(v, "\n") {
			candidates = append(candidates, strings.Split(v, "\n")...)
		}
		for _, c := range candidates {
			c = strings.TrimSpace(c)
			if len(c) < minSecretLength || m.has(c) {
				continue
			}
			m.values = append(m.values, c)
			// The runner reads one value per workflow command line.
			if m.actions && !strings.Contains(c, "\n") {
				_, _ = fmt.Fprintf(m.out, "::add-mask::%s\n", c)
			}
		}
	}

	// Longest first so a secret that contains another is masked whole.
	sort.SliceStable(m.values, func(i, j int) bool {
		return len(m.values[i]) > len(m.values[j])
	})
}

func (m *Masker) has(v string) bool {
	for _, existing := range m.values {
		if existing == v {
			return true
		}
	}
	return false
}

// Redact returns s with every registered value replaced by Mask.
func (m *Masker) Redact(s string) string {
	if m == nil || s == "" {
		return s
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, v := range m.values {
		if strings.Contains(s, v) {
			s = strings.ReplaceAll(s, v, Mask)
		}
	}
	return s
}

// RedactAll redacts each element of args into a new slice.
func (m *Masker) RedactAll(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = m.Redact(a)
	}
	return out
}

// Hook is a logrus hook that redacts entry messages and string-like fields
// before any formatter sees them.
type Hook struct {
	Masker *Masker
}

// NewHook returns a Hook bound to m.
func NewHook(m *Masker) *Hook {
	return &Hook{Masker: m}
}

func (h *Hook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *Hook) Fire(entry *logrus.Entry) error {
	entry.Message = h.Masker.Redact(entry.Message)
	for k, v := range entry.Data {
		switch val := v.(type) {
		case string:
			entry.Data[k] = h.Masker.Redact(val)
		case error:
			entry.Data[k] = h.Masker.Redact(val.Error())
		case fmt.Stringer:
			entry.Data[k] = h.Masker.Redact(val.String())
		}
	}
	return nil
}
