// Package logging renders logrus entries for CI job logs.
package logging

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// Phase markers written by the pipeline runner. Entries starting with one
// of them open or close a top-level bullet.
const (
	Running   = "Running: "
	Skipping  = "Skipping: "
	Completed = "Completed: "
)

// BulletFormatter renders pipeline output as an outline:
//
//	  * archiving
//	    * xcodebuild archive -scheme MyApp
//	    ! Failed to publish release notes
//	  - completed archiving (1m32s)
//	  x archiving: exit status 65  code=EXECUTION_FAILED
//
// Fields are appended as sorted key=value pairs.
type BulletFormatter struct{}

func (f *BulletFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	line := bullet(entry.Level, entry.Message)
	if kv := fields(entry.Data); kv != "" {
		line += "  " + kv
	}
	return []byte(line + "\n"), nil
}

func bullet(level logrus.Level, msg string) string {
	switch {
	case level <= logrus.ErrorLevel:
		return "  x " + msg
	case level == logrus.WarnLevel:
		return "    ! " + msg
	case strings.HasPrefix(msg, Running):
		return "  * " + strings.TrimPrefix(msg, Running)
	case strings.HasPrefix(msg, Skipping):
		return "  - skipped: " + strings.TrimPrefix(msg, Skipping)
	case strings.HasPrefix(msg, Completed):
		return "  - completed " + strings.TrimPrefix(msg, Completed)
	case level == logrus.InfoLevel:
		return "    * " + msg
	default:
		return "      " + msg
	}
}

func fields(data logrus.Fields) string {
	if len(data) == 0 {
		return ""
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, data[k])
	}
	return strings.Join(parts, " ")
}
