package plist

import (
	"fmt"
	"regexp"
)

// Profile is the subset of a provisioning profile the signing steps use.
type Profile struct {
	UUID    string
	Name    string
	TeamIDs []string
}

var uuidPattern = regexp.MustCompile(`<key>UUID</key>\s*<string>([^<]+)</string>`)

// ParseProfile reads the embedded property list of a provisioning profile.
// When the payload cannot be decoded the UUID is still recovered by scanning
// the raw text.
func ParseProfile(data []byte) (*Profile, error) {
	embedded, err := ExtractEmbedded(data)
	if err != nil {
		return nil, err
	}

	v, _, err := Decode(embedded)
	if err != nil {
		m := uuidPattern.FindSubmatch(embedded)
		if m == nil {
			return nil, fmt.Errorf("provisioning profile: %w", err)
		}
		return &Profile{UUID: string(m[1])}, nil
	}

	p := &Profile{
		UUID: v.GetString("UUID"),
		Name: v.GetString("Name"),
	}
	if ids, ok := v.Get("TeamIdentifier"); ok && ids.Kind == KindArray {
		for _, id := range ids.Array {
			if id.Kind == KindString {
				p.TeamIDs = append(p.TeamIDs, id.Str)
			}
		}
	}
	if p.UUID == "" {
		return nil, fmt.Errorf("provisioning profile has no UUID")
	}
	return p, nil
}
