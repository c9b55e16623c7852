package keychain

import (
	"fmt"
	"regexp"
	"strings"
)

// Identity classes as they prefix identity names.
const (
	ClassAppleDistribution      = "Apple Distribution"
	ClassAppleDevelopment       = "Apple Development"
	ClassDeveloperIDApplication = "Developer ID Application"
	ClassDeveloperIDInstaller   = "Developer ID Installer"
	ClassMacInstaller           = "3rd Party Mac Developer Installer"
)

// identityPattern matches lines from `security find-identity -v -p codesigning` output.
// Format: "  N) <hex hash> "<identity string>""
var identityPattern = regexp.MustCompile(`^\s*\d+\)\s+([0-9A-Fa-f]+)\s+"(.+)"`)

var teamIDPattern = regexp.MustCompile(`\(([A-Z0-9]{10})\)`)

// Identity is one signing identity.
type Identity struct {
	Hash string
	Name string
}

// TeamID returns the ten character team identifier in the identity name, or
// "" when none is present.
func (i Identity) TeamID() string {
	m := teamIDPattern.FindAllStringSubmatch(i.Name, -1)
	if len(m) == 0 {
		return ""
	}
	return m[len(m)-1][1]
}

// Class returns the part of the name before the first ":".
func (i Identity) Class() string {
	class, _, _ := strings.Cut(i.Name, ":")
	return strings.TrimSpace(class)
}

// ParseIdentities parses the output of `security find-identity -v -p codesigning`.
func ParseIdentities(output string) []Identity {
	var identities []Identity

	for _, line := range strings.Split(output, "\n") {
		matches := identityPattern.FindStringSubmatch(line)
		if len(matches) == 3 {
			identities = append(identities, Identity{Hash: matches[1], Name: matches[2]})
		}
	}

	return identities
}

// FindByClass returns the first identity of class.
func FindByClass(identities []Identity, class string) (Identity, bool) {
	for _, id := range identities {
		if id.Class() == class {
			return id, true
		}
	}
	return Identity{}, false
}

// ValidateIdentity checks whether name appears in identities. The error
// lists what is available.
func ValidateIdentity(name string, identities []Identity) error {
	for _, id := range identities {
		if id.Name == name {
			return nil
		}
	}

	if len(identities) == 0 {
		return fmt.Errorf("signing identity %q not found in keychain: no valid signing identities are installed", name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "signing identity %q not found in keychain\navailable identities:\n", name)
	for _, id := range identities {
		fmt.Fprintf(&b, "  - %s\n", id.Name)
	}
	return fmt.Errorf("%s", strings.TrimRight(b.String(), "\n"))
}
