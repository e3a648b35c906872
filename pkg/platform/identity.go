// Package platform resolves the target platform of a build from compiler identification predicates.
package platform

import "fmt"

// Identity is the single target operating system a build is produced for.
type Identity string

const (
	Linux   Identity = "linux"
	Windows Identity = "windows"
	MacOS   Identity = "macos"
	Other   Identity = "other"
)

// Platforms lists the identities that have a characteristic header, in probe order.
var Platforms = []Identity{Linux, Windows, MacOS}

// characteristicHeaders maps each platform to a header whose presence reliably signals it.
var characteristicHeaders = map[Identity]string{
	Linux:   "linux/netfilter.h",
	Windows: "winsock2.h",
	MacOS:   "mach/mach_time.h",
}

// CharacteristicHeader returns the header treated as a signal of id.
// Other has no characteristic header.
func CharacteristicHeader(id Identity) (string, bool) {
	h, ok := characteristicHeaders[id]
	return h, ok
}

// ParseIdentity parses the string form of an Identity.
func ParseIdentity(s string) (Identity, error) {
	switch id := Identity(s); id {
	case Linux, Windows, MacOS, Other:
		return id, nil
	}
	switch s {
	case "darwin", "macosx":
		return MacOS, nil
	case "win32", "win":
		return Windows, nil
	}
	return "", fmt.Errorf("unknown platform %q", s)
}

func (id Identity) String() string { return string(id) }
