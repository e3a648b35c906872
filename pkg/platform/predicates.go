package platform

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Identification macros checked by Resolve.
const (
	MacroLinux = "__linux__"
	MacroWin32 = "_WIN32"
	MacroApple = "__APPLE__"
	MacroMach  = "__MACH__"
	MacroUnix  = "__unix__"
	MacroWin64 = "_WIN64"
)

// Predicates is the set of identification macros defined for a build, with their values.
// A macro defined without a value maps to "1".
type Predicates map[string]string

// ParsePredicates parses define arguments such as "__linux__", "-D_WIN32" or "_LIBCPP_VERSION=16000".
func ParsePredicates(defines []string) (Predicates, error) {
	p := make(Predicates, len(defines))
	for _, d := range defines {
		if err := p.Define(d); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Define adds a single define argument to p.
func (p Predicates) Define(def string) error {
	text := strings.TrimSpace(def)
	text = strings.TrimPrefix(text, "-D")
	name, value, found := strings.Cut(text, "=")
	if !found {
		value = "1"
	}
	if !isMacroName(name) {
		return fmt.Errorf("invalid macro name in define %q", def)
	}
	p[name] = value
	return nil
}

// Defined reports whether macro is defined.
func (p Predicates) Defined(macro string) bool {
	_, ok := p[macro]
	return ok
}

// Merge returns a copy of p with other's definitions layered on top.
func (p Predicates) Merge(other Predicates) Predicates {
	out := make(Predicates, len(p)+len(other))
	maps.Copy(out, p)
	maps.Copy(out, other)
	return out
}

// Names returns the defined macro names in sorted order.
func (p Predicates) Names() []string {
	return slices.Sorted(maps.Keys(p))
}

// Matches reports whether the predicates for id hold.
// It does not consider the predicates of any other platform.
func (p Predicates) Matches(id Identity) bool {
	switch id {
	case Linux:
		return p.Defined(MacroLinux)
	case Windows:
		return p.Defined(MacroWin32)
	case MacOS:
		return p.Defined(MacroApple) && p.Defined(MacroMach)
	}
	return false
}

// Resolve returns the first platform, in Linux, Windows, macOS order, whose predicates hold,
// or Other if none do. Predicates claiming several platforms resolve to the first match.
func Resolve(p Predicates) Identity {
	for _, id := range Platforms {
		if p.Matches(id) {
			return id
		}
	}
	return Other
}

func isMacroName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
