package platform

import (
	"fmt"
	"runtime"
	"strings"
)

// Triple is a parsed target triple such as "x86_64-unknown-linux-gnu".
type Triple struct {
	Arch   string
	Vendor string
	OS     string
	Env    string
}

var knownOS = map[string]bool{
	"linux":   true,
	"windows": true,
	"darwin":  true,
	"macos":   true,
	"ios":     true,
	"freebsd": true,
	"netbsd":  true,
	"openbsd": true,
	"wasi":    true,
	"none":    true,
}

// ParseTriple parses arch-vendor-os-env triples and the shorter arch-os-env and arch-os forms.
func ParseTriple(s string) (Triple, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	for _, p := range parts {
		if p == "" {
			return Triple{}, fmt.Errorf("malformed target triple %q", s)
		}
	}

	var t Triple
	switch len(parts) {
	case 2:
		t = Triple{Arch: parts[0], OS: parts[1]}
	case 3:
		if knownOS[osBase(parts[1])] {
			t = Triple{Arch: parts[0], OS: parts[1], Env: parts[2]}
		} else {
			t = Triple{Arch: parts[0], Vendor: parts[1], OS: parts[2]}
		}
	case 4:
		t = Triple{Arch: parts[0], Vendor: parts[1], OS: parts[2], Env: parts[3]}
	default:
		return Triple{}, fmt.Errorf("malformed target triple %q", s)
	}
	return t, nil
}

// Identity returns the platform the triple's operating system belongs to.
// Android triples count as Linux.
func (t Triple) Identity() Identity {
	switch osBase(t.OS) {
	case "linux":
		return Linux
	case "windows":
		return Windows
	case "darwin", "macos":
		return MacOS
	}
	return Other
}

// Is64Bit reports whether the architecture has 64-bit pointers.
func (t Triple) Is64Bit() bool {
	switch {
	case t.Arch == "x86_64", t.Arch == "s390x":
		return true
	case strings.HasSuffix(t.Arch, "64"), strings.HasSuffix(t.Arch, "64el"), strings.HasSuffix(t.Arch, "64gc"):
		return true
	case strings.HasPrefix(t.Arch, "aarch64"), strings.HasPrefix(t.Arch, "riscv64"), strings.HasPrefix(t.Arch, "powerpc64"):
		return true
	}
	return false
}

func (t Triple) String() string {
	parts := []string{t.Arch}
	if t.Vendor != "" {
		parts = append(parts, t.Vendor)
	}
	parts = append(parts, t.OS)
	if t.Env != "" {
		parts = append(parts, t.Env)
	}
	return strings.Join(parts, "-")
}

// Predicates returns the identification macros a compiler defines for the triple.
func (t Triple) Predicates() Predicates {
	p := Predicates{}
	switch t.Identity() {
	case Linux:
		p[MacroLinux] = "1"
		p[MacroUnix] = "1"
	case Windows:
		p[MacroWin32] = "1"
		if t.Is64Bit() {
			p[MacroWin64] = "1"
		}
	case MacOS:
		p[MacroApple] = "1"
		p[MacroMach] = "1"
	}
	return p
}

// PredicatesForGOOS returns the identification macros matching a Go GOOS value.
func PredicatesForGOOS(goos string) Predicates {
	switch goos {
	case "linux", "android":
		return Predicates{MacroLinux: "1", MacroUnix: "1"}
	case "windows":
		return Predicates{MacroWin32: "1"}
	case "darwin":
		return Predicates{MacroApple: "1", MacroMach: "1"}
	}
	return Predicates{}
}

// Host returns the identification macros of the machine running this process.
func Host() Predicates {
	return PredicatesForGOOS(runtime.GOOS)
}

// osBase strips version suffixes such as "macosx10.12" or "darwin21".
func osBase(os string) string {
	switch {
	case strings.HasPrefix(os, "macos"):
		return "macos"
	case strings.HasPrefix(os, "darwin"):
		return "darwin"
	case strings.HasPrefix(os, "windows"):
		return "windows"
	}
	return os
}
