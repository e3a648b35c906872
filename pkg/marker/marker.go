// Package marker declares and detects the zero-behavior types that record which platform branch a probe confirmed.
package marker

import (
	"bytes"
	"fmt"
	"go/format"
	"go/token"

	"github.com/715d/targetprobe/pkg/platform"
)

// DefaultPrefix is prepended to marker names to form the declared Go type name.
const DefaultPrefix = "targetprobe_"

// Marker is a tag emitted for a confirmed platform.
type Marker struct {
	Platform platform.Identity `json:"platform"`
	Name     string            `json:"name"`
}

var markerNames = map[platform.Identity]string{
	platform.Linux:   "is_linux",
	platform.Windows: "is_win32",
	platform.MacOS:   "is_macos",
}

// Emit returns the marker for id: exactly one for Linux, Windows and macOS, none for Other.
func Emit(id platform.Identity) []Marker {
	name, ok := markerNames[id]
	if !ok {
		return nil
	}
	return []Marker{{Platform: id, Name: name}}
}

// lookupName returns the platform whose marker is called name.
func lookupName(name string) (platform.Identity, bool) {
	for id, n := range markerNames {
		if n == name {
			return id, true
		}
	}
	return "", false
}

// TypeName returns the Go type name declared for m.
func (m Marker) TypeName(prefix string) string { return prefix + m.Name }

// Render returns gofmt'ed Go source declaring markers in package pkg.
func Render(pkg, prefix string, markers []Marker) ([]byte, error) {
	if !token.IsIdentifier(pkg) {
		return nil, fmt.Errorf("invalid package name %q", pkg)
	}

	var buf bytes.Buffer
	buf.WriteString("// Code generated by targetprobe. DO NOT EDIT.\n\n")
	fmt.Fprintf(&buf, "package %s\n", pkg)
	for _, m := range markers {
		name := m.TypeName(prefix)
		if !token.IsIdentifier(name) {
			return nil, fmt.Errorf("invalid marker type name %q", name)
		}
		fmt.Fprintf(&buf, "\n// %s records that the build target was confirmed as %s.\n", name, m.Platform)
		fmt.Fprintf(&buf, "type %s struct{ X int }\n", name)
	}

	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format marker source: %w", err)
	}
	return src, nil
}
