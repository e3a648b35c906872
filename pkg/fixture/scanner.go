// Package fixture scans header fixture files for the includes they expect a target to provide.
package fixture

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// VersionMacro is the macro whose comparisons gate includes by libc++ release.
const VersionMacro = "_LIBCPP_VERSION"

// Include is a single #include directive found in a fixture.
type Include struct {
	// Name is the header as written between the delimiters.
	Name string `json:"name"`
	// System is true for <...> includes and false for "..." includes.
	System bool `json:"system"`
	// File and Line locate the directive.
	File string `json:"file"`
	Line int    `json:"line"`
	// MinVersion is the lowest _LIBCPP_VERSION the include applies to, 0 if ungated.
	MinVersion int `json:"min_version,omitempty"`
	// MaxVersion is the first _LIBCPP_VERSION the include no longer applies to, 0 if unbounded.
	MaxVersion int `json:"max_version,omitempty"`
	// Conditions are the enclosing preprocessor conditions not understood as version gates.
	Conditions []string `json:"conditions,omitempty"`
}

// Inventory is the ordered list of includes declared by one or more fixtures.
type Inventory struct {
	Includes []Include
}

// Compile patterns once at package initialization.
var (
	// #include <vector> or #include "isoc.h"
	includePattern = regexp.MustCompile(`^#\s*include\s*([<"])([^>"]+)[>"]`)

	// #if _LIBCPP_VERSION >= 15000
	versionPattern = regexp.MustCompile(`^#\s*if\s+` + VersionMacro + `\s*(>=|<)\s*(\d+)\s*$`)

	// Any other conditional opening a block.
	ifPattern = regexp.MustCompile(`^#\s*(if|ifdef|ifndef)\b\s*(.*)$`)

	elsePattern  = regexp.MustCompile(`^#\s*else\b`)
	elifPattern  = regexp.MustCompile(`^#\s*elif\b\s*(.*)$`)
	endifPattern = regexp.MustCompile(`^#\s*endif\b`)
)

// gate is one open conditional block.
type gate struct {
	version bool
	min     int
	max     int
	cond    string
}

func (g gate) invert() gate {
	if g.version {
		return gate{version: true, min: g.max, max: g.min}
	}
	return gate{cond: "!(" + g.cond + ")"}
}

// ScanFile scans a fixture file on disk.
func ScanFile(filename string) (*Inventory, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Scan(filename, file)
}

// Scan reads fixture directives from r. filename is recorded on each Include.
func Scan(filename string, r io.Reader) (*Inventory, error) {
	inv := &Inventory{}
	var stack []gate

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		// Commented-out includes are intentionally unsupported headers.
		if line == "" || strings.HasPrefix(line, "//") || strings.HasPrefix(line, "/*") || !strings.HasPrefix(line, "#") {
			continue
		}
		line = stripTrailingComment(line)

		switch {
		case includePattern.MatchString(line):
			m := includePattern.FindStringSubmatch(line)
			inv.Includes = append(inv.Includes, newInclude(filename, lineNo, m[1] == "<", m[2], stack))

		case versionPattern.MatchString(line):
			m := versionPattern.FindStringSubmatch(line)
			v, err := strconv.Atoi(m[2])
			if err != nil {
				return nil, fmt.Errorf("%s:%d: version %q: %w", filename, lineNo, m[2], err)
			}
			g := gate{version: true}
			if m[1] == ">=" {
				g.min = v
			} else {
				g.max = v
			}
			stack = append(stack, g)

		case ifPattern.MatchString(line):
			m := ifPattern.FindStringSubmatch(line)
			cond := strings.TrimSpace(m[2])
			switch m[1] {
			case "ifdef":
				cond = "defined " + cond
			case "ifndef":
				cond = "!defined " + cond
			}
			stack = append(stack, gate{cond: cond})

		case elifPattern.MatchString(line):
			if len(stack) == 0 {
				return nil, fmt.Errorf("%s:%d: #elif without #if", filename, lineNo)
			}
			m := elifPattern.FindStringSubmatch(line)
			prev := stack[len(stack)-1].invert()
			stack[len(stack)-1] = gate{cond: prev.describe() + " && " + strings.TrimSpace(m[1])}

		case elsePattern.MatchString(line):
			if len(stack) == 0 {
				return nil, fmt.Errorf("%s:%d: #else without #if", filename, lineNo)
			}
			stack[len(stack)-1] = stack[len(stack)-1].invert()

		case endifPattern.MatchString(line):
			if len(stack) == 0 {
				return nil, fmt.Errorf("%s:%d: #endif without #if", filename, lineNo)
			}
			stack = stack[:len(stack)-1]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(stack) > 0 {
		return nil, fmt.Errorf("%s: %d unterminated conditional block(s)", filename, len(stack))
	}
	return inv, nil
}

func newInclude(filename string, line int, system bool, name string, stack []gate) Include {
	inc := Include{Name: strings.TrimSpace(name), System: system, File: filename, Line: line}
	for _, g := range stack {
		if !g.version {
			inc.Conditions = append(inc.Conditions, g.cond)
			continue
		}
		if g.min > inc.MinVersion {
			inc.MinVersion = g.min
		}
		if g.max > 0 && (inc.MaxVersion == 0 || g.max < inc.MaxVersion) {
			inc.MaxVersion = g.max
		}
	}
	return inc
}

func (g gate) describe() string {
	if !g.version {
		return g.cond
	}
	if g.min > 0 {
		return fmt.Sprintf("%s >= %d", VersionMacro, g.min)
	}
	return fmt.Sprintf("%s < %d", VersionMacro, g.max)
}

func stripTrailingComment(line string) string {
	if i := strings.Index(line, "//"); i > 0 {
		return strings.TrimSpace(line[:i])
	}
	if i := strings.Index(line, "/*"); i > 0 {
		return strings.TrimSpace(line[:i])
	}
	return line
}

// Merge appends the includes of other to inv.
func (inv *Inventory) Merge(other *Inventory) {
	inv.Includes = append(inv.Includes, other.Includes...)
}

// Applicable returns the includes that apply to a libc++ release. Includes carrying
// conditions other than version gates are left out. A version of 0 means the release is
// unknown, and only ungated includes apply.
func (inv *Inventory) Applicable(version int) []Include {
	var out []Include
	for _, inc := range inv.Includes {
		if len(inc.Conditions) > 0 {
			continue
		}
		if inc.MinVersion > 0 && (version == 0 || version < inc.MinVersion) {
			continue
		}
		if inc.MaxVersion > 0 && (version == 0 || version >= inc.MaxVersion) {
			continue
		}
		out = append(out, inc)
	}
	return out
}
