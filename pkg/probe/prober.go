// Package probe checks that the headers visible to a toolchain agree with the target platform.
package probe

import (
	"context"
	"fmt"
	"path"
	"strings"
)

// Prober answers conditional-inclusion queries, the equivalent of __has_include.
type Prober interface {
	// Supported reports whether the toolchain can test headers at all.
	// When it cannot, HasInclude must not be relied on.
	Supported(ctx context.Context) (bool, error)

	// HasInclude reports whether header resolves in the include search path
	// without including it.
	HasInclude(ctx context.Context, header string) (bool, error)
}

// Unsupported returns a Prober for toolchains without conditional-inclusion testing.
func Unsupported() Prober { return unsupported{} }

type unsupported struct{}

func (unsupported) Supported(context.Context) (bool, error) { return false, nil }

func (unsupported) HasInclude(_ context.Context, header string) (bool, error) {
	return false, fmt.Errorf("probe %s: conditional inclusion testing is unsupported", header)
}

// validateHeader rejects header names that are absolute or escape the include directory.
func validateHeader(header string) error {
	if header == "" {
		return fmt.Errorf("empty header name")
	}
	if strings.ContainsAny(header, "\\\x00<>\"") {
		return fmt.Errorf("invalid header name %q", header)
	}
	if path.IsAbs(header) || !isLocal(header) {
		return fmt.Errorf("header %q must be relative to the include path", header)
	}
	return nil
}

func isLocal(header string) bool {
	clean := path.Clean(header)
	return clean != ".." && !strings.HasPrefix(clean, "../") && clean != "."
}
