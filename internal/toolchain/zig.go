package toolchain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/715d/targetprobe/pkg/platform"
)

// MinZigVersion is the oldest zig release whose `zig cc` is usable.
const MinZigVersion = "v0.9.0"

// Zig is a discovered zig installation.
type Zig struct {
	// Command invokes zig, either ["zig"] or ["python3", "-m", "ziglang"].
	Command Command
	// Version is the semver of the installation with a leading "v".
	Version string
}

// zigCandidates are tried in order; the Python ziglang package wins over a zig on PATH.
var zigCandidates = []Command{
	{"python3", "-m", "ziglang"},
	{"zig"},
}

// FindZig locates a zig installation no older than MinZigVersion.
func FindZig(ctx context.Context, run Runner) (*Zig, error) {
	var errs []error
	for _, cand := range zigCandidates {
		name, args := cand.With("version")
		out, err := run(ctx, nil, name, args...)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		version, err := validateZigVersion(string(out))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", cand, err))
			continue
		}
		slog.Debug("found zig", "command", cand.String(), "version", version)
		return &Zig{Command: cand, Version: version}, nil
	}
	return nil, fmt.Errorf("find zig: %w", errors.Join(errs...))
}

func validateZigVersion(out string) (string, error) {
	version := "v" + strings.TrimSpace(out)
	if !semver.IsValid(version) {
		return "", fmt.Errorf("unparseable zig version %q", strings.TrimSpace(out))
	}
	if semver.Compare(version, MinZigVersion) < 0 {
		return "", fmt.Errorf("zig version %s is too old, need at least %s", version, MinZigVersion)
	}
	return version, nil
}

// CC returns the command running `zig cc`.
func (z *Zig) CC() Command {
	return append(append(Command{}, z.Command...), "cc")
}

// CXX returns the command running `zig c++`.
func (z *Zig) CXX() Command {
	return append(append(Command{}, z.Command...), "c++")
}

type zigEnv struct {
	LibDir string `json:"lib_dir"`
}

// LibDir returns the zig lib directory reported by `zig env`.
func (z *Zig) LibDir(ctx context.Context, run Runner) (string, error) {
	name, args := z.Command.With("env")
	out, err := run(ctx, nil, name, args...)
	if err != nil {
		return "", fmt.Errorf("zig env: %w", err)
	}
	var env zigEnv
	if err := json.Unmarshal(out, &env); err != nil {
		return "", fmt.Errorf("decode zig env: %w", err)
	}
	if env.LibDir == "" {
		return "", errors.New("zig env: missing lib_dir")
	}
	return env.LibDir, nil
}

// libcxxVersions maps zig minor releases to the _LIBCPP_VERSION of the libc++ they vendor.
var libcxxVersions = []struct {
	zig    string
	libcxx int
}{
	{"v0.11", 160001},
	{"v0.10", 15003},
	{"v0.9", 13000},
}

// LibcxxVersion returns the _LIBCPP_VERSION vendored by the given zig version,
// or 0 when the version predates every known release.
func LibcxxVersion(zigVersion string) int {
	v := zigVersion
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	for _, e := range libcxxVersions {
		if semver.Compare(semver.MajorMinor(v), e.zig) >= 0 {
			return e.libcxx
		}
	}
	return 0
}

// ZigTarget maps a target triple, optionally suffixed with a glibc version
// such as ".2.17", to the value of `zig cc -target`.
func ZigTarget(target string) (string, error) {
	triple, abiSuffix, _ := strings.Cut(target, ".")
	if abiSuffix != "" {
		major, minor, ok := strings.Cut(abiSuffix, ".")
		if !ok || !isDigits(major) || !isDigits(minor) {
			return "", fmt.Errorf("malformed zig target abi suffix in %q", target)
		}
		abiSuffix = "." + abiSuffix
	}

	t, err := platform.ParseTriple(triple)
	if err != nil {
		return "", err
	}

	arch := t.Arch
	switch arch {
	case "i386", "i486", "i586", "i686":
		arch = "i386"
	}
	env := t.Env
	if env == "" {
		env = "gnu"
	}
	if strings.HasPrefix(t.Arch, "mips") && !t.Is64Bit() && env == "gnu" {
		env = "gnueabihf"
	}

	switch t.Identity() {
	case platform.Linux:
		return fmt.Sprintf("%s-linux-%s%s", arch, env, abiSuffix), nil
	case platform.MacOS:
		return fmt.Sprintf("%s-macos-gnu%s", arch, abiSuffix), nil
	case platform.Windows:
		return fmt.Sprintf("%s-windows-%s%s", arch, env, abiSuffix), nil
	}
	return "", fmt.Errorf("unsupported target %q", target)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
