package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/715d/targetprobe/internal/toolchain"
	"github.com/715d/targetprobe/pkg/marker"
	"github.com/715d/targetprobe/pkg/platform"
)

// sysroot creates an include directory holding empty headers.
func sysroot(t *testing.T, headers ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, h := range headers {
		path := filepath.Join(dir, filepath.FromSlash(h))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, nil, 0o644))
	}
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeWith(t, toolchain.Exec, args...)
}

func executeWith(t *testing.T, run toolchain.Runner, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&Config{}, run)
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.ExecuteContext(t.Context())
	return stdout.String(), err
}

func TestRun_Consistent(t *testing.T) {
	inc := sysroot(t, "linux/netfilter.h", "stdio.h")
	out := filepath.Join(t.TempDir(), "sysdep", "markers.go")

	stdout, err := execute(t, "--target", "x86_64-unknown-linux-gnu", "-I", inc, "--marker-out", out)
	require.NoError(t, err)
	require.Contains(t, stdout, "identity: linux\n")
	require.Contains(t, stdout, "marker:   is_linux\n")

	src, err := os.ReadFile(out)
	require.NoError(t, err)
	markers, err := marker.Parse(out, src, marker.DefaultPrefix)
	require.NoError(t, err)
	require.Equal(t, marker.Emit(platform.Linux), markers)
}

// fakeToolchain answers zig queries and preprocessor runs as a toolchain
// that sees only headers.
type fakeToolchain struct {
	zigVersion string
	headers    map[string]bool

	mu       sync.Mutex
	commands []string
}

func (f *fakeToolchain) run(_ context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	cmdline := strings.Join(append([]string{name}, args...), " ")
	f.mu.Lock()
	f.commands = append(f.commands, cmdline)
	f.mu.Unlock()

	switch cmdline {
	case "zig version":
		if f.zigVersion == "" {
			return nil, errors.New("zig: executable file not found in $PATH")
		}
		return []byte(f.zigVersion + "\n"), nil
	case "zig env":
		return []byte(`{"zig_exe":"/opt/zig/zig","lib_dir":"/opt/zig/lib"}`), nil
	}
	if !strings.HasSuffix(cmdline, " -E -P -x c -") {
		return nil, fmt.Errorf("%s: executable file not found in $PATH", name)
	}

	src := string(stdin)
	if strings.Contains(src, "defined __has_include") {
		return []byte("targetprobe_has_include_supported\n"), nil
	}
	_, rest, _ := strings.Cut(src, "__has_include(<")
	header, _, _ := strings.Cut(rest, ">)")
	if f.headers[header] {
		return []byte("targetprobe_header_found\n"), nil
	}
	return nil, nil
}

func (f *fakeToolchain) ran(cmdline string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Contains(f.commands, cmdline)
}

func TestRun_Zig(t *testing.T) {
	tc := &fakeToolchain{zigVersion: "0.10.1", headers: map[string]bool{"linux/netfilter.h": true}}

	stdout, err := executeWith(t, tc.run, "--zig", "--target", "x86_64-unknown-linux-gnu")
	require.NoError(t, err)
	require.Contains(t, stdout, "identity: linux\n")
	require.True(t, tc.ran("zig cc -target x86_64-linux-gnu -E -P -x c -"))

	_, err = executeWith(t, (&fakeToolchain{}).run, "--zig", "--target", "x86_64-unknown-linux-gnu")
	require.ErrorContains(t, err, "find zig")
	require.Equal(t, exitError, exitCode(err))
}

func TestRun_CompilerTarget(t *testing.T) {
	tests := []struct {
		name    string
		cc      string
		wantRun string
	}{
		{name: "clang_gets_target", cc: "clang-17", wantRun: "clang-17 --target=x86_64-pc-windows-gnu -E -P -x c -"},
		{name: "clang_path", cc: "/usr/bin/clang --sysroot=/sdk", wantRun: "/usr/bin/clang --sysroot=/sdk --target=x86_64-pc-windows-gnu -E -P -x c -"},
		{name: "cross_gcc_as_is", cc: "x86_64-w64-mingw32-gcc", wantRun: "x86_64-w64-mingw32-gcc -E -P -x c -"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := &fakeToolchain{headers: map[string]bool{"winsock2.h": true}}
			stdout, err := executeWith(t, tc.run, "--cc", tt.cc, "--target", "x86_64-pc-windows-gnu")
			require.NoError(t, err)
			require.Contains(t, stdout, "marker:   is_win32\n")
			require.True(t, tc.ran(tt.wantRun), "commands: %v", tc.commands)
		})
	}
}

func TestZigCmd(t *testing.T) {
	tc := &fakeToolchain{zigVersion: "0.11.0"}

	stdout, err := executeWith(t, tc.run, "zig", "--target", "aarch64-apple-darwin", "--json")
	require.NoError(t, err)
	var got zigInfo
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	require.Equal(t, zigInfo{
		Command:       "zig",
		Version:       "v0.11.0",
		LibDir:        "/opt/zig/lib",
		LibcxxVersion: 160001,
		Target:        "aarch64-macos-gnu",
	}, got)

	stdout, err = executeWith(t, tc.run, "zig")
	require.NoError(t, err)
	require.Contains(t, stdout, "lib dir:        /opt/zig/lib\n")
	require.NotContains(t, stdout, "target:")

	_, err = executeWith(t, tc.run, "zig", "--target", "wasm32-unknown-unknown")
	require.Error(t, err)
	require.Equal(t, exitError, exitCode(err))

	_, err = executeWith(t, (&fakeToolchain{}).run, "zig")
	require.ErrorContains(t, err, "find zig")
}

func TestInspect_MarkerRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("loads packages with the go command")
	}

	inc := sysroot(t, "mach/mach_time.h")
	mod := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(mod, "go.mod"), []byte("module example.com/bindings\n\ngo 1.21\n"), 0o644))

	_, err := execute(t, "--target", "aarch64-apple-darwin", "-I", inc, "--marker-out", filepath.Join(mod, "sysdep", "markers.go"))
	require.NoError(t, err)

	stdout, err := execute(t, "inspect", mod, "./sysdep")
	require.NoError(t, err)
	require.Equal(t, "is_macos\tmacos\n", stdout)

	stdout, err = execute(t, "inspect", mod, "./...", "--json")
	require.NoError(t, err)
	var markers []marker.Marker
	require.NoError(t, json.Unmarshal([]byte(stdout), &markers))
	require.Equal(t, marker.Emit(platform.MacOS), markers)

	stdout, err = execute(t, "inspect", mod, "./sysdep", "--prefix", "zb_")
	require.NoError(t, err)
	require.Empty(t, stdout)
}

func TestRun_Violation(t *testing.T) {
	inc := sysroot(t, "stdio.h")

	stdout, err := execute(t, "--target", "x86_64-pc-windows-gnu", "-I", inc)
	require.EqualError(t, err, "windows targets are expected to have <winsock2.h>")
	require.Equal(t, exitInconsistent, exitCode(err))
	require.Contains(t, stdout, "violation: windows targets are expected to have <winsock2.h>")
}

func TestRun_HostHeadersLeak(t *testing.T) {
	inc := sysroot(t, "mach/mach_time.h", "linux/netfilter.h")

	_, err := execute(t, "-D", "__APPLE__", "-D", "__MACH__", "-I", inc)
	require.EqualError(t, err, "non-linux targets mistakenly have <linux/netfilter.h>, probably from host includes")
	require.Equal(t, exitInconsistent, exitCode(err))
}

func TestRun_Degraded(t *testing.T) {
	inc := sysroot(t, "winsock2.h")

	stdout, err := execute(t, "-D", "__linux__", "-I", inc, "--no-has-include", "--json")
	require.NoError(t, err)

	var got struct {
		Report struct {
			Identity  string          `json:"identity"`
			Supported bool            `json:"has_include_supported"`
			Headers   map[string]bool `json:"headers"`
			Markers   []marker.Marker `json:"markers"`
		} `json:"report"`
		Prober string `json:"prober"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	require.Equal(t, "linux", got.Report.Identity)
	require.False(t, got.Report.Supported)
	require.Empty(t, got.Report.Headers)
	require.Equal(t, marker.Emit(platform.Linux), got.Report.Markers)
	require.Equal(t, "unsupported", got.Prober)
}

func TestRun_Profile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "include", "mach"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "include", "mach", "mach_time.h"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "include", "algorithm"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "isocpp.hpp"), []byte(`#include <algorithm>
#if _LIBCPP_VERSION >= 15000
	#include <coroutine>
#endif
`), 0o644))
	profiles := filepath.Join(dir, "profiles.toml")
	require.NoError(t, os.WriteFile(profiles, []byte(`[[profiles]]
name = "macos"
triple = "aarch64-apple-darwin"
include_dirs = ["include"]
fixtures = ["isocpp.hpp"]
libcxx_version = 13000

[[profiles]]
name = "linux"
triple = "x86_64-unknown-linux-gnu"
include_dirs = ["include"]
`), 0o644))

	stdout, err := execute(t, "--config", profiles, "--profile", "macos")
	require.NoError(t, err)
	require.Contains(t, stdout, "profile:  macos\n")
	require.Contains(t, stdout, "marker:   is_macos\n")

	// A newer libc++ expects <coroutine>, which the sysroot lacks.
	stdout, err = execute(t, "--config", profiles, "--profile", "macos", "--libcxx-version", "15003")
	require.ErrorContains(t, err, "1 fixture include(s) do not resolve for macos")
	require.Equal(t, exitError, exitCode(err))
	require.Contains(t, stdout, "missing include <coroutine>")

	_, err = execute(t, "--config", profiles, "--profile", "linux")
	require.ErrorContains(t, err, "linux targets are expected to have <linux/netfilter.h>")

	_, err = execute(t, "--config", profiles)
	require.ErrorContains(t, err, "--profile is required")

	_, err = execute(t, "--config", profiles, "--profile", "beos")
	require.ErrorContains(t, err, "unknown profile")
}

func TestRun_InvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "bad_triple", args: []string{"--target", "x86_64"}, wantErr: "malformed target triple"},
		{name: "bad_define", args: []string{"-D", "1x"}, wantErr: "invalid macro name"},
		{name: "profile_without_config", args: []string{"--profile", "linux"}, wantErr: "--profile requires --config"},
		{name: "bad_libcxx_define", args: []string{"-D", "__linux__", "-D", "_LIBCPP_VERSION=abc"}, wantErr: "is not a number"},
		{name: "bad_log_level", args: []string{"-v", "--log-level", "loud"}, wantErr: "invalid log level"},
		{name: "bad_marker_package", args: []string{"-D", "__linux__", "--marker-out", "x.go", "--marker-package", "a-b"}, wantErr: "invalid package name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			_, err := execute(t, tt.args...)
			require.ErrorContains(t, err, tt.wantErr)
			require.Equal(t, exitError, exitCode(err))
		})
	}
}

func TestExitCode(t *testing.T) {
	require.Equal(t, exitError, exitCode(os.ErrNotExist))
	require.Equal(t, exitInconsistent, exitCode(errWithCode(nil, exitInconsistent)))
	require.Empty(t, errWithCode(nil, exitInconsistent).Error())
}
