// Package main implements the targetprobe command, a build step asserting that the
// headers visible to a C toolchain agree with the build target.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/spf13/cobra"

	"github.com/715d/targetprobe/internal/logging"
	"github.com/715d/targetprobe/internal/toolchain"
	"github.com/715d/targetprobe/pkg/marker"
)

// Config holds all command-line configuration options for targetprobe.
type Config struct {
	ConfigFile    string   // profile file (.yaml, .yml or .toml)
	Profile       string   // profile name within ConfigFile
	Target        string   // target triple, overrides the profile's
	Defines       []string // extra identification macros
	IncludeDirs   []string // include search path
	CC            string   // C compiler driver answering probes, e.g. "cc" or "clang --sysroot=/x"
	Zig           bool     // use the discovered zig as the compiler driver
	NoHasInclude  bool     // skip header corroboration as if __has_include were unsupported
	MarkerOut     string   // Go file to write marker declarations to
	MarkerPackage string   // package clause of MarkerOut
	MarkerPrefix  string   // prefix of marker type names
	Fixtures      []string // header fixtures whose includes must resolve
	LibcxxVersion int      // _LIBCPP_VERSION for fixture version gates
	JSON          bool     // enables JSON output format
	Verbose       bool     // enables logging to stderr
	LogLevel      string   // log level when verbose
	Pprof         bool     // enables CPU and memory profiling
}

const (
	exitInconsistent = 1
	exitError        = 2
)

var (
	// Set via ldflags during build.
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	cfg := &Config{}
	rootCmd := newRootCmd(cfg, toolchain.Exec)

	if err := rootCmd.Execute(); err != nil {
		_ = teardown(cfg)
		if err.Error() != "" {
			fmt.Fprintln(os.Stderr, err.Error())
		}
		os.Exit(exitCode(err))
	}
}

// newRootCmd builds the command tree. run executes the compiler and zig.
func newRootCmd(cfg *Config, run toolchain.Runner) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "targetprobe",
		Short: "Check that visible C headers agree with the build target",
		Long: `targetprobe resolves the target platform from compiler identification
macros and corroborates it against the platform-characteristic headers
visible to the toolchain:

  linux    <linux/netfilter.h>
  windows  <winsock2.h>
  macos    <mach/mach_time.h>

A target must see its own characteristic header and must not see any other
platform's. On success a marker type for the confirmed platform can be written
to a Go file for downstream tooling.`,
		Example: `  targetprobe --target x86_64-unknown-linux-gnu -I sysroot/usr/include
  targetprobe --config profiles.yaml --profile windows-gnu --marker-out sysdep/markers.go
  targetprobe --zig --target aarch64-apple-darwin --fixture isocpp.hpp
  targetprobe --cc clang --target x86_64-pc-windows-gnu
  targetprobe -D __linux__ --no-has-include --json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setup(cfg, cmd.ErrOrStderr())
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return teardown(cfg)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProbe(cmd, cfg, run)
		},
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf("targetprobe version %s\n  commit: %s\n  built:  %s\n", version, gitCommit, buildTime))

	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Enable verbose output")
	pf.BoolVar(&cfg.JSON, "json", false, "Output in JSON format")
	pf.StringVar(&cfg.LogLevel, "log-level", logging.LevelDebug, "Log level with --verbose (debug, info, warn, error)")
	pf.BoolVar(&cfg.Pprof, "pprof", false, "Enable CPU and memory profiling (writes cpu.prof and mem.prof to current directory)")

	f := rootCmd.Flags()
	f.StringVar(&cfg.ConfigFile, "config", "", "Profile file (.yaml, .yml or .toml)")
	f.StringVar(&cfg.Profile, "profile", "", "Profile to select from --config")
	f.StringVar(&cfg.Target, "target", "", "Target triple, e.g. x86_64-unknown-linux-gnu (default: the host)")
	f.StringSliceVarP(&cfg.Defines, "define", "D", nil, "Identification macro to define, e.g. __linux__ or _LIBCPP_VERSION=16000")
	f.StringSliceVarP(&cfg.IncludeDirs, "include-dir", "I", nil, "Include directory to search for headers")
	f.StringVar(&cfg.CC, "cc", "", "C compiler driver used to evaluate __has_include (clang gets --target, others must already target it)")
	f.BoolVar(&cfg.Zig, "zig", false, "Use zig cc as the compiler driver")
	f.BoolVar(&cfg.NoHasInclude, "no-has-include", false, "Treat conditional inclusion testing as unsupported")
	f.StringVar(&cfg.MarkerOut, "marker-out", "", "Write marker declarations to this Go file")
	f.StringVar(&cfg.MarkerPackage, "marker-package", "sysdep", "Package name for --marker-out")
	f.StringVar(&cfg.MarkerPrefix, "marker-prefix", marker.DefaultPrefix, "Prefix of marker type names")
	f.StringSliceVar(&cfg.Fixtures, "fixture", nil, "Header fixture whose applicable includes must resolve")
	f.IntVar(&cfg.LibcxxVersion, "libcxx-version", 0, "_LIBCPP_VERSION used for fixture version gates")

	rootCmd.MarkFlagsMutuallyExclusive("cc", "zig")
	rootCmd.MarkFlagsMutuallyExclusive("no-has-include", "cc")
	rootCmd.MarkFlagsMutuallyExclusive("no-has-include", "zig")

	rootCmd.AddCommand(newInspectCmd(cfg), newZigCmd(cfg, run))
	return rootCmd
}

var cpuProfile *os.File

func setup(cfg *Config, stderr io.Writer) error {
	if err := logging.Configure(stderr, logging.Options{
		Enabled: cfg.Verbose,
		Level:   cfg.LogLevel,
		JSON:    cfg.JSON,
	}); err != nil {
		return errWithCode(err, exitError)
	}

	if !cfg.Pprof {
		return nil
	}

	var err error
	cpuProfile, err = os.Create("cpu.prof")
	if err != nil {
		return fmt.Errorf("creating cpu.prof: %w", err)
	}
	if err := pprof.StartCPUProfile(cpuProfile); err != nil {
		_ = cpuProfile.Close()
		cpuProfile = nil
		return fmt.Errorf("starting CPU profile: %w", err)
	}
	slog.Info("cpu profiling started", "file", "cpu.prof")
	return nil
}

func teardown(cfg *Config) error {
	if !cfg.Pprof || cpuProfile == nil {
		return nil
	}

	pprof.StopCPUProfile()
	defer func() {
		_ = cpuProfile.Close()
		cpuProfile = nil
	}()
	slog.Info("cpu profiling stopped", "file", "cpu.prof")

	memFile, err := os.Create("mem.prof")
	if err != nil {
		return fmt.Errorf("creating mem.prof: %w", err)
	}
	defer memFile.Close()
	runtime.GC() // Get up-to-date statistics
	if err := pprof.WriteHeapProfile(memFile); err != nil {
		return fmt.Errorf("writing memory profile: %w", err)
	}
	slog.Info("memory profiling completed", "file", "mem.prof")
	return nil
}

func errWithCode(err error, code int) error {
	return &codedError{err: err, code: code}
}

type codedError struct {
	err  error
	code int
}

func (e *codedError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return ""
}

func (e *codedError) Unwrap() error { return e.err }

// exitCode maps an error returned by the root command to a process exit status.
func exitCode(err error) int {
	var cErr *codedError
	if errors.As(err, &cErr) {
		return cErr.code
	}
	return exitError
}
