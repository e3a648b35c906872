package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/715d/targetprobe/internal/config"
	"github.com/715d/targetprobe/internal/toolchain"
	"github.com/715d/targetprobe/pkg/fixture"
	"github.com/715d/targetprobe/pkg/marker"
	"github.com/715d/targetprobe/pkg/platform"
	"github.com/715d/targetprobe/pkg/probe"
)

// Result is the outcome of a probe run as printed to stdout.
type Result struct {
	Profile         string            `json:"profile,omitempty"`
	Target          string            `json:"target,omitempty"`
	Predicates      []string          `json:"predicates"`
	Prober          string            `json:"prober"`
	Report          *probe.Report     `json:"report"`
	Violation       string            `json:"violation,omitempty"`
	MissingIncludes []fixture.Include `json:"missing_includes,omitempty"`
	MarkerFile      string            `json:"marker_file,omitempty"`
	Duration        time.Duration     `json:"duration"`
}

// target is the resolved build target of a run.
type target struct {
	profile       *config.Profile
	triple        string
	predicates    platform.Predicates
	includeDirs   []string
	compiler      toolchain.Command
	hasInclude    bool
	libcxxVersion int
	fixtures      []string
}

func runProbe(cmd *cobra.Command, cfg *Config, run toolchain.Runner) error {
	ctx := cmd.Context()
	start := time.Now()

	tgt, err := resolveTarget(cfg)
	if err != nil {
		return errWithCode(err, exitError)
	}
	identity := platform.Resolve(tgt.predicates)
	slog.Info("resolved target", "identity", identity, "triple", tgt.triple, "predicates", tgt.predicates.Names())

	prober, proberName, err := newProber(ctx, cfg, tgt, run)
	if err != nil {
		return errWithCode(err, exitError)
	}

	result := &Result{
		Target:     tgt.triple,
		Predicates: tgt.predicates.Names(),
		Prober:     proberName,
	}
	if tgt.profile != nil {
		result.Profile = tgt.profile.Name
	}

	report, err := probe.Check(ctx, identity, prober)
	result.Report = report
	if err != nil {
		if errors.Is(err, probe.ErrInconsistent) {
			result.Violation = err.Error()
			result.Duration = time.Since(start)
			if werr := writeResults(cmd.OutOrStdout(), result, cfg); werr != nil {
				return errWithCode(fmt.Errorf("format results: %w", werr), exitError)
			}
			return errWithCode(err, exitInconsistent)
		}
		return errWithCode(fmt.Errorf("probe: %w", err), exitError)
	}

	if len(tgt.fixtures) > 0 && report.Supported {
		missing, err := checkFixtures(ctx, prober, tgt)
		if err != nil {
			return errWithCode(err, exitError)
		}
		result.MissingIncludes = missing
	}

	if cfg.MarkerOut != "" {
		if err := writeMarkers(cfg, report.Markers); err != nil {
			return errWithCode(err, exitError)
		}
		result.MarkerFile = cfg.MarkerOut
	}

	result.Duration = time.Since(start)
	if err := writeResults(cmd.OutOrStdout(), result, cfg); err != nil {
		return errWithCode(fmt.Errorf("format results: %w", err), exitError)
	}

	if len(result.MissingIncludes) > 0 {
		return errWithCode(fmt.Errorf("%d fixture include(s) do not resolve for %s", len(result.MissingIncludes), identity), exitError)
	}
	return nil
}

// resolveTarget merges the selected profile with command-line overrides.
// Without a profile, a triple or defines, the host is the target.
func resolveTarget(cfg *Config) (*target, error) {
	tgt := &target{hasInclude: !cfg.NoHasInclude}

	if cfg.ConfigFile != "" {
		file, err := config.Load(cfg.ConfigFile)
		if err != nil {
			return nil, err
		}
		name := cfg.Profile
		if name == "" {
			if len(file.Profiles) != 1 {
				return nil, fmt.Errorf("--profile is required, %s defines %s", cfg.ConfigFile, strings.Join(file.Names(), ", "))
			}
			name = file.Profiles[0].Name
		}
		p, err := file.Lookup(name)
		if err != nil {
			return nil, err
		}
		tgt.profile = p
		tgt.triple = p.Triple
		tgt.includeDirs = p.IncludeDirs
		tgt.compiler = p.Compiler
		tgt.libcxxVersion = p.LibcxxVersion
		tgt.fixtures = p.Fixtures
		if p.HasInclude != nil && !*p.HasInclude {
			tgt.hasInclude = false
		}
	} else if cfg.Profile != "" {
		return nil, errors.New("--profile requires --config")
	}

	if cfg.Target != "" {
		tgt.triple = cfg.Target
	}
	tgt.includeDirs = append(tgt.includeDirs, cfg.IncludeDirs...)
	tgt.fixtures = append(tgt.fixtures, cfg.Fixtures...)
	if cfg.LibcxxVersion != 0 {
		tgt.libcxxVersion = cfg.LibcxxVersion
	}
	if cfg.CC != "" {
		tgt.compiler = strings.Fields(cfg.CC)
	}

	var base platform.Predicates
	switch {
	case tgt.triple != "":
		t, err := platform.ParseTriple(tgt.triple)
		if err != nil {
			return nil, err
		}
		base = t.Predicates()
	case tgt.profile == nil && len(cfg.Defines) == 0:
		base = platform.Host()
	default:
		base = platform.Predicates{}
	}

	var profileDefines []string
	if tgt.profile != nil {
		profileDefines = tgt.profile.Defines
	}
	defines, err := platform.ParsePredicates(append(append([]string{}, profileDefines...), cfg.Defines...))
	if err != nil {
		return nil, err
	}
	tgt.predicates = base.Merge(defines)

	if tgt.libcxxVersion == 0 {
		if v, ok := tgt.predicates[fixture.VersionMacro]; ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("%s=%q is not a number", fixture.VersionMacro, v)
			}
			tgt.libcxxVersion = n
		}
	}
	return tgt, nil
}

// newProber picks how header availability is answered: not at all, by a
// compiler driver, or by the include search path.
func newProber(ctx context.Context, cfg *Config, tgt *target, run toolchain.Runner) (probe.Prober, string, error) {
	if !tgt.hasInclude {
		return probe.Unsupported(), "unsupported", nil
	}

	var args []string
	if cfg.Zig {
		zig, err := toolchain.FindZig(ctx, run)
		if err != nil {
			return nil, "", err
		}
		tgt.compiler = zig.CC()
		if tgt.triple != "" {
			zt, err := toolchain.ZigTarget(tgt.triple)
			if err != nil {
				return nil, "", err
			}
			args = append(args, "-target", zt)
		}
		if tgt.libcxxVersion == 0 {
			tgt.libcxxVersion = toolchain.LibcxxVersion(zig.Version)
		}
	} else if len(tgt.compiler) > 0 && tgt.triple != "" {
		// clang cross-compiles from any host; other drivers are built for one target.
		if isClang(tgt.compiler) {
			args = append(args, "--target="+tgt.triple)
		} else {
			slog.Warn("compiler does not take a target triple, assuming it already targets it", "compiler", tgt.compiler.String(), "triple", tgt.triple)
		}
	}

	if len(tgt.compiler) > 0 {
		for _, dir := range tgt.includeDirs {
			args = append(args, "-I", dir)
		}
		return probe.NewCompiler(tgt.compiler, args, run), "compiler: " + tgt.compiler.String(), nil
	}

	if len(tgt.includeDirs) > 0 {
		return probe.NewOSSearchPath(tgt.includeDirs...), "search path: " + strings.Join(tgt.includeDirs, string(filepath.ListSeparator)), nil
	}

	slog.Warn("no include directories or compiler configured, skipping header checks")
	return probe.Unsupported(), "unsupported", nil
}

// isClang reports whether the driver is clang, e.g. "clang", "clang-17" or
// "/usr/bin/clang++".
func isClang(cmd toolchain.Command) bool {
	return strings.HasPrefix(filepath.Base(cmd[0]), "clang")
}

func checkFixtures(ctx context.Context, prober probe.Prober, tgt *target) ([]fixture.Include, error) {
	inv := &fixture.Inventory{}
	for _, path := range tgt.fixtures {
		scanned, err := fixture.ScanFile(path)
		if err != nil {
			return nil, fmt.Errorf("scan fixture: %w", err)
		}
		inv.Merge(scanned)
	}

	includes := inv.Applicable(tgt.libcxxVersion)
	slog.Info("checking fixture includes", "fixtures", tgt.fixtures, "applicable", len(includes), "total", len(inv.Includes), "libcxx_version", tgt.libcxxVersion)

	missing, err := probe.CheckInventory(ctx, prober, includes)
	if err != nil {
		return nil, fmt.Errorf("check fixtures: %w", err)
	}
	return missing, nil
}

func writeMarkers(cfg *Config, markers []marker.Marker) error {
	src, err := marker.Render(cfg.MarkerPackage, cfg.MarkerPrefix, markers)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(cfg.MarkerOut); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create marker directory: %w", err)
		}
	}
	if err := os.WriteFile(cfg.MarkerOut, src, 0o644); err != nil {
		return fmt.Errorf("write markers: %w", err)
	}
	slog.Info("wrote markers", "file", cfg.MarkerOut, "count", len(markers))
	return nil
}
