package harness

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/715d/targetprobe/pkg/fixture"
	"github.com/715d/targetprobe/pkg/platform"
	"github.com/715d/targetprobe/pkg/probe"
)

// TestHarness runs scenarios found under a testdata root.
type TestHarness struct {
	// root is the root directory for test data
	root string
}

// NewHarness creates a new test harness.
func NewHarness(root string) *TestHarness {
	return &TestHarness{root: root}
}

// ConfigurationResult represents the result of running a single configuration.
type ConfigurationResult struct {
	// Configuration is the configuration that was run.
	Configuration Configuration

	// Report is the probe report, nil when the probe failed before producing one.
	Report *probe.Report

	// Success indicates if this configuration passed.
	Success bool

	// Message provides a summary of the result for this configuration.
	Message string

	// Details provides detailed information about failures for this configuration.
	Details []string
}

// TestResult represents the result of running a scenario.
type TestResult struct {
	// Scenario is the scenario that was run.
	Scenario *Scenario

	// ConfigurationResults contains results for each configuration.
	ConfigurationResults []ConfigurationResult

	// Success indicates if all configurations passed.
	Success bool

	// Message provides a summary of the result.
	Message string
}

// Run executes every configuration of sc.
func (h *TestHarness) Run(t *testing.T, sc *Scenario) *TestResult {
	t.Helper()
	require.NotEmpty(t, sc.Configurations, "scenario has no configurations")

	var results []ConfigurationResult
	allSuccess := true
	for _, cfg := range sc.Configurations {
		cfgResult := h.runConfiguration(t, sc, cfg)
		results = append(results, *cfgResult)
		if !cfgResult.Success {
			allSuccess = false
		}
	}

	var resultMsg string
	if allSuccess {
		resultMsg = fmt.Sprintf("All %d configurations passed", len(sc.Configurations))
	} else {
		failedCount := 0
		var msgs []string
		for _, cr := range results {
			if !cr.Success {
				failedCount++
				msgs = append(msgs, fmt.Sprintf("[%s] %s:\n  %s",
					cr.Configuration.Name, cr.Message, strings.Join(cr.Details, "\n  ")))
			}
		}
		resultMsg = fmt.Sprintf("%d/%d configurations failed:\n%s",
			failedCount, len(sc.Configurations), strings.Join(msgs, "\n"))
	}

	return &TestResult{
		Scenario:             sc,
		ConfigurationResults: results,
		Success:              allSuccess,
		Message:              resultMsg,
	}
}

// runConfiguration resolves, checks and compares a single configuration.
func (h *TestHarness) runConfiguration(t *testing.T, sc *Scenario, cfg Configuration) *ConfigurationResult {
	t.Helper()
	scenarioDir := filepath.Join(h.root, sc.Dir)

	predicates := platform.Predicates{}
	if cfg.Target != "" {
		triple, err := platform.ParseTriple(cfg.Target)
		require.NoError(t, err)
		predicates = triple.Predicates()
	}
	defines, err := platform.ParsePredicates(cfg.Defines)
	require.NoError(t, err)
	predicates = predicates.Merge(defines)

	identity := platform.Resolve(predicates)
	prober := includeProber(t, scenarioDir, cfg)

	report, err := probe.Check(t.Context(), identity, prober)
	if err != nil && !errors.Is(err, probe.ErrInconsistent) {
		require.NoError(t, err)
	}

	var missing []string
	if err == nil && report.Supported && len(cfg.Fixtures) > 0 {
		inv := &fixture.Inventory{}
		for _, f := range cfg.Fixtures {
			scanned, scanErr := fixture.ScanFile(filepath.Join(scenarioDir, f))
			require.NoError(t, scanErr)
			inv.Merge(scanned)
		}
		unresolved, checkErr := probe.CheckInventory(t.Context(), prober, inv.Applicable(cfg.LibcxxVersion))
		require.NoError(t, checkErr)
		for _, inc := range unresolved {
			missing = append(missing, inc.Name)
		}
	}

	return validateConfigurationResults(cfg, identity, report, err, missing)
}

// validateConfigurationResults compares actual results with the expectations of cfg.
func validateConfigurationResults(cfg Configuration, identity platform.Identity, report *probe.Report, checkErr error, missing []string) *ConfigurationResult {
	cfgResult := &ConfigurationResult{Configuration: cfg, Report: report}
	var details []string

	if string(identity) != cfg.ExpectedIdentity {
		details = append(details, fmt.Sprintf("identity: expected %q, got %q", cfg.ExpectedIdentity, identity))
	}

	switch {
	case checkErr == nil && cfg.ExpectedError != "":
		details = append(details, fmt.Sprintf("expected error %q, probe succeeded", cfg.ExpectedError))
	case checkErr != nil && checkErr.Error() != cfg.ExpectedError:
		details = append(details, fmt.Sprintf("error: expected %q, got %q", cfg.ExpectedError, checkErr.Error()))
	}

	var markers []string
	if report != nil {
		for _, m := range report.Markers {
			markers = append(markers, m.Name)
		}
	}
	if !slices.Equal(markers, cfg.ExpectedMarkers) {
		details = append(details, fmt.Sprintf("markers: expected %v, got %v", cfg.ExpectedMarkers, markers))
	}

	if !slices.Equal(missing, cfg.ExpectedMissing) {
		details = append(details, fmt.Sprintf("missing includes: expected %v, got %v", cfg.ExpectedMissing, missing))
	}

	cfgResult.Success = len(details) == 0
	cfgResult.Details = details
	if cfgResult.Success {
		cfgResult.Message = "probe matched expectations"
	} else {
		cfgResult.Message = fmt.Sprintf("Test failed: %d mismatch(es)", len(details))
	}
	return cfgResult
}
