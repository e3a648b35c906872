package harness

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	yaml "gopkg.in/yaml.v3"

	"github.com/stretchr/testify/require"

	"github.com/715d/targetprobe/pkg/probe"
)

// LoadScenario loads the expected.yaml of a scenario directory.
func LoadScenario(t *testing.T, dir, root string) *Scenario {
	t.Helper()
	yamlPath := filepath.Join(dir, "expected.yaml")

	sc := &Scenario{}
	data, err := os.ReadFile(yamlPath)
	require.NoError(t, err)
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	require.NoError(t, dec.Decode(sc), "decode %s", yamlPath)

	relPath, err := filepath.Rel(root, dir)
	if err != nil {
		sc.Dir = filepath.Base(dir)
	} else {
		sc.Dir = relPath
	}
	return sc
}

// DiscoverScenarios returns every scenario directory under root holding an expected.yaml.
func DiscoverScenarios(t *testing.T, root string) []*Scenario {
	t.Helper()

	entries, err := os.ReadDir(root)
	require.NoError(t, err)

	var scenarios []*Scenario
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		if _, err := os.Stat(filepath.Join(dir, "expected.yaml")); err == nil {
			scenarios = append(scenarios, LoadScenario(t, dir, root))
		}
	}
	return scenarios
}

// includeProber builds the search path of a configuration: a temporary directory
// holding the listed headers, then the scenario's include directory.
func includeProber(t *testing.T, scenarioDir string, cfg Configuration) probe.Prober {
	t.Helper()
	if cfg.HasInclude != nil && !*cfg.HasInclude {
		return probe.Unsupported()
	}

	listed := t.TempDir()
	for _, h := range cfg.Headers {
		path := filepath.Join(listed, filepath.FromSlash(h))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, nil, 0o644))
	}

	dirs := []string{listed}
	if cfg.IncludeDir != "" {
		dirs = append(dirs, filepath.Join(scenarioDir, cfg.IncludeDir))
	}
	return probe.NewOSSearchPath(dirs...)
}
