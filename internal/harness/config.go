// Package harness runs probe scenarios described by testdata/<scenario>/expected.yaml files.
package harness

// Configuration is one build environment within a scenario.
type Configuration struct {
	// Name is a descriptive name for this configuration.
	Name string `yaml:"name"`

	// Target is an optional target triple contributing identification macros.
	Target string `yaml:"target,omitempty"`

	// Defines are identification macros, e.g. __linux__.
	Defines []string `yaml:"defines,omitempty"`

	// HasInclude reports whether the toolchain supports conditional-inclusion testing.
	// Nil means supported.
	HasInclude *bool `yaml:"has_include,omitempty"`

	// Headers are the headers resolvable in the include search path.
	Headers []string `yaml:"headers,omitempty"`

	// IncludeDir is a directory, relative to the scenario, searched in addition to Headers.
	IncludeDir string `yaml:"include_dir,omitempty"`

	// Fixtures are header fixtures, relative to the scenario, whose applicable includes must resolve.
	Fixtures []string `yaml:"fixtures,omitempty"`

	// LibcxxVersion selects fixture includes by version gate.
	LibcxxVersion int `yaml:"libcxx_version,omitempty"`

	// ExpectedIdentity is the platform the configuration must resolve to.
	ExpectedIdentity string `yaml:"expected_identity"`

	// ExpectedMarkers lists the marker names expected to be emitted.
	ExpectedMarkers []string `yaml:"expected_markers"`

	// ExpectedError is the exact diagnostic expected, empty for success.
	ExpectedError string `yaml:"expected_error,omitempty"`

	// ExpectedMissing lists fixture includes expected not to resolve.
	ExpectedMissing []string `yaml:"expected_missing,omitempty"`
}

// Scenario is a set of configurations sharing a testdata directory.
type Scenario struct {
	// Dir is the scenario directory relative to the testdata root.
	Dir string `yaml:"-"`

	// Description explains what the scenario exercises.
	Description string `yaml:"description"`

	// Configurations are run independently.
	Configurations []Configuration `yaml:"configurations"`
}
