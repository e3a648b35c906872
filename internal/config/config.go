// Package config loads the closed set of target profiles a build may select.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	yaml "gopkg.in/yaml.v3"

	"github.com/715d/targetprobe/pkg/platform"
)

// Profile is a named build target.
type Profile struct {
	// Name selects the profile with --profile.
	Name string `yaml:"name" toml:"name" validate:"required"`

	// Triple is the target triple, e.g. "x86_64-unknown-linux-gnu".
	Triple string `yaml:"triple,omitempty" toml:"triple,omitempty" validate:"required_without=Defines"`

	// Defines are extra identification macros; they override triple-derived ones.
	Defines []string `yaml:"defines,omitempty" toml:"defines,omitempty" validate:"required_without=Triple,dive,required"`

	// IncludeDirs is the include search path, in order.
	IncludeDirs []string `yaml:"include_dirs,omitempty" toml:"include_dirs,omitempty" validate:"dive,required"`

	// Compiler, when set, answers header probes by running this C compiler driver.
	Compiler []string `yaml:"compiler,omitempty" toml:"compiler,omitempty" validate:"dive,required"`

	// HasInclude set to false forces the degraded mode without header checks.
	HasInclude *bool `yaml:"has_include,omitempty" toml:"has_include,omitempty"`

	// LibcxxVersion is the _LIBCPP_VERSION used to select fixture includes.
	LibcxxVersion int `yaml:"libcxx_version,omitempty" toml:"libcxx_version,omitempty" validate:"gte=0"`

	// Fixtures are header fixture files whose applicable includes must resolve.
	Fixtures []string `yaml:"fixtures,omitempty" toml:"fixtures,omitempty" validate:"dive,required"`
}

// File is a profile file.
type File struct {
	Profiles []Profile `yaml:"profiles" toml:"profiles" validate:"required,min=1,unique=Name,dive"`

	// path is the file the profiles were loaded from, used to resolve relative paths.
	path string
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads a YAML (.yaml, .yml) or TOML (.toml) profile file and validates it.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile file: %w", err)
	}
	f, err := Parse(filepath.Ext(path), data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	f.path = path
	return f, nil
}

// Parse decodes profile file data in the format named by ext and validates it.
func Parse(ext string, data []byte) (*File, error) {
	f := &File{}
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(f); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(f); err != nil {
			return nil, fmt.Errorf("decode toml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported profile file extension %q", ext)
	}

	if err := validate.Struct(f); err != nil {
		return nil, fmt.Errorf("invalid profile file: %w", describe(err))
	}
	for i := range f.Profiles {
		if _, err := f.Profiles[i].Predicates(); err != nil {
			return nil, fmt.Errorf("profile %q: %w", f.Profiles[i].Name, err)
		}
	}
	return f, nil
}

// describe flattens validator errors into a readable message.
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// Names returns the profile names in file order.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Profiles))
	for _, p := range f.Profiles {
		names = append(names, p.Name)
	}
	return names
}

// Lookup returns the named profile with relative paths resolved against the profile file.
func (f *File) Lookup(name string) (*Profile, error) {
	idx := slices.IndexFunc(f.Profiles, func(p Profile) bool { return p.Name == name })
	if idx < 0 {
		return nil, fmt.Errorf("unknown profile %q (known: %s)", name, strings.Join(f.Names(), ", "))
	}
	p := f.Profiles[idx]
	if f.path != "" {
		base := filepath.Dir(f.path)
		p.IncludeDirs = resolve(base, p.IncludeDirs)
		p.Fixtures = resolve(base, p.Fixtures)
	}
	return &p, nil
}

func resolve(base string, paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		if filepath.IsAbs(p) {
			out[i] = p
		} else {
			out[i] = filepath.Join(base, p)
		}
	}
	return out
}

// Predicates returns the identification macros of the profile: those implied
// by the triple, overridden by the explicit defines.
func (p *Profile) Predicates() (platform.Predicates, error) {
	base := platform.Predicates{}
	if p.Triple != "" {
		t, err := platform.ParseTriple(p.Triple)
		if err != nil {
			return nil, err
		}
		base = t.Predicates()
	}
	defines, err := platform.ParsePredicates(p.Defines)
	if err != nil {
		return nil, err
	}
	return base.Merge(defines), nil
}
