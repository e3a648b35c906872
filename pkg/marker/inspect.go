package marker

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"slices"
	"strings"

	"golang.org/x/tools/go/packages"
)

// Parse returns the markers declared at top level in a Go source file.
func Parse(filename string, src []byte, prefix string) ([]Marker, error) {
	file, err := parser.ParseFile(token.NewFileSet(), filename, src, parser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}

	var markers []Marker
	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.TYPE {
			continue
		}
		for _, spec := range gen.Specs {
			if m, ok := fromTypeName(spec.(*ast.TypeSpec).Name.Name, prefix); ok {
				markers = append(markers, m)
			}
		}
	}
	return sortMarkers(markers), nil
}

// Markers are unexported, so packages are type-checked from source;
// export data only carries exported names.
const loadMode = packages.NeedName | packages.NeedTypes | packages.NeedFiles |
	packages.NeedSyntax | packages.NeedTypesInfo

// Find loads the Go packages matching patterns under dir and returns the
// markers declared in their package scopes.
func Find(ctx context.Context, dir, prefix string, patterns ...string) ([]Marker, error) {
	if len(patterns) == 0 {
		patterns = []string{"."}
	}

	cfg := &packages.Config{
		Context: ctx,
		Mode:    loadMode,
		Dir:     dir,
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("loading packages: %w", err)
	}

	var errorMessages []string
	var markers []Marker
	for _, pkg := range pkgs {
		for _, err := range pkg.Errors {
			errorMessages = append(errorMessages, fmt.Sprintf("package %s: %v", pkg.PkgPath, err))
		}
		if pkg.Types == nil {
			continue
		}
		scope := pkg.Types.Scope()
		for _, name := range scope.Names() {
			if _, ok := scope.Lookup(name).(*types.TypeName); !ok {
				continue
			}
			if m, ok := fromTypeName(name, prefix); ok {
				markers = append(markers, m)
			}
		}
	}
	if len(errorMessages) > 0 {
		return nil, fmt.Errorf("package errors:\n%s", strings.Join(errorMessages, "\n"))
	}
	return sortMarkers(markers), nil
}

func fromTypeName(typeName, prefix string) (Marker, bool) {
	name, ok := strings.CutPrefix(typeName, prefix)
	if !ok {
		return Marker{}, false
	}
	id, ok := lookupName(name)
	if !ok {
		return Marker{}, false
	}
	return Marker{Platform: id, Name: name}, true
}

func sortMarkers(markers []Marker) []Marker {
	slices.SortFunc(markers, func(a, b Marker) int { return strings.Compare(a.Name, b.Name) })
	return slices.CompactFunc(markers, func(a, b Marker) bool { return a == b })
}
