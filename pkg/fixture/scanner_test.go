package fixture

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const libcxxFixture = `// libcxx versions vendored by the toolchain:
//
// 13.0.0 (13000), 15.0.3 (15003), 16.0.1 (160001)

#include <algorithm>
#include <any>
#if _LIBCPP_VERSION >= 15000
	#include <coroutine>
#endif
#include <cstdint>
#if _LIBCPP_VERSION >= 160000
	#include <memory_resource>
#endif
//#include <stop_token> // not yet supported
#include <strstream>
#include "isoc.h"
`

func TestScan(t *testing.T) {
	inv, err := Scan("isocpp.hpp", strings.NewReader(libcxxFixture))
	require.NoError(t, err)

	var names []string
	for _, inc := range inv.Includes {
		names = append(names, inc.Name)
	}
	require.Equal(t, []string{"algorithm", "any", "coroutine", "cstdint", "memory_resource", "strstream", "isoc.h"}, names)

	coroutine := inv.Includes[2]
	require.Equal(t, Include{Name: "coroutine", System: true, File: "isocpp.hpp", Line: 8, MinVersion: 15000}, coroutine)

	isoc := inv.Includes[6]
	require.False(t, isoc.System)
	require.Equal(t, 16, isoc.Line)
}

func TestInventory_Applicable(t *testing.T) {
	inv, err := Scan("isocpp.hpp", strings.NewReader(libcxxFixture))
	require.NoError(t, err)

	tests := []struct {
		name    string
		version int
		want    []string
	}{
		{name: "unknown_version", version: 0, want: []string{"algorithm", "any", "cstdint", "strstream", "isoc.h"}},
		{name: "libcxx_13", version: 13000, want: []string{"algorithm", "any", "cstdint", "strstream", "isoc.h"}},
		{name: "libcxx_15", version: 15003, want: []string{"algorithm", "any", "coroutine", "cstdint", "strstream", "isoc.h"}},
		{name: "libcxx_16", version: 160001, want: []string{"algorithm", "any", "coroutine", "cstdint", "memory_resource", "strstream", "isoc.h"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, inc := range inv.Applicable(tt.version) {
				got = append(got, inc.Name)
			}
			require.Equal(t, tt.want, got)
		})
	}
}

func TestScan_ElseAndConditions(t *testing.T) {
	input := `#if _LIBCPP_VERSION >= 15000
#include <new_header>
#else
#include <old_header>
#endif
#ifdef _WIN32
#include <winsock2.h>
#elif defined __linux__
#include <linux/netfilter.h>
#endif
#if defined __has_include
#  include <version> /* probe */
#endif
`
	inv, err := Scan("gates.h", strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, inv.Includes, 5)

	require.Equal(t, 15000, inv.Includes[0].MinVersion)
	require.Equal(t, 0, inv.Includes[1].MinVersion)
	require.Equal(t, 15000, inv.Includes[1].MaxVersion)
	require.Equal(t, []string{"defined _WIN32"}, inv.Includes[2].Conditions)
	require.Equal(t, []string{"!(defined _WIN32) && defined __linux__"}, inv.Includes[3].Conditions)
	require.Equal(t, "version", inv.Includes[4].Name)
	require.Equal(t, []string{"defined __has_include"}, inv.Includes[4].Conditions)

	var applicable []string
	for _, inc := range inv.Applicable(13000) {
		applicable = append(applicable, inc.Name)
	}
	require.Equal(t, []string{"old_header"}, applicable)
}

func TestScan_Unbalanced(t *testing.T) {
	tests := map[string]string{
		"unterminated": "#if _LIBCPP_VERSION >= 15000\n#include <a>\n",
		"stray_endif":  "#include <a>\n#endif\n",
		"stray_else":   "#else\n",
		"elif_first":   "#elif X\n",
	}

	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Scan("bad.h", strings.NewReader(input))
			require.Error(t, err)
		})
	}
}

func TestInventory_Merge(t *testing.T) {
	a, err := Scan("a.h", strings.NewReader("#include <a.h>\n"))
	require.NoError(t, err)
	b, err := Scan("b.h", strings.NewReader("#include <b.h>\n"))
	require.NoError(t, err)

	a.Merge(b)
	require.Len(t, a.Includes, 2)
	require.Equal(t, "b.h", a.Includes[1].File)
}
