package probe

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func TestSearchPath_HasInclude(t *testing.T) {
	fsys := fstest.MapFS{
		"usr/include/linux/netfilter.h": {},
		"usr/include/stdio.h":           {},
		"opt/sdk/include/winsock2.h":    {},
		"opt/sdk/include/mach":          {Mode: os.ModeDir},
	}
	sp := NewSearchPath(fsys, "/usr/include", "opt/sdk/include")

	tests := []struct {
		header string
		want   bool
	}{
		{header: "linux/netfilter.h", want: true},
		{header: "stdio.h", want: true},
		{header: "winsock2.h", want: true},
		{header: "mach/mach_time.h", want: false},
		{header: "mach", want: false},
		{header: "stdio.h/nested.h", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got, err := sp.HasInclude(t.Context(), tt.header)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}

	supported, err := sp.Supported(t.Context())
	require.NoError(t, err)
	require.True(t, supported)
}

func TestSearchPath_InvalidHeader(t *testing.T) {
	sp := NewSearchPath(fstest.MapFS{}, "include")

	for _, header := range []string{"", "/etc/passwd", "../secret.h", "a/../../b.h", "win\\sock.h", "<stdio.h>"} {
		_, err := sp.HasInclude(t.Context(), header)
		require.Error(t, err, "header %q", header)
	}
}

func TestSearchPath_Memoises(t *testing.T) {
	fsys := fstest.MapFS{"include/zlib.h": {}}
	sp := NewSearchPath(fsys, "include")

	found, err := sp.HasInclude(t.Context(), "zlib.h")
	require.NoError(t, err)
	require.True(t, found)

	delete(fsys, "include/zlib.h")
	found, err = sp.HasInclude(t.Context(), "zlib.h")
	require.NoError(t, err)
	require.True(t, found, "answers are fixed for the lifetime of a SearchPath")
}

func TestOSSearchPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "mach"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mach", "mach_time.h"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stdio.h"), nil, 0o644))

	sp := NewOSSearchPath(filepath.Join(dir, "missing"), dir)
	require.Equal(t, []string{filepath.Join(dir, "missing"), dir}, sp.Dirs())

	found, err := sp.HasInclude(t.Context(), "mach/mach_time.h")
	require.NoError(t, err)
	require.True(t, found)

	found, err = sp.HasInclude(t.Context(), "winsock2.h")
	require.NoError(t, err)
	require.False(t, found)

	// A regular file used as a directory component is a miss, not an error.
	found, err = sp.HasInclude(t.Context(), "stdio.h/nested.h")
	require.NoError(t, err)
	require.False(t, found)
}

func TestUnsupported(t *testing.T) {
	p := Unsupported()

	supported, err := p.Supported(t.Context())
	require.NoError(t, err)
	require.False(t, supported)

	_, err = p.HasInclude(t.Context(), "winsock2.h")
	require.Error(t, err)
}
