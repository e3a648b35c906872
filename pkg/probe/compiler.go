package probe

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/715d/targetprobe/internal/toolchain"
)

// Output tokens the preprocessor snippets print when a condition holds.
const (
	tokenSupported = "targetprobe_has_include_supported"
	tokenFound     = "targetprobe_header_found"
)

const supportSnippet = `#if defined __has_include
` + tokenSupported + `
#endif
`

// Compiler answers probes by running a C preprocessor over __has_include snippets,
// so the answer reflects exactly the include search the toolchain will use.
type Compiler struct {
	cmd  toolchain.Command
	args []string
	run  toolchain.Runner

	supportMu    sync.Mutex
	supportKnown bool
	supported    bool

	cache *xsync.Map[string, bool]
}

// NewCompiler creates a Compiler prober. cmd invokes the C compiler driver,
// e.g. ["cc"] or ["zig", "cc"]; args are passed before the preprocessing flags,
// e.g. "-target", "x86_64-linux-gnu" or "-I", "include". A nil run uses toolchain.Exec.
func NewCompiler(cmd toolchain.Command, args []string, run toolchain.Runner) *Compiler {
	if run == nil {
		run = toolchain.Exec
	}
	return &Compiler{
		cmd:   cmd,
		args:  args,
		run:   run,
		cache: xsync.NewMap[string, bool](),
	}
}

// Supported reports whether the preprocessor defines __has_include.
// A successful answer is kept; failed queries are retried on the next call.
func (c *Compiler) Supported(ctx context.Context) (bool, error) {
	c.supportMu.Lock()
	defer c.supportMu.Unlock()
	if c.supportKnown {
		return c.supported, nil
	}

	out, err := c.preprocess(ctx, supportSnippet)
	if err != nil {
		return false, fmt.Errorf("query __has_include support: %w", err)
	}
	c.supported = containsToken(out, tokenSupported)
	c.supportKnown = true
	slog.Debug("conditional inclusion support", "command", c.cmd.String(), "supported", c.supported)
	return c.supported, nil
}

// HasInclude evaluates __has_include(<header>) with the configured toolchain.
func (c *Compiler) HasInclude(ctx context.Context, header string) (bool, error) {
	if err := validateHeader(header); err != nil {
		return false, err
	}
	if found, ok := c.cache.Load(header); ok {
		return found, nil
	}

	snippet := fmt.Sprintf("#if __has_include(<%s>)\n%s\n#endif\n", header, tokenFound)
	out, err := c.preprocess(ctx, snippet)
	if err != nil {
		return false, fmt.Errorf("probe %s: %w", header, err)
	}
	found := containsToken(out, tokenFound)
	c.cache.Store(header, found)
	return found, nil
}

func (c *Compiler) preprocess(ctx context.Context, src string) ([]byte, error) {
	if len(c.cmd) == 0 {
		return nil, fmt.Errorf("no compiler command configured")
	}
	args := make([]string, 0, len(c.args)+5)
	args = append(args, c.args...)
	args = append(args, "-E", "-P", "-x", "c", "-")
	name, full := c.cmd.With(args...)
	return c.run(ctx, []byte(src), name, full...)
}

// containsToken reports whether tok appears as a whole line of preprocessor output.
func containsToken(out []byte, tok string) bool {
	for line := range bytes.Lines(out) {
		if string(bytes.TrimSpace(line)) == tok {
			return true
		}
	}
	return false
}
