// Package toolchain locates and drives the C toolchain used to answer header probes.
package toolchain

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner runs a command with stdin and returns its standard output.
type Runner func(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error)

// Exec is the default Runner, backed by os/exec.
func Exec(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return out, fmt.Errorf("%s: %w: %s", cmd.String(), err, msg)
		}
		return out, fmt.Errorf("%s: %w", cmd.String(), err)
	}
	return out, nil
}

// Command is a program plus the leading arguments needed to invoke it,
// for example ["python3", "-m", "ziglang"].
type Command []string

// With returns the full argument vector for running c with extra args.
func (c Command) With(args ...string) (string, []string) {
	full := make([]string, 0, len(c)-1+len(args))
	full = append(full, c[1:]...)
	full = append(full, args...)
	return c[0], full
}

func (c Command) String() string { return strings.Join(c, " ") }
