package probe

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/715d/targetprobe/pkg/marker"
	"github.com/715d/targetprobe/pkg/platform"
)

// Report is the outcome of a consistency check.
type Report struct {
	// Identity is the resolved target platform.
	Identity platform.Identity `json:"identity"`
	// Supported is false when conditional-inclusion testing was unavailable
	// and header corroboration was skipped.
	Supported bool `json:"has_include_supported"`
	// Headers holds the availability signal of each platform's characteristic
	// header. It is empty when Supported is false.
	Headers map[platform.Identity]bool `json:"headers,omitempty"`
	// Markers are the markers declared for the confirmed platform.
	Markers []marker.Marker `json:"markers"`
}

// Check corroborates id against the characteristic headers visible to p.
// It returns a *Violation for the first disagreeing platform in Linux, Windows,
// macOS order. When p does not support conditional-inclusion testing the
// corroboration is skipped and the report still carries the marker for id.
func Check(ctx context.Context, id platform.Identity, p Prober) (*Report, error) {
	report := &Report{Identity: id}

	supported, err := p.Supported(ctx)
	if err != nil {
		return nil, fmt.Errorf("check %s: %w", id, err)
	}
	report.Supported = supported
	if !supported {
		slog.Info("conditional inclusion testing unsupported, skipping header checks", "identity", id)
		report.Markers = marker.Emit(id)
		return report, nil
	}

	found := make([]bool, len(platform.Platforms))
	g, gctx := errgroup.WithContext(ctx)
	for i, plat := range platform.Platforms {
		header, _ := platform.CharacteristicHeader(plat)
		g.Go(func() error {
			ok, err := p.HasInclude(gctx, header)
			if err != nil {
				return err
			}
			found[i] = ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("check %s: %w", id, err)
	}

	report.Headers = make(map[platform.Identity]bool, len(found))
	for i, plat := range platform.Platforms {
		report.Headers[plat] = found[i]
	}

	for i, plat := range platform.Platforms {
		header, _ := platform.CharacteristicHeader(plat)
		slog.Debug("characteristic header", "platform", plat, "header", header, "found", found[i])
		switch {
		case plat == id && !found[i]:
			return report, &Violation{Platform: plat, Header: header, Expected: true}
		case plat != id && found[i]:
			return report, &Violation{Platform: plat, Header: header, Expected: false}
		}
	}

	report.Markers = marker.Emit(id)
	return report, nil
}
