package probe

import (
	"context"
	"fmt"
	goruntime "runtime"

	"golang.org/x/sync/errgroup"

	"github.com/715d/targetprobe/pkg/fixture"
)

// CheckInventory probes every include and returns those that do not resolve, in input order.
func CheckInventory(ctx context.Context, p Prober, includes []fixture.Include) ([]fixture.Include, error) {
	// Each goroutine writes only its own index.
	found := make([]bool, len(includes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(goruntime.NumCPU())
	for idx, inc := range includes {
		g.Go(func() error {
			ok, err := p.HasInclude(gctx, inc.Name)
			if err != nil {
				return fmt.Errorf("%s:%d: %w", inc.File, inc.Line, err)
			}
			found[idx] = ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var missing []fixture.Include
	for idx, inc := range includes {
		if !found[idx] {
			missing = append(missing, inc)
		}
	}
	return missing, nil
}
