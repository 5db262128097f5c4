package render

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Pool fans requests out over a fixed number of workers. Randomness stays
// per-request: every request derives its own generator from its seed, so
// results do not depend on scheduling.
type Pool struct {
	Renderer *Renderer
	Workers  int
}

// ResolveAll resolves every request and returns results in request order.
// Individual failures are joined into the returned error; successful
// entries are still populated.
func (p *Pool) ResolveAll(ctx context.Context, reqs []Request) ([]*Result, error) {
	workers := p.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(reqs) {
		workers = len(reqs)
	}

	results := make([]*Result, len(reqs))
	errs := make([]error, len(reqs))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				res, err := p.Renderer.Resolve(reqs[i])
				if err != nil {
					errs[i] = fmt.Errorf("%s: %w", reqs[i].Map, err)
					continue
				}
				results[i] = res
			}
		}()
	}

feed:
	for i := range reqs {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, errors.Join(errs...)
}
