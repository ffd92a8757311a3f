// Package batch runs upstream lookups in fixed-size concurrent windows with a
// pause between windows, keeping request bursts under provider rate limits.
package batch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Defaults used when Options fields are left zero.
const (
	DefaultSize  = 10
	DefaultDelay = 250 * time.Millisecond
)

// ProgressFunc is called after each completed item.
// done is the number of items finished so far, total is the input length.
type ProgressFunc func(done, total int)

// Options controls windowing.
type Options struct {
	Size     int           // items per window, all in flight at once
	Delay    time.Duration // pause between windows, never after the last
	Progress ProgressFunc
}

func (o Options) withDefaults() Options {
	if o.Size < 1 {
		o.Size = DefaultSize
	}
	if o.Delay < 0 {
		o.Delay = 0
	} else if o.Delay == 0 {
		o.Delay = DefaultDelay
	}
	return o
}

// NoDelay returns o with the inter-window pause disabled.
func (o Options) NoDelay() Options {
	o.Delay = -1
	return o
}

// Process applies op to every item and returns results in input order.
// Items are split into windows of opts.Size; every item of a window runs
// concurrently and the next window starts only after the whole window
// finished and opts.Delay elapsed. The first failure cancels the window,
// stops further windows and is returned with nil results.
func Process[T, R any](ctx context.Context, items []T, op func(context.Context, T) (R, error), opts Options) ([]R, error) {
	opts = opts.withDefaults()
	results := make([]R, len(items))
	var done atomic.Int64

	err := windows(ctx, len(items), opts, func(gctx context.Context, g *errgroup.Group, i int) {
		g.Go(func() error {
			r, err := op(gctx, items[i])
			if err != nil {
				return err
			}
			results[i] = r
			if opts.Progress != nil {
				opts.Progress(int(done.Add(1)), len(items))
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Aggregate applies op to every item and counts the keys it emits.
// Windowing and failure behavior match Process; input order is not tracked.
func Aggregate[T any](ctx context.Context, items []T, op func(context.Context, T) ([]string, error), opts Options) (map[string]int, error) {
	opts = opts.withDefaults()
	counts := make(map[string]int)
	var (
		mu   sync.Mutex
		done atomic.Int64
	)

	err := windows(ctx, len(items), opts, func(gctx context.Context, g *errgroup.Group, i int) {
		g.Go(func() error {
			keys, err := op(gctx, items[i])
			if err != nil {
				return err
			}
			mu.Lock()
			for _, k := range keys {
				counts[k]++
			}
			mu.Unlock()
			if opts.Progress != nil {
				opts.Progress(int(done.Add(1)), len(items))
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// windows drives the window loop. launch schedules item i on the window's group.
func windows(ctx context.Context, n int, opts Options, launch func(context.Context, *errgroup.Group, int)) error {
	for start := 0; start < n; start += opts.Size {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := min(start+opts.Size, n)
		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			launch(gctx, g, i)
		}
		if err := g.Wait(); err != nil {
			return err
		}

		if end < n && opts.Delay > 0 {
			if err := sleep(ctx, opts.Delay); err != nil {
				return err
			}
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
