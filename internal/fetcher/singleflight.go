package fetcher

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Group wraps fetch operations with singleflight so concurrent requests
// for the same curriculum share one upstream fetch.
type Group struct {
	group singleflight.Group
}

// NewGroup creates a new singleflight group.
func NewGroup() *Group {
	return &Group{}
}

// Do executes fn for key, deduplicating concurrent calls. The second
// return value reports whether this caller shared another caller's result.
func (g *Group) Do(ctx context.Context, key string, fn func() (interface{}, error)) (interface{}, bool, error) {
	result, err, shared := g.group.Do(key, func() (interface{}, error) {
		// Check context before executing
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		return fn()
	})

	return result, shared, err
}
