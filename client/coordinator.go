package client

import (
	"context"

	"golang.org/x/sync/singleflight"
)

const refreshKey = "refresh"

// Coordinator lets at most one refresh run at a time. Callers that arrive
// while one is in flight wait for it and share its result.
type Coordinator struct {
	group singleflight.Group
}

func NewCoordinator() *Coordinator {
	return &Coordinator{}
}

// RunExclusive runs fn unless a run is already in flight. The run itself is
// detached from ctx so that one caller giving up does not fail the others.
func (c *Coordinator) RunExclusive(ctx context.Context, fn func(context.Context) (string, error)) (string, error) {
	ch := c.group.DoChan(refreshKey, func() (any, error) {
		return fn(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}
