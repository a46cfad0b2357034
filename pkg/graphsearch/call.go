package graphsearch

import (
	"context"
	"runtime/debug"
	"time"

	"golang.org/x/sync/singleflight"

	serrors "github.com/randalmurphal/graphsearch/pkg/graphsearch/errors"
)

// protect runs fn, converting a panic into a PanicError.
func protect[T any](op string, fn func() (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Op: op, Value: r, Stack: string(debug.Stack())}
		}
	}()
	return fn()
}

// isGoal runs the goal test of g, converting a panic into a PanicError.
func isGoal[S, A any](g GraphGenerator[S, A], state S) (bool, error) {
	return protect("goal test", func() (bool, error) { return g.IsGoal(state), nil })
}

// await runs fn and returns once fn finishes or ctx is done, whichever is
// first. After ctx is done fn gets up to slack to return on its own before
// it is abandoned; its result is then discarded and a cancellation or
// timeout error is returned instead.
func await[T any](ctx context.Context, op string, slack time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if ctx.Done() == nil {
		return protect(op, func() (T, error) { return fn(ctx) })
	}

	type outcome struct {
		v   T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := protect(op, func() (T, error) { return fn(ctx) })
		done <- outcome{v, err}
	}()

	var zero T
	select {
	case out := <-done:
		if err := serrors.FromContext(ctx, op); err != nil {
			return zero, err
		}
		return out.v, out.err
	case <-ctx.Done():
	}

	if slack > 0 {
		timer := time.NewTimer(slack)
		defer timer.Stop()
		select {
		case <-done:
		case <-timer.C:
		}
	}
	return zero, serrors.FromContext(ctx, op)
}

// flight runs fn once per key among concurrent callers. A caller whose
// own ctx is still live retries when the shared result was cut short by
// another caller's deadline or cancellation.
func flight[T any](ctx context.Context, g *singleflight.Group, key, op string, fn func() (T, error)) (T, error) {
	var zero T
	for {
		ch := g.DoChan(key, func() (any, error) { return fn() })
		select {
		case res := <-ch:
			if res.Err == nil {
				return res.Val.(T), nil
			}
			cat := serrors.Categorize(res.Err)
			if res.Shared && ctx.Err() == nil && (cat == serrors.CategoryCancelled || cat == serrors.CategoryTimeout) {
				continue
			}
			return zero, res.Err
		case <-ctx.Done():
			return zero, serrors.FromContext(ctx, op)
		}
	}
}
