package query

import "context"

// Query is Fetch for a typed fetch function. On failure it returns the last
// good value, if any, together with the error.
func Query[T any](ctx context.Context, c *Cache, key Key, fn func(context.Context) (T, error), opts ...Option) (T, error) {
	res, err := c.Fetch(ctx, key, func(ctx context.Context) (any, error) {
		return fn(ctx)
	}, opts...)
	v, _ := res.Data.(T)
	return v, err
}

// Watch is Subscribe for a typed fetch function.
func Watch[T any](c *Cache, key Key, fn func(context.Context) (T, error), listener func(T, Result), opts ...Option) *Subscription {
	return c.Subscribe(key, func(ctx context.Context) (any, error) {
		return fn(ctx)
	}, func(r Result) {
		v, _ := r.Data.(T)
		listener(v, r)
	}, opts...)
}

// Mutate runs fn and, only if it succeeds, invalidates every entry under the
// given key prefixes. A failed mutation leaves the cache untouched.
func (c *Cache) Mutate(ctx context.Context, fn func(context.Context) error, invalidate ...Key) error {
	if err := fn(ctx); err != nil {
		return err
	}
	c.Invalidate(invalidate...)
	return nil
}

// Mutation is Mutate for a function that returns a value.
func Mutation[T any](ctx context.Context, c *Cache, fn func(context.Context) (T, error), invalidate ...Key) (T, error) {
	var out T
	err := c.Mutate(ctx, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	}, invalidate...)
	return out, err
}
