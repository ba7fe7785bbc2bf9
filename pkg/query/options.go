package query

import "time"

// Option configures a Fetch or Subscribe call.
type Option func(*options)

type options struct {
	staleTime       time.Duration
	enabled         bool
	refetchInterval func(data any, err error) time.Duration
}

func (c *Cache) buildOptions(opts []Option) options {
	o := options{staleTime: c.cfg.StaleTime, enabled: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithStaleTime sets how long fetched data counts as fresh.
func WithStaleTime(d time.Duration) Option {
	return func(o *options) { o.staleTime = d }
}

// Enabled gates the query. A disabled query never calls its fetch function.
func Enabled(enabled bool) Option {
	return func(o *options) { o.enabled = enabled }
}

// WithRefetchInterval polls a subscription. fn is evaluated after every
// completed fetch with the latest data and error; a result <= 0 stops
// polling until the next completion.
func WithRefetchInterval(fn func(data any, err error) time.Duration) Option {
	return func(o *options) { o.refetchInterval = fn }
}

// Every polls a subscription at a fixed interval.
func Every(d time.Duration) Option {
	return WithRefetchInterval(func(any, error) time.Duration { return d })
}

// RefetchWhen is WithRefetchInterval for a typed query. fn receives the zero
// value of T when no data has been fetched.
func RefetchWhen[T any](fn func(data T, err error) time.Duration) Option {
	return WithRefetchInterval(func(data any, err error) time.Duration {
		v, _ := data.(T)
		return fn(v, err)
	})
}
