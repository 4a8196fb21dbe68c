package rate

import "errors"

var (
	// ErrRateLimited is returned when a window or bucket is exhausted.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable is returned when the counter backend cannot be reached.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
