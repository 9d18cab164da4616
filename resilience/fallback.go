package resilience

// WithFallback runs fn and, on any failure, resolves with the fallback
// factory's value instead. The primary error terminates here: the factory
// receives it for inspection but the call itself never fails.
func WithFallback[T any](fn func() (T, error), fallback func(err error) T) (T, error) {
	result, err := fn()
	if err != nil {
		return fallback(err), nil
	}
	return result, nil
}

// WithFallbackValue runs fn and substitutes a static value on any failure.
func WithFallbackValue[T any](fn func() (T, error), value T) (T, error) {
	return WithFallback(fn, func(error) T { return value })
}
