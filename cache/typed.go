package cache

import "context"

// Fetch is GetOrCompute for typed values, encoded with the coordinator's serializer
func Fetch[T any](ctx context.Context, c *Coordinator, key string, fn func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	var zero T
	raw, err := c.GetOrCompute(ctx, key, func(ctx context.Context) ([]byte, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return c.serializer.Serialize(v)
	}, opts...)
	if err != nil {
		return zero, err
	}
	var out T
	if err := c.serializer.Deserialize(raw, &out); err != nil {
		return zero, err
	}
	return out, nil
}

// Lookup reads a typed value without computing. found is false on a miss.
func Lookup[T any](ctx context.Context, c *Coordinator, key string) (value T, found bool, err error) {
	raw, ok := c.Get(ctx, key)
	if !ok {
		return value, false, nil
	}
	if err := c.serializer.Deserialize(raw, &value); err != nil {
		return value, false, err
	}
	return value, true, nil
}
