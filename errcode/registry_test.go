package errcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_IdempotentAndConflict(t *testing.T) {
	r := NewRegistry()
	a := New(70, 1, "cache", "error.cache.a", "a")

	r.Register(a)
	r.Register(a)
	assert.Equal(t, []int{700001}, r.Codes())

	key, ok := r.Lookup(700001)
	assert.True(t, ok)
	assert.Equal(t, "cache:error.cache.a", key)

	assert.Panics(t, func() {
		r.Register(New(70, 1, "cache", "error.cache.other", "b"))
	})
}
