package errcode

import (
	"fmt"
	"sort"
	"sync"
)

// Registry guards against two modules claiming the same code
type Registry struct {
	mu    sync.RWMutex
	codes map[int]string // code -> module:msgKey
}

var globalRegistry = NewRegistry()

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{codes: make(map[int]string)}
}

// Register records err in the global registry and returns it, so it can be used
// directly in var blocks. Panics on a conflicting code.
func Register(err *LayeredError) *LayeredError {
	return globalRegistry.Register(err)
}

// Register records err. Re-registering the same code and key is a no-op.
func (r *Registry) Register(err *LayeredError) *LayeredError {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := err.Module() + ":" + err.MsgKey()
	if existing, ok := r.codes[err.Code()]; ok && existing != key {
		panic(fmt.Sprintf("error code conflict: %d registered as %s, cannot register as %s",
			err.Code(), existing, key))
	}
	r.codes[err.Code()] = key
	return err
}

// Codes returns the registered codes in ascending order
func (r *Registry) Codes() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	codes := make([]int, 0, len(r.codes))
	for c := range r.codes {
		codes = append(codes, c)
	}
	sort.Ints(codes)
	return codes
}

// Lookup returns module:msgKey for a code
func (r *Registry) Lookup(code int) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key, ok := r.codes[code]
	return key, ok
}

// RegisteredCodes lists every code in the global registry
func RegisteredCodes() []int {
	return globalRegistry.Codes()
}
