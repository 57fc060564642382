package middleware

import "github.com/aretw0/toolbox/pkg/ports"

// Middleware allows wrapping a MemoryStore to add behavior.
type Middleware func(ports.MemoryStore) ports.MemoryStore

// Wrap applies mws to store. The first middleware sees calls first.
func Wrap(store ports.MemoryStore, mws ...Middleware) ports.MemoryStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
