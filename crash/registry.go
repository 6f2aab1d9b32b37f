package crash

import (
	"sync"

	"bazaar/store"
)

// Registry hands out one Governor per client, created on first use.
type Registry struct {
	mu        sync.Mutex
	kv        store.KV
	rec       Recovery
	opts      Options
	governors map[string]*Governor
}

func NewRegistry(kv store.KV, rec Recovery, opts Options) *Registry {
	if kv == nil {
		kv = store.NewMemoryKV()
	}
	return &Registry{kv: kv, rec: rec, opts: opts, governors: make(map[string]*Governor)}
}

func (r *Registry) Get(client string) *Governor {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.governors[client]
	if !ok {
		g = NewGovernor(client, r.kv, r.rec, r.opts)
		r.governors[client] = g
	}
	return g
}
