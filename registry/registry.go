// File: registry/registry.go
// Package registry maps connection keys to descriptors and tracks changes.
// License: Apache-2.0

package registry

import "github.com/jw2013/fhem-modules/api"

// Registry maps opaque connection keys to descriptors and records which
// keys have mask-relevant changes pending (the dirty set). Reconciliation
// is lazy: the dispatch loop drains the dirty set once per iteration.
// Removal is the exception: the removal observer fires synchronously, so a
// stale descriptor id can never be reported ready after its owner is gone.
//
// The registry is single-threaded by contract: it is mutated only by driver
// code and the dispatch loop on the loop's thread.
type Registry struct {
	conns    map[string]*Conn
	dirty    map[string]struct{}
	onRemove func(*Conn)
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		conns: make(map[string]*Conn),
		dirty: make(map[string]struct{}),
	}
}

// Insert adds a descriptor under key and marks it dirty so the next
// reconciliation pass registers it with the multiplexer.
func (r *Registry) Insert(key string, c *Conn) error {
	if _, ok := r.conns[key]; ok {
		return api.ErrKeyExists
	}
	if c.OnRead != nil && c.directRead != nil {
		return api.ErrReadConflict
	}
	c.key = key
	c.reg = r
	r.conns[key] = c
	r.markDirty(key)
	return nil
}

// Remove deletes the entry for key and synchronously notifies the removal
// observer, which unregisters any associated descriptor ids immediately.
// Removing an unknown key is a no-op.
func (r *Registry) Remove(key string) {
	c, ok := r.conns[key]
	if !ok {
		return
	}
	delete(r.conns, key)
	delete(r.dirty, key)
	c.reg = nil
	if r.onRemove != nil {
		r.onRemove(c)
	}
}

// Get resolves key to its descriptor.
func (r *Registry) Get(key string) (*Conn, bool) {
	c, ok := r.conns[key]
	return c, ok
}

// Len returns the number of live entries.
func (r *Registry) Len() int { return len(r.conns) }

// Range calls fn for every entry until fn returns false. Iteration order is
// unspecified.
func (r *Registry) Range(fn func(key string, c *Conn) bool) {
	for k, c := range r.conns {
		if !fn(k, c) {
			return
		}
	}
}

// DirtyCount returns the number of keys awaiting reconciliation.
func (r *Registry) DirtyCount() int { return len(r.dirty) }

// DrainDirty empties the dirty set and calls fn once per drained key, in
// arbitrary order. Keys dirtied from within fn land in the next drain.
func (r *Registry) DrainDirty(fn func(key string, c *Conn)) {
	if len(r.dirty) == 0 {
		return
	}
	keys := make([]string, 0, len(r.dirty))
	for k := range r.dirty {
		keys = append(keys, k)
	}
	clear(r.dirty)
	for _, k := range keys {
		fn(k, r.conns[k])
	}
}

// OnRemove installs the single removal observer. The dispatch loop uses it
// to unregister descriptor ids before the entry disappears.
func (r *Registry) OnRemove(fn func(*Conn)) { r.onRemove = fn }

func (r *Registry) markDirty(key string) {
	r.dirty[key] = struct{}{}
}
