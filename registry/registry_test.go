// File: registry/registry_test.go
// License: Apache-2.0

package registry

import (
	"errors"
	"sort"
	"testing"

	"github.com/jw2013/fhem-modules/api"
)

func drainKeys(r *Registry) []string {
	var keys []string
	r.DrainDirty(func(key string, _ *Conn) { keys = append(keys, key) })
	sort.Strings(keys)
	return keys
}

func TestInsertMarksDirty(t *testing.T) {
	r := New()
	c := NewConn()
	if err := r.Insert("lamp", c); err != nil {
		t.Fatal(err)
	}
	if r.Len() != 1 || r.DirtyCount() != 1 {
		t.Fatalf("len=%d dirty=%d after insert", r.Len(), r.DirtyCount())
	}
	if got := drainKeys(r); len(got) != 1 || got[0] != "lamp" {
		t.Fatalf("drained %v", got)
	}
	if r.DirtyCount() != 0 {
		t.Fatal("dirty set not emptied by drain")
	}
}

func TestInsertDuplicateKey(t *testing.T) {
	r := New()
	if err := r.Insert("lamp", NewConn()); err != nil {
		t.Fatal(err)
	}
	if err := r.Insert("lamp", NewConn()); !errors.Is(err, api.ErrKeyExists) {
		t.Fatalf("duplicate insert = %v, want %v", err, api.ErrKeyExists)
	}
}

func TestReadCallbackExclusivity(t *testing.T) {
	// Installing the direct callback while OnRead is set fails right away.
	c := NewConn()
	c.OnRead = func(*Conn) {}
	if err := c.SetDirectRead(func(*Conn) {}); !errors.Is(err, api.ErrReadConflict) {
		t.Fatalf("SetDirectRead with OnRead set = %v, want %v", err, api.ErrReadConflict)
	}
	if c.DirectRead() != nil {
		t.Fatal("rejected direct callback installed anyway")
	}

	// The reverse order is caught at insertion.
	r := New()
	c2 := NewConn()
	if err := c2.SetDirectRead(func(*Conn) {}); err != nil {
		t.Fatal(err)
	}
	c2.OnRead = func(*Conn) {}
	if err := r.Insert("lamp", c2); !errors.Is(err, api.ErrReadConflict) {
		t.Fatalf("conflicting insert = %v, want %v", err, api.ErrReadConflict)
	}

	// Clearing the direct callback is always allowed.
	if err := c.SetDirectRead(nil); err != nil {
		t.Fatalf("clearing direct callback = %v", err)
	}
}

func TestAccessorsMarkDirtyOnChangeOnly(t *testing.T) {
	r := New()
	c := NewConn()
	if err := r.Insert("lamp", c); err != nil {
		t.Fatal(err)
	}
	drainKeys(r)

	c.SetWantRead(true)
	if r.DirtyCount() != 1 {
		t.Fatal("SetWantRead(true) did not mark dirty")
	}
	drainKeys(r)

	c.SetWantRead(true) // no change
	c.SetFD(-1)         // already -1
	c.SetExceptFD(-1)   // already -1
	if r.DirtyCount() != 0 {
		t.Fatal("no-op accessors marked dirty")
	}

	c.SetFD(12)
	c.SetExceptFD(12)
	c.SetWantWrite(true)
	if got := r.DirtyCount(); got != 1 {
		t.Fatalf("dirty count = %d, want the single coalesced key", got)
	}
}

func TestEnqueueMarksDirtyOnFirstFillOnly(t *testing.T) {
	r := New()
	c := NewConn()
	c.SetFD(5)
	if err := r.Insert("lamp", c); err != nil {
		t.Fatal(err)
	}
	drainKeys(r)

	c.Enqueue([]byte("abc"))
	if r.DirtyCount() != 1 {
		t.Fatal("empty-to-non-empty transition did not mark dirty")
	}
	drainKeys(r)

	c.Enqueue([]byte("def"))
	if r.DirtyCount() != 0 {
		t.Fatal("append to non-empty buffer marked dirty")
	}
}

func TestRemoveNotifiesObserverSynchronously(t *testing.T) {
	r := New()
	var removed []*Conn
	r.OnRemove(func(c *Conn) { removed = append(removed, c) })

	c := NewConn()
	if err := r.Insert("lamp", c); err != nil {
		t.Fatal(err)
	}
	r.Remove("lamp")
	if len(removed) != 1 || removed[0] != c {
		t.Fatalf("observer saw %v", removed)
	}
	if _, ok := r.Get("lamp"); ok {
		t.Fatal("entry still resolvable after Remove")
	}
	if r.DirtyCount() != 0 {
		t.Fatal("removed key left in the dirty set")
	}

	// Mutations after removal are orphaned, never re-dirtying the registry.
	c.SetWantWrite(true)
	if r.DirtyCount() != 0 {
		t.Fatal("detached descriptor dirtied the registry")
	}

	r.Remove("lamp") // unknown key, no-op
	if len(removed) != 1 {
		t.Fatal("observer fired for unknown key")
	}
}

func TestDrainDirtyDefersReentrantMarks(t *testing.T) {
	r := New()
	c := NewConn()
	if err := r.Insert("lamp", c); err != nil {
		t.Fatal(err)
	}
	r.DrainDirty(func(key string, dc *Conn) {
		dc.SetWantWrite(true) // dirties from within the drain
	})
	if r.DirtyCount() != 1 {
		t.Fatal("re-entrant mark lost instead of deferred")
	}
	if got := drainKeys(r); len(got) != 1 || got[0] != "lamp" {
		t.Fatalf("second drain saw %v", got)
	}
}

func TestRemoveClearsPendingDirtyEntry(t *testing.T) {
	r := New()
	c := NewConn()
	if err := r.Insert("door", c); err != nil {
		t.Fatal(err)
	}
	c.SetWantWrite(true)
	r.Remove("door")
	count := 0
	r.DrainDirty(func(string, *Conn) { count++ })
	if count != 0 {
		t.Fatalf("drained %d keys after removal, want 0", count)
	}
}

func TestDrainDirtyYieldsNilForKeysRemovedMidDrain(t *testing.T) {
	r := New()
	if err := r.Insert("lamp", NewConn()); err != nil {
		t.Fatal(err)
	}
	if err := r.Insert("door", NewConn()); err != nil {
		t.Fatal(err)
	}
	seen := map[string]bool{} // key -> conn was nil
	r.DrainDirty(func(key string, c *Conn) {
		seen[key] = c == nil
		// The first callback removes its sibling; the sibling's snapshot
		// entry then drains with a nil descriptor.
		other := "door"
		if key == "door" {
			other = "lamp"
		}
		r.Remove(other)
	})
	if len(seen) != 2 {
		t.Fatalf("drained %d keys, want 2", len(seen))
	}
	nils := 0
	for _, wasNil := range seen {
		if wasNil {
			nils++
		}
	}
	if nils != 1 {
		t.Fatalf("%d keys drained as nil, want exactly the removed sibling", nils)
	}
}

func TestRangeVisitsAllEntries(t *testing.T) {
	r := New()
	for _, k := range []string{"a", "b", "c"} {
		if err := r.Insert(k, NewConn()); err != nil {
			t.Fatal(err)
		}
	}
	var keys []string
	r.Range(func(key string, _ *Conn) bool {
		keys = append(keys, key)
		return true
	})
	sort.Strings(keys)
	if len(keys) != 3 || keys[0] != "a" || keys[2] != "c" {
		t.Fatalf("ranged %v", keys)
	}

	stops := 0
	r.Range(func(string, *Conn) bool {
		stops++
		return false
	})
	if stops != 1 {
		t.Fatalf("Range ignored early stop, visited %d", stops)
	}
}
