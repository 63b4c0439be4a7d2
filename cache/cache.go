package cache

import (
	"sync"

	"github.com/mit-pdos/go-journal/util"
)

// A shared identity map from uint64 keys to reference-counted slots.
// A lookup for a key increments the reference count for its slot,
// creating an empty slot if the key isn't present; callers are
// responsible for filling the slot. When a caller is done with the
// object in the slot it must call FreeSlot, and when the last
// reference is dropped the entry is removed, so a later lookup of
// the same key starts from an empty slot again.

type Cslot struct {
	mu  *sync.Mutex // mutex protecting obj in this slot
	Obj interface{}
}

func (slot *Cslot) Lock() {
	slot.mu.Lock()
}

func (slot *Cslot) Unlock() {
	slot.mu.Unlock()
}

type entry struct {
	ref  uint32 // the slot's reference count
	slot Cslot
}

type Cache struct {
	mu      *sync.Mutex
	entries map[uint64]*entry
}

func MkCache() *Cache {
	return &Cache{
		mu:      new(sync.Mutex),
		entries: make(map[uint64]*entry),
	}
}

func (c *Cache) PrintCache() {
	for k, v := range c.entries {
		util.DPrintf(0, "Entry %v %v\n", k, v.ref)
	}
}

// LookupSlot returns the slot for id, incrementing its reference
// count. The slot is created empty if id isn't present.
func (c *Cache) LookupSlot(id uint64) *Cslot {
	c.mu.Lock()
	e := c.entries[id]
	if e != nil {
		e.ref = e.ref + 1
		c.mu.Unlock()
		return &e.slot
	}
	enew := &entry{
		ref:  1,
		slot: Cslot{mu: new(sync.Mutex), Obj: nil},
	}
	c.entries[id] = enew
	c.mu.Unlock()
	return &enew.slot
}

// FreeSlot decrements the reference count for id's slot. The last
// free removes the entry; FreeSlot reports whether it did.
func (c *Cache) FreeSlot(id uint64) bool {
	c.mu.Lock()
	e := c.entries[id]
	if e == nil {
		c.mu.Unlock()
		panic("FreeSlot")
	}
	e.ref = e.ref - 1
	last := e.ref == 0
	if last {
		delete(c.entries, id)
	}
	c.mu.Unlock()
	return last
}

// Len returns the number of live entries.
func (c *Cache) Len() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return uint64(len(c.entries))
}
