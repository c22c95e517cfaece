package saturation

import (
	"sync"
	"sync/atomic"

	"github.com/adalundhe/saturn/core/ontology"
)

const (
	arenaChunkBits = 10
	arenaChunkSize = 1 << arenaChunkBits
	arenaChunkMask = arenaChunkSize - 1
)

type arenaChunk [arenaChunkSize]atomic.Pointer[Context]

// arena maps context IDs to contexts. Lookups are lock-free; the chunk
// directory is copied on every change so published chunks never move.
// Chunks are allocated on first use and released by trim once empty, since
// the index never reuses IDs.
type arena struct {
	growMu sync.Mutex
	chunks atomic.Pointer[[]*arenaChunk]
	count  atomic.Int64
}

func (a *arena) slot(id ContextID, grow bool) *atomic.Pointer[Context] {
	idx := int(id >> arenaChunkBits)
	if dir := a.chunks.Load(); dir != nil && idx < len(*dir) {
		if chunk := (*dir)[idx]; chunk != nil {
			return &chunk[id&arenaChunkMask]
		}
	}
	if !grow {
		return nil
	}

	a.growMu.Lock()
	defer a.growMu.Unlock()
	var current []*arenaChunk
	if dir := a.chunks.Load(); dir != nil {
		current = *dir
	}
	if idx < len(current) && current[idx] != nil {
		return &current[idx][id&arenaChunkMask]
	}
	next := make([]*arenaChunk, max(idx+1, len(current)))
	copy(next, current)
	next[idx] = new(arenaChunk)
	a.chunks.Store(&next)
	return &next[idx][id&arenaChunkMask]
}

func (a *arena) get(id ContextID) *Context {
	s := a.slot(id, false)
	if s == nil {
		return nil
	}
	return s.Load()
}

// getOrCreate returns the context of root and whether this call created it.
// Concurrent callers agree on a single instance.
func (a *arena) getOrCreate(root *ontology.ClassExpression) (*Context, bool) {
	s := a.slot(ContextID(root.ID()), true)
	if c := s.Load(); c != nil {
		return c, false
	}
	c := newContext(root)
	if s.CompareAndSwap(nil, c) {
		a.count.Add(1)
		return c, true
	}
	return s.Load(), false
}

func (a *arena) remove(id ContextID) bool {
	s := a.slot(id, false)
	if s == nil {
		return false
	}
	if s.Swap(nil) != nil {
		a.count.Add(-1)
		return true
	}
	return false
}

// each visits the contexts in ID order until fn returns false.
func (a *arena) each(fn func(*Context) bool) {
	dir := a.chunks.Load()
	if dir == nil {
		return
	}
	for _, chunk := range *dir {
		if chunk == nil {
			continue
		}
		for i := range chunk {
			if c := chunk[i].Load(); c != nil {
				if !fn(c) {
					return
				}
			}
		}
	}
}

// trim releases the chunks without contexts and returns how many it
// released. It must not run concurrently with getOrCreate.
func (a *arena) trim() int {
	a.growMu.Lock()
	defer a.growMu.Unlock()
	dir := a.chunks.Load()
	if dir == nil {
		return 0
	}
	next := make([]*arenaChunk, len(*dir))
	released, last := 0, -1
	for i, chunk := range *dir {
		if chunk == nil {
			continue
		}
		if chunk.empty() {
			released++
			continue
		}
		next[i] = chunk
		last = i
	}
	if released == 0 {
		return 0
	}
	if last < 0 {
		a.chunks.Store(nil)
		return released
	}
	next = next[:last+1]
	a.chunks.Store(&next)
	return released
}

func (c *arenaChunk) empty() bool {
	for i := range c {
		if c[i].Load() != nil {
			return false
		}
	}
	return true
}

// chunkCount returns the number of allocated chunks.
func (a *arena) chunkCount() int {
	dir := a.chunks.Load()
	if dir == nil {
		return 0
	}
	n := 0
	for _, chunk := range *dir {
		if chunk != nil {
			n++
		}
	}
	return n
}

func (a *arena) reset() {
	a.growMu.Lock()
	a.chunks.Store(nil)
	a.count.Store(0)
	a.growMu.Unlock()
}
