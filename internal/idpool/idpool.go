// Package idpool implements the client's id recycler: a min-heap of
// freed ids plus a monotonic counter, keeping the id space compact so
// handle ids stay small and predictable on the wire (spec.md §4.3 "Id
// recycler").
package idpool

import (
	"container/heap"
	"sync"
)

// Pool allocates and recycles uint32 ids. The zero value is ready to use.
// Safe for concurrent use; spec.md notes the id recycler is "owned by the
// client, accessed only on the main thread" but the mutex here costs
// little and removes that as a caller obligation.
type Pool struct {
	mu      sync.Mutex
	next    uint32
	freed   minHeap
	reserve uint32 // ids below this are never handed out (e.g. 0 == root)
}

// New returns a Pool that reserves the first n ids (e.g. New(1) keeps id
// 0 for the root object, per spec.md §4.4 "Subscribe to rootObject under
// id 0 unconditionally").
func New(reserve uint32) *Pool {
	return &Pool{next: reserve, reserve: reserve}
}

// Acquire returns the smallest available id: a previously-freed id if any,
// else the next unused one (spec.md §4.3: "pop the smallest freed id if
// any, else next_id++").
func (p *Pool) Acquire() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.freed) > 0 {
		return heap.Pop(&p.freed).(uint32)
	}
	id := p.next
	p.next++
	return id
}

// Release returns id to the pool for reuse.
func (p *Pool) Release(id uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	heap.Push(&p.freed, id)
}

type minHeap []uint32

func (h minHeap) Len() int            { return len(h) }
func (h minHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h minHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x interface{}) { *h = append(*h, x.(uint32)) }
func (h *minHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}
