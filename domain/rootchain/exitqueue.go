package rootchain

import (
	"container/heap"

	"github.com/plasmalabs/rootchaind/domain/utxopos"
)

// baseHeap is an implementation for heap.Interface that sorts exit
// positions ascending, so the oldest UTXO (lowest block, then lowest
// transaction and output index) is always at the top.
type baseHeap []utxopos.Position

func (h baseHeap) Len() int           { return len(h) }
func (h baseHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h baseHeap) Less(i, j int) bool { return h[i] < h[j] }

func (h *baseHeap) Push(x interface{}) {
	*h = append(*h, x.(utxopos.Position))
}

func (h *baseHeap) Pop() interface{} {
	oldHeap := *h
	oldLength := len(oldHeap)
	popped := oldHeap[oldLength-1]
	*h = oldHeap[0 : oldLength-1]
	return popped
}

// exitQueue is a mutable priority queue of exit positions, processed
// oldest-position-first by finalization. The queue holds positions only;
// the records themselves live in the ledger's exit index, so a position
// whose record was removed or voided is simply dropped when popped.
type exitQueue struct {
	impl *baseHeap
}

func newExitQueue() *exitQueue {
	h := &baseHeap{}
	heap.Init(h)
	return &exitQueue{impl: h}
}

// push adds a position onto the queue.
func (eq *exitQueue) push(pos utxopos.Position) {
	heap.Push(eq.impl, pos)
}

// pop removes and returns the lowest position in the queue.
func (eq *exitQueue) pop() utxopos.Position {
	return heap.Pop(eq.impl).(utxopos.Position)
}

// peek returns the lowest position in the queue without removing it. The
// queue must not be empty.
func (eq *exitQueue) peek() utxopos.Position {
	return (*eq.impl)[0]
}

func (eq *exitQueue) len() int {
	return eq.impl.Len()
}
