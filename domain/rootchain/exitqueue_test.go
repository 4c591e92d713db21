package rootchain

import (
	"testing"

	"github.com/plasmalabs/rootchaind/domain/utxopos"
)

func TestExitQueueOrdering(t *testing.T) {
	queue := newExitQueue()
	pushed := []utxopos.Position{
		5_000_000_000,
		1_000_000_000,
		3_000_000_010_001,
		3_000_000_010_000,
		1,
	}
	for _, pos := range pushed {
		queue.push(pos)
	}
	if queue.len() != len(pushed) {
		t.Fatalf("queue length %d, want %d", queue.len(), len(pushed))
	}

	expected := []utxopos.Position{
		1,
		1_000_000_000,
		5_000_000_000,
		3_000_000_010_000,
		3_000_000_010_001,
	}
	for i, want := range expected {
		got := queue.pop()
		if got != want {
			t.Fatalf("pop %d returned %d, want %d", i, got, want)
		}
	}
	if queue.len() != 0 {
		t.Fatalf("queue not empty after draining: %d left", queue.len())
	}
}
