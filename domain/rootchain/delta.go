package rootchain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/plasmalabs/rootchaind/domain/utxopos"
)

// metaState is the ledger's scalar state: the block counters and the
// escrow balance.
type metaState struct {
	currentChildBlock   uint64
	currentDepositIndex uint64
	escrow              uint64
}

// delta is the complete set of state changes one operation wants to apply.
// Operations validate first, stage everything into a delta, and commit it
// in one step, so a failure anywhere before the commit leaves the ledger
// byte-for-byte unchanged, and the store observes the same all-or-nothing
// boundary as memory.
type delta struct {
	blocks      map[uint64]*Block
	deposits    map[uint64]*depositRecord
	exitPuts    map[utxopos.Position]*ExitRecord
	exitDeletes []utxopos.Position
	balances    map[common.Address]uint64
	meta        metaState
}

func newDelta(l *Ledger) *delta {
	return &delta{
		meta: metaState{
			currentChildBlock:   l.currentChildBlock,
			currentDepositIndex: l.currentDepositIndex,
			escrow:              l.escrow,
		},
	}
}

func (d *delta) putBlock(blockNumber uint64, block *Block) {
	if d.blocks == nil {
		d.blocks = make(map[uint64]*Block)
	}
	d.blocks[blockNumber] = block
}

func (d *delta) putDeposit(blockNumber uint64, deposit *depositRecord) {
	if d.deposits == nil {
		d.deposits = make(map[uint64]*depositRecord)
	}
	d.deposits[blockNumber] = deposit
}

func (d *delta) putExit(record *ExitRecord) {
	if d.exitPuts == nil {
		d.exitPuts = make(map[utxopos.Position]*ExitRecord)
	}
	d.exitPuts[record.Position] = record
}

func (d *delta) deleteExit(pos utxopos.Position) {
	d.exitDeletes = append(d.exitDeletes, pos)
}

func (d *delta) putBalance(owner common.Address, balance uint64) {
	if d.balances == nil {
		d.balances = make(map[common.Address]uint64)
	}
	d.balances[owner] = balance
}

// commit persists the delta (when a store is configured) and then applies
// it to the in-memory state. The store write happens first: if it fails,
// memory is untouched and the call is rejected whole.
func (l *Ledger) commit(d *delta) error {
	if l.cfg.Store != nil {
		err := l.cfg.Store.write(d)
		if err != nil {
			return errors.Wrap(err, "persisting ledger state change")
		}
	}

	for blockNumber, block := range d.blocks {
		l.blocks[blockNumber] = block
	}
	for blockNumber, deposit := range d.deposits {
		l.deposits[blockNumber] = deposit
	}
	for pos, record := range d.exitPuts {
		l.exits[pos] = record
	}
	for _, pos := range d.exitDeletes {
		delete(l.exits, pos)
	}
	for owner, balance := range d.balances {
		l.balances[owner] = balance
	}
	l.currentChildBlock = d.meta.currentChildBlock
	l.currentDepositIndex = d.meta.currentDepositIndex
	l.escrow = d.meta.escrow
	return nil
}
