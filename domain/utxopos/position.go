package utxopos

import (
	"fmt"

	"github.com/plasmalabs/rootchaind/domain/ruleerrors"
)

// The packed-position scheme: a position is
// blockNumber*BlockOffset + txIndex*TxOffset + outputIndex, which bounds
// txIndex below 10^4 and outputIndex below 10. Decoding recovers exactly
// the triple that produced the position.
const (
	// BlockOffset is the position weight of one block number.
	BlockOffset = 1_000_000_000

	// TxOffset is the position weight of one transaction index.
	TxOffset = 10_000

	// MaxTxIndex is the exclusive upper bound on a transaction index
	// within a block.
	MaxTxIndex = 10_000

	// MaxOutputIndex is the exclusive upper bound on an output index
	// within a transaction.
	MaxOutputIndex = 10
)

// Position is the packed integer locating a single transaction output on
// the child chain: which block, which transaction within it, and which
// output of that transaction.
type Position uint64

// New packs the given (blockNumber, txIndex, outputIndex) triple. It
// returns ruleerrors.ErrPositionOutOfRange if txIndex or outputIndex do
// not fit their fixed-width sub-fields.
func New(blockNumber, txIndex, outputIndex uint64) (Position, error) {
	if txIndex >= MaxTxIndex {
		return 0, ruleerrors.Errorf(ruleerrors.ErrPositionOutOfRange,
			"transaction index %d does not fit below %d", txIndex, MaxTxIndex)
	}
	if outputIndex >= MaxOutputIndex {
		return 0, ruleerrors.Errorf(ruleerrors.ErrPositionOutOfRange,
			"output index %d does not fit below %d", outputIndex, MaxOutputIndex)
	}
	return Position(blockNumber*BlockOffset + txIndex*TxOffset + outputIndex), nil
}

// BlockNumber returns the child-chain block number the position refers to.
func (p Position) BlockNumber() uint64 {
	return uint64(p) / BlockOffset
}

// TxIndex returns the index of the transaction within its block.
func (p Position) TxIndex() uint64 {
	return (uint64(p) % BlockOffset) / TxOffset
}

// OutputIndex returns the index of the output within its transaction.
func (p Position) OutputIndex() uint64 {
	return uint64(p) % TxOffset
}

func (p Position) String() string {
	return fmt.Sprintf("(%d, %d, %d)", p.BlockNumber(), p.TxIndex(), p.OutputIndex())
}
