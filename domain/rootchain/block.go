package rootchain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/plasmalabs/rootchaind/domain/merkle"
	"github.com/plasmalabs/rootchaind/domain/utxopos"
)

// Block is a committed child-chain block as the root chain sees it: a
// digest and the time it was committed. A block number, once assigned a
// digest, is immutable.
type Block struct {
	Root      merkle.Hash
	Timestamp time.Time
}

// depositRecord is the reconstruction data for a deposit block's sole
// output. The block itself only commits the digest; the record lets
// StartDepositExit rebuild the output without a supplied proof.
type depositRecord struct {
	Owner common.Address
	Token common.Address
	Value uint64
}

// ExitRecord is a live or voided claim to withdraw the value of a UTXO.
// It is created by StartDepositExit or StartExit, voided by ChallengeExit
// and removed, paid or unpaid, by FinalizeExits.
type ExitRecord struct {
	Owner    common.Address
	Token    common.Address
	Value    uint64
	Position utxopos.Position

	// ExitableAt is fixed when the exit starts and never extended.
	ExitableAt time.Time

	// Voided marks a successfully challenged exit. The owner and value
	// are retained for audit until the record is dropped by
	// finalization, but a voided record never pays out.
	Voided bool
}

// Payout is one finalized exit: value released from escrow to the owner's
// withdrawal balance.
type Payout struct {
	Owner    common.Address
	Token    common.Address
	Value    uint64
	Position utxopos.Position
}
