package childtx

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/plasmalabs/rootchaind/domain/merkle"
	"github.com/plasmalabs/rootchaind/domain/ruleerrors"
	"github.com/plasmalabs/rootchaind/domain/utxopos"
)

// MetadataLength is the length of the reserved metadata field.
const MetadataLength = 32

// Input is one spend slot of a transaction: the packed position of the
// output being spent, and the owner of that output. The owner is redundant
// with the referenced output but is carried so a verifier holding only the
// transaction and its proofs can check signatures without first resolving
// the reference.
type Input struct {
	BlkNum  uint64
	TxIndex uint64
	OIndex  uint64
	Owner   common.Address
}

// IsEmpty reports whether the slot is unused. A used slot always
// references a positive block number, so a zero block number marks the
// slot as zero-filled padding.
func (in *Input) IsEmpty() bool {
	return in.BlkNum == 0
}

// Position returns the packed position the input references.
func (in *Input) Position() (utxopos.Position, error) {
	return utxopos.New(in.BlkNum, in.TxIndex, in.OIndex)
}

// Output is one value slot of a transaction.
type Output struct {
	NewOwner common.Address
	Amount   uint64
}

// IsEmpty reports whether the slot is unused.
func (out *Output) IsEmpty() bool {
	return out.Amount == 0 && out.NewOwner == (common.Address{})
}

// Transaction is a child-chain UTXO transaction with up to two inputs and
// up to two outputs. Unused slots are zero-filled, never omitted, so the
// canonical encoding always carries the same field list regardless of how
// many slots are used.
//
// The struct holds only the unsigned content. Signatures travel separately
// as a 130-byte bundle (one 65-byte slot per input, in slot order), the
// way the settlement ledger receives them on exit and challenge calls.
type Transaction struct {
	Inputs   [2]Input
	Outputs  [2]Output
	Token    common.Address
	Metadata [MetadataLength]byte
}

// NewDepositTransaction returns the synthetic single-output transaction
// that represents a deposit. Its hash is the sole leaf of the deposit
// block created for the deposit.
func NewDepositTransaction(owner common.Address, value uint64, token common.Address) *Transaction {
	return &Transaction{
		Outputs: [2]Output{{NewOwner: owner, Amount: value}},
		Token:   token,
	}
}

// SerializeUnsigned returns the canonical encoding of the transaction
// content: the RLP of the fixed field list (inputs, outputs, currency,
// metadata), independent of which slots are empty.
func (tx *Transaction) SerializeUnsigned() ([]byte, error) {
	serialized, err := rlp.EncodeToBytes(tx)
	if err != nil {
		return nil, ruleerrors.Errorf(ruleerrors.ErrMalformedTransaction,
			"serializing transaction: %s", err)
	}
	return serialized, nil
}

// DeserializeTransaction is the inverse of SerializeUnsigned. It returns
// ruleerrors.ErrMalformedTransaction on any length or field mismatch,
// including trailing bytes.
func DeserializeTransaction(serialized []byte) (*Transaction, error) {
	tx := &Transaction{}
	err := rlp.DecodeBytes(serialized, tx)
	if err != nil {
		return nil, ruleerrors.Errorf(ruleerrors.ErrMalformedTransaction,
			"deserializing transaction: %s", err)
	}
	return tx, nil
}

// Hash returns the transaction's content hash: the keccak-256 digest of
// its unsigned canonical encoding. The hash serves two roles: it is the
// leaf inserted into the owning block's fixed tree, and it is the message
// each input owner signs.
func (tx *Transaction) Hash() (merkle.Hash, error) {
	serialized, err := tx.SerializeUnsigned()
	if err != nil {
		return merkle.Hash{}, err
	}
	return merkle.HashData(serialized), nil
}

// InputCount returns the number of used input slots.
func (tx *Transaction) InputCount() int {
	count := 0
	for i := range tx.Inputs {
		if !tx.Inputs[i].IsEmpty() {
			count++
		}
	}
	return count
}

// IsDeposit reports whether the transaction has the synthetic deposit
// shape: no inputs and exactly one used output slot.
func (tx *Transaction) IsDeposit() bool {
	return tx.InputCount() == 0 && !tx.Outputs[0].IsEmpty() && tx.Outputs[1].IsEmpty()
}

// Equal reports whether tx and other carry identical content.
func (tx *Transaction) Equal(other *Transaction) bool {
	if tx == nil || other == nil {
		return tx == other
	}
	return tx.Inputs == other.Inputs &&
		tx.Outputs == other.Outputs &&
		tx.Token == other.Token &&
		bytes.Equal(tx.Metadata[:], other.Metadata[:])
}
