package rootchain

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/plasmalabs/rootchaind/domain/childtx"
	"github.com/plasmalabs/rootchaind/domain/merkle"
	"github.com/plasmalabs/rootchaind/domain/ruleerrors"
	"github.com/plasmalabs/rootchaind/domain/utxopos"
	"github.com/plasmalabs/rootchaind/infrastructure/logger"
)

const (
	// DefaultChildBlockInterval is the stride of regular child-block
	// slots. Deposit blocks occupy the intervening slots.
	DefaultChildBlockInterval = 1000

	// DefaultTreeDepth is the fixed depth of per-block commitment trees.
	DefaultTreeDepth = 16

	// DefaultChallengePeriod is the window during which a started exit
	// can be contested before it becomes finalizable.
	DefaultChallengePeriod = 14 * 24 * time.Hour

	// DefaultConfirmationMargin is the number of child-block intervals
	// an exit input's containing block must be buried under before the
	// exit may start.
	DefaultConfirmationMargin = 3

	// DefaultFinalizeBatchSize bounds the number of payouts released by
	// a single FinalizeExits call.
	DefaultFinalizeBatchSize = 100
)

// Clock supplies the ledger's notion of time. Timing rules (challenge
// periods, block timestamps) are evaluated synchronously against it at
// call time; the ledger never blocks waiting for time to pass. The clock
// is assumed monotonically non-decreasing across calls.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// Config holds the settlement parameters of a Ledger.
type Config struct {
	// Operator is the only address allowed to submit child blocks. The
	// operator is trusted for liveness only: every claim against the
	// ledger is independently provable, so a dishonest operator can
	// stall the chain but cannot steal through it.
	Operator common.Address

	ChildBlockInterval uint64
	TreeDepth          int
	ChallengePeriod    time.Duration
	ConfirmationMargin uint64
	FinalizeBatchSize  int

	// Clock may be overridden for tests. Defaults to the wall clock.
	Clock Clock

	// Store, when set, persists every state change and is the source
	// the ledger restores from at construction.
	Store *Store
}

// DefaultConfig returns a Config with production settlement parameters
// for the given operator.
func DefaultConfig(operator common.Address) Config {
	return Config{
		Operator:           operator,
		ChildBlockInterval: DefaultChildBlockInterval,
		TreeDepth:          DefaultTreeDepth,
		ChallengePeriod:    DefaultChallengePeriod,
		ConfirmationMargin: DefaultConfirmationMargin,
		FinalizeBatchSize:  DefaultFinalizeBatchSize,
		Clock:              wallClock{},
	}
}

// InputProof is the proof bundle for one input of an exiting transaction:
// the input transaction's bytes, its membership proof in its own block,
// and its signature bundle.
type InputProof struct {
	TxBytes []byte
	Proof   []byte
	Sigs    []byte
}

// IsEmpty reports whether no input transaction was supplied.
func (ip *InputProof) IsEmpty() bool {
	return len(ip.TxBytes) == 0
}

// Ledger is the exit-game settlement engine. It records committed child
// block digests, escrows deposits, and adjudicates the exit lifecycle
// (start, challenge, finalize) using only locally verifiable proofs and
// timestamps.
//
// Execution is strictly serialized: every operation runs to completion
// with exclusive access to the full ledger state. Every rejected call
// leaves the state unchanged.
type Ledger struct {
	mtx sync.Mutex
	cfg Config

	blocks   map[uint64]*Block
	deposits map[uint64]*depositRecord
	exits    map[utxopos.Position]*ExitRecord
	queue    *exitQueue
	balances map[common.Address]uint64

	// currentChildBlock is the next child-block slot awaiting
	// submission. currentDepositIndex is the 1-based index of the next
	// deposit slot within the current child epoch; it resets on every
	// submitted child block.
	currentChildBlock   uint64
	currentDepositIndex uint64

	// escrow is the process-wide balance backing all funds deposited
	// and not yet paid out. Every finalize debit is paired, within the
	// same atomic step, with removal of the paid record.
	escrow uint64
}

// New returns a Ledger with the given Config, restoring previously
// persisted state when the Config carries a Store.
func New(cfg Config) (*Ledger, error) {
	if cfg.ChildBlockInterval == 0 {
		cfg.ChildBlockInterval = DefaultChildBlockInterval
	}
	if cfg.TreeDepth == 0 {
		cfg.TreeDepth = DefaultTreeDepth
	}
	if cfg.ChallengePeriod == 0 {
		cfg.ChallengePeriod = DefaultChallengePeriod
	}
	if cfg.FinalizeBatchSize == 0 {
		cfg.FinalizeBatchSize = DefaultFinalizeBatchSize
	}
	if cfg.Clock == nil {
		cfg.Clock = wallClock{}
	}

	ledger := &Ledger{
		cfg:                 cfg,
		blocks:              make(map[uint64]*Block),
		deposits:            make(map[uint64]*depositRecord),
		exits:               make(map[utxopos.Position]*ExitRecord),
		queue:               newExitQueue(),
		balances:            make(map[common.Address]uint64),
		currentChildBlock:   cfg.ChildBlockInterval,
		currentDepositIndex: 1,
	}

	if cfg.Store != nil {
		err := cfg.Store.restore(ledger)
		if err != nil {
			return nil, err
		}
		for pos := range ledger.exits {
			ledger.queue.push(pos)
		}
		log.Infof("Restored ledger state: child block %d, %d committed blocks, "+
			"%d live exits", ledger.currentChildBlock, len(ledger.blocks),
			len(ledger.exits))
	}
	return ledger, nil
}

// Deposit escrows value for owner and synchronously commits a single-leaf
// deposit block whose leaf is the content hash of the synthetic deposit
// transaction. It returns the deposit block's number.
func (l *Ledger) Deposit(owner common.Address, value uint64) (uint64, error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	if l.currentDepositIndex >= l.cfg.ChildBlockInterval {
		return 0, ruleerrors.Errorf(ruleerrors.ErrCapacityExceeded,
			"no deposit slots left before child block %d", l.currentChildBlock)
	}

	blockNumber := l.currentChildBlock - l.cfg.ChildBlockInterval + l.currentDepositIndex
	depositTx := childtx.NewDepositTransaction(owner, value, common.Address{})
	leaf, err := depositTx.Hash()
	if err != nil {
		return 0, err
	}
	tree, err := merkle.NewFixedTree([]merkle.Hash{leaf}, l.cfg.TreeDepth)
	if err != nil {
		return 0, err
	}

	d := newDelta(l)
	d.putBlock(blockNumber, &Block{Root: tree.Root(), Timestamp: l.cfg.Clock.Now()})
	d.putDeposit(blockNumber, &depositRecord{Owner: owner, Value: value})
	d.meta.currentDepositIndex++
	d.meta.escrow += value
	err = l.commit(d)
	if err != nil {
		return 0, err
	}

	log.Debugf("Deposit of %d for %s committed at block %d",
		value, owner, blockNumber)
	return blockNumber, nil
}

// SubmitBlock stores the digest of the next child block. Only the
// configured operator may submit, and only to the next expected
// child-block slot.
func (l *Ledger) SubmitBlock(from common.Address, digest merkle.Hash, blockNumber uint64) error {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	if from != l.cfg.Operator {
		return ruleerrors.Errorf(ruleerrors.ErrAuthorizationFailure,
			"%s is not the child chain operator", from)
	}
	if blockNumber != l.currentChildBlock {
		return ruleerrors.Errorf(ruleerrors.ErrOutOfOrder,
			"block submitted at slot %d, next expected child slot is %d",
			blockNumber, l.currentChildBlock)
	}

	d := newDelta(l)
	d.putBlock(blockNumber, &Block{Root: digest, Timestamp: l.cfg.Clock.Now()})
	d.meta.currentChildBlock += l.cfg.ChildBlockInterval
	d.meta.currentDepositIndex = 1
	err := l.commit(d)
	if err != nil {
		return err
	}

	log.Debugf("Child block %d committed with digest %s", blockNumber, digest)
	return nil
}

// StartDepositExit opens an exit for the sole output of a deposit block.
// The caller must be the deposit's recorded owner; the deposit output
// needs no inclusion proof because the ledger built the block itself.
func (l *Ledger) StartDepositExit(owner common.Address, depositBlockNumber uint64) error {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	deposit, ok := l.deposits[depositBlockNumber]
	if !ok {
		return ruleerrors.Errorf(ruleerrors.ErrNotFound,
			"no deposit block at slot %d", depositBlockNumber)
	}
	if owner != deposit.Owner {
		return ruleerrors.Errorf(ruleerrors.ErrAuthorizationFailure,
			"%s does not own deposit block %d", owner, depositBlockNumber)
	}

	pos, err := utxopos.New(depositBlockNumber, 0, 0)
	if err != nil {
		return err
	}
	if _, exists := l.exits[pos]; exists {
		return ruleerrors.Errorf(ruleerrors.ErrConflict,
			"an exit already exists at position %s", pos)
	}

	record := &ExitRecord{
		Owner:      deposit.Owner,
		Token:      deposit.Token,
		Value:      deposit.Value,
		Position:   pos,
		ExitableAt: l.cfg.Clock.Now().Add(l.cfg.ChallengePeriod),
	}
	d := newDelta(l)
	d.putExit(record)
	err = l.commit(d)
	if err != nil {
		return err
	}
	l.queue.push(pos)

	log.Debugf("Deposit exit started at %s for %s, value %d",
		pos, record.Owner, record.Value)
	return nil
}

// StartExit opens an exit for the output at pos of the supplied
// transaction. The transaction's inclusion is verified against the
// committed digest of its block; every used input slot must come with the
// input transaction's own inclusion proof, must match the claimed owner,
// must carry that owner's signature over the exiting transaction, and must
// be buried under the confirmation margin. Nothing is recorded unless
// every check passes.
func (l *Ledger) StartExit(pos utxopos.Position, txBytes, proof, sigs []byte,
	input1, input2 InputProof) error {

	l.mtx.Lock()
	defer l.mtx.Unlock()

	if _, exists := l.exits[pos]; exists {
		return ruleerrors.Errorf(ruleerrors.ErrConflict,
			"an exit already exists at position %s", pos)
	}

	tx, err := childtx.DeserializeTransaction(txBytes)
	if err != nil {
		return err
	}
	// A transaction with no inputs has nobody to authorize the exit.
	// Deposit outputs exit through StartDepositExit, which checks the
	// recorded owner.
	if tx.InputCount() == 0 {
		return ruleerrors.Errorf(ruleerrors.ErrMalformedTransaction,
			"transaction at %s has no inputs to authorize an exit with", pos)
	}
	txHash, err := tx.Hash()
	if err != nil {
		return err
	}
	err = l.verifyInclusion(pos, txHash, proof)
	if err != nil {
		return err
	}

	outputIndex := pos.OutputIndex()
	if outputIndex >= uint64(len(tx.Outputs)) {
		return ruleerrors.Errorf(ruleerrors.ErrMalformedTransaction,
			"output index %d exceeds the transaction's %d output slots",
			outputIndex, len(tx.Outputs))
	}
	exitingOutput := tx.Outputs[outputIndex]
	if exitingOutput.IsEmpty() {
		return ruleerrors.Errorf(ruleerrors.ErrMalformedTransaction,
			"position %s refers to an empty output slot", pos)
	}

	sig1, sig2, err := childtx.SplitSignatureBundle(sigs)
	if err != nil {
		return err
	}
	slotSigs := [2][]byte{sig1, sig2}
	inputProofs := [2]*InputProof{&input1, &input2}
	for slot := range tx.Inputs {
		input := &tx.Inputs[slot]
		if input.IsEmpty() {
			continue
		}
		err = l.verifyExitInput(txHash, input, slotSigs[slot], inputProofs[slot], slot)
		if err != nil {
			return err
		}
	}

	record := &ExitRecord{
		Owner:      exitingOutput.NewOwner,
		Token:      tx.Token,
		Value:      exitingOutput.Amount,
		Position:   pos,
		ExitableAt: l.cfg.Clock.Now().Add(l.cfg.ChallengePeriod),
	}
	d := newDelta(l)
	d.putExit(record)
	err = l.commit(d)
	if err != nil {
		return err
	}
	l.queue.push(pos)

	log.Debugf("Exit started at %s for %s, value %d",
		pos, record.Owner, record.Value)
	return nil
}

// verifyExitInput runs the full validation of one used input slot of an
// exiting transaction whose content hash is txHash.
func (l *Ledger) verifyExitInput(txHash merkle.Hash, input *childtx.Input,
	sig []byte, inputProof *InputProof, slot int) error {

	inputPos, err := input.Position()
	if err != nil {
		return err
	}
	if inputProof.IsEmpty() {
		return ruleerrors.Errorf(ruleerrors.ErrMalformedTransaction,
			"input slot %d references %s but no input transaction was supplied",
			slot+1, inputPos)
	}

	inputTx, err := childtx.DeserializeTransaction(inputProof.TxBytes)
	if err != nil {
		return err
	}
	inputTxHash, err := inputTx.Hash()
	if err != nil {
		return err
	}
	err = l.verifyInclusion(inputPos, inputTxHash, inputProof.Proof)
	if err != nil {
		return err
	}

	// The exiting transaction's claimed owner must be the owner the
	// referenced output actually paid.
	if inputPos.OutputIndex() >= uint64(len(inputTx.Outputs)) {
		return ruleerrors.Errorf(ruleerrors.ErrMalformedTransaction,
			"input slot %d references output index %d beyond the "+
				"transaction's %d output slots",
			slot+1, inputPos.OutputIndex(), len(inputTx.Outputs))
	}
	referencedOutput := inputTx.Outputs[inputPos.OutputIndex()]
	if referencedOutput.IsEmpty() {
		return ruleerrors.Errorf(ruleerrors.ErrMalformedTransaction,
			"input slot %d references empty output %s", slot+1, inputPos)
	}
	if referencedOutput.NewOwner != input.Owner {
		return ruleerrors.Errorf(ruleerrors.ErrAuthorizationFailure,
			"input slot %d claims owner %s but the referenced output pays %s",
			slot+1, input.Owner, referencedOutput.NewOwner)
	}

	if childtx.IsZeroSignature(sig) {
		return ruleerrors.Errorf(ruleerrors.ErrAuthorizationFailure,
			"input slot %d carries no signature", slot+1)
	}
	signer, err := childtx.RecoverSigner(txHash, sig)
	if err != nil {
		return err
	}
	if signer != input.Owner {
		return ruleerrors.Errorf(ruleerrors.ErrAuthorizationFailure,
			"signature for input slot %d recovers to %s, want %s",
			slot+1, signer, input.Owner)
	}

	return l.checkConfirmationMargin(inputPos)
}

// checkConfirmationMargin enforces the reorg guard: the input's containing
// block must be buried under ConfirmationMargin child-block intervals,
// counted from the start of the input's child epoch, before its outputs
// may be exited from. Deposit blocks inherit the epoch they interleave.
func (l *Ledger) checkConfirmationMargin(inputPos utxopos.Position) error {
	interval := l.cfg.ChildBlockInterval
	epochStart := (inputPos.BlockNumber() / interval) * interval
	required := epochStart + l.cfg.ConfirmationMargin*interval
	lastSubmitted := l.currentChildBlock - interval
	if lastSubmitted < required {
		return ruleerrors.Errorf(ruleerrors.ErrPrematureAction,
			"input block %d needs the chain at child block %d, now at %d",
			inputPos.BlockNumber(), required, lastSubmitted)
	}
	return nil
}

// verifyInclusion checks that a leaf with the given content hash is
// committed at pos under the stored digest of pos's block.
func (l *Ledger) verifyInclusion(pos utxopos.Position, leaf merkle.Hash, proofBytes []byte) error {
	block, ok := l.blocks[pos.BlockNumber()]
	if !ok {
		return ruleerrors.Errorf(ruleerrors.ErrNotFound,
			"no committed block at slot %d", pos.BlockNumber())
	}
	proof, err := merkle.DeserializeProof(proofBytes, l.cfg.TreeDepth)
	if err != nil {
		return ruleerrors.Errorf(ruleerrors.ErrInclusionProofFailure,
			"%s", err)
	}
	if !merkle.VerifyProof(block.Root, l.cfg.TreeDepth, int(pos.TxIndex()), leaf, proof) {
		return ruleerrors.Errorf(ruleerrors.ErrInclusionProofFailure,
			"proof for %s does not recompute the digest of block %d",
			pos, pos.BlockNumber())
	}
	return nil
}

// ChallengeExit contests the live exit at exitingPos by presenting a
// committed transaction that spends the same position, signed by the
// exit's recorded owner. A successful challenge voids the exit: the record
// is retained for audit but will never pay out.
func (l *Ledger) ChallengeExit(exitingPos, challengePos utxopos.Position,
	txBytes, proof, sigs []byte) error {

	l.mtx.Lock()
	defer l.mtx.Unlock()

	record, ok := l.exits[exitingPos]
	if !ok || record.Voided {
		return ruleerrors.Errorf(ruleerrors.ErrNotFound,
			"no live exit at position %s", exitingPos)
	}

	challengeTx, err := childtx.DeserializeTransaction(txBytes)
	if err != nil {
		return err
	}
	challengeTxHash, err := challengeTx.Hash()
	if err != nil {
		return err
	}
	err = l.verifyInclusion(challengePos, challengeTxHash, proof)
	if err != nil {
		return err
	}

	// The challenge genuinely conflicts only if one of its inputs spends
	// the exiting position.
	spendingSlot := -1
	for slot := range challengeTx.Inputs {
		input := &challengeTx.Inputs[slot]
		if input.IsEmpty() {
			continue
		}
		inputPos, err := input.Position()
		if err != nil {
			return err
		}
		if inputPos == exitingPos {
			spendingSlot = slot
			break
		}
	}
	if spendingSlot == -1 {
		return ruleerrors.Errorf(ruleerrors.ErrAuthorizationFailure,
			"challenge transaction does not spend the exiting position %s",
			exitingPos)
	}

	sig1, sig2, err := childtx.SplitSignatureBundle(sigs)
	if err != nil {
		return err
	}
	sig := [2][]byte{sig1, sig2}[spendingSlot]
	if childtx.IsZeroSignature(sig) {
		return ruleerrors.Errorf(ruleerrors.ErrAuthorizationFailure,
			"challenge input slot %d carries no signature", spendingSlot+1)
	}
	signer, err := childtx.RecoverSigner(challengeTxHash, sig)
	if err != nil {
		return err
	}
	if signer != record.Owner {
		return ruleerrors.Errorf(ruleerrors.ErrAuthorizationFailure,
			"challenge signature recovers to %s, exit is owned by %s",
			signer, record.Owner)
	}

	voided := *record
	voided.Voided = true
	d := newDelta(l)
	d.putExit(&voided)
	err = l.commit(d)
	if err != nil {
		return err
	}

	log.Debugf("Exit at %s voided by spend at %s", exitingPos, challengePos)
	return nil
}

// FinalizeExits releases matured, unchallenged exits, oldest position
// first: value moves from escrow to the owner's withdrawal balance and the
// record is removed, atomically per record. Voided records are dropped
// without payout. Payouts are strictly position-ordered, so the pass stops
// at the first record still inside its challenge period; younger positions
// wait for it even when their own periods have elapsed. Every record
// processed, paid or dropped, counts against FinalizeBatchSize. Calling
// again when nothing is due is a no-op.
//
// A record whose value exceeds the remaining escrow is never released:
// the pass fails on it, leaving the record queued and the accounting
// intact. This is only reachable when an invalid exit survived its
// challenge period unchallenged.
func (l *Ledger) FinalizeExits() ([]Payout, error) {
	onEnd := logger.LogAndMeasureExecutionTime(log, "FinalizeExits")
	defer onEnd()

	l.mtx.Lock()
	defer l.mtx.Unlock()

	now := l.cfg.Clock.Now()
	var payouts []Payout

	for processed := 0; l.queue.len() > 0 && processed < l.cfg.FinalizeBatchSize; processed++ {
		pos := l.queue.peek()
		record, ok := l.exits[pos]
		if !ok {
			// Stale queue entry under an already-removed record.
			l.queue.pop()
			continue
		}
		if record.Voided {
			d := newDelta(l)
			d.deleteExit(pos)
			err := l.commit(d)
			if err != nil {
				return payouts, err
			}
			l.queue.pop()
			log.Debugf("Voided exit at %s dropped without payout", pos)
			continue
		}
		if record.ExitableAt.After(now) {
			break
		}
		if record.Value > l.escrow {
			return payouts, errors.Errorf(
				"exit at %s claims %d but escrow holds only %d",
				pos, record.Value, l.escrow)
		}

		d := newDelta(l)
		d.deleteExit(pos)
		d.putBalance(record.Owner, l.balances[record.Owner]+record.Value)
		d.meta.escrow -= record.Value
		err := l.commit(d)
		if err != nil {
			return payouts, err
		}
		l.queue.pop()
		payouts = append(payouts, Payout{
			Owner:    record.Owner,
			Token:    record.Token,
			Value:    record.Value,
			Position: pos,
		})
		log.Debugf("Exit at %s finalized: %d paid to %s",
			pos, record.Value, record.Owner)
	}

	return payouts, nil
}

// Exit returns a copy of the exit record at pos, voided or live. It
// returns ruleerrors.ErrNotFound when no record exists there.
func (l *Ledger) Exit(pos utxopos.Position) (ExitRecord, error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	record, ok := l.exits[pos]
	if !ok {
		return ExitRecord{}, ruleerrors.Errorf(ruleerrors.ErrNotFound,
			"no exit at position %s", pos)
	}
	return *record, nil
}

// Block returns the committed block at the given slot.
func (l *Ledger) Block(blockNumber uint64) (Block, error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	block, ok := l.blocks[blockNumber]
	if !ok {
		return Block{}, ruleerrors.Errorf(ruleerrors.ErrNotFound,
			"no committed block at slot %d", blockNumber)
	}
	return *block, nil
}

// CurrentChildBlock returns the next child-block slot awaiting submission.
func (l *Ledger) CurrentChildBlock() uint64 {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return l.currentChildBlock
}

// CurrentDepositBlockNumber returns the slot the next deposit block will
// occupy.
func (l *Ledger) CurrentDepositBlockNumber() uint64 {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return l.currentChildBlock - l.cfg.ChildBlockInterval + l.currentDepositIndex
}

// EscrowBalance returns the total value the ledger currently escrows.
func (l *Ledger) EscrowBalance() uint64 {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return l.escrow
}

// Balance returns owner's finalized withdrawal balance.
func (l *Ledger) Balance(owner common.Address) uint64 {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return l.balances[owner]
}

// ExitCount returns the number of exit records, live and voided.
func (l *Ledger) ExitCount() int {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return len(l.exits)
}
