package rootchain

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/plasmalabs/rootchaind/domain/utxopos"
	"github.com/plasmalabs/rootchaind/infrastructure/db/database/ldb"
)

func TestStoreRestore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ledger")
	db, err := ldb.NewLevelDB(dbPath, 8)
	if err != nil {
		t.Fatalf("NewLevelDB: %s", err)
	}

	operator := newTestActor(t)
	alice := newTestActor(t)
	bob := newTestActor(t)
	clock := &fakeClock{now: time.Unix(1_600_000_000, 0)}

	cfg := DefaultConfig(operator.addr)
	cfg.Clock = clock
	cfg.Store = NewStore(db)
	ledger, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %s", err)
	}

	aliceDeposit, err := ledger.Deposit(alice.addr, 100)
	if err != nil {
		t.Fatalf("Deposit: %s", err)
	}
	bobDeposit, err := ledger.Deposit(bob.addr, 50)
	if err != nil {
		t.Fatalf("Deposit: %s", err)
	}
	if err := ledger.StartDepositExit(alice.addr, aliceDeposit); err != nil {
		t.Fatalf("StartDepositExit: %s", err)
	}
	if err := ledger.StartDepositExit(bob.addr, bobDeposit); err != nil {
		t.Fatalf("StartDepositExit: %s", err)
	}

	clock.advance(DefaultChallengePeriod + time.Hour)
	payouts, err := ledger.FinalizeExits()
	if err != nil {
		t.Fatalf("FinalizeExits: %s", err)
	}
	if len(payouts) != 1+1 {
		t.Fatalf("got %d payouts, want 2", len(payouts))
	}

	// More state that must survive the restart: a fresh deposit with a
	// still-pending exit.
	carolDeposit, err := ledger.Deposit(alice.addr, 25)
	if err != nil {
		t.Fatalf("Deposit: %s", err)
	}
	if err := ledger.StartDepositExit(alice.addr, carolDeposit); err != nil {
		t.Fatalf("StartDepositExit: %s", err)
	}

	err = db.Close()
	if err != nil {
		t.Fatalf("Close: %s", err)
	}

	// Reopen the database and rebuild the ledger from it.
	db, err = ldb.NewLevelDB(dbPath, 8)
	if err != nil {
		t.Fatalf("NewLevelDB: %s", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			t.Fatalf("Close: %s", err)
		}
	}()

	restoredCfg := DefaultConfig(operator.addr)
	restoredCfg.Clock = clock
	restoredCfg.Store = NewStore(db)
	restored, err := New(restoredCfg)
	if err != nil {
		t.Fatalf("New from store: %s", err)
	}

	if got := restored.CurrentChildBlock(); got != ledger.CurrentChildBlock() {
		t.Fatalf("restored CurrentChildBlock = %d, want %d",
			got, ledger.CurrentChildBlock())
	}
	if got := restored.CurrentDepositBlockNumber(); got != ledger.CurrentDepositBlockNumber() {
		t.Fatalf("restored CurrentDepositBlockNumber = %d, want %d",
			got, ledger.CurrentDepositBlockNumber())
	}
	if got := restored.EscrowBalance(); got != 25 {
		t.Fatalf("restored EscrowBalance = %d, want 25", got)
	}
	if got := restored.Balance(alice.addr); got != 100 {
		t.Fatalf("restored Balance(alice) = %d, want 100", got)
	}
	if got := restored.Balance(bob.addr); got != 50 {
		t.Fatalf("restored Balance(bob) = %d, want 50", got)
	}

	// Committed blocks and live exits come back byte for byte.
	for _, blockNumber := range []uint64{aliceDeposit, bobDeposit, carolDeposit} {
		original, err := ledger.Block(blockNumber)
		if err != nil {
			t.Fatalf("Block(%d): %s", blockNumber, err)
		}
		got, err := restored.Block(blockNumber)
		if err != nil {
			t.Fatalf("restored Block(%d): %s", blockNumber, err)
		}
		if got.Root != original.Root {
			t.Fatalf("restored block %d digest %s, want %s",
				blockNumber, got.Root, original.Root)
		}
		if !got.Timestamp.Equal(original.Timestamp) {
			t.Fatalf("restored block %d timestamp %s, want %s",
				blockNumber, got.Timestamp, original.Timestamp)
		}
	}

	pendingPos, err := utxopos.New(carolDeposit, 0, 0)
	if err != nil {
		t.Fatalf("utxopos.New: %s", err)
	}
	record, err := restored.Exit(pendingPos)
	if err != nil {
		t.Fatalf("restored Exit: %s", err)
	}
	if record.Owner != alice.addr || record.Value != 25 || record.Voided {
		t.Fatalf("restored exit record %+v, want live record for %s value 25",
			record, alice.addr)
	}

	// The restored exit is queued and matures once its own challenge
	// period elapses.
	clock.advance(DefaultChallengePeriod + time.Hour)
	payouts, err = restored.FinalizeExits()
	if err != nil {
		t.Fatalf("restored FinalizeExits: %s", err)
	}
	if len(payouts) != 1 || payouts[0].Position != pendingPos {
		t.Fatalf("restored finalize released %+v, want the exit at %s",
			payouts, pendingPos)
	}
	if got := restored.EscrowBalance(); got != 0 {
		t.Fatalf("restored EscrowBalance after finalize = %d, want 0", got)
	}
}
