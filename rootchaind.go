package main

import (
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/plasmalabs/rootchaind/domain/rootchain"
	"github.com/plasmalabs/rootchaind/infrastructure/config"
	"github.com/plasmalabs/rootchaind/infrastructure/db/database/ldb"
	"github.com/plasmalabs/rootchaind/infrastructure/logger"
	"github.com/plasmalabs/rootchaind/infrastructure/os/signal"
	"github.com/plasmalabs/rootchaind/util/panics"
	"github.com/plasmalabs/rootchaind/version"
)

const ledgerDatabaseDirname = "ledger"

// run is the real entry point of the daemon. It loads the configuration,
// opens the database, restores the settlement ledger and drives periodic
// exit finalization until an interrupt arrives.
func run() error {
	interrupt := signal.InterruptListener()

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	err = logger.InitLog(cfg.LogFile, cfg.ErrLogFile)
	if err != nil {
		return errors.Wrap(err, "initializing the log files")
	}
	defer logger.Close()
	defer panics.HandlePanic(log, nil)

	log.Infof("Version %s", version.Version())

	dbPath := filepath.Join(cfg.DataDir, ledgerDatabaseDirname)
	log.Infof("Loading database from '%s'", dbPath)
	db, err := ldb.NewLevelDB(dbPath, cfg.DBCacheSizeMiB)
	if err != nil {
		return errors.Wrapf(err, "opening database at %s", dbPath)
	}
	defer func() {
		log.Infof("Gracefully shutting down the database...")
		err := db.Close()
		if err != nil {
			log.Errorf("Error closing the database: %+v", err)
		}
	}()

	ledgerCfg := rootchain.DefaultConfig(cfg.Operator)
	ledgerCfg.ChallengePeriod = cfg.ChallengePeriod
	ledgerCfg.ConfirmationMargin = cfg.ConfirmationMargin
	ledgerCfg.FinalizeBatchSize = cfg.FinalizeBatchSize
	ledgerCfg.Store = rootchain.NewStore(db)
	ledger, err := rootchain.New(ledgerCfg)
	if err != nil {
		return errors.Wrap(err, "constructing the settlement ledger")
	}
	log.Infof("Settlement ledger ready: operator %s, next child block %d",
		cfg.Operator, ledger.CurrentChildBlock())

	stopFinalizer := startFinalizationLoop(ledger, cfg.FinalizeInterval)
	defer stopFinalizer()

	if signal.InterruptRequested(interrupt) {
		return nil
	}
	<-interrupt
	return nil
}

// startFinalizationLoop runs FinalizeExits every interval until the
// returned stop function is called. Matured exits need no external prompt
// to pay out.
func startFinalizationLoop(ledger *rootchain.Ledger, interval time.Duration) (stop func()) {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	spawn(func() {
		for {
			select {
			case <-ticker.C:
				payouts, err := ledger.FinalizeExits()
				if err != nil {
					log.Errorf("Finalization pass failed: %+v", err)
					continue
				}
				for _, payout := range payouts {
					log.Infof("Finalized exit at %s: %d released to %s",
						payout.Position, payout.Value, payout.Owner)
				}
			case <-done:
				return
			}
		}
	})

	return func() {
		ticker.Stop()
		close(done)
	}
}
