// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	"github.com/plasmalabs/rootchaind/domain/rootchain"
	"github.com/plasmalabs/rootchaind/infrastructure/logger"
	"github.com/plasmalabs/rootchaind/util"
	"github.com/plasmalabs/rootchaind/version"
)

const (
	defaultConfigFilename = "rootchaind.conf"
	defaultLogLevel       = "info"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "rootchaind.log"
	defaultErrLogFilename = "rootchaind_err.log"
	defaultDataDirname    = "data"

	defaultDBCacheSizeMiB   = 16
	defaultFinalizeInterval = time.Minute
)

var (
	// DefaultAppDir is the default home directory of the daemon.
	DefaultAppDir = util.AppDataDir("rootchaind", false)

	defaultConfigFile = filepath.Join(DefaultAppDir, defaultConfigFilename)
)

// Flags holds the command-line and config-file options of the daemon.
type Flags struct {
	ShowVersion bool   `short:"V" long:"version" description:"Display version information and exit"`
	ConfigFile  string `short:"C" long:"configfile" description:"Path to configuration file"`
	AppDir      string `short:"b" long:"appdir" description:"Directory to store data"`
	LogDir      string `long:"logdir" description:"Directory to log output"`
	DebugLevel  string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`

	OperatorAddress    string        `long:"operator" description:"Hex address of the only account allowed to submit child blocks"`
	ChallengePeriod    time.Duration `long:"challengeperiod" description:"Window during which a started exit can be contested"`
	ConfirmationMargin uint64        `long:"confirmationmargin" description:"Child-block intervals an exit input must be buried under"`
	FinalizeBatchSize  int           `long:"finalizebatchsize" description:"Maximum payouts released by one finalization pass"`
	FinalizeInterval   time.Duration `long:"finalizeinterval" description:"Period between automatic finalization passes"`
	DBCacheSizeMiB     int           `long:"dbcachesize" description:"Database block cache size in MiB"`
}

// Config is the parsed and validated daemon configuration.
type Config struct {
	*Flags

	// Operator is the parsed form of OperatorAddress.
	Operator common.Address

	// DataDir and the log files derive from AppDir and LogDir.
	DataDir    string
	LogFile    string
	ErrLogFile string
}

func defaultFlags() *Flags {
	return &Flags{
		ConfigFile:         defaultConfigFile,
		AppDir:             DefaultAppDir,
		DebugLevel:         defaultLogLevel,
		ChallengePeriod:    rootchain.DefaultChallengePeriod,
		ConfirmationMargin: rootchain.DefaultConfirmationMargin,
		FinalizeBatchSize:  rootchain.DefaultFinalizeBatchSize,
		FinalizeInterval:   defaultFinalizeInterval,
		DBCacheSizeMiB:     defaultDBCacheSizeMiB,
	}
}

// LoadConfig initializes and parses the config using a config file and
// command line options.
//
// The configuration proceeds as follows:
//  1) Start with a default config with sane settings
//  2) Pre-parse the command line to check for an alternative config file
//  3) Load configuration file overwriting defaults with any specified options
//  4) Parse CLI options and overwrite/add any specified options
func LoadConfig() (*Config, error) {
	cfgFlags := defaultFlags()

	// Pre-parse the command line options to see if an alternative config
	// file was specified. The help message flag can be ignored here since
	// it will be caught by the final parse below.
	preCfg := *cfgFlags
	preParser := flags.NewParser(&preCfg, flags.HelpFlag)
	_, err := preParser.Parse()
	if err != nil {
		var flagsErr *flags.Error
		if ok := errors.As(err, &flagsErr); ok && flagsErr.Type == flags.ErrHelp {
			return nil, err
		}
	}

	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	if preCfg.ShowVersion {
		fmt.Println(appName, "version", version.Version())
		os.Exit(0)
	}

	// Load additional config from file.
	parser := flags.NewParser(cfgFlags, flags.Default)
	configFileSpecified := preCfg.ConfigFile != defaultConfigFile
	if preCfg.ConfigFile != "" {
		err := flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile)
		if err != nil {
			// A missing default config file is fine. A missing
			// explicitly specified one is not.
			if !os.IsNotExist(errors.Cause(err)) || configFileSpecified {
				return nil, errors.Wrapf(err, "loading config file %s",
					preCfg.ConfigFile)
			}
		}
	}

	// Parse command line options again to ensure they take precedence.
	_, err = parser.Parse()
	if err != nil {
		return nil, err
	}

	cfg, err := resolveConfig(cfgFlags)
	if err != nil {
		return nil, err
	}

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", logger.SupportedSubsystems())
		os.Exit(0)
	}
	err = logger.ParseAndSetDebugLevels(cfg.DebugLevel)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// resolveConfig validates the parsed flags and derives the daemon paths
// from them.
func resolveConfig(cfgFlags *Flags) (*Config, error) {
	if cfgFlags.OperatorAddress == "" {
		return nil, errors.New("the --operator option is required")
	}
	if !common.IsHexAddress(cfgFlags.OperatorAddress) {
		return nil, errors.Errorf("--operator %q is not a valid hex address",
			cfgFlags.OperatorAddress)
	}
	if cfgFlags.ChallengePeriod <= 0 {
		return nil, errors.New("--challengeperiod must be positive")
	}
	if cfgFlags.FinalizeBatchSize <= 0 {
		return nil, errors.New("--finalizebatchsize must be positive")
	}
	if cfgFlags.FinalizeInterval <= 0 {
		return nil, errors.New("--finalizeinterval must be positive")
	}

	appDir := cleanAndExpandPath(cfgFlags.AppDir)
	logDir := cfgFlags.LogDir
	if logDir == "" {
		logDir = filepath.Join(appDir, defaultLogDirname)
	} else {
		logDir = cleanAndExpandPath(logDir)
	}

	cfg := &Config{
		Flags:      cfgFlags,
		Operator:   common.HexToAddress(cfgFlags.OperatorAddress),
		DataDir:    filepath.Join(appDir, defaultDataDirname),
		LogFile:    filepath.Join(logDir, defaultLogFilename),
		ErrLogFile: filepath.Join(logDir, defaultErrLogFilename),
	}

	err := os.MkdirAll(cfg.DataDir, 0700)
	if err != nil {
		return nil, errors.Wrapf(err, "creating data directory %s", cfg.DataDir)
	}
	return cfg, nil
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		homeDir := filepath.Dir(DefaultAppDir)
		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but the variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}
