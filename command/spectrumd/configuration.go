// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bitmark-inc/logger"

	"github.com/spectrum-node/spectrumd/block"
	"github.com/spectrum-node/spectrumd/blockdigest"
	"github.com/spectrum-node/spectrumd/configuration"
	"github.com/spectrum-node/spectrumd/identity"
	"github.com/spectrum-node/spectrumd/ledger"
	"github.com/spectrum-node/spectrumd/util"
)

// basic defaults (directories and files are relative to the "DataDirectory" from Configuration file)
const (
	defaultDataDirectory = "" // this will error; use "." for the same directory as the config file

	defaultLedgerDirectory = "data"
	defaultImportDirectory = "import"

	defaultLogDirectory = "log"
	defaultLogFile      = "spectrumd.log"
	defaultLogCount     = 10          //  number of log files retained
	defaultLogSize      = 1024 * 1024 // rotate when <logfile> exceeds this size

	defaultPrefixes         = "S"
	defaultSnapshotInterval = 1000
	defaultSnapshotRetain   = 3
	defaultCheckpointRetain = 2
)

// LoglevelMap - to hold log levels
type LoglevelMap map[string]string

// path expanded or calculated defaults
var (
	defaultLogLevels = LoglevelMap{
		"main":            "info",
		logger.DefaultTag: "critical",
	}
)

// LedgerType - block ledger tuning
type LedgerType struct {
	BatchSize       int64 `gluamapper:"batch_size" json:"batch_size"`
	OpenBatchFiles  int   `gluamapper:"open_batch_files" json:"open_batch_files"`
	UtxoOffsetCache int   `gluamapper:"utxo_offset_cache" json:"utxo_offset_cache"` // seconds
}

// IdentityType - identity file shape
type IdentityType struct {
	Prefixes       string `gluamapper:"prefixes" json:"prefixes"`
	AddressBits    uint   `gluamapper:"address_bits" json:"address_bits"`
	ChunkSize      int    `gluamapper:"chunk_size" json:"chunk_size"`
	BytesPerSecond int    `gluamapper:"bytes_per_second" json:"bytes_per_second"`
}

// SnapshotType - snapshot schedule
type SnapshotType struct {
	Interval uint64 `gluamapper:"interval" json:"interval"`
	Retain   int    `gluamapper:"retain" json:"retain"`
}

// CheckpointType - checkpoint schedule and proof sampling
type CheckpointType struct {
	Interval         uint64  `gluamapper:"interval" json:"interval"`
	Retain           int     `gluamapper:"retain" json:"retain"`
	ProofSampleRate  float64 `gluamapper:"proof_sample_rate" json:"proof_sample_rate"`
	Argon2Memory     uint32  `gluamapper:"argon2_memory" json:"argon2_memory"`
	Argon2Iterations uint32  `gluamapper:"argon2_iterations" json:"argon2_iterations"`
}

// Configuration - the whole configuration file
type Configuration struct {
	DataDirectory   string               `gluamapper:"data_directory" json:"data_directory"`
	PidFile         string               `gluamapper:"pidfile" json:"pidfile"`
	LedgerDirectory string               `gluamapper:"ledger_directory" json:"ledger_directory"`
	ImportDirectory string               `gluamapper:"import_directory" json:"import_directory"`
	Ledger          LedgerType           `gluamapper:"ledger" json:"ledger"`
	Identity        IdentityType         `gluamapper:"identity" json:"identity"`
	Snapshot        SnapshotType         `gluamapper:"snapshot" json:"snapshot"`
	Checkpoint      CheckpointType       `gluamapper:"checkpoint" json:"checkpoint"`
	Logging         logger.Configuration `gluamapper:"logging" json:"logging"`
}

// will read decode and verify the configuration
func getConfiguration(configurationFileName string, variables map[string]string) (*Configuration, error) {

	configurationFileName, err := filepath.Abs(filepath.Clean(configurationFileName))
	if nil != err {
		return nil, err
	}

	// absolute path to the main directory
	dataDirectory, _ := filepath.Split(configurationFileName)

	defaults := blockdigest.DefaultHasher()
	options := &Configuration{
		DataDirectory:   defaultDataDirectory,
		PidFile:         "", // no PidFile by default
		LedgerDirectory: defaultLedgerDirectory,
		ImportDirectory: defaultImportDirectory,

		Ledger: LedgerType{
			BatchSize:       ledger.DefaultBatchSize,
			OpenBatchFiles:  ledger.DefaultOpenBatchFiles,
			UtxoOffsetCache: int(ledger.DefaultOffsetCacheExpiry / time.Second),
		},

		Identity: IdentityType{
			Prefixes:    defaultPrefixes,
			AddressBits: identity.DefaultAddressBits,
			ChunkSize:   identity.DefaultChunkSize,
		},

		Snapshot: SnapshotType{
			Interval: defaultSnapshotInterval,
			Retain:   defaultSnapshotRetain,
		},

		Checkpoint: CheckpointType{
			Retain:           defaultCheckpointRetain,
			ProofSampleRate:  -1, // use the built in default
			Argon2Memory:     defaults.Memory,
			Argon2Iterations: defaults.Iterations,
		},

		Logging: logger.Configuration{
			Directory: defaultLogDirectory,
			File:      defaultLogFile,
			Size:      defaultLogSize,
			Count:     defaultLogCount,
			Levels:    defaultLogLevels,
		},
	}

	if err := configuration.ParseConfigurationFile(configurationFileName, options, variables); err != nil {
		return nil, err
	}

	// ensure absolute data directory
	if "" == options.DataDirectory || "~" == options.DataDirectory {
		return nil, fmt.Errorf("Path: %q is not a valid directory", options.DataDirectory)
	} else if "." == options.DataDirectory {
		options.DataDirectory = dataDirectory // same directory as the configuration file
	}
	options.DataDirectory = filepath.Clean(options.DataDirectory)

	// this directory must exist - i.e. must be created prior to running
	if fileInfo, err := os.Stat(options.DataDirectory); nil != err {
		return nil, err
	} else if !fileInfo.IsDir() {
		return nil, fmt.Errorf("Path: %q is not a directory", options.DataDirectory)
	}

	if 0 != options.Checkpoint.Interval && (0 == options.Snapshot.Interval || 0 != options.Checkpoint.Interval%options.Snapshot.Interval) {
		return nil, fmt.Errorf("checkpoint interval: %d is not a multiple of snapshot interval: %d", options.Checkpoint.Interval, options.Snapshot.Interval)
	}

	// optional absolute paths i.e. blank or an absolute path
	if "" != options.PidFile {
		options.PidFile = util.EnsureAbsolute(options.DataDirectory, options.PidFile)
	}

	// the log file must be a plain name inside the log directory
	if !util.IsPlainName(options.Logging.File) {
		return nil, fmt.Errorf("Files: %q is not plain name", options.Logging.File)
	}

	// make absolute and create directories if they do not already exist
	for _, d := range []*string{
		&options.LedgerDirectory,
		&options.ImportDirectory,
		&options.Logging.Directory,
	} {
		*d = util.EnsureAbsolute(options.DataDirectory, *d)
		if err := os.MkdirAll(*d, 0700); nil != err {
			return nil, err
		}
	}

	// done
	return options, nil
}

// the store configuration derived from the file
func (c *Configuration) blockConfiguration(progress identity.Progress) block.Configuration {
	return block.Configuration{
		Directory: c.LedgerDirectory,
		Ledger: ledger.Options{
			BatchSize:         c.Ledger.BatchSize,
			OpenBatchFiles:    c.Ledger.OpenBatchFiles,
			OffsetCacheExpiry: time.Duration(c.Ledger.UtxoOffsetCache) * time.Second,
		},
		Identity: identity.Options{
			Prefixes:       c.Identity.Prefixes,
			AddressBits:    c.Identity.AddressBits,
			ChunkSize:      c.Identity.ChunkSize,
			BytesPerSecond: c.Identity.BytesPerSecond,
		},
		SnapshotInterval:   c.Snapshot.Interval,
		SnapshotRetain:     c.Snapshot.Retain,
		CheckpointInterval: c.Checkpoint.Interval,
		CheckpointRetain:   c.Checkpoint.Retain,
		ProofSampleRate:    c.Checkpoint.ProofSampleRate,
		Hasher: blockdigest.Hasher{
			Memory:      c.Checkpoint.Argon2Memory,
			Iterations:  c.Checkpoint.Argon2Iterations,
			Parallelism: blockdigest.DefaultParallelism,
		},
		Progress: progress,
	}
}
