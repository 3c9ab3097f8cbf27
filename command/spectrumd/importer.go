// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/bitmark-inc/logger"
	"github.com/fsnotify/fsnotify"

	"github.com/spectrum-node/spectrumd/blockrecord"
	"github.com/spectrum-node/spectrumd/fault"
)

// file name suffixes in the import directory
const (
	blockSuffix    = ".blk"
	infoSuffix     = ".info"
	rejectedSuffix = ".rejected"
)

// rescan even without events in case any were missed
const rescanInterval = 30 * time.Second

// the part of the block store the importer needs
type blockStore interface {
	Height() int64
	StoreIncoming(packed blockrecord.PackedBlock, info []byte) error
}

type importer struct {
	log       *logger.L
	store     blockStore
	directory string
	watcher   *fsnotify.Watcher
}

// create an importer, the watcher is only needed by Run
func newImporter(store blockStore, directory string, watch bool) (*importer, error) {
	directory, err := filepath.Abs(filepath.Clean(directory))
	if nil != err {
		return nil, err
	}
	if fileInfo, err := os.Stat(directory); nil != err {
		return nil, err
	} else if !fileInfo.IsDir() {
		return nil, fmt.Errorf("Path: %q is not a directory", directory)
	}

	imp := &importer{
		log:       logger.New("importer"),
		store:     store,
		directory: directory,
	}

	if watch {
		imp.watcher, err = fsnotify.NewWatcher()
		if nil != err {
			return nil, err
		}
		if err := imp.watcher.Add(directory); nil != err {
			imp.watcher.Close()
			return nil, err
		}
	}
	return imp, nil
}

func (imp *importer) path(height int64, suffix string) string {
	return filepath.Join(imp.directory, strconv.FormatInt(height, 10)+suffix)
}

// store every consecutive block file above the current height
//
// returns the number of blocks stored; a file the store rejects as an
// invalid block is renamed so it does not block later files, on any
// other error the file stays for a later scan
func (imp *importer) scan() (int, error) {
	n := 0
	for {
		height := imp.store.Height() + 1
		blockFile := imp.path(height, blockSuffix)

		packed, err := os.ReadFile(blockFile)
		if os.IsNotExist(err) {
			return n, nil
		}
		if nil != err {
			return n, err
		}

		info, err := os.ReadFile(imp.path(height, infoSuffix))
		if nil != err && !os.IsNotExist(err) {
			return n, err
		}

		err = imp.store.StoreIncoming(packed, info)
		switch {
		case nil == err:
		case fault.IsErrLength(err):
			// possibly still being written
			imp.log.Debugf("block file: %q  incomplete: %s", blockFile, err)
			return n, nil
		case imp.store.Height() >= height:
			// in the ledger, the failure was in later processing
			imp.log.Errorf("block file: %q  stored with error: %s", blockFile, err)
			imp.remove(height)
			return n + 1, err
		case rejected(err):
			imp.log.Warnf("block file: %q  rejected: %s", blockFile, err)
			if err := os.Rename(blockFile, blockFile+rejectedSuffix); nil != err {
				return n, err
			}
			return n, nil
		default:
			imp.log.Errorf("block file: %q  kept: %s", blockFile, err)
			return n, err
		}

		imp.log.Debugf("imported block: %d", height)
		n += 1
		imp.remove(height)
	}
}

func (imp *importer) remove(height int64) {
	_ = os.Remove(imp.path(height, blockSuffix))
	_ = os.Remove(imp.path(height, infoSuffix))
}

// errors that condemn the block itself rather than the store
func rejected(err error) bool {
	switch err {
	case fault.ErrInconsistentBlockchainBytes:
		return false
	case fault.ErrMissingInputs, fault.ErrUtxoAlreadySpent, fault.ErrUtxoNotFound:
		return true
	}
	return fault.IsErrInvalid(err) || fault.IsErrRecord(err)
}

// Run - import on directory events until shutdown
func (imp *importer) Run(args interface{}, shutdown <-chan struct{}) {
	log := imp.log
	log.Infof("watching: %q", imp.directory)

	imp.scanAndLog()

loop:
	for {
		select {
		case <-shutdown:
			break loop

		case event, ok := <-imp.watcher.Events:
			if !ok {
				break loop
			}
			log.Debugf("file event: %v", event)
			if !importEvent(event) {
				continue loop
			}
			imp.scanAndLog()

		case err, ok := <-imp.watcher.Errors:
			if !ok {
				break loop
			}
			log.Errorf("watcher error: %s", err)

		case <-time.After(rescanInterval):
			imp.scanAndLog()
		}
	}

	_ = imp.watcher.Close()
	log.Info("stopped")
}

func (imp *importer) scanAndLog() {
	n, err := imp.scan()
	if nil != err {
		imp.log.Errorf("import error: %s", err)
	}
	if 0 != n {
		imp.log.Infof("imported: %d blocks  height: %d", n, imp.store.Height())
	}
}

// only events that can make a new block file complete
func importEvent(event fsnotify.Event) bool {
	switch filepath.Ext(event.Name) {
	case blockSuffix, infoSuffix:
	default:
		return false
	}
	return event.Op&fsnotify.Create == fsnotify.Create ||
		event.Op&fsnotify.Write == fsnotify.Write ||
		event.Op&fsnotify.Rename == fsnotify.Rename
}
