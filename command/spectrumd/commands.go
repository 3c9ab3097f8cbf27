// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/bitmark-inc/exitwithstatus"
	"github.com/bitmark-inc/logger"

	"github.com/spectrum-node/spectrumd/block"
)

// setup command handler
//
// commands that cannot access any internal database or states or the
// configuration file
func processSetupCommand(program string, arguments []string) bool {

	command := "help"
	if len(arguments) > 0 {
		command = arguments[0]
	}

	switch command {
	case "version", "v":
		fmt.Printf("%s\n", version)
		return true

	case "config-test", "cfg":
		return false // defer processing until configuration is read

	case "start", "run":
		return false // continue processing

	case "info", "block", "b", "save-blocks", "save", "import",
		"delete-down", "dd", "rollback", "checkpoint", "checkpoints",
		"verify", "activate", "deploy":
		return false // defer processing until the store is opened

	default:
		switch command {
		case "help", "h", "?":
		case "", " ":
			fmt.Printf("error: missing command\n")
		default:
			fmt.Printf("error: no such command: %q\n", command)
		}
		fmt.Printf("usage: %s [--help] [--verbose] [--quiet] --config-file=FILE [[command|help] arguments...]\n", program)

		fmt.Printf("supported commands:\n\n")
		fmt.Printf("  help                       (h)      - display this message\n\n")
		fmt.Printf("  version                    (v)      - display version sting\n\n")

		fmt.Printf("  start                      (run)    - watch the import directory, same as no arguments\n")
		fmt.Printf("\n")

		fmt.Printf("  config-test                (cfg)    - just check the configuration file\n")
		fmt.Printf("\n")

		fmt.Printf("  info                                - display the ledger state\n")
		fmt.Printf("\n")

		fmt.Printf("  block S [E]                (b)      - dump block(s) as JSON structures to stdout\n")
		fmt.Printf("\n")

		fmt.Printf("  save-blocks DIR [S [E]]    (save)   - write blocks as %q files to DIR\n", "HEIGHT"+blockSuffix)
		fmt.Printf("\n")

		fmt.Printf("  import DIR                          - store consecutive block files from DIR\n")
		fmt.Printf("\n")

		fmt.Printf("  delete-down NUMBER         (dd)     - delete blocks in descending order\n")
		fmt.Printf("\n")

		fmt.Printf("  rollback NUMBER                     - undo blocks down to the snapshot at NUMBER\n")
		fmt.Printf("\n")

		fmt.Printf("  checkpoint NUMBER                   - archive the snapshots ending at NUMBER\n")
		fmt.Printf("  checkpoints                         - list archived checkpoints\n")
		fmt.Printf("  verify FILE                         - check a checkpoint archive\n")
		fmt.Printf("  activate FILE                       - start staging from a checkpoint archive\n")
		fmt.Printf("  deploy                              - replace the live chain by the staged one\n")
		fmt.Printf("\n")

		exitwithstatus.Exit(1)
	}

	// indicate processing complete and preform normal exit from main
	return true
}

// configuration file enquiry commands
// have configuration file read and decoded, but nothing else
func processConfigCommand(arguments []string, options *Configuration) bool {

	command := "help"
	if len(arguments) > 0 {
		command = arguments[0]
	}

	switch command {
	case "config-test", "cfg":
		printJson("", options)

	default: // unknown commands fall through to data command
		return false
	}

	// indicate processing complete and perform normal exit from main
	return true
}

// data command handler
// the block store is open so these commands can access and/or change
// the ledger
func processDataCommand(ctx context.Context, log *logger.L, arguments []string, store *block.Store) bool {

	command := "help"
	if len(arguments) > 0 {
		command = arguments[0]
		arguments = arguments[1:]
	}

	switch command {

	case "start", "run":
		return false // continue processing

	case "info":
		summary, err := store.State()
		if nil != err {
			exitwithstatus.Message("state error: %s", err)
		}
		printJson("", summary)

	case "block", "b":
		start, end := heightRange(arguments, store.Height())
		results := make([]*blockResult, 0, end-start+1)
		for n := start; n <= end; n += 1 {
			result, err := dumpBlock(store, n)
			if nil != err {
				exitwithstatus.Message("dump block: %d  error: %s", n, err)
			}
			results = append(results, result)
		}
		printJson("", results)

	case "save-blocks", "save":
		if len(arguments) < 1 {
			exitwithstatus.Message("missing directory argument")
		}
		directory := arguments[0]
		start, end := heightRange(arguments[1:], store.Height())
		n, err := saveBlocks(store, directory, start, end)
		if nil != err {
			exitwithstatus.Message("save blocks to: %q  error: %s", directory, err)
		}
		fmt.Printf("saved: %d blocks\n", n)

	case "import":
		if len(arguments) < 1 {
			exitwithstatus.Message("missing directory argument")
		}
		imp, err := newImporter(store, arguments[0], false)
		if nil != err {
			exitwithstatus.Message("import error: %s", err)
		}
		n, err := imp.scan()
		if nil != err {
			exitwithstatus.Message("import error: %s", err)
		}
		fmt.Printf("imported: %d blocks  height: %d\n", n, store.Height())

	case "delete-down", "dd":
		n := heightArgument(arguments)
		log.Warnf("delete down to block: %d", n)
		if err := store.DeleteDownToBlock(n); nil != err {
			exitwithstatus.Message("delete down: %d  error: %s", n, err)
		}
		fmt.Printf("height: %d\n", store.Height())

	case "rollback":
		n := heightArgument(arguments)
		log.Warnf("roll back to snapshot: %d", n)
		if err := store.RollBackToSnapshot(n); nil != err {
			exitwithstatus.Message("roll back: %d  error: %s", n, err)
		}
		fmt.Printf("height: %d\n", store.Height())

	case "checkpoint":
		n := heightArgument(arguments)
		hash, err := store.NewCheckpoint(n)
		if nil != err {
			exitwithstatus.Message("checkpoint: %d  error: %s", n, err)
		}
		fmt.Printf("checkpoint: %d  hash: %s\n", n, hash)

	case "checkpoints":
		list, err := store.Checkpoints()
		if nil != err {
			exitwithstatus.Message("list checkpoints error: %s", err)
		}
		printJson("", list)

	case "verify":
		manifest, err := store.VerifyCheckpoint(fileArgument(arguments))
		if nil != err {
			exitwithstatus.Message("verify error: %s", err)
		}
		printJson("", manifest)

	case "activate":
		if err := store.ActivateCheckpoint(fileArgument(arguments)); nil != err {
			exitwithstatus.Message("activate error: %s", err)
		}
		fmt.Printf("checkpoint: %s\n", store.CheckpointState())

	case "deploy":
		if err := store.DeployCheckpoint(ctx); nil != err {
			exitwithstatus.Message("deploy error: %s", err)
		}
		fmt.Printf("height: %d\n", store.Height())

	default:
		exitwithstatus.Message("error: no such command: %q", command)
	}

	// indicate processing complete and perform normal exit from main
	return true
}

func heightArgument(arguments []string) uint64 {
	if len(arguments) < 1 {
		exitwithstatus.Message("missing block number argument")
	}
	n, err := strconv.ParseUint(arguments[0], 10, 64)
	if nil != err {
		exitwithstatus.Message("error in block number: %s", err)
	}
	return n
}

func fileArgument(arguments []string) string {
	if len(arguments) < 1 || "" == arguments[0] {
		exitwithstatus.Message("missing file name argument")
	}
	path, err := filepath.Abs(arguments[0])
	if nil != err {
		exitwithstatus.Message("file name: %q  error: %s", arguments[0], err)
	}
	return path
}

// optional start and end heights, defaulting to the whole chain
func heightRange(arguments []string, tip int64) (uint64, uint64) {
	if tip < 0 {
		exitwithstatus.Message("error: no blocks")
	}
	start := uint64(0)
	end := uint64(tip)
	if len(arguments) > 0 {
		start = heightArgument(arguments)
		end = start
	}
	if len(arguments) > 1 {
		end = heightArgument(arguments[1:])
	}
	if end < start || end > uint64(tip) {
		exitwithstatus.Message("error: invalid block range: %d to %d", start, end)
	}
	return start, end
}

// write blocks in the format the importer reads
func saveBlocks(store *block.Store, directory string, start uint64, end uint64) (int, error) {
	if err := os.MkdirAll(directory, 0700); nil != err {
		return 0, err
	}
	n := 0
	for h := start; h <= end; h += 1 {
		packed, err := store.GetBlock(h)
		if nil != err {
			return n, err
		}
		if nil == packed {
			continue // pruned
		}
		name := filepath.Join(directory, strconv.FormatUint(h, 10))
		if err := os.WriteFile(name+blockSuffix, packed, 0600); nil != err {
			return n, err
		}
		info, err := store.GetBlockInfo(h)
		if nil != err {
			return n, err
		}
		if nil != info {
			if err := os.WriteFile(name+infoSuffix, info, 0600); nil != err {
				return n, err
			}
		}
		n += 1
	}
	return n, nil
}
