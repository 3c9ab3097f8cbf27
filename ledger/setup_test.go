// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bitmark-inc/logger"
	"github.com/stretchr/testify/require"

	"github.com/spectrum-node/spectrumd/ledger"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "ledger-test")
	if nil != err {
		panic(err)
	}

	logging := logger.Configuration{
		Directory: dir,
		File:      "testing.log",
		Size:      1048576,
		Count:     10,
		Console:   false,
		Levels: map[string]string{
			logger.DefaultTag: "critical",
		},
	}
	_ = logger.Initialise(logging)

	rc := m.Run()

	logger.Finalise()
	_ = os.RemoveAll(dir)
	os.Exit(rc)
}

// small batches so tests cross batch file boundaries
const testBatchSize = 3

func openStore(t *testing.T, directory string) *ledger.Store {
	s, err := ledger.Open(directory, ledger.Options{BatchSize: testBatchSize, OpenBatchFiles: 2})
	require.Nil(t, err, "open ledger")
	return s
}

func newStore(t *testing.T) (*ledger.Store, string) {
	directory := filepath.Join(t.TempDir(), "blockchain")
	return openStore(t, directory), directory
}

// size of a file, 0 if it does not exist
func fileSize(t *testing.T, path string) int64 {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return 0
	}
	require.Nil(t, err, "stat: %s", path)
	return info.Size()
}

type sizes struct {
	index   int64
	batches [4]int64
}

func allSizes(t *testing.T, directory string) sizes {
	s := sizes{
		index: fileSize(t, filepath.Join(directory, "blockchain.idx")),
	}
	for i := range s.batches {
		s.batches[i] = fileSize(t, filepath.Join(directory, batchName(i)))
	}
	return s
}

func batchName(n int) string {
	return "blockchain-" + string(rune('0'+n)) + ".bin"
}
