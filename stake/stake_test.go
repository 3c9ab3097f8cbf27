// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package stake_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bitmark-inc/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spectrum-node/spectrumd/anchor"
	"github.com/spectrum-node/spectrumd/stake"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "stake-test")
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

func TestAddHasGet(t *testing.T) {
	directory := t.TempDir()

	s, err := stake.Open(directory)
	require.Nil(t, err, "open")

	a := anchor.New(1, 2, 3)
	b := anchor.New(4, 5, 6)
	c := anchor.New(7, 8, 9)

	require.Nil(t, s.AddStake(a), "add a")
	require.Nil(t, s.AddStakes([]anchor.Anchor{b, c}), "add b c")
	assert.Equal(t, 3, s.Count(), "count")

	has, err := s.HasStakes([]anchor.Anchor{c, anchor.New(9, 9, 9), a})
	require.Nil(t, err, "has")
	assert.Equal(t, []bool{true, false, true}, has, "membership")

	r, found, err := s.GetStakeAnchor(1)
	require.Nil(t, err, "get")
	assert.True(t, found, "found")
	assert.Equal(t, b, r, "record 1")

	_, found, err = s.GetStakeAnchor(3)
	assert.Nil(t, err, "get")
	assert.False(t, found, "out of range")

	_, found, err = s.GetStakeAnchor(-1)
	assert.Nil(t, err, "get")
	assert.False(t, found, "negative")

	require.Nil(t, s.Close(), "close")

	info, err := os.Stat(filepath.Join(directory, stake.FileName))
	require.Nil(t, err, "stat")
	assert.Equal(t, int64(24), info.Size(), "8 bytes per stake")

	s, err = stake.Open(directory)
	require.Nil(t, err, "reopen")
	defer s.Close()
	assert.Equal(t, 3, s.Count(), "count after reopen")
}

// a pattern spanning two records must not match
func TestAlignedSearch(t *testing.T) {
	s, err := stake.Open(t.TempDir())
	require.Nil(t, err, "open")
	defer s.Close()

	// packed: 01 00 00 00 | 02 00 | 03 00  then  04 00 00 00 | 05 00 | 06 00
	require.Nil(t, s.AddStakes([]anchor.Anchor{anchor.New(1, 2, 3), anchor.New(4, 5, 6)}), "add")

	// bytes 4..11 are 02 00 03 00 04 00 00 00
	straddle := anchor.New(0x00030002, 4, 0)
	has, err := s.HasStakes([]anchor.Anchor{straddle})
	require.Nil(t, err, "has")
	assert.Equal(t, []bool{false}, has, "straddling match ignored")
}

func TestRemove(t *testing.T) {
	directory := t.TempDir()
	s, err := stake.Open(directory)
	require.Nil(t, err, "open")
	defer s.Close()

	anchors := []anchor.Anchor{
		anchor.New(1, 1, 0),
		anchor.New(2, 1, 0),
		anchor.New(3, 1, 0),
		anchor.New(4, 1, 0),
	}
	require.Nil(t, s.AddStakes(anchors), "add")

	n, err := s.RemoveStakes([]anchor.Anchor{anchors[1], anchor.New(8, 8, 8)})
	require.Nil(t, err, "remove")
	assert.Equal(t, 1, n, "removed")
	assert.Equal(t, 3, s.Count(), "count")

	_, err = os.Stat(filepath.Join(directory, stake.FileName+".tmp"))
	assert.True(t, os.IsNotExist(err), "temporary file gone")

	all, err := s.All()
	require.Nil(t, err, "all")
	assert.Equal(t, []anchor.Anchor{anchors[0], anchors[2], anchors[3]}, all, "order kept")

	// the store keeps working after the reopen
	require.Nil(t, s.AddStake(anchor.New(5, 1, 0)), "add after remove")

	n, err = s.RemoveStakesAbove(2)
	require.Nil(t, err, "remove above")
	assert.Equal(t, 3, n, "removed above")

	all, err = s.All()
	require.Nil(t, err, "all")
	assert.Equal(t, []anchor.Anchor{anchors[0]}, all, "remaining")

	n, err = s.RemoveStakes([]anchor.Anchor{anchor.New(9, 9, 9)})
	require.Nil(t, err, "remove nothing")
	assert.Equal(t, 0, n, "nothing removed")

	require.Nil(t, s.Reset(), "reset")
	assert.Equal(t, 0, s.Count(), "empty")
}
