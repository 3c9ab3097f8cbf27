// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package stake - the list of stake output anchors
//
// vss.bin is a plain concatenation of 8 byte packed anchors in the
// order the stakes were added.  Membership and removal scan the whole
// file, the number of stakes is small compared with the chain.
package stake

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/bitmark-inc/logger"

	"github.com/spectrum-node/spectrumd/anchor"
	"github.com/spectrum-node/spectrumd/binaryfile"
)

// FileName - name of the stake file inside its directory
const FileName = "vss.bin"

const temporarySuffix = ".tmp"

// Store - the stake anchor file
type Store struct {
	log    *logger.L
	path   string
	handle *binaryfile.Handle
}

// Open - open or create the stake file in directory
func Open(directory string) (*Store, error) {
	if err := os.MkdirAll(directory, 0700); nil != err {
		return nil, err
	}
	path := filepath.Join(directory, FileName)

	// an interrupted removal leaves the original intact
	_ = os.Remove(path + temporarySuffix)

	handle, err := binaryfile.Open(path, true)
	if nil != err {
		return nil, err
	}

	s := &Store{
		log:    logger.New("stake"),
		path:   path,
		handle: handle,
	}
	s.log.Infof("open: %s  stakes: %d", path, s.Count())
	return s, nil
}

// Close - release the file
func (s *Store) Close() error {
	if nil == s.handle {
		return nil
	}
	err := s.handle.Close()
	s.handle = nil
	return err
}

// Path - the stake file
func (s *Store) Path() string {
	return s.path
}

// Count - number of stake records
func (s *Store) Count() int {
	return int(s.handle.Size() / anchor.Length)
}

// AddStake - append one stake anchor
func (s *Store) AddStake(a anchor.Anchor) error {
	return s.AddStakes([]anchor.Anchor{a})
}

// AddStakes - append several stake anchors with one write
func (s *Store) AddStakes(anchors []anchor.Anchor) error {
	if 0 == len(anchors) {
		return nil
	}
	buffer := make([]byte, 0, len(anchors)*anchor.Length)
	for _, a := range anchors {
		p := a.Pack()
		buffer = append(buffer, p[:]...)
	}
	_, err := s.handle.Append(buffer)
	return err
}

// HasStakes - membership of each anchor, results in anchor order
func (s *Store) HasStakes(anchors []anchor.Anchor) ([]bool, error) {
	data, err := s.handle.ReadAll()
	if nil != err {
		return nil, err
	}
	result := make([]bool, len(anchors))
	for i, a := range anchors {
		result[i] = find(data, a.Pack()) >= 0
	}
	return result, nil
}

// GetStakeAnchor - the anchor at a record index, false if out of range
func (s *Store) GetStakeAnchor(index int) (anchor.Anchor, bool, error) {
	if index < 0 || index >= s.Count() {
		return anchor.Anchor{}, false, nil
	}
	buffer, err := s.handle.Read(int64(index)*anchor.Length, anchor.Length)
	if nil != err {
		return anchor.Anchor{}, false, err
	}
	a, err := anchor.Unpack(buffer)
	if nil != err {
		return anchor.Anchor{}, false, err
	}
	return a, true, nil
}

// All - every stake anchor in file order
func (s *Store) All() ([]anchor.Anchor, error) {
	data, err := s.handle.ReadAll()
	if nil != err {
		return nil, err
	}
	result := make([]anchor.Anchor, 0, len(data)/anchor.Length)
	for i := 0; i+anchor.Length <= len(data); i += anchor.Length {
		a, _ := anchor.Unpack(data[i:])
		result = append(result, a)
	}
	return result, nil
}

// RemoveStakes - rewrite the file without the given anchors
//
// returns the number of records removed
func (s *Store) RemoveStakes(anchors []anchor.Anchor) (int, error) {
	drop := make(map[anchor.Packed]struct{}, len(anchors))
	for _, a := range anchors {
		drop[a.Pack()] = struct{}{}
	}
	return s.rewrite(func(a anchor.Anchor, p anchor.Packed) bool {
		_, ok := drop[p]
		return ok
	})
}

// RemoveStakesAbove - remove stakes created above height, used when
// blocks are rolled back
func (s *Store) RemoveStakesAbove(height uint32) (int, error) {
	return s.rewrite(func(a anchor.Anchor, p anchor.Packed) bool {
		return a.Height > height
	})
}

// Reset - remove every stake
func (s *Store) Reset() error {
	return s.handle.Truncate(0)
}

// rewrite the records not matched by drop into a temporary file, then
// close the original, rename over it and reopen
func (s *Store) rewrite(drop func(anchor.Anchor, anchor.Packed) bool) (int, error) {
	data, err := s.handle.ReadAll()
	if nil != err {
		return 0, err
	}

	kept := make([]byte, 0, len(data))
	removed := 0
	for i := 0; i+anchor.Length <= len(data); i += anchor.Length {
		var p anchor.Packed
		copy(p[:], data[i:i+anchor.Length])
		a, _ := anchor.Unpack(p[:])
		if drop(a, p) {
			removed += 1
			continue
		}
		kept = append(kept, p[:]...)
	}
	if 0 == removed {
		return 0, nil
	}

	temporary := s.path + temporarySuffix
	_ = os.Remove(temporary)
	t, err := binaryfile.Open(temporary, true)
	if nil != err {
		return 0, err
	}
	if _, err := t.Append(kept); nil != err {
		t.Close()
		return 0, err
	}
	if err := t.Sync(); nil != err {
		t.Close()
		return 0, err
	}
	if err := t.Close(); nil != err {
		return 0, err
	}

	if err := s.handle.Close(); nil != err {
		return 0, err
	}
	s.handle = nil
	renameErr := os.Rename(temporary, s.path)
	s.handle, err = binaryfile.Open(s.path, false)
	if nil != renameErr {
		return 0, renameErr
	}
	if nil != err {
		return 0, err
	}

	s.log.Debugf("removed: %d  remaining: %d", removed, s.Count())
	return removed, nil
}

// byte pattern search that only accepts record aligned matches
func find(data []byte, p anchor.Packed) int {
	offset := 0
	for {
		i := bytes.Index(data[offset:], p[:])
		if i < 0 {
			return -1
		}
		position := offset + i
		if 0 == position%anchor.Length {
			return position
		}
		offset = position + 1
	}
}
