// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"encoding/binary"
	"sort"
	"strconv"

	"github.com/patrickmn/go-cache"

	"github.com/spectrum-node/spectrumd/anchor"
	"github.com/spectrum-node/spectrumd/blockrecord"
	"github.com/spectrum-node/spectrumd/fault"
)

// StateRecordSize - bytes in one utxo state record
const StateRecordSize = 5

// state record layout
const (
	stateTxOffset    = 0
	stateVoutOffset  = 2
	stateSpentOffset = 4
)

// spent flag values
const (
	unspent = 0
	spent   = 1
)

// Utxo - a resolved output and its spent flag
type Utxo struct {
	Anchor anchor.Anchor      `json:"anchor"`
	Output blockrecord.Output `json:"output"`
	Spent  bool               `json:"spent"`
}

// offsets of state records keyed by txIndex<<16 | voutIndex
type stateOffsets map[uint32]int

func stateKey(txIndex uint16, voutIndex uint16) uint32 {
	return uint32(txIndex)<<16 | uint32(voutIndex)
}

// build the unspent state records of a new block
func packStates(outputs []blockrecord.OutputRef) []byte {
	states := make([]byte, len(outputs)*StateRecordSize)
	for i, o := range outputs {
		record := states[i*StateRecordSize:]
		binary.LittleEndian.PutUint16(record[stateTxOffset:], o.TxIndex)
		binary.LittleEndian.PutUint16(record[stateVoutOffset:], o.VoutIndex)
		record[stateSpentOffset] = unspent
	}
	return states
}

// only record aligned positions are considered
func indexStates(states []byte) stateOffsets {
	offsets := make(stateOffsets, len(states)/StateRecordSize)
	for i := 0; i+StateRecordSize <= len(states); i += StateRecordSize {
		tx := binary.LittleEndian.Uint16(states[i+stateTxOffset:])
		vout := binary.LittleEndian.Uint16(states[i+stateVoutOffset:])
		offsets[stateKey(tx, vout)] = i
	}
	return offsets
}

// offset map of a stored height, cached until the height is undone
func (s *Store) offsetsOf(height int64, states []byte) stateOffsets {
	key := strconv.FormatInt(height, 10)
	if value, found := s.offsets.Get(key); found {
		return value.(stateOffsets)
	}
	offsets := indexStates(states)
	s.offsets.Set(key, offsets, cache.DefaultExpiration)
	return offsets
}

func (s *Store) forgetOffsets(height int64) {
	s.offsets.Delete(strconv.FormatInt(height, 10))
}

// read only the utxo state bytes of a height
func (s *Store) readStates(height int64, e IndexEntry) ([]byte, error) {
	return s.read(height, int64(e.StartOffset)+int64(e.BlockLength), int(e.StateLength))
}

// GetUtxos - resolve a batch of anchors
//
// all or nothing: nil is returned if any anchor cannot be resolved, or
// if breakOnSpent is set and any output is already spent; results are
// in the order of the anchors
func (s *Store) GetUtxos(anchors []anchor.Anchor, breakOnSpent bool) ([]Utxo, error) {

	// group by height and then by transaction so each block is read once
	byHeight := make(map[uint32]map[uint16][]int)
	heights := make([]uint32, 0, len(anchors))
	for i, a := range anchors {
		txs, ok := byHeight[a.Height]
		if !ok {
			txs = make(map[uint16][]int)
			byHeight[a.Height] = txs
			heights = append(heights, a.Height)
		}
		txs[a.TxIndex] = append(txs[a.TxIndex], i)
	}
	sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })

	result := make([]Utxo, len(anchors))

	for _, height := range heights {
		block, states, err := s.GetBlockAndStates(int64(height))
		if nil != err {
			return nil, err
		}
		if nil == block {
			return nil, nil
		}
		offsets := s.offsetsOf(int64(height), states)

		for txIndex, positions := range byHeight[height] {
			b, err := block.TransactionBytes(int(txIndex))
			if fault.ErrWrongTransactionIndex == err {
				return nil, nil
			}
			if nil != err {
				return nil, err
			}
			tx, err := blockrecord.UnpackTransaction(b)
			if nil != err {
				return nil, err
			}

			for _, i := range positions {
				a := anchors[i]
				if int(a.VoutIndex) >= len(tx.Outputs) {
					return nil, nil
				}
				offset, ok := offsets[stateKey(a.TxIndex, a.VoutIndex)]
				if !ok {
					return nil, nil
				}
				isSpent := spent == states[offset+stateSpentOffset]
				if isSpent && breakOnSpent {
					return nil, nil
				}
				result[i] = Utxo{
					Anchor: a,
					Output: tx.Outputs[a.VoutIndex],
					Spent:  isSpent,
				}
			}
		}
	}
	return result, nil
}

// ConsumeUtxos - mark outputs as spent
//
// every anchor is validated before any flag is written; anchors into
// pruned heights are skipped
func (s *Store) ConsumeUtxos(anchors []anchor.Anchor) error {
	if s.damaged {
		return fault.ErrInconsistentBlockchainBytes
	}
	writes, err := s.planSpends(anchors, -1, nil)
	if nil != err {
		return err
	}
	return s.writeSpends(writes)
}

type pendingSpend struct {
	height   int64
	position int64 // absolute position of the spent flag
}

// validate a batch of spends and locate their flags
//
// pendingHeight and pendingStates describe a block that is being added
// and is not yet on disk; its own flags are set directly in
// pendingStates and are not part of the result
func (s *Store) planSpends(anchors []anchor.Anchor, pendingHeight int64, pendingStates []byte) ([]pendingSpend, error) {
	if 0 == len(anchors) {
		return nil, nil
	}

	type located struct {
		entry  IndexEntry
		states []byte
	}
	blocks := make(map[int64]*located)
	seen := make(map[anchor.Packed]struct{}, len(anchors))
	writes := make([]pendingSpend, 0, len(anchors))
	pendingOffsets := indexStates(pendingStates)
	var local []int

	for _, a := range anchors {
		height := int64(a.Height)

		p := a.Pack()
		if _, ok := seen[p]; ok {
			s.log.Warnf("anchor: %s  spent twice in one batch", a)
			return nil, fault.ErrUtxoAlreadySpent
		}
		seen[p] = struct{}{}

		if height == pendingHeight {
			offset, ok := pendingOffsets[stateKey(a.TxIndex, a.VoutIndex)]
			if !ok {
				return nil, fault.ErrUtxoNotFound
			}
			local = append(local, offset)
			continue
		}

		b, ok := blocks[height]
		if !ok {
			e, found, err := s.Entry(height)
			if nil != err {
				return nil, err
			}
			if !found {
				s.log.Warnf("anchor: %s  height beyond ledger", a)
				return nil, fault.ErrUtxoNotFound
			}
			b = &located{entry: e}
			if !e.Pruned() {
				b.states, err = s.readStates(height, e)
				if nil != err {
					return nil, err
				}
			}
			blocks[height] = b
		}
		if b.entry.Pruned() {
			continue
		}

		offset, ok := s.offsetsOf(height, b.states)[stateKey(a.TxIndex, a.VoutIndex)]
		if !ok {
			s.log.Warnf("anchor: %s  no state record", a)
			return nil, fault.ErrUtxoNotFound
		}
		if spent == b.states[offset+stateSpentOffset] {
			s.log.Warnf("anchor: %s  already spent", a)
			return nil, fault.ErrUtxoAlreadySpent
		}
		position := int64(b.entry.StartOffset) + int64(b.entry.BlockLength) + int64(offset)
		writes = append(writes, pendingSpend{height: height, position: position})
	}

	for _, offset := range local {
		pendingStates[offset+stateSpentOffset] = spent
	}
	return writes, nil
}

// set the spent flags located by planSpends
func (s *Store) writeSpends(writes []pendingSpend) error {
	for _, w := range writes {
		h, err := s.batches.get(s.batchOf(w.height), false)
		if nil != err {
			return err
		}
		if err := h.WriteAt([]byte{spent}, w.position+stateSpentOffset); nil != err {
			return err
		}
	}
	return nil
}
