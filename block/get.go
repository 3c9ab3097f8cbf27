// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package block

import (
	"github.com/spectrum-node/spectrumd/address"
	"github.com/spectrum-node/spectrumd/anchor"
	"github.com/spectrum-node/spectrumd/blockdigest"
	"github.com/spectrum-node/spectrumd/blockrecord"
	"github.com/spectrum-node/spectrumd/checkpoint"
	"github.com/spectrum-node/spectrumd/fault"
	"github.com/spectrum-node/spectrumd/identity"
	"github.com/spectrum-node/spectrumd/ledger"
	"github.com/spectrum-node/spectrumd/state"
)

// Height - height of the newest block, -1 when empty
func (s *Store) Height() int64 {
	s.RLock()
	defer s.RUnlock()
	return s.ledger.LastHeight()
}

// DigestForBlock - hash of the block at a height
func (s *Store) DigestForBlock(height uint64) (blockdigest.Digest, error) {
	s.RLock()
	defer s.RUnlock()

	if d, ok := s.ring.DigestForBlock(height); ok {
		return d, nil
	}
	if d, ok := s.ledger.HashOfHeight(int64(height)); ok {
		return d, nil
	}
	return blockdigest.Digest{}, fault.ErrBlockNotFound
}

// LatestCRC - check code of the newest block
func (s *Store) LatestCRC() (uint64, bool) {
	return s.ring.LatestCRC()
}

// GetBlock - packed bytes of a block, nil if absent or pruned
func (s *Store) GetBlock(height uint64) (blockrecord.PackedBlock, error) {
	s.RLock()
	defer s.RUnlock()
	b, err := s.ledger.GetBlockBytes(int64(height), false)
	if nil != err || nil == b {
		return nil, err
	}
	return b, nil
}

// GetBlockInfo - opaque data stored with a block, nil if none
func (s *Store) GetBlockInfo(height uint64) ([]byte, error) {
	s.RLock()
	defer s.RUnlock()
	return s.info.Get(height)
}

// GetTransaction - packed transaction by reference
func (s *Store) GetTransaction(ref anchor.TxRef) ([]byte, error) {
	s.RLock()
	defer s.RUnlock()
	return s.ledger.GetTransaction(ref)
}

// GetUtxos - outputs with their spent flags, nil unless all resolve
func (s *Store) GetUtxos(anchors []anchor.Anchor, breakOnSpent bool) ([]ledger.Utxo, error) {
	s.RLock()
	defer s.RUnlock()
	return s.ledger.GetUtxos(anchors, breakOnSpent)
}

// Identity - where an address first proved ownership, nil if unknown
func (s *Store) Identity(a address.Address) (*identity.Record, error) {
	s.RLock()
	defer s.RUnlock()
	return s.identities.Get(a)
}

// Stakes - every recorded stake anchor
func (s *Store) Stakes() ([]anchor.Anchor, error) {
	s.RLock()
	defer s.RUnlock()
	return s.stakes.All()
}

// Summary - totals of the in-memory state
type Summary struct {
	Height          int64              `json:"height"`
	Hash            blockdigest.Digest `json:"hash"`
	Unspent         int                `json:"unspent"`
	Stakes          int                `json:"stakes"`
	StakedAmount    uint64             `json:"stakedAmount,string"`
	KnownIdentities int                `json:"knownIdentities"`
	Snapshots       []uint64           `json:"snapshots"`
	Checkpoint      string             `json:"checkpoint"`
}

// State - summary of the current state
func (s *Store) State() (*Summary, error) {
	s.RLock()
	defer s.RUnlock()

	heights, err := s.snapshots.Heights()
	if nil != err {
		return nil, err
	}
	return &Summary{
		Height:          s.ledger.LastHeight(),
		Hash:            s.ledger.LastHash(),
		Unspent:         s.state.Unspent.Len(),
		Stakes:          s.state.Spectrum.Len(),
		StakedAmount:    s.state.Spectrum.Total(),
		KnownIdentities: s.state.Identities.Len(),
		Snapshots:       heights,
		Checkpoint:      s.checkpoints.State().String(),
	}, nil
}

// Serialised - the three state blobs in snapshot order, for comparison
func (s *Store) Serialised() ([][]byte, error) {
	s.RLock()
	defer s.RUnlock()

	result := make([][]byte, 0, 3)
	for _, serialiser := range []state.Serialiser{s.state.Spectrum, s.state.Identities, s.state.Unspent} {
		b, err := serialiser.Serialise()
		if nil != err {
			return nil, err
		}
		result = append(result, b)
	}
	return result, nil
}

// Checkpoints - archived checkpoints
func (s *Store) Checkpoints() ([]checkpoint.Info, error) {
	s.RLock()
	defer s.RUnlock()
	return s.checkpoints.List()
}
