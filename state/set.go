// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package state

import (
	"github.com/spectrum-node/spectrumd/anchor"
	"github.com/spectrum-node/spectrumd/blockrecord"
	"github.com/spectrum-node/spectrumd/fault"
)

// Set - the three collections kept together
type Set struct {
	Unspent    *UnspentCache
	Spectrum   *StakeSpectrum
	Identities *KnownIdentities
}

// NewSet - empty state
func NewSet() *Set {
	return &Set{
		Unspent:    NewUnspentCache(),
		Spectrum:   NewStakeSpectrum(),
		Identities: NewKnownIdentities(),
	}
}

// Apply - move the state forward over one block
//
// returns the outputs consumed by the block keyed by their anchors,
// these are needed to revert the block later
func (s *Set) Apply(block *blockrecord.Block) (map[anchor.Anchor]blockrecord.Output, error) {
	resolved, err := s.Resolve(block)
	if nil != err {
		return nil, err
	}
	s.Commit(block, resolved)
	return resolved, nil
}

// Resolve - find the output spent by every input of a block without
// changing anything
//
// inputs may spend outputs of earlier transactions of the same block
func (s *Set) Resolve(block *blockrecord.Block) (map[anchor.Anchor]blockrecord.Output, error) {
	height := block.Header.Index

	resolved := make(map[anchor.Anchor]blockrecord.Output)
	created := make(map[anchor.Anchor]blockrecord.Output)
	for txIndex, tx := range block.Transactions {
		if 0 != txIndex {
			for _, a := range tx.Inputs {
				if _, ok := resolved[a]; ok {
					return nil, fault.ErrUtxoAlreadySpent
				}
				o, ok := created[a]
				if !ok {
					o, ok = s.Unspent.Get(a)
				}
				if !ok {
					return nil, fault.ErrMissingInputs
				}
				resolved[a] = o
			}
		}
		for voutIndex, o := range tx.Outputs {
			created[anchor.New(height, uint16(txIndex), uint16(voutIndex))] = o
		}
	}
	return resolved, nil
}

// Commit - apply a block whose inputs were resolved
func (s *Set) Commit(block *blockrecord.Block, resolved map[anchor.Anchor]blockrecord.Output) {
	height := block.Header.Index

	for txIndex, tx := range block.Transactions {
		for voutIndex, o := range tx.Outputs {
			a := anchor.New(height, uint16(txIndex), uint16(voutIndex))
			s.Unspent.Add(a, o)
			if o.IsStake() {
				s.Spectrum.Add(a, Stake{Amount: o.Amount, Address: o.Address})
			}
		}
	}

	for txIndex, tx := range block.Transactions {
		if 0 == txIndex {
			continue
		}
		for k, a := range tx.Inputs {
			s.Unspent.Remove(a)
			s.Spectrum.Remove(a)
			if k < len(tx.Witnesses) {
				s.Identities.Add(resolved[a].Address, PublicKey(tx.Witnesses[k].PublicKey))
			}
		}
	}
}

// Revert - undo Apply given the outputs it returned
//
// known identities are not forgotten, a snapshot restores them
func (s *Set) Revert(block *blockrecord.Block, resolved map[anchor.Anchor]blockrecord.Output) {
	height := block.Header.Index
	for txIndex, tx := range block.Transactions {
		for voutIndex := range tx.Outputs {
			a := anchor.New(height, uint16(txIndex), uint16(voutIndex))
			s.Unspent.Remove(a)
			s.Spectrum.Remove(a)
		}
	}
	for a, o := range resolved {
		if a.Height == height {
			continue
		}
		s.Unspent.Add(a, o)
		if o.IsStake() {
			s.Spectrum.Add(a, Stake{Amount: o.Amount, Address: o.Address})
		}
	}
}
