// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package state

import (
	"encoding/binary"
	"sort"

	"github.com/spectrum-node/spectrumd/address"
	"github.com/spectrum-node/spectrumd/anchor"
)

const (
	amountSize         = 8
	spectrumRecordSize = anchor.Length + amountSize + address.Length
)

// Stake - amount and owner of one stake output
type Stake struct {
	Amount  uint64          `json:"amount,string"`
	Address address.Address `json:"address"`
}

// StakeSpectrum - the distribution of live stakes
type StakeSpectrum struct {
	stakes map[anchor.Anchor]Stake
}

// NewStakeSpectrum - an empty spectrum
func NewStakeSpectrum() *StakeSpectrum {
	return &StakeSpectrum{
		stakes: make(map[anchor.Anchor]Stake),
	}
}

// Add - record a stake
func (s *StakeSpectrum) Add(a anchor.Anchor, stake Stake) {
	s.stakes[a] = stake
}

// Remove - forget a stake
func (s *StakeSpectrum) Remove(a anchor.Anchor) {
	delete(s.stakes, a)
}

// Get - one stake
func (s *StakeSpectrum) Get(a anchor.Anchor) (Stake, bool) {
	stake, ok := s.stakes[a]
	return stake, ok
}

// Len - number of stakes
func (s *StakeSpectrum) Len() int {
	return len(s.stakes)
}

// Total - sum of all staked amounts
func (s *StakeSpectrum) Total() uint64 {
	total := uint64(0)
	for _, stake := range s.stakes {
		total += stake.Amount
	}
	return total
}

// ByAddress - staked amount per address
func (s *StakeSpectrum) ByAddress() map[address.Address]uint64 {
	result := make(map[address.Address]uint64)
	for _, stake := range s.stakes {
		result[stake.Address] += stake.Amount
	}
	return result
}

// Anchors - all stake anchors in ascending order
func (s *StakeSpectrum) Anchors() []anchor.Anchor {
	anchors := make([]anchor.Anchor, 0, len(s.stakes))
	for a := range s.stakes {
		anchors = append(anchors, a)
	}
	sort.Slice(anchors, func(i, j int) bool { return anchors[i].Less(anchors[j]) })
	return anchors
}

// Serialise - the deterministic blob
func (s *StakeSpectrum) Serialise() ([]byte, error) {
	anchors := s.Anchors()
	buffer := newBlob(len(anchors), spectrumRecordSize)
	for _, a := range anchors {
		stake := s.stakes[a]
		p := a.Pack()
		var amount [amountSize]byte
		binary.LittleEndian.PutUint64(amount[:], stake.Amount)
		owner := stake.Address.Pack()
		buffer = append(buffer, p[:]...)
		buffer = append(buffer, amount[:]...)
		buffer = append(buffer, owner[:]...)
	}
	return buffer, nil
}

// Deserialise - replace the contents from a blob
func (s *StakeSpectrum) Deserialise(blob []byte) error {
	list, err := records(blob, spectrumRecordSize)
	if nil != err {
		return err
	}
	stakes := make(map[anchor.Anchor]Stake, len(list))
	for _, r := range list {
		a, err := anchor.Unpack(r)
		if nil != err {
			return err
		}
		owner, err := address.Unpack(r[anchor.Length+amountSize:])
		if nil != err {
			return err
		}
		stakes[a] = Stake{
			Amount:  binary.LittleEndian.Uint64(r[anchor.Length:]),
			Address: owner,
		}
	}
	s.stakes = stakes
	return nil
}
