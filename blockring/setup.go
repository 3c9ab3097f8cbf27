// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package blockring - digests and check codes of the most recent blocks
package blockring

import (
	"sync"

	"github.com/spectrum-node/spectrumd/blockdigest"
	"github.com/spectrum-node/spectrumd/fault"
)

// Size - number of blocks remembered
const Size = 20

// type to hold a block's digest and its crc64 check code
type ringBuffer struct {
	height uint64             // block height
	crc    uint64             // CRC64_ECMA(height, complete_block_bytes)
	digest blockdigest.Digest // header digest
}

// Ring - circular buffer of recent blocks
type Ring struct {
	sync.Mutex

	ring      [Size]ringBuffer
	ringIndex int
	count     int
}

// New - an empty ring
func New() *Ring {
	return &Ring{}
}

// Put - remember the next block
//
// heights must follow on from the previous put
func (r *Ring) Put(height uint64, digest blockdigest.Digest, packed []byte) error {
	r.Lock()
	defer r.Unlock()

	if 0 != r.count {
		last := r.ring[r.last()].height
		if last+1 != height {
			return fault.ErrBlockOutOfSequence
		}
	}

	i := r.ringIndex
	r.ring[i].height = height
	r.ring[i].digest = digest
	r.ring[i].crc = CRC(height, packed)
	i = i + 1
	if i >= len(r.ring) {
		i = 0
	}
	r.ringIndex = i
	if r.count < Size {
		r.count += 1
	}
	return nil
}

// must hold lock to call this
func (r *Ring) last() int {
	i := r.ringIndex - 1
	if i < 0 {
		i = len(r.ring) - 1
	}
	return i
}

// LatestCRC - check code of the newest block, false if empty
func (r *Ring) LatestCRC() (uint64, bool) {
	r.Lock()
	defer r.Unlock()
	if 0 == r.count {
		return 0, false
	}
	return r.ring[r.last()].crc, true
}

// DigestForBlock - digest of a block if it is in the ring
func (r *Ring) DigestForBlock(height uint64) (blockdigest.Digest, bool) {
	r.Lock()
	defer r.Unlock()

	if 0 == r.count {
		return blockdigest.Digest{}, false
	}
	top := r.ring[r.last()].height
	if height > top {
		return blockdigest.Digest{}, false
	}
	i := top - height
	if i >= uint64(r.count) {
		return blockdigest.Digest{}, false
	}
	j := r.ringIndex - 1 - int(i)
	if j < 0 {
		j += Size
	}
	return r.ring[j].digest, true
}

// Clear - forget everything
func (r *Ring) Clear() {
	r.Lock()
	r.ringIndex = 0
	r.count = 0
	r.Unlock()
}

// RingReader - iterate though the ring from newest to oldest
type RingReader struct {
	crcs []uint64
	next int
	crc  uint64
}

// NewRingReader - snapshot of the current check codes
func (r *Ring) NewRingReader() *RingReader {
	r.Lock()
	defer r.Unlock()

	crcs := make([]uint64, r.count)
	j := r.last()
	for i := 0; i < r.count; i += 1 {
		crcs[i] = r.ring[j].crc
		j -= 1
		if j < 0 {
			j = Size - 1
		}
	}
	return &RingReader{crcs: crcs}
}

// Next - advance to the next older item
func (rr *RingReader) Next() bool {
	if rr.next >= len(rr.crcs) {
		return false
	}
	rr.crc = rr.crcs[rr.next]
	rr.next += 1
	return true
}

// GetCRC - the fetched value
func (rr *RingReader) GetCRC() uint64 {
	return rr.crc
}
