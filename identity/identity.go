// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package identity

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/bitmark-inc/logger"
	"golang.org/x/time/rate"

	"github.com/spectrum-node/spectrumd/address"
	"github.com/spectrum-node/spectrumd/anchor"
	"github.com/spectrum-node/spectrumd/binaryfile"
	"github.com/spectrum-node/spectrumd/blockrecord"
	"github.com/spectrum-node/spectrumd/fault"
)

// RecordSize - bytes in one identity record
const RecordSize = 6

// defaults for Options
const (
	DefaultAddressBits = 32
	DefaultChunkSize   = 4 * 1024 * 1024
)

// Options - shape of the identity files
type Options struct {
	Prefixes       string // one letter per namespace
	AddressBits    uint   // values are below 2^AddressBits
	ChunkSize      int    // bytes per pre-allocation write
	BytesPerSecond int    // pre-allocation pacing, 0 for unlimited
}

// Record - where an address first proved ownership
type Record struct {
	BlockIndex uint32 `json:"blockIndex"`
	TxIndex    uint16 `json:"txIndex"`
}

// Progress - called after each pre-allocation chunk
type Progress func(prefix byte, done int64, total int64)

// Store - the identity files of all prefixes
type Store struct {
	log       *logger.L
	directory string
	options   Options
	fileSize  int64
	handles   map[byte]*binaryfile.Handle
}

// Open - open or create the identity files in directory
//
// files are not allocated until Init is called
func Open(directory string, options Options) (*Store, error) {
	if 0 == len(options.Prefixes) {
		return nil, fault.ErrInvalidPrefix
	}
	if 0 == options.AddressBits {
		options.AddressBits = DefaultAddressBits
	}
	if options.AddressBits > 32 {
		return nil, fault.ErrInvalidCount
	}
	if options.ChunkSize <= 0 {
		options.ChunkSize = DefaultChunkSize
	}
	options.ChunkSize -= options.ChunkSize % RecordSize
	if 0 == options.ChunkSize {
		options.ChunkSize = RecordSize
	}

	if err := os.MkdirAll(directory, 0700); nil != err {
		return nil, err
	}

	s := &Store{
		log:       logger.New("identity"),
		directory: directory,
		options:   options,
		fileSize:  (int64(1) << options.AddressBits) * RecordSize,
		handles:   make(map[byte]*binaryfile.Handle),
	}

	for i := 0; i < len(options.Prefixes); i += 1 {
		prefix := options.Prefixes[i]
		if !address.ValidPrefix(prefix) {
			s.Close()
			return nil, fault.ErrInvalidPrefix
		}
		h, err := binaryfile.Open(s.path(prefix), true)
		if nil != err {
			s.Close()
			return nil, err
		}
		if h.Size() > s.fileSize {
			h.Close()
			s.Close()
			return nil, fmt.Errorf("identity file: %s  size: %d  exceeds: %d", h.Path(), h.Size(), s.fileSize)
		}
		s.handles[prefix] = h
	}

	return s, nil
}

func (s *Store) path(prefix byte) string {
	return filepath.Join(s.directory, string(prefix)+".dat")
}

// Close - release all files
func (s *Store) Close() {
	for prefix, h := range s.handles {
		h.Close()
		delete(s.handles, prefix)
	}
}

// Initialised - true when every file is fully allocated
func (s *Store) Initialised() bool {
	for _, h := range s.handles {
		if h.Size() != s.fileSize {
			return false
		}
	}
	return true
}

// Init - extend every file to its full size with zero records
//
// writes are made in chunks, paced to the configured byte rate, with a
// scheduler yield between chunks; an interrupted Init resumes from the
// current file sizes
func (s *Store) Init(ctx context.Context, progress Progress) error {
	limit := rate.Inf
	if s.options.BytesPerSecond > 0 {
		limit = rate.Limit(s.options.BytesPerSecond)
	}
	limiter := rate.NewLimiter(limit, s.options.ChunkSize)

	zeros := make([]byte, s.options.ChunkSize)

	for i := 0; i < len(s.options.Prefixes); i += 1 {
		prefix := s.options.Prefixes[i]
		h := s.handles[prefix]

		// partial record from an interrupted write
		if extra := h.Size() % RecordSize; 0 != extra {
			if err := h.Shrink(extra); nil != err {
				return err
			}
		}

		if h.Size() < s.fileSize {
			s.log.Infof("allocate: %s  from: %d  to: %d", h.Path(), h.Size(), s.fileSize)
		}

		for h.Size() < s.fileSize {
			n := s.fileSize - h.Size()
			if n > int64(len(zeros)) {
				n = int64(len(zeros))
			}
			if err := limiter.WaitN(ctx, int(n)); nil != err {
				return err
			}
			if _, err := h.Append(zeros[:n]); nil != err {
				return err
			}
			if nil != progress {
				progress(prefix, h.Size(), s.fileSize)
			}
			runtime.Gosched()
		}
		if err := h.Sync(); nil != err {
			return err
		}
	}
	return nil
}

// locate the record of an address
func (s *Store) position(a address.Address) (*binaryfile.Handle, int64, error) {
	h, ok := s.handles[a.Prefix]
	if !ok {
		return nil, 0, fault.ErrInvalidPrefix
	}
	if uint64(a.Value) >= uint64(1)<<s.options.AddressBits {
		return nil, 0, fault.ErrAddressOutOfRange
	}
	position := int64(a.Value) * RecordSize
	if position+RecordSize > h.Size() {
		return nil, 0, fault.ErrNotInitialised
	}
	return h, position, nil
}

// Get - the record of an address, nil if it has not been seen
func (s *Store) Get(a address.Address) (*Record, error) {
	h, position, err := s.position(a)
	if nil != err {
		return nil, err
	}
	buffer, err := h.Read(position, RecordSize)
	if nil != err {
		return nil, err
	}
	r := Record{
		BlockIndex: binary.LittleEndian.Uint32(buffer[0:]),
		TxIndex:    binary.LittleEndian.Uint16(buffer[4:]),
	}
	if 0 == r.BlockIndex && 0 == r.TxIndex {
		return nil, nil
	}
	return &r, nil
}

// Register - write the record of an address unless one exists
//
// returns true if the record was written
func (s *Store) Register(a address.Address, blockIndex uint32, txIndex uint16) (bool, error) {
	if 0 == blockIndex && 0 == txIndex {
		return false, fault.ErrInvalidTransactionReference
	}
	existing, err := s.Get(a)
	if nil != err || nil != existing {
		return false, err
	}
	h, position, err := s.position(a)
	if nil != err {
		return false, err
	}
	buffer := make([]byte, RecordSize)
	binary.LittleEndian.PutUint32(buffer[0:], blockIndex)
	binary.LittleEndian.PutUint16(buffer[4:], txIndex)
	if err := h.WriteAt(buffer, position); nil != err {
		return false, err
	}
	s.log.Debugf("register: %s  block: %d  tx: %d", a, blockIndex, txIndex)
	return true, nil
}

// Supported - true if the prefix has an identity file
func (s *Store) Supported(prefix byte) bool {
	_, ok := s.handles[prefix]
	return ok
}

// DigestBlock - register the owners of every input of a block
//
// the coinbase is skipped; resolvedInputs gives the output each input
// anchor spends; addresses of prefixes without a file are ignored;
// returns the number of new registrations
func (s *Store) DigestBlock(block *blockrecord.Block, resolvedInputs map[anchor.Anchor]blockrecord.Output) (int, error) {
	count := 0
	for i, tx := range block.Transactions {
		if 0 == i {
			continue
		}
		for _, a := range tx.Inputs {
			o, ok := resolvedInputs[a]
			if !ok {
				s.log.Errorf("block: %d  tx: %d  unresolved input: %s", block.Header.Index, i, a)
				return count, fault.ErrMissingInputs
			}
			if !s.Supported(o.Address.Prefix) {
				continue
			}
			ok, err := s.Register(o.Address, block.Header.Index, uint16(i))
			if nil != err {
				return count, err
			}
			if ok {
				count += 1
			}
		}
	}
	return count, nil
}
