// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package anchor - references to transactions and their outputs
package anchor

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/spectrum-node/spectrumd/fault"
)

// Length - bytes in a packed anchor
const Length = 8

// packed layout
const (
	heightOffset = 0
	txOffset     = 4
	voutOffset   = 6
)

// Anchor - identifies one transaction output
type Anchor struct {
	Height    uint32
	TxIndex   uint16
	VoutIndex uint16
}

// Packed - canonical fixed width bytes of an anchor
type Packed [Length]byte

// TxRef - identifies one transaction
type TxRef struct {
	Height  uint32
	TxIndex uint16
}

// New - construct an anchor
func New(height uint32, txIndex uint16, voutIndex uint16) Anchor {
	return Anchor{
		Height:    height,
		TxIndex:   txIndex,
		VoutIndex: voutIndex,
	}
}

// Pack - the canonical byte pattern used as key and search needle
func (a Anchor) Pack() Packed {
	var p Packed
	binary.LittleEndian.PutUint32(p[heightOffset:], a.Height)
	binary.LittleEndian.PutUint16(p[txOffset:], a.TxIndex)
	binary.LittleEndian.PutUint16(p[voutOffset:], a.VoutIndex)
	return p
}

// Unpack - decode the first Length bytes of a buffer
func Unpack(buffer []byte) (Anchor, error) {
	if len(buffer) < Length {
		return Anchor{}, fault.ErrTruncatedRecord
	}
	return Anchor{
		Height:    binary.LittleEndian.Uint32(buffer[heightOffset:]),
		TxIndex:   binary.LittleEndian.Uint16(buffer[txOffset:]),
		VoutIndex: binary.LittleEndian.Uint16(buffer[voutOffset:]),
	}, nil
}

// Ref - the transaction containing the output
func (a Anchor) Ref() TxRef {
	return TxRef{
		Height:  a.Height,
		TxIndex: a.TxIndex,
	}
}

// Less - ordering by height, transaction then output
func (a Anchor) Less(b Anchor) bool {
	if a.Height != b.Height {
		return a.Height < b.Height
	}
	if a.TxIndex != b.TxIndex {
		return a.TxIndex < b.TxIndex
	}
	return a.VoutIndex < b.VoutIndex
}

// String - text form height:tx:vout
func (a Anchor) String() string {
	return fmt.Sprintf("%d:%d:%d", a.Height, a.TxIndex, a.VoutIndex)
}

// String - text form height:tx
func (r TxRef) String() string {
	return fmt.Sprintf("%d:%d", r.Height, r.TxIndex)
}

// Parse - decode the text form of an anchor
func Parse(s string) (Anchor, error) {
	n, err := parseFields(s, 3)
	if nil != err {
		return Anchor{}, fault.ErrInvalidAnchor
	}
	return New(uint32(n[0]), uint16(n[1]), uint16(n[2])), nil
}

// ParseTxRef - decode the text form of a transaction reference
func ParseTxRef(s string) (TxRef, error) {
	n, err := parseFields(s, 2)
	if nil != err {
		return TxRef{}, fault.ErrInvalidTransactionReference
	}
	return TxRef{Height: uint32(n[0]), TxIndex: uint16(n[1])}, nil
}

// MarshalText - text form for JSON and YAML
func (a Anchor) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText - decode text form
func (a *Anchor) UnmarshalText(s []byte) error {
	r, err := Parse(string(s))
	if nil != err {
		return err
	}
	*a = r
	return nil
}

func parseFields(s string, count int) ([]uint64, error) {
	fields := strings.Split(s, ":")
	if count != len(fields) {
		return nil, fault.ErrInvalidCount
	}
	result := make([]uint64, count)
	for i, f := range fields {
		bits := 16
		if 0 == i {
			bits = 32
		}
		n, err := strconv.ParseUint(f, 10, bits)
		if nil != err {
			return nil, err
		}
		result[i] = n
	}
	return result, nil
}
