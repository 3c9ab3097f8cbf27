// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package address - namespaced 32 bit addresses
//
// An address is a namespace prefix letter plus a 32 bit numeric value.
// The text form is the prefix followed by the base58 encoding of the
// big endian value bytes.
package address

import (
	"encoding/binary"

	"github.com/mr-tron/base58"

	"github.com/spectrum-node/spectrumd/fault"
)

// Length - bytes in a packed address
const Length = 5

const valueLength = 4

// Address - one address in a namespace
type Address struct {
	Prefix byte
	Value  uint32
}

// New - construct an address checking the prefix
func New(prefix byte, value uint32) (Address, error) {
	if !ValidPrefix(prefix) {
		return Address{}, fault.ErrInvalidPrefix
	}
	return Address{Prefix: prefix, Value: value}, nil
}

// ValidPrefix - prefixes are single ASCII letters
func ValidPrefix(prefix byte) bool {
	return (prefix >= 'a' && prefix <= 'z') || (prefix >= 'A' && prefix <= 'Z')
}

// Pack - the 5 byte stored form
func (a Address) Pack() [Length]byte {
	var buffer [Length]byte
	buffer[0] = a.Prefix
	binary.BigEndian.PutUint32(buffer[1:], a.Value)
	return buffer
}

// Unpack - decode the first Length bytes of a buffer
func Unpack(buffer []byte) (Address, error) {
	if len(buffer) < Length {
		return Address{}, fault.ErrTruncatedRecord
	}
	return New(buffer[0], binary.BigEndian.Uint32(buffer[1:]))
}

// String - prefix letter followed by base58 of the value
func (a Address) String() string {
	var value [valueLength]byte
	binary.BigEndian.PutUint32(value[:], a.Value)
	return string(a.Prefix) + base58.Encode(value[:])
}

// Parse - decode the text form of an address
func Parse(s string) (Address, error) {
	if len(s) < 2 {
		return Address{}, fault.ErrInvalidAddress
	}
	value, err := base58.Decode(s[1:])
	if nil != err || valueLength != len(value) {
		return Address{}, fault.ErrInvalidAddress
	}
	return New(s[0], binary.BigEndian.Uint32(value))
}

// MarshalText - text form for JSON and YAML
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText - decode the text form
func (a *Address) UnmarshalText(s []byte) error {
	r, err := Parse(string(s))
	if nil != err {
		return err
	}
	*a = r
	return nil
}
