// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package state

import (
	"sort"

	"github.com/spectrum-node/spectrumd/address"
	"github.com/spectrum-node/spectrumd/blockrecord"
)

const identityRecordSize = address.Length + blockrecord.PublicKeySize

// PublicKey - key that proved ownership of an address
type PublicKey [blockrecord.PublicKeySize]byte

// KnownIdentities - public keys seen spending from each address
type KnownIdentities struct {
	keys map[address.Address]PublicKey
}

// NewKnownIdentities - an empty map
func NewKnownIdentities() *KnownIdentities {
	return &KnownIdentities{
		keys: make(map[address.Address]PublicKey),
	}
}

// Add - remember the first key of an address, returns false if one is
// already known
func (k *KnownIdentities) Add(a address.Address, key PublicKey) bool {
	if _, ok := k.keys[a]; ok {
		return false
	}
	k.keys[a] = key
	return true
}

// Remove - forget an address
func (k *KnownIdentities) Remove(a address.Address) {
	delete(k.keys, a)
}

// Get - the key of an address
func (k *KnownIdentities) Get(a address.Address) (PublicKey, bool) {
	key, ok := k.keys[a]
	return key, ok
}

// Len - number of known addresses
func (k *KnownIdentities) Len() int {
	return len(k.keys)
}

// Serialise - the deterministic blob
func (k *KnownIdentities) Serialise() ([]byte, error) {
	addresses := make([]address.Address, 0, len(k.keys))
	for a := range k.keys {
		addresses = append(addresses, a)
	}
	sort.Slice(addresses, func(i, j int) bool {
		if addresses[i].Prefix != addresses[j].Prefix {
			return addresses[i].Prefix < addresses[j].Prefix
		}
		return addresses[i].Value < addresses[j].Value
	})

	buffer := newBlob(len(addresses), identityRecordSize)
	for _, a := range addresses {
		p := a.Pack()
		key := k.keys[a]
		buffer = append(buffer, p[:]...)
		buffer = append(buffer, key[:]...)
	}
	return buffer, nil
}

// Deserialise - replace the contents from a blob
func (k *KnownIdentities) Deserialise(blob []byte) error {
	list, err := records(blob, identityRecordSize)
	if nil != err {
		return err
	}
	keys := make(map[address.Address]PublicKey, len(list))
	for _, r := range list {
		a, err := address.Unpack(r)
		if nil != err {
			return err
		}
		var key PublicKey
		copy(key[:], r[address.Length:])
		keys[a] = key
	}
	k.keys = keys
	return nil
}
