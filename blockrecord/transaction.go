// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockrecord

import (
	"encoding/binary"

	"github.com/spectrum-node/spectrumd/address"
	"github.com/spectrum-node/spectrumd/anchor"
	"github.com/spectrum-node/spectrumd/fault"
	"github.com/spectrum-node/spectrumd/merkle"
)

// Rule - spending rule of an output
type Rule byte

// supported output rules
const (
	RuleSignature Rule = 0x01
	RuleStake     Rule = 0x02
)

// packed sizes
const (
	countSize        = 2
	amountSize       = 8
	ruleSize         = 1
	OutputSize       = amountSize + ruleSize + address.Length
	PublicKeySize    = 32
	SignatureSize    = 64
	WitnessSize      = PublicKeySize + SignatureSize
	maximumItemCount = 0xffff
)

// Output - an amount locked to an address under a rule
type Output struct {
	Amount  uint64          `json:"amount,string"`
	Rule    Rule            `json:"rule"`
	Address address.Address `json:"address"`
}

// Witness - the key and signature proving ownership of an input
type Witness struct {
	PublicKey [PublicKeySize]byte `json:"-"`
	Signature [SignatureSize]byte `json:"-"`
}

// Transaction - one transaction of a block
//
// the coinbase (transaction 0 of a block) has no inputs
type Transaction struct {
	Inputs    []anchor.Anchor `json:"inputs"`
	Outputs   []Output        `json:"outputs"`
	Witnesses []Witness       `json:"-"`
}

// IsStake - true if the output is locked as stake
func (o Output) IsStake() bool {
	return RuleStake == o.Rule
}

func (r Rule) valid() bool {
	return RuleSignature == r || RuleStake == r
}

// String - rule name
func (r Rule) String() string {
	switch r {
	case RuleSignature:
		return "sig"
	case RuleStake:
		return "stake"
	default:
		return "unknown"
	}
}

// Pack - convert a transaction to its byte form
func (tx *Transaction) Pack() ([]byte, error) {
	if len(tx.Inputs) > maximumItemCount || len(tx.Outputs) > maximumItemCount || len(tx.Witnesses) > maximumItemCount {
		return nil, fault.ErrInvalidCount
	}

	size := 3*countSize + len(tx.Inputs)*anchor.Length + len(tx.Outputs)*OutputSize + len(tx.Witnesses)*WitnessSize
	buffer := make([]byte, 0, size)

	buffer = appendCount(buffer, len(tx.Inputs))
	for _, a := range tx.Inputs {
		p := a.Pack()
		buffer = append(buffer, p[:]...)
	}

	buffer = appendCount(buffer, len(tx.Outputs))
	for _, o := range tx.Outputs {
		if !o.Rule.valid() {
			return nil, fault.ErrInvalidOutputRule
		}
		p := o.Pack()
		buffer = append(buffer, p[:]...)
	}

	buffer = appendCount(buffer, len(tx.Witnesses))
	for _, w := range tx.Witnesses {
		buffer = append(buffer, w.PublicKey[:]...)
		buffer = append(buffer, w.Signature[:]...)
	}

	return buffer, nil
}

// UnpackTransaction - decode the bytes of exactly one transaction
func UnpackTransaction(buffer []byte) (*Transaction, error) {
	tx := &Transaction{}

	n, buffer, err := takeCount(buffer, anchor.Length)
	if nil != err {
		return nil, err
	}
	tx.Inputs = make([]anchor.Anchor, n)
	for i := range tx.Inputs {
		tx.Inputs[i], _ = anchor.Unpack(buffer)
		buffer = buffer[anchor.Length:]
	}

	n, buffer, err = takeCount(buffer, OutputSize)
	if nil != err {
		return nil, err
	}
	tx.Outputs = make([]Output, n)
	for i := range tx.Outputs {
		o, err := UnpackOutput(buffer)
		if nil != err {
			return nil, err
		}
		tx.Outputs[i] = o
		buffer = buffer[OutputSize:]
	}

	n, buffer, err = takeCount(buffer, WitnessSize)
	if nil != err {
		return nil, err
	}
	tx.Witnesses = make([]Witness, n)
	for i := range tx.Witnesses {
		copy(tx.Witnesses[i].PublicKey[:], buffer[:PublicKeySize])
		copy(tx.Witnesses[i].Signature[:], buffer[PublicKeySize:WitnessSize])
		buffer = buffer[WitnessSize:]
	}

	if 0 != len(buffer) {
		return nil, fault.ErrInvalidCount
	}
	return tx, nil
}

// TxId - SHA3 digest of the packed transaction
func TxId(packed []byte) merkle.Digest {
	return merkle.NewDigest(packed)
}

// Pack - the fixed size form of an output
func (o Output) Pack() [OutputSize]byte {
	var buffer [OutputSize]byte
	binary.LittleEndian.PutUint64(buffer[:], o.Amount)
	buffer[amountSize] = byte(o.Rule)
	a := o.Address.Pack()
	copy(buffer[amountSize+ruleSize:], a[:])
	return buffer
}

// UnpackOutput - decode the first OutputSize bytes of a buffer
func UnpackOutput(buffer []byte) (Output, error) {
	if len(buffer) < OutputSize {
		return Output{}, fault.ErrTruncatedRecord
	}
	o := Output{
		Amount: binary.LittleEndian.Uint64(buffer),
		Rule:   Rule(buffer[amountSize]),
	}
	if !o.Rule.valid() {
		return Output{}, fault.ErrInvalidOutputRule
	}
	a, err := address.Unpack(buffer[amountSize+ruleSize:])
	if nil != err {
		return Output{}, err
	}
	o.Address = a
	return o, nil
}

func appendCount(buffer []byte, n int) []byte {
	var count [countSize]byte
	binary.LittleEndian.PutUint16(count[:], uint16(n))
	return append(buffer, count[:]...)
}

// read a count and check that count items of itemSize bytes follow
func takeCount(buffer []byte, itemSize int) (int, []byte, error) {
	if len(buffer) < countSize {
		return 0, nil, fault.ErrTruncatedRecord
	}
	n := int(binary.LittleEndian.Uint16(buffer))
	buffer = buffer[countSize:]
	if len(buffer) < n*itemSize {
		return 0, nil, fault.ErrTruncatedRecord
	}
	return n, buffer, nil
}
