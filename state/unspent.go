// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package state

import (
	"sort"

	"github.com/spectrum-node/spectrumd/anchor"
	"github.com/spectrum-node/spectrumd/blockrecord"
)

const unspentRecordSize = anchor.Length + blockrecord.OutputSize

// UnspentCache - every unspent output
type UnspentCache struct {
	outputs map[anchor.Anchor]blockrecord.Output
}

// NewUnspentCache - an empty cache
func NewUnspentCache() *UnspentCache {
	return &UnspentCache{
		outputs: make(map[anchor.Anchor]blockrecord.Output),
	}
}

// Add - record an unspent output
func (c *UnspentCache) Add(a anchor.Anchor, o blockrecord.Output) {
	c.outputs[a] = o
}

// Remove - forget an output
func (c *UnspentCache) Remove(a anchor.Anchor) {
	delete(c.outputs, a)
}

// Get - the output of an anchor, false if it is not unspent
func (c *UnspentCache) Get(a anchor.Anchor) (blockrecord.Output, bool) {
	o, ok := c.outputs[a]
	return o, ok
}

// Len - number of unspent outputs
func (c *UnspentCache) Len() int {
	return len(c.outputs)
}

// Anchors - all anchors in ascending order
func (c *UnspentCache) Anchors() []anchor.Anchor {
	anchors := make([]anchor.Anchor, 0, len(c.outputs))
	for a := range c.outputs {
		anchors = append(anchors, a)
	}
	sort.Slice(anchors, func(i, j int) bool { return anchors[i].Less(anchors[j]) })
	return anchors
}

// Serialise - the deterministic blob
func (c *UnspentCache) Serialise() ([]byte, error) {
	buffer := newBlob(len(c.outputs), unspentRecordSize)
	for _, a := range c.Anchors() {
		p := a.Pack()
		o := c.outputs[a].Pack()
		buffer = append(buffer, p[:]...)
		buffer = append(buffer, o[:]...)
	}
	return buffer, nil
}

// Deserialise - replace the contents from a blob
func (c *UnspentCache) Deserialise(blob []byte) error {
	list, err := records(blob, unspentRecordSize)
	if nil != err {
		return err
	}
	outputs := make(map[anchor.Anchor]blockrecord.Output, len(list))
	for _, r := range list {
		a, err := anchor.Unpack(r)
		if nil != err {
			return err
		}
		o, err := blockrecord.UnpackOutput(r[anchor.Length:])
		if nil != err {
			return err
		}
		outputs[a] = o
	}
	c.outputs = outputs
	return nil
}
