// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package state

import (
	"encoding/binary"

	"github.com/spectrum-node/spectrumd/fault"
)

const countSize = 4

// Serialiser - state that a snapshot can save and restore
type Serialiser interface {
	Serialise() ([]byte, error)
	Deserialise([]byte) error
}

func newBlob(count int, recordSize int) []byte {
	buffer := make([]byte, countSize, countSize+count*recordSize)
	binary.LittleEndian.PutUint32(buffer, uint32(count))
	return buffer
}

// split a blob into its records after checking the length
func records(blob []byte, recordSize int) ([][]byte, error) {
	if len(blob) < countSize {
		return nil, fault.ErrTruncatedRecord
	}
	count := int(binary.LittleEndian.Uint32(blob))
	blob = blob[countSize:]
	if len(blob) != count*recordSize {
		return nil, fault.ErrTruncatedRecord
	}
	result := make([][]byte, count)
	for i := range result {
		result[i] = blob[i*recordSize : (i+1)*recordSize]
	}
	return result, nil
}
