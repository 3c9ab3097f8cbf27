// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"github.com/spectrum-node/spectrumd/blockrecord"
	"github.com/spectrum-node/spectrumd/fault"
	"github.com/spectrum-node/spectrumd/merkle"
)

// the parts of the store a block dump reads
type blockReader interface {
	GetBlock(height uint64) (blockrecord.PackedBlock, error)
	GetBlockInfo(height uint64) ([]byte, error)
}

type transactionItem struct {
	Index int                      `json:"index"`
	TxId  merkle.Digest            `json:"txId"`
	Data  *blockrecord.Transaction `json:"data"`
}

type blockResult struct {
	Header       *blockrecord.Header `json:"header"`
	Info         []byte              `json:"info,omitempty"`
	Transactions []transactionItem   `json:"transactions"`
}

// dump of a particular block
func dumpBlock(store blockReader, number uint64) (*blockResult, error) {

	packed, err := store.GetBlock(number)
	if nil != err {
		return nil, err
	}
	if nil == packed {
		return nil, fault.ErrBlockNotFound
	}

	header, err := packed.Header()
	if nil != err {
		return nil, err
	}

	count, err := packed.TransactionCount()
	if nil != err {
		return nil, err
	}

	txs := make([]transactionItem, count)
	for i := 0; i < count; i += 1 {
		data, err := packed.TransactionBytes(i)
		if nil != err {
			return nil, err
		}
		transaction, err := blockrecord.UnpackTransaction(data)
		if nil != err {
			return nil, err
		}
		txs[i] = transactionItem{
			Index: i,
			TxId:  blockrecord.TxId(data),
			Data:  transaction,
		}
	}

	info, err := store.GetBlockInfo(number)
	if nil != err {
		return nil, err
	}

	result := &blockResult{
		Header:       header,
		Info:         info,
		Transactions: txs,
	}

	return result, nil
}
