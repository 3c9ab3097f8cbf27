// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package ledger - the append only block store
//
// Layout of a ledger directory:
//
//   blockchain.idx          - one 16 byte entry per height:
//                             startOffset:u64 ++ blockLength:u32 ++ stateLength:u32
//   blockchain-<batch>.bin  - [block bytes][utxo state bytes] for BatchSize
//                             consecutive heights, batch = height / BatchSize
//   hashes.leveldb/         - block hash <-> height, rebuilt from the above
//
// The utxo state of a block is one 5 byte record per output it
// creates: txIndex:u16 ++ voutIndex:u16 ++ spent:u8.  Keeping it next
// to the block makes rollback a plain truncation of both files.
//
// A Store has no locking, the owner must serialise all calls.
package ledger
