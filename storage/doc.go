// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package storage - the LevelDB side index of a block ledger
//
// maintain separate pools of elements in key->value form
//
// Each table is defined by a prefix byte that is obtained from the
// prefix tag in the struct defining the available tables.  The ledger
// files remain the source of truth: everything here can be rebuilt by
// scanning the ledger, which is what happens when the recorded indexed
// height disagrees with the ledger height.
//
// Notes:
// 1. each separate pool has a single byte prefix (to spread the keys in LevelDB)
// 2. ++           = concatenation of byte data
// 3. height       = big endian uint64 (8 bytes)
// 4. hash         = block hash as 32 byte little endian digest
//
// Blocks:
//
//   H ++ hash                  - height of the block with this hash
//                                data: height
//   N ++ height                - hash of the block at this height
//                                data: hash
//
// Metadata:
//
//   M ++ name                  - single values, see the Meta* keys
package storage
