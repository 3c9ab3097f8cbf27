// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package block - owner of the ledger and everything derived from it
//
// A Store digests blocks one at a time. Each block is appended to the
// ledger, its stake outputs to the stake store, first ownership proofs
// to the identity store, and it moves the in-memory state forward.
// Every snapshot interval the state is saved and older snapshots are
// trashed; every checkpoint interval the snapshot window is archived.
//
// On open the ledger is checked and repaired, the state is restored
// from the newest usable snapshot and the blocks above it are replayed.
package block
