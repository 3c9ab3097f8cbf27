// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package checkpoint - archived snapshot sets for bootstrapping a node
//
// A checkpoint bundles the snapshot at its height with the snapshots
// one and two moduli below it:
//
//   checkpoints/<height>/<hash>.zip
//     manifest.yaml
//     snapshots/<height>/<blob>
//
// The hash of a snapshot folder is the merkle root of SHA3(name|content)
// of its files in name order, the checkpoint hash is the SHA3 of the
// folder hashes concatenated in ascending height order.
//
// An archive can be activated into a staging area that mirrors the live
// layout. Blocks above the checkpoint height are then filled in one at a
// time and the staging area is finally deployed over the live ledger,
// block info and snapshots.
package checkpoint
