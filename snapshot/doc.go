// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package snapshot - point in time copies of the derived state
//
// A snapshot is a folder named by block height holding one blob per
// state collection:
//
//   snapshots/<height>/vss.bin        stake spectrum
//   snapshots/<height>/memPool.bin    known identities
//   snapshots/<height>/utxoCache.bin  unspent outputs
//
// A folder is written under a temporary name and renamed into place.
// Folders missing any blob are purged whenever heights are listed.
//
// Superseded snapshots are first moved to a trash folder and can be
// restored from there until the trash is emptied.
package snapshot
