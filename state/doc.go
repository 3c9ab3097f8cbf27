// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package state - derived state rebuilt from the chain
//
// Three in-memory collections are maintained while blocks are stored
// and are what a snapshot saves:
//
//   UnspentCache    - anchor -> output of every unspent output
//   StakeSpectrum   - anchor -> amount and owner of every live stake
//   KnownIdentities - address -> public key that proved ownership
//
// Each serialises to a deterministic blob: a u32 record count followed
// by fixed size records in ascending key order.
package state
