// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package identity - first proof of ownership of each address
//
// One file per address prefix, <prefix>.dat, pre-allocated so that
// the 6 byte record of an address lives at value * 6:
//
//   blockIndex:u32 ++ txIndex:u16      (little endian)
//
// An all zero record means the address has not been seen.  A real
// record can never be zero because the coinbase (transaction 0) is
// never digested.  Records are written once and never overwritten, a
// rollback does not clear them.
package identity
