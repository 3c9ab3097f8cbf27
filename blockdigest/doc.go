// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package blockdigest - implementation of block proof hashing
//
// using the memory intensive argon2id algorithm, the cost of which is
// why checkpoint filling only re-derives a sample of block hashes
package blockdigest
