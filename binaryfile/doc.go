// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package binaryfile - a thin wrapper over one operating system file
//
// A Handle appends at its logical end of file, reads and overwrites at
// explicit positions and can be cut back with Truncate or Shrink.
// There is no locking: each file has exactly one owner and every I/O
// error is returned to that owner unchanged.
package binaryfile
