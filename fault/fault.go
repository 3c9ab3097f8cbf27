// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package fault

import (
	"errors"
)

// GenericError - error base
type GenericError string

// to allow for different classes of errors
type ExistsError GenericError
type InvalidError GenericError
type LengthError GenericError
type NotFoundError GenericError
type ProcessError GenericError
type RecordError GenericError

// common errors - keep in alphabetic order
var (
	ErrActiveCheckpointExists          = ExistsError("active checkpoint already exists")
	ErrAddressOutOfRange               = InvalidError("address value is outside the address space")
	ErrAlreadyInitialised              = ProcessError("already initialised")
	ErrBlockIndexMismatch              = InvalidError("block index does not match")
	ErrBlockNotFound                   = NotFoundError("block not found")
	ErrBlockOutOfSequence              = InvalidError("block is out of sequence")
	ErrCheckpointHashMismatch          = InvalidError("checkpoint hash mismatch")
	ErrCheckpointNotFound              = NotFoundError("checkpoint not found")
	ErrCheckpointSnapshotMissing       = NotFoundError("checkpoint snapshot is missing")
	ErrInconsistentBlockchainBytes     = RecordError("blockchain bytes length is inconsistent")
	ErrInvalidAddress                  = InvalidError("invalid address")
	ErrInvalidAnchor                   = InvalidError("invalid anchor")
	ErrInvalidBlockHeaderSize          = LengthError("invalid block header size")
	ErrInvalidCount                    = InvalidError("invalid count")
	ErrInvalidDigest                   = InvalidError("invalid digest")
	ErrInvalidHeight                   = InvalidError("invalid height")
	ErrInvalidIndexEntry               = RecordError("invalid index entry")
	ErrInvalidLoggerChannel            = ProcessError("invalid logger channel")
	ErrInvalidOutputRule               = InvalidError("invalid output rule")
	ErrInvalidPrefix                   = InvalidError("address prefix is not supported")
	ErrInvalidTransactionReference     = InvalidError("invalid transaction reference")
	ErrMissingInputs                   = NotFoundError("transaction inputs could not be resolved")
	ErrNoActiveCheckpoint              = NotFoundError("no active checkpoint")
	ErrNoBlocksToUndo                  = NotFoundError("no blocks to undo")
	ErrNotInitialised                  = ProcessError("not initialised")
	ErrPreviousBlockDigestDoesNotMatch = InvalidError("previous block digest does not match")
	ErrProofHashMismatch               = InvalidError("proof hash does not match block hash")
	ErrReadBeyondEndOfFile             = LengthError("read beyond end of file")
	ErrSnapshotIncomplete              = RecordError("snapshot is incomplete")
	ErrSnapshotNotFound                = NotFoundError("snapshot not found")
	ErrTransactionCountOutOfRange      = LengthError("transaction count out of range")
	ErrTruncatedRecord                 = LengthError("truncated record")
	ErrUtxoAlreadySpent                = ExistsError("utxo already spent")
	ErrUtxoNotFound                    = NotFoundError("utxo not found")
	ErrWrongTransactionIndex           = InvalidError("transaction index out of range")
)

// the error interface base method
func (e GenericError) Error() string { return string(e) }

// the error interface methods
func (e ExistsError) Error() string   { return string(e) }
func (e InvalidError) Error() string  { return string(e) }
func (e LengthError) Error() string   { return string(e) }
func (e NotFoundError) Error() string { return string(e) }
func (e ProcessError) Error() string  { return string(e) }
func (e RecordError) Error() string   { return string(e) }

// determine the class of an error, also looking through wrapped errors
func IsErrExists(e error) bool   { var x ExistsError; return errors.As(e, &x) }
func IsErrInvalid(e error) bool  { var x InvalidError; return errors.As(e, &x) }
func IsErrLength(e error) bool   { var x LengthError; return errors.As(e, &x) }
func IsErrNotFound(e error) bool { var x NotFoundError; return errors.As(e, &x) }
func IsErrProcess(e error) bool  { var x ProcessError; return errors.As(e, &x) }
func IsErrRecord(e error) bool   { var x RecordError; return errors.As(e, &x) }
