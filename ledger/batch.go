// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bitmark-inc/logger"
	lru "github.com/hashicorp/golang-lru"

	"github.com/spectrum-node/spectrumd/binaryfile"
)

// batchFiles - bounded set of open batch files, least recently used
// handles are closed when the bound is reached
type batchFiles struct {
	log       *logger.L
	directory string
	handles   *lru.Cache
}

func newBatchFiles(directory string, size int, log *logger.L) (*batchFiles, error) {
	b := &batchFiles{
		log:       log,
		directory: directory,
	}
	handles, err := lru.NewWithEvict(size, func(key interface{}, value interface{}) {
		h := value.(*binaryfile.Handle)
		if err := h.Close(); nil != err {
			b.log.Errorf("close batch file: %s  error: %s", h.Path(), err)
		}
	})
	if nil != err {
		return nil, err
	}
	b.handles = handles
	return b, nil
}

func (b *batchFiles) path(batch int64) string {
	return filepath.Join(b.directory, fmt.Sprintf("blockchain-%d.bin", batch))
}

// get - open handle of a batch file, created on demand if requested
func (b *batchFiles) get(batch int64, create bool) (*binaryfile.Handle, error) {
	if value, ok := b.handles.Get(batch); ok {
		return value.(*binaryfile.Handle), nil
	}
	h, err := binaryfile.Open(b.path(batch), create)
	if nil != err {
		return nil, err
	}
	b.handles.Add(batch, h)
	return h, nil
}

// size - current size of a batch file, 0 if it does not exist
func (b *batchFiles) size(batch int64) (int64, error) {
	if value, ok := b.handles.Get(batch); ok {
		return value.(*binaryfile.Handle).Size(), nil
	}
	info, err := os.Stat(b.path(batch))
	if os.IsNotExist(err) {
		return 0, nil
	}
	if nil != err {
		return 0, err
	}
	return info.Size(), nil
}

// remove - close and delete a batch file
func (b *batchFiles) remove(batch int64) error {
	b.handles.Remove(batch)
	err := os.Remove(b.path(batch))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// closeAll - close every open handle
func (b *batchFiles) closeAll() {
	for _, key := range b.handles.Keys() {
		b.handles.Remove(key)
	}
}
