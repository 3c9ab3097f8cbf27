// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package blockinfo - opaque per-height data kept beside the ledger
//
// Each height is one file named <height>.bin in the cache directory,
// written through a temporary file and renamed into place. Recently
// read entries are held in memory.
package blockinfo

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bitmark-inc/logger"
	lru "github.com/hashicorp/golang-lru"

	"github.com/spectrum-node/spectrumd/binaryfile"
)

const (
	suffix       = ".bin"
	tmpSuffix    = ".tmp"
	recentHeight = 64
)

// Cache - the block info directory
type Cache struct {
	log       *logger.L
	directory string
	recent    *lru.Cache
}

// Open - use a directory, creating it if necessary
func Open(directory string) (*Cache, error) {
	if err := os.MkdirAll(directory, 0700); nil != err {
		return nil, err
	}
	recent, err := lru.New(recentHeight)
	if nil != err {
		return nil, err
	}
	return &Cache{
		log:       logger.New("blockinfo"),
		directory: directory,
		recent:    recent,
	}, nil
}

// Directory - where the files are
func (c *Cache) Directory() string {
	return c.directory
}

func (c *Cache) fileName(height uint64) string {
	return filepath.Join(c.directory, strconv.FormatUint(height, 10)+suffix)
}

// Put - store the info of a height replacing any previous value
func (c *Cache) Put(height uint64, data []byte) error {
	name := c.fileName(height)
	tmp := name + tmpSuffix

	_ = os.Remove(tmp)
	h, err := binaryfile.Open(tmp, true)
	if nil != err {
		return err
	}
	_, err = h.Append(data)
	if nil == err {
		err = h.Sync()
	}
	if closeErr := h.Close(); nil == err {
		err = closeErr
	}
	if nil != err {
		_ = os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, name); nil != err {
		return err
	}
	c.recent.Add(height, append([]byte{}, data...))
	return nil
}

// Get - the info of a height, nil if there is none
func (c *Cache) Get(height uint64) ([]byte, error) {
	if data, ok := c.recent.Get(height); ok {
		return append([]byte{}, data.([]byte)...), nil
	}

	h, err := binaryfile.Open(c.fileName(height), false)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if nil != err {
		return nil, err
	}
	defer h.Close()

	data, err := h.ReadAll()
	if nil != err {
		return nil, err
	}
	c.recent.Add(height, append([]byte{}, data...))
	return data, nil
}

// Delete - remove one height, a missing height is not an error
func (c *Cache) Delete(height uint64) error {
	c.recent.Remove(height)
	err := os.Remove(c.fileName(height))
	if nil != err && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Heights - every stored height in ascending order
//
// left over temporary files are removed
func (c *Cache) Heights() ([]uint64, error) {
	entries, err := os.ReadDir(c.directory)
	if nil != err {
		return nil, err
	}

	heights := make([]uint64, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(name, tmpSuffix) {
			c.log.Warnf("remove partial file: %s", name)
			_ = os.Remove(filepath.Join(c.directory, name))
			continue
		}
		if !strings.HasSuffix(name, suffix) {
			continue
		}
		height, err := strconv.ParseUint(strings.TrimSuffix(name, suffix), 10, 64)
		if nil != err {
			continue
		}
		heights = append(heights, height)
	}
	sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })
	return heights, nil
}

// PruneBelow - delete every height lower than the given one
func (c *Cache) PruneBelow(height uint64) (int, error) {
	heights, err := c.Heights()
	if nil != err {
		return 0, err
	}
	n := 0
	for _, h := range heights {
		if h >= height {
			break
		}
		if err := c.Delete(h); nil != err {
			return n, err
		}
		n += 1
	}
	if 0 != n {
		c.log.Debugf("pruned %d entries below: %d", n, height)
	}
	return n, nil
}

// MoveTo - move every height at or above the given one into another cache
func (c *Cache) MoveTo(other *Cache, height uint64) (int, error) {
	heights, err := c.Heights()
	if nil != err {
		return 0, err
	}
	n := 0
	for _, h := range heights {
		if h < height {
			continue
		}
		if err := os.Rename(c.fileName(h), other.fileName(h)); nil != err {
			return n, err
		}
		c.recent.Remove(h)
		other.recent.Remove(h)
		n += 1
	}
	c.log.Infof("moved %d entries from: %d to: %s", n, height, other.directory)
	return n, nil
}

// Reset - delete everything
func (c *Cache) Reset() error {
	c.recent.Purge()
	if err := os.RemoveAll(c.directory); nil != err {
		return err
	}
	return os.MkdirAll(c.directory, 0700)
}
