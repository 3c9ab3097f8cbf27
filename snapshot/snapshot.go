// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package snapshot

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/bitmark-inc/logger"

	"github.com/spectrum-node/spectrumd/binaryfile"
	"github.com/spectrum-node/spectrumd/fault"
	"github.com/spectrum-node/spectrumd/state"
)

// blob file names
const (
	StakeSpectrumFile   = "vss.bin"
	KnownIdentitiesFile = "memPool.bin"
	UnspentCacheFile    = "utxoCache.bin"

	partialSuffix = ".partial"
)

// BlobNames - every file a complete snapshot holds, in name order
var BlobNames = []string{
	KnownIdentitiesFile,
	UnspentCacheFile,
	StakeSpectrumFile,
}

// System - the snapshot and trash folders
type System struct {
	log       *logger.L
	directory string
	trash     string
}

// Open - use the two folders, creating them if necessary
func Open(directory string, trash string) (*System, error) {
	for _, d := range []string{directory, trash} {
		if err := os.MkdirAll(d, 0700); nil != err {
			return nil, err
		}
	}
	return &System{
		log:       logger.New("snapshot"),
		directory: directory,
		trash:     trash,
	}, nil
}

// Directory - the snapshot folder
func (s *System) Directory() string {
	return s.directory
}

// Path - folder of the snapshot at a height
func (s *System) Path(height uint64) string {
	return filepath.Join(s.directory, strconv.FormatUint(height, 10))
}

func (s *System) trashPath(height uint64) string {
	return filepath.Join(s.trash, strconv.FormatUint(height, 10))
}

func blobs(set *state.Set) map[string]state.Serialiser {
	return map[string]state.Serialiser{
		StakeSpectrumFile:   set.Spectrum,
		KnownIdentitiesFile: set.Identities,
		UnspentCacheFile:    set.Unspent,
	}
}

// NewSnapshot - save the state as the snapshot of a height
//
// an existing snapshot at the same height is replaced
func (s *System) NewSnapshot(height uint64, set *state.Set) error {
	data := make(map[string][]byte, len(BlobNames))
	for name, serialiser := range blobs(set) {
		b, err := serialiser.Serialise()
		if nil != err {
			return err
		}
		data[name] = b
	}
	if err := s.WriteBlobs(height, data); nil != err {
		return err
	}
	s.log.Infof("snapshot at height: %d", height)
	return nil
}

// WriteBlobs - install raw blobs as the snapshot of a height
func (s *System) WriteBlobs(height uint64, data map[string][]byte) error {
	final := s.Path(height)
	partial := final + partialSuffix

	for _, name := range BlobNames {
		if _, ok := data[name]; !ok {
			return fault.ErrSnapshotIncomplete
		}
	}

	if err := os.RemoveAll(partial); nil != err {
		return err
	}
	if err := os.MkdirAll(partial, 0700); nil != err {
		return err
	}
	for _, name := range BlobNames {
		if err := writeFile(filepath.Join(partial, name), data[name]); nil != err {
			_ = os.RemoveAll(partial)
			return err
		}
	}

	if err := os.RemoveAll(final); nil != err {
		return err
	}
	return os.Rename(partial, final)
}

// ReadBlobs - raw blobs of the snapshot at a height
func (s *System) ReadBlobs(height uint64) (map[string][]byte, error) {
	folder := s.Path(height)
	if _, err := os.Stat(folder); os.IsNotExist(err) {
		return nil, fault.ErrSnapshotNotFound
	}

	data := make(map[string][]byte, len(BlobNames))
	for _, name := range BlobNames {
		b, err := readFile(filepath.Join(folder, name))
		if os.IsNotExist(err) {
			return nil, fault.ErrSnapshotIncomplete
		}
		if nil != err {
			return nil, err
		}
		data[name] = b
	}
	return data, nil
}

// RollBackTo - replace the state by the snapshot of a height
//
// the collections of the set are replaced only if every blob loads
func (s *System) RollBackTo(height uint64, set *state.Set) error {
	if 0 == height {
		return fault.ErrInvalidHeight
	}

	data, err := s.ReadBlobs(height)
	if nil != err {
		return err
	}

	loaded := state.NewSet()
	for name, serialiser := range blobs(loaded) {
		if err := serialiser.Deserialise(data[name]); nil != err {
			return err
		}
	}

	*set = *loaded
	s.log.Infof("rolled back to snapshot: %d", height)
	return nil
}

// Heights - every complete snapshot in ascending order
func (s *System) Heights() ([]uint64, error) {
	return s.ReadSnapshotHeights(s.directory)
}

// Latest - the highest complete snapshot
func (s *System) Latest() (uint64, bool, error) {
	heights, err := s.Heights()
	if nil != err || 0 == len(heights) {
		return 0, false, err
	}
	return heights[len(heights)-1], true, nil
}

// ReadSnapshotHeights - heights of the complete snapshots in a folder
//
// anything that is not a complete snapshot folder is deleted
func (s *System) ReadSnapshotHeights(directory string) ([]uint64, error) {
	entries, err := os.ReadDir(directory)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if nil != err {
		return nil, err
	}

	heights := make([]uint64, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		path := filepath.Join(directory, name)

		height, err := strconv.ParseUint(name, 10, 64)
		if nil != err || !entry.IsDir() || !complete(path) {
			s.log.Warnf("purge corrupt snapshot: %s", path)
			if err := os.RemoveAll(path); nil != err {
				return nil, err
			}
			continue
		}
		heights = append(heights, height)
	}
	sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })
	return heights, nil
}

func complete(folder string) bool {
	for _, name := range BlobNames {
		info, err := os.Stat(filepath.Join(folder, name))
		if nil != err || !info.Mode().IsRegular() {
			return false
		}
	}
	return true
}

// MoveSnapshotsHigherThanHeightToTrash - park every snapshot above a height
func (s *System) MoveSnapshotsHigherThanHeightToTrash(height uint64) ([]uint64, error) {
	return s.moveToTrash(func(h uint64) bool { return h > height })
}

// MoveSnapshotsLowerThanHeightToTrash - park every snapshot below a height
func (s *System) MoveSnapshotsLowerThanHeightToTrash(height uint64) ([]uint64, error) {
	return s.moveToTrash(func(h uint64) bool { return h < height })
}

func (s *System) moveToTrash(selected func(uint64) bool) ([]uint64, error) {
	heights, err := s.Heights()
	if nil != err {
		return nil, err
	}

	moved := make([]uint64, 0, len(heights))
	for _, h := range heights {
		if !selected(h) {
			continue
		}
		destination := s.trashPath(h)
		if err := os.RemoveAll(destination); nil != err {
			return moved, err
		}
		if err := os.Rename(s.Path(h), destination); nil != err {
			return moved, err
		}
		moved = append(moved, h)
	}
	if 0 != len(moved) {
		s.log.Debugf("moved to trash: %v", moved)
	}
	return moved, nil
}

// RestoreLoadedSnapshot - move every trashed snapshot back
//
// used when the snapshot that replaced them could not be loaded, a
// height that exists again in the snapshot folder stays in the trash
func (s *System) RestoreLoadedSnapshot() ([]uint64, error) {
	heights, err := s.ReadSnapshotHeights(s.trash)
	if nil != err {
		return nil, err
	}

	restored := make([]uint64, 0, len(heights))
	for _, h := range heights {
		if _, err := os.Stat(s.Path(h)); nil == err {
			continue
		}
		if err := os.Rename(s.trashPath(h), s.Path(h)); nil != err {
			return restored, err
		}
		restored = append(restored, h)
	}
	if 0 != len(restored) {
		s.log.Infof("restored from trash: %v", restored)
	}
	return restored, nil
}

// EmptyTrash - permanently delete the trashed snapshots
func (s *System) EmptyTrash() error {
	if err := os.RemoveAll(s.trash); nil != err {
		return err
	}
	return os.MkdirAll(s.trash, 0700)
}

// Reset - delete all snapshots and the trash
func (s *System) Reset() error {
	if err := os.RemoveAll(s.directory); nil != err {
		return err
	}
	if err := os.MkdirAll(s.directory, 0700); nil != err {
		return err
	}
	return s.EmptyTrash()
}

func writeFile(path string, data []byte) error {
	h, err := binaryfile.Open(path, true)
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
	return err
}

func readFile(path string) ([]byte, error) {
	h, err := binaryfile.Open(path, false)
	if nil != err {
		return nil, err
	}
	defer h.Close()
	return h.ReadAll()
}
