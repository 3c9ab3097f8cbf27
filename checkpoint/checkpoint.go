// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package checkpoint

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bitmark-inc/logger"

	"github.com/spectrum-node/spectrumd/blockdigest"
	"github.com/spectrum-node/spectrumd/fault"
	"github.com/spectrum-node/spectrumd/ledger"
	"github.com/spectrum-node/spectrumd/merkle"
	"github.com/spectrum-node/spectrumd/snapshot"
)

//go:generate mockgen -destination=mocks/mock_proofhasher.go -package=mocks github.com/spectrum-node/spectrumd/checkpoint ProofHasher

// ProofHasher - recomputes the proof hash of a block
type ProofHasher interface {
	Digest(record []byte) blockdigest.Digest
}

// default rate of proof hash re-derivation while filling
const DefaultProofSampleRate = 0.01

const (
	archiveSuffix = ".zip"
	tmpSuffix     = ".tmp"
)

// Options - where checkpoints live and how staging is checked
type Options struct {
	Directory       string           // archived checkpoints
	Active          string           // staging area
	Snapshots       *snapshot.System // live snapshots to archive
	Ledger          ledger.Options   // options of the staging ledger
	Hasher          ProofHasher
	ProofSampleRate float64 // 0 never, 1 every block
}

// Info - one archived checkpoint
type Info struct {
	Height uint64        `json:"height"`
	Hash   merkle.Digest `json:"hash"`
	Path   string        `json:"path"`
}

// System - archive and staging management
type System struct {
	log     *logger.L
	options Options
	random  *rand.Rand
	active  *active
	resumed bool
}

// Open - prepare the checkpoint folder
//
// a staging area left by an earlier run is not opened until
// CheckForActiveCheckpoint is called
func Open(options Options) (*System, error) {
	if options.ProofSampleRate < 0 {
		options.ProofSampleRate = DefaultProofSampleRate
	}
	if nil == options.Hasher {
		options.Hasher = blockdigest.DefaultHasher()
	}
	if err := os.MkdirAll(options.Directory, 0700); nil != err {
		return nil, err
	}
	return &System{
		log:     logger.New("checkpoint"),
		options: options,
		random:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Close - release the staging ledger if open
func (s *System) Close() {
	if nil != s.active {
		s.active.close()
		s.active = nil
	}
}

func (s *System) folder(height uint64) string {
	return filepath.Join(s.options.Directory, strconv.FormatUint(height, 10))
}

// NewCheckpoint - archive the snapshot at height together with the
// snapshots at height-modulo and height-2*modulo
//
// the snapshot at height must exist, older ones are included when
// present; tipHash is the hash of the block at height
func (s *System) NewCheckpoint(height uint64, modulo uint64, tipHash blockdigest.Digest) (merkle.Digest, error) {
	if 0 == height || 0 == modulo {
		return merkle.Digest{}, fault.ErrInvalidHeight
	}

	snapshots := s.options.Snapshots
	contents := make(map[uint64]map[string][]byte)
	for k := uint64(0); k < 3 && k*modulo < height; k += 1 {
		h := height - k*modulo
		data, err := snapshots.ReadBlobs(h)
		if fault.ErrSnapshotNotFound == err && 0 != k {
			continue
		}
		if fault.ErrSnapshotNotFound == err || fault.ErrSnapshotIncomplete == err {
			s.log.Errorf("snapshot: %d  error: %s", h, err)
			return merkle.Digest{}, fault.ErrCheckpointSnapshotMissing
		}
		if nil != err {
			return merkle.Digest{}, err
		}
		contents[h] = data
	}

	manifest := newManifest(height, modulo, tipHash, contents)

	folder := s.folder(height)
	if err := os.MkdirAll(folder, 0700); nil != err {
		return merkle.Digest{}, err
	}
	path := filepath.Join(folder, manifest.Hash.String()+archiveSuffix)
	if err := writeArchive(path, manifest, contents); nil != err {
		return merkle.Digest{}, err
	}

	s.log.Infof("checkpoint height: %d  hash: %s  snapshots: %d", height, manifest.Hash, len(contents))
	return manifest.Hash, nil
}

// List - every archived checkpoint in ascending height order
func (s *System) List() ([]Info, error) {
	folders, err := os.ReadDir(s.options.Directory)
	if nil != err {
		return nil, err
	}

	result := make([]Info, 0, len(folders))
	for _, folder := range folders {
		height, err := strconv.ParseUint(folder.Name(), 10, 64)
		if nil != err || !folder.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(s.options.Directory, folder.Name()))
		if nil != err {
			return nil, err
		}
		for _, f := range files {
			name := f.Name()
			if !strings.HasSuffix(name, archiveSuffix) {
				continue
			}
			hash, ok := parseArchiveName(name)
			if !ok {
				continue
			}
			result = append(result, Info{
				Height: height,
				Hash:   hash,
				Path:   filepath.Join(s.options.Directory, folder.Name(), name),
			})
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Height < result[j].Height })
	return result, nil
}

// Verify - recompute the hash of an archive
//
// the contents must match both the manifest and the file name
func (s *System) Verify(path string) (*Manifest, error) {
	manifest, _, err := s.verify(path)
	return manifest, err
}

func (s *System) verify(path string) (*Manifest, map[uint64]map[string][]byte, error) {
	manifest, contents, err := readArchive(path)
	if nil != err {
		return nil, nil, err
	}

	named, ok := parseArchiveName(filepath.Base(path))
	if !ok || named != manifest.Hash {
		s.log.Warnf("archive: %s  manifest hash: %s", path, manifest.Hash)
		return nil, nil, fault.ErrCheckpointHashMismatch
	}
	return manifest, contents, nil
}

// Prune - keep only the newest retain checkpoint heights
func (s *System) Prune(retain int) (int, error) {
	list, err := s.List()
	if nil != err {
		return 0, err
	}

	heights := make([]uint64, 0, len(list))
	for _, info := range list {
		if 0 == len(heights) || heights[len(heights)-1] != info.Height {
			heights = append(heights, info.Height)
		}
	}
	if len(heights) <= retain {
		return 0, nil
	}

	n := 0
	for _, h := range heights[:len(heights)-retain] {
		if err := os.RemoveAll(s.folder(h)); nil != err {
			return n, err
		}
		n += 1
	}
	s.log.Debugf("pruned %d checkpoints", n)
	return n, nil
}

// archive names are the big endian hex of the checkpoint hash
func parseArchiveName(name string) (merkle.Digest, bool) {
	var hash merkle.Digest
	text := strings.TrimSuffix(name, archiveSuffix)
	if text == name {
		return hash, false
	}
	if _, err := fmt.Sscan(text, &hash); nil != err {
		return hash, false
	}
	return hash, hash.String() == text
}
