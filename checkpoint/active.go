// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package checkpoint

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/spectrum-node/spectrumd/blockinfo"
	"github.com/spectrum-node/spectrumd/blockrecord"
	"github.com/spectrum-node/spectrumd/fault"
	"github.com/spectrum-node/spectrumd/ledger"
	"github.com/spectrum-node/spectrumd/snapshot"
)

// staging area layout
const (
	BlocksFolder     = "blocks"
	BlocksInfoFolder = "blocks-info"
	SnapshotsFolder  = "snapshots"
	activeFile       = "active.yaml"
	partialSuffix    = ".partial"
	oldSuffix        = ".old"
)

// State - progress of the staging area
type State int

// possible states
const (
	NoActiveCheckpoint State = iota
	Staging
)

func (s State) String() string {
	switch s {
	case NoActiveCheckpoint:
		return "none"
	case Staging:
		return "staging"
	default:
		return "unknown"
	}
}

// FillResult - outcome of offering a block to the staging area
type FillResult int

// possible results
const (
	Accepted FillResult = iota
	Restart             // block does not extend the staging tip
)

func (r FillResult) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case Restart:
		return "restart"
	default:
		return "unknown"
	}
}

// LivePaths - the folders a deployment replaces
type LivePaths struct {
	Blockchain string `yaml:"blockchain"`
	BlocksInfo string `yaml:"blocksInfo"`
	Snapshots  string `yaml:"snapshots"`
}

// contents of active.yaml
//
// Deploying is set before the first folder is swapped
type activeRecord struct {
	Archive   string     `yaml:"archive"`
	Manifest  *Manifest  `yaml:"manifest"`
	Deploying *LivePaths `yaml:"deploying,omitempty"`
}

type active struct {
	record activeRecord
	ledger *ledger.Store
	info   *blockinfo.Cache
}

func (a *active) close() {
	if nil != a.ledger {
		a.ledger.Close()
		a.ledger = nil
	}
}

// State - whether a staging area is open
func (s *System) State() State {
	if nil == s.active {
		return NoActiveCheckpoint
	}
	return Staging
}

// Manifest - description of the checkpoint being staged
func (s *System) Manifest() (*Manifest, error) {
	if nil == s.active {
		return nil, fault.ErrNoActiveCheckpoint
	}
	return s.active.record.Manifest, nil
}

// Activate - verify an archive and build a staging area from it
//
// the staging ledger holds pruned entries up to the checkpoint height
// so that the next block it accepts is the one after it
func (s *System) Activate(path string) error {
	if nil != s.active {
		return fault.ErrActiveCheckpointExists
	}
	if _, err := os.Stat(filepath.Join(s.options.Active, activeFile)); nil == err {
		return fault.ErrActiveCheckpointExists
	}

	manifest, contents, err := s.verify(path)
	if nil != err {
		return err
	}

	partial := s.options.Active + partialSuffix
	if err := os.RemoveAll(partial); nil != err {
		return err
	}
	if err := os.RemoveAll(s.options.Active); nil != err {
		return err
	}

	err = func() error {
		snapshots, err := snapshot.Open(filepath.Join(partial, SnapshotsFolder), filepath.Join(partial, "trash"))
		if nil != err {
			return err
		}
		for _, folder := range manifest.Snapshots {
			if err := snapshots.WriteBlobs(folder.Height, contents[folder.Height]); nil != err {
				return err
			}
		}
		if err := os.RemoveAll(filepath.Join(partial, "trash")); nil != err {
			return err
		}

		if err := os.MkdirAll(filepath.Join(partial, BlocksInfoFolder), 0700); nil != err {
			return err
		}

		l, err := ledger.Open(filepath.Join(partial, BlocksFolder), s.options.Ledger)
		if nil != err {
			return err
		}
		err = l.AddPrunedBlocks(int64(manifest.Height), manifest.TipHash)
		l.Close()
		if nil != err {
			return err
		}

		return writeActiveRecord(partial, activeRecord{
			Archive:  path,
			Manifest: manifest,
		})
	}()
	if nil != err {
		_ = os.RemoveAll(partial)
		return err
	}

	if err := os.Rename(partial, s.options.Active); nil != err {
		return err
	}
	s.log.Infof("activated checkpoint height: %d  hash: %s", manifest.Height, manifest.Hash)

	_, _, err = s.CheckForActiveCheckpoint()
	return err
}

// CheckForActiveCheckpoint - open a staging area left by an earlier run
//
// returns the height of the next block the staging area needs
func (s *System) CheckForActiveCheckpoint() (bool, uint64, error) {
	if nil != s.active {
		return true, uint64(s.active.ledger.LastHeight() + 1), nil
	}

	_ = os.RemoveAll(s.options.Active + partialSuffix)

	data, err := os.ReadFile(filepath.Join(s.options.Active, activeFile))
	if os.IsNotExist(err) {
		return false, 0, nil
	}
	if nil != err {
		return false, 0, err
	}

	record := activeRecord{}
	if err := yaml.Unmarshal(data, &record); nil != err {
		return false, 0, err
	}
	if nil == record.Manifest {
		return false, 0, fault.ErrNoActiveCheckpoint
	}

	if nil != record.Deploying {
		s.log.Warnf("completing interrupted deployment of checkpoint height: %d", record.Manifest.Height)
		if err := s.swap(record); nil != err {
			return false, 0, err
		}
		s.resumed = true
		return false, 0, nil
	}

	l, err := ledger.Open(filepath.Join(s.options.Active, BlocksFolder), s.options.Ledger)
	if nil != err {
		return false, 0, err
	}
	consistent, err := l.CheckBlockchainBytesLengthConsistency()
	if nil == err && !consistent {
		_, err = l.TruncateToConsistentHeight()
	}
	if nil != err {
		l.Close()
		return false, 0, err
	}

	info, err := blockinfo.Open(filepath.Join(s.options.Active, BlocksInfoFolder))
	if nil != err {
		l.Close()
		return false, 0, err
	}

	s.active = &active{
		record: record,
		ledger: l,
		info:   info,
	}

	next := uint64(l.LastHeight() + 1)
	s.log.Infof("staging checkpoint height: %d  next block: %d", record.Manifest.Height, next)
	return true, next, nil
}

// MigrateBlocksToActiveCheckpoint - copy live blocks above the
// checkpoint height into the staging ledger and move the block info
// of the snapshot window into the staging area
//
// blocks are only copied while the live chain agrees with the staging
// tip, returns the number of blocks copied
func (s *System) MigrateBlocksToActiveCheckpoint(live *ledger.Store, liveInfo *blockinfo.Cache) (int, error) {
	if nil == s.active {
		return 0, fault.ErrNoActiveCheckpoint
	}
	a := s.active
	manifest := a.record.Manifest

	if nil != liveInfo {
		if _, err := liveInfo.MoveTo(a.info, manifest.Oldest()); nil != err {
			return 0, err
		}
		if _, err := liveInfo.PruneBelow(manifest.Oldest()); nil != err {
			return 0, err
		}
	}

	if nil == live {
		return 0, nil
	}

	height := a.ledger.LastHeight()
	if hash, ok := live.HashOfHeight(height); !ok || hash != a.ledger.LastHash() {
		s.log.Warnf("live chain does not contain staging tip: %d", height)
		return 0, nil
	}

	n := 0
	for h := height + 1; h <= live.LastHeight(); h += 1 {
		packed, err := live.GetBlockBytes(h, false)
		if nil != err {
			return n, err
		}
		if nil == packed {
			break
		}
		anchors, err := blockrecord.PackedBlock(packed).InputAnchors()
		if nil != err {
			return n, err
		}
		if err := a.ledger.AddBlock(packed, anchors); nil != err {
			return n, err
		}
		n += 1
	}
	s.log.Infof("migrated %d blocks to staging", n)
	return n, nil
}

// FillActiveCheckpointWithBlock - append one block to the staging area
//
// a block that does not extend the staging tip is not an error, the
// caller is told to restart from a clean point; the proof hash is
// re-derived for a sample of blocks
func (s *System) FillActiveCheckpointWithBlock(packed blockrecord.PackedBlock, info []byte) (FillResult, error) {
	if nil == s.active {
		return Restart, fault.ErrNoActiveCheckpoint
	}
	a := s.active

	header, err := packed.Header()
	if nil != err {
		return Restart, err
	}
	if int64(header.Index) != a.ledger.LastHeight()+1 || header.PreviousHash != a.ledger.LastHash() {
		s.log.Debugf("block: %d does not extend staging tip: %d", header.Index, a.ledger.LastHeight())
		return Restart, nil
	}

	if s.options.ProofSampleRate > 0 && s.random.Float64() < s.options.ProofSampleRate {
		proof, err := packed.ProofRecord()
		if nil != err {
			return Restart, err
		}
		if s.options.Hasher.Digest(proof) != header.Hash {
			s.log.Errorf("block: %d  proof hash mismatch", header.Index)
			return Restart, fault.ErrProofHashMismatch
		}
	}

	anchors, err := packed.InputAnchors()
	if nil != err {
		return Restart, err
	}
	if err := a.ledger.AddBlock(packed, anchors); nil != err {
		return Restart, err
	}
	if nil != info {
		if err := a.info.Put(uint64(header.Index), info); nil != err {
			return Restart, err
		}
	}
	return Accepted, nil
}

// DeployActiveCheckpoint - replace the live folders by the staged ones
//
// the caller must have closed every store using the live folders; the
// target folders are recorded in active.yaml first so that
// CheckForActiveCheckpoint can finish a swap that was interrupted
func (s *System) DeployActiveCheckpoint(live LivePaths) error {
	if nil == s.active {
		return fault.ErrNoActiveCheckpoint
	}
	record := s.active.record
	s.active.close()
	s.active = nil

	record.Deploying = &live
	if err := writeActiveRecord(s.options.Active, record); nil != err {
		return err
	}
	return s.swap(record)
}

// ResumedDeployment - whether CheckForActiveCheckpoint finished an
// interrupted deployment since the last call
func (s *System) ResumedDeployment() bool {
	resumed := s.resumed
	s.resumed = false
	return resumed
}

type folderMove struct {
	staged string
	live   string
}

// move every staged folder into place, each step can be repeated
func (s *System) swap(record activeRecord) error {
	live := record.Deploying
	moves := []folderMove{
		{filepath.Join(s.options.Active, BlocksFolder), live.Blockchain},
		{filepath.Join(s.options.Active, BlocksInfoFolder), live.BlocksInfo},
		{filepath.Join(s.options.Active, SnapshotsFolder), live.Snapshots},
	}

	for _, m := range moves {
		if err := m.apply(); nil != err {
			return err
		}
	}

	// the live history before the checkpoint is discarded only now
	for _, m := range moves {
		if err := os.RemoveAll(m.live + oldSuffix); nil != err {
			return err
		}
	}
	if err := os.RemoveAll(s.options.Active); nil != err {
		return err
	}

	s.log.Infof("deployed checkpoint height: %d  hash: %s", record.Manifest.Height, record.Manifest.Hash)
	return nil
}

// a missing staged folder has already been moved
func (m folderMove) apply() error {
	if _, err := os.Stat(m.staged); os.IsNotExist(err) {
		return nil
	} else if nil != err {
		return err
	}

	old := m.live + oldSuffix
	if _, err := os.Stat(m.live); nil == err {
		if err := os.RemoveAll(old); nil != err {
			return err
		}
		if err := os.Rename(m.live, old); nil != err {
			return err
		}
	} else if !os.IsNotExist(err) {
		return err
	}
	return os.Rename(m.staged, m.live)
}

// Abandon - discard the staging area
func (s *System) Abandon() error {
	if nil != s.active {
		s.active.close()
		s.active = nil
	}
	_ = os.RemoveAll(s.options.Active + partialSuffix)
	return os.RemoveAll(s.options.Active)
}

func writeActiveRecord(directory string, record activeRecord) error {
	data, err := yaml.Marshal(&record)
	if nil != err {
		return err
	}
	name := filepath.Join(directory, activeFile)
	tmp := name + tmpSuffix
	if err := os.WriteFile(tmp, data, 0600); nil != err {
		return err
	}
	return os.Rename(tmp, name)
}
