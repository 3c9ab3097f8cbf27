// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package block

import (
	"context"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bitmark-inc/logger"

	"github.com/spectrum-node/spectrumd/anchor"
	"github.com/spectrum-node/spectrumd/blockdigest"
	"github.com/spectrum-node/spectrumd/blockinfo"
	"github.com/spectrum-node/spectrumd/blockring"
	"github.com/spectrum-node/spectrumd/blockrecord"
	"github.com/spectrum-node/spectrumd/checkpoint"
	"github.com/spectrum-node/spectrumd/fault"
	"github.com/spectrum-node/spectrumd/identity"
	"github.com/spectrum-node/spectrumd/ledger"
	"github.com/spectrum-node/spectrumd/snapshot"
	"github.com/spectrum-node/spectrumd/stake"
	"github.com/spectrum-node/spectrumd/state"
)

// folders under the data directory
const (
	blockchainFolder  = "blockchain"
	blocksInfoFolder  = "blocks-info"
	identitiesFolder  = "identities"
	snapshotsFolder   = "snapshots"
	trashFolder       = "trash"
	checkpointsFolder = "checkpoints"
	activeFolder      = "ACTIVE_CHECKPOINT"
)

// Configuration - everything needed to open a Store
type Configuration struct {
	Directory          string
	Ledger             ledger.Options
	Identity           identity.Options
	SnapshotInterval   uint64 // blocks between snapshots, 0 disables
	SnapshotRetain     int    // snapshots kept
	CheckpointInterval uint64 // blocks between checkpoints, 0 disables
	CheckpointRetain   int    // checkpoint heights kept
	ProofSampleRate    float64
	Hasher             blockdigest.Hasher
	Progress           identity.Progress
}

// Store - the ledger owner
type Store struct {
	sync.RWMutex

	log         *logger.L
	conf        Configuration
	ledger      *ledger.Store
	stakes      *stake.Store
	identities  *identity.Store
	info        *blockinfo.Cache
	snapshots   *snapshot.System
	checkpoints *checkpoint.System
	state       *state.Set
	ring        *blockring.Ring
}

// Open - open every store under the configured directory
//
// the context bounds identity file pre-allocation only
func Open(ctx context.Context, conf Configuration) (*Store, error) {
	if conf.CheckpointInterval > 0 && (0 == conf.SnapshotInterval || 0 != conf.CheckpointInterval%conf.SnapshotInterval) {
		return nil, fault.ErrInvalidCount
	}
	if conf.SnapshotRetain < 3 {
		conf.SnapshotRetain = 3
	}
	if conf.CheckpointRetain < 1 {
		conf.CheckpointRetain = 1
	}
	if 0 == conf.Hasher.Memory {
		conf.Hasher = blockdigest.DefaultHasher()
	}

	s := &Store{
		log:   logger.New("block"),
		conf:  conf,
		state: state.NewSet(),
		ring:  blockring.New(),
	}
	s.log.Info("starting…")

	if err := s.open(ctx, false); nil != err {
		s.close()
		return nil, err
	}
	return s, nil
}

// LivePaths - the folders a checkpoint deployment replaces
func (s *Store) LivePaths() checkpoint.LivePaths {
	return checkpoint.LivePaths{
		Blockchain: s.path(blockchainFolder),
		BlocksInfo: s.path(blocksInfoFolder),
		Snapshots:  s.path(snapshotsFolder),
	}
}

func (s *Store) path(name string) string {
	return filepath.Join(s.conf.Directory, name)
}

// open all stores and rebuild the state
//
// rebuildStakes discards the stake store and refills it from the
// restored state, used after a checkpoint replaced the ledger
func (s *Store) open(ctx context.Context, rebuildStakes bool) error {
	var err error

	if nil == s.checkpoints {
		s.snapshots, err = snapshot.Open(s.path(snapshotsFolder), s.path(trashFolder))
		if nil != err {
			return err
		}
		s.checkpoints, err = checkpoint.Open(checkpoint.Options{
			Directory:       s.path(checkpointsFolder),
			Active:          s.path(activeFolder),
			Snapshots:       s.snapshots,
			Ledger:          s.conf.Ledger,
			Hasher:          s.conf.Hasher,
			ProofSampleRate: s.conf.ProofSampleRate,
		})
		if nil != err {
			return err
		}
		if found, next, err := s.checkpoints.CheckForActiveCheckpoint(); nil != err {
			return err
		} else if found {
			s.log.Infof("staging checkpoint needs block: %d", next)
		} else if s.checkpoints.ResumedDeployment() {
			rebuildStakes = true
			if err := s.snapshots.EmptyTrash(); nil != err {
				return err
			}
		}
	}

	s.ledger, err = ledger.Open(s.path(blockchainFolder), s.conf.Ledger)
	if nil != err {
		return err
	}
	consistent, err := s.ledger.CheckBlockchainBytesLengthConsistency()
	if nil != err {
		return err
	}
	if !consistent {
		height, err := s.ledger.TruncateToConsistentHeight()
		if nil != err {
			return err
		}
		s.log.Warnf("ledger truncated to consistent height: %d", height)
	}

	s.stakes, err = stake.Open(s.conf.Directory)
	if nil != err {
		return err
	}
	if rebuildStakes {
		if err := s.stakes.Reset(); nil != err {
			return err
		}
	}

	s.identities, err = identity.Open(s.path(identitiesFolder), s.conf.Identity)
	if nil != err {
		return err
	}
	if !s.identities.Initialised() {
		if err := s.identities.Init(ctx, s.conf.Progress); nil != err {
			return err
		}
	}

	s.info, err = blockinfo.Open(s.path(blocksInfoFolder))
	if nil != err {
		return err
	}

	if err := s.truncateDerived(s.ledger.LastHeight()); nil != err {
		return err
	}
	if err := s.restoreState(rebuildStakes); nil != err {
		return err
	}

	s.log.Infof("height: %d  hash: %v", s.ledger.LastHeight(), s.ledger.LastHash())
	return nil
}

// Close - release every store
func (s *Store) Close() {
	s.Lock()
	defer s.Unlock()
	s.log.Info("shutting down…")
	s.close()
	if nil != s.checkpoints {
		s.checkpoints.Close()
		s.checkpoints = nil
	}
	s.log.Info("finished")
}

// close the live stores, staging stays open
func (s *Store) close() {
	if nil != s.ledger {
		s.ledger.Close()
		s.ledger = nil
	}
	if nil != s.stakes {
		s.stakes.Close()
		s.stakes = nil
	}
	if nil != s.identities {
		s.identities.Close()
		s.identities = nil
	}
}

// drop derived data above the ledger tip
func (s *Store) truncateDerived(height int64) error {
	if height < 0 {
		if err := s.stakes.Reset(); nil != err {
			return err
		}
	} else if n, err := s.stakes.RemoveStakesAbove(uint32(height)); nil != err {
		return err
	} else if 0 != n {
		s.log.Warnf("removed %d stakes above height: %d", n, height)
	}

	above := uint64(0)
	if height > 0 {
		above = uint64(height)
	}
	if _, err := s.snapshots.MoveSnapshotsHigherThanHeightToTrash(above); nil != err {
		return err
	}

	heights, err := s.info.Heights()
	if nil != err {
		return err
	}
	for _, h := range heights {
		if int64(h) > height {
			if err := s.info.Delete(h); nil != err {
				return err
			}
		}
	}
	return nil
}

// rebuild the in-memory state: newest usable snapshot then replay
func (s *Store) restoreState(rebuildStakes bool) error {
	tip := s.ledger.LastHeight()

	heights, err := s.snapshots.Heights()
	if nil != err {
		return err
	}
	sort.Slice(heights, func(i, j int) bool { return heights[i] > heights[j] })

	from := int64(0)
	set := state.NewSet()
	for _, h := range heights {
		if int64(h) > tip {
			continue
		}
		loaded := state.NewSet()
		if err := s.snapshots.RollBackTo(h, loaded); nil != err {
			s.log.Warnf("snapshot: %d  unusable: %s", h, err)
			if _, err := s.snapshots.MoveSnapshotsHigherThanHeightToTrash(h - 1); nil != err {
				return err
			}
			continue
		}
		set = loaded
		from = int64(h) + 1
		break
	}

	if rebuildStakes {
		if err := s.stakes.AddStakes(set.Spectrum.Anchors()); nil != err {
			return err
		}
	}

	s.log.Infof("replay blocks: %d to %d", from, tip)
	for h := from; h <= tip; h += 1 {
		packed, err := s.ledger.GetBlockBytes(h, false)
		if nil != err {
			return err
		}
		if nil == packed {
			s.log.Criticalf("no block data at height: %d", h)
			return fault.ErrSnapshotNotFound
		}
		block, err := blockrecord.PackedBlock(packed).Unpack()
		if nil != err {
			return err
		}
		resolved, err := set.Apply(block)
		if nil != err {
			s.log.Criticalf("replay height: %d  error: %s", h, err)
			return err
		}
		if err := s.reconcile(block, resolved); nil != err {
			return err
		}
	}

	s.state = set
	return s.fillRing()
}

// make the persistent stores agree with a replayed block
func (s *Store) reconcile(block *blockrecord.Block, resolved map[anchor.Anchor]blockrecord.Output) error {
	anchors := stakeAnchors(block)
	present, err := s.stakes.HasStakes(anchors)
	if nil != err {
		return err
	}
	missing := make([]anchor.Anchor, 0, len(anchors))
	for i, a := range anchors {
		if !present[i] {
			missing = append(missing, a)
		}
	}
	if err := s.stakes.AddStakes(missing); nil != err {
		return err
	}
	_, err = s.identities.DigestBlock(block, resolved)
	return err
}

// refill the ring from the newest blocks of the ledger
func (s *Store) fillRing() error {
	s.ring.Clear()
	tip := s.ledger.LastHeight()
	start := tip - blockring.Size + 1
	if start < 0 {
		start = 0
	}
	for h := start; h <= tip; h += 1 {
		packed, err := s.ledger.GetBlockBytes(h, false)
		if nil != err {
			return err
		}
		if nil == packed {
			s.ring.Clear()
			continue
		}
		hash, _ := s.ledger.HashOfHeight(h)
		if err := s.ring.Put(uint64(h), hash, packed); nil != err {
			return err
		}
	}
	return nil
}

// anchors of the stake outputs of a block
func stakeAnchors(block *blockrecord.Block) []anchor.Anchor {
	anchors := make([]anchor.Anchor, 0)
	for _, o := range block.Outputs() {
		if o.Output.IsStake() {
			anchors = append(anchors, anchor.New(block.Header.Index, o.TxIndex, o.VoutIndex))
		}
	}
	return anchors
}
