// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package checkpoint

import (
	"io"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"

	"github.com/spectrum-node/spectrumd/blockdigest"
	"github.com/spectrum-node/spectrumd/fault"
	"github.com/spectrum-node/spectrumd/merkle"
	"github.com/spectrum-node/spectrumd/snapshot"
)

const (
	manifestName    = "manifest.yaml"
	snapshotsFolder = "snapshots"
)

// Folder - hash of one archived snapshot
type Folder struct {
	Height uint64        `yaml:"height"`
	Hash   merkle.Digest `yaml:"hash"`
}

// Manifest - description of an archive
type Manifest struct {
	Height    uint64             `yaml:"height"`
	TipHash   blockdigest.Digest `yaml:"tip_hash"`
	Modulo    uint64             `yaml:"modulo"`
	Snapshots []Folder           `yaml:"snapshots"`
	Hash      merkle.Digest      `yaml:"hash"`
}

// Oldest - height of the lowest archived snapshot
func (m *Manifest) Oldest() uint64 {
	if 0 == len(m.Snapshots) {
		return m.Height
	}
	return m.Snapshots[0].Height
}

// FolderHash - merkle root of SHA3(name|content) in name order
func FolderHash(files map[string][]byte) merkle.Digest {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	ids := make([]merkle.Digest, len(names))
	for i, name := range names {
		ids[i] = merkle.NewDigestOf([]byte(name), files[name])
	}
	return merkle.Root(ids)
}

// Hash - checkpoint hash of folders in ascending height order
func Hash(folders []Folder) merkle.Digest {
	parts := make([][]byte, len(folders))
	for i := range folders {
		parts[i] = folders[i].Hash[:]
	}
	return merkle.NewDigestOf(parts...)
}

func newManifest(height uint64, modulo uint64, tipHash blockdigest.Digest, contents map[uint64]map[string][]byte) *Manifest {
	folders := make([]Folder, 0, len(contents))
	for h, files := range contents {
		folders = append(folders, Folder{Height: h, Hash: FolderHash(files)})
	}
	sort.Slice(folders, func(i, j int) bool { return folders[i].Height < folders[j].Height })

	return &Manifest{
		Height:    height,
		TipHash:   tipHash,
		Modulo:    modulo,
		Snapshots: folders,
		Hash:      Hash(folders),
	}
}

func entryName(height uint64, name string) string {
	return path.Join(snapshotsFolder, strconv.FormatUint(height, 10), name)
}

// write through a temporary file so a complete archive appears at once
func writeArchive(fileName string, manifest *Manifest, contents map[uint64]map[string][]byte) error {
	tmp := fileName + tmpSuffix
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if nil != err {
		return err
	}

	err = func() error {
		w := zip.NewWriter(f)
		w.RegisterCompressor(zstd.ZipMethodWinZip, zstd.ZipCompressor())

		m, err := yaml.Marshal(manifest)
		if nil != err {
			return err
		}
		if err := addEntry(w, manifestName, m); nil != err {
			return err
		}

		for _, folder := range manifest.Snapshots {
			for _, name := range snapshot.BlobNames {
				if err := addEntry(w, entryName(folder.Height, name), contents[folder.Height][name]); nil != err {
					return err
				}
			}
		}
		if err := w.Close(); nil != err {
			return err
		}
		return f.Sync()
	}()

	if closeErr := f.Close(); nil == err {
		err = closeErr
	}
	if nil != err {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, fileName)
}

func addEntry(w *zip.Writer, name string, data []byte) error {
	entry, err := w.CreateHeader(&zip.FileHeader{
		Name:   name,
		Method: zstd.ZipMethodWinZip,
	})
	if nil != err {
		return err
	}
	_, err = entry.Write(data)
	return err
}

// read an archive and check its contents against the manifest
func readArchive(fileName string) (*Manifest, map[uint64]map[string][]byte, error) {
	r, err := zip.OpenReader(fileName)
	if nil != err {
		return nil, nil, err
	}
	defer r.Close()
	r.RegisterDecompressor(zstd.ZipMethodWinZip, zstd.ZipDecompressor())

	var manifest *Manifest
	contents := make(map[uint64]map[string][]byte)

	for _, f := range r.File {
		data, err := readEntry(f)
		if nil != err {
			return nil, nil, err
		}

		if manifestName == f.Name {
			manifest = &Manifest{}
			if err := yaml.Unmarshal(data, manifest); nil != err {
				return nil, nil, err
			}
			continue
		}

		parts := strings.Split(f.Name, "/")
		if 3 != len(parts) || snapshotsFolder != parts[0] {
			return nil, nil, fault.ErrCheckpointHashMismatch
		}
		height, err := strconv.ParseUint(parts[1], 10, 64)
		if nil != err {
			return nil, nil, fault.ErrCheckpointHashMismatch
		}
		files, ok := contents[height]
		if !ok {
			files = make(map[string][]byte)
			contents[height] = files
		}
		files[parts[2]] = data
	}

	if nil == manifest {
		return nil, nil, fault.ErrCheckpointNotFound
	}
	if len(manifest.Snapshots) != len(contents) {
		return nil, nil, fault.ErrCheckpointSnapshotMissing
	}

	for _, folder := range manifest.Snapshots {
		files, ok := contents[folder.Height]
		if !ok {
			return nil, nil, fault.ErrCheckpointSnapshotMissing
		}
		for _, name := range snapshot.BlobNames {
			if _, ok := files[name]; !ok {
				return nil, nil, fault.ErrCheckpointSnapshotMissing
			}
		}
		if FolderHash(files) != folder.Hash {
			return nil, nil, fault.ErrCheckpointHashMismatch
		}
	}

	sort.Slice(manifest.Snapshots, func(i, j int) bool {
		return manifest.Snapshots[i].Height < manifest.Snapshots[j].Height
	})
	if Hash(manifest.Snapshots) != manifest.Hash {
		return nil, nil, fault.ErrCheckpointHashMismatch
	}
	if _, ok := contents[manifest.Height]; !ok {
		return nil, nil, fault.ErrCheckpointSnapshotMissing
	}

	return manifest, contents, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if nil != err {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
