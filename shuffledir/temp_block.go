// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package shuffledir

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/shuffle/vfs"
	"github.com/google/uuid"
)

const tempShuffleBlockPrefix = "temp_shuffle_"

// TempShuffleBlockID identifies a transient shuffle block, such as a spill
// file that has not been merged yet. It carries no meaning beyond being
// unique.
type TempShuffleBlockID struct {
	ID uuid.UUID
}

// NewTempShuffleBlockID returns a fresh random TempShuffleBlockID.
func NewTempShuffleBlockID() (TempShuffleBlockID, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return TempShuffleBlockID{}, errors.Wrap(err, "generating temp shuffle block id")
	}
	return TempShuffleBlockID{ID: id}, nil
}

// Name returns the block's name.
func (b TempShuffleBlockID) Name() string {
	return tempShuffleBlockPrefix + b.ID.String()
}

func (b TempShuffleBlockID) String() string {
	return b.Name()
}

// tempBlockFilename returns the file name used for the block id allocated
// on behalf of filename.
func tempBlockFilename(filename string, id TempShuffleBlockID) string {
	if filename == "" {
		return id.Name()
	}
	return filename + "_" + id.Name()
}

// CreateTempShuffleBlock allocates a new temporary block id for filename and
// returns it with the path its file should be written to. Ids are generated
// until one maps to a path where no file exists.
//
// The existence check and the caller's later use of the path are not atomic:
// the only guarantee is that no file existed at the path when it was
// allocated.
func (d *Dirs) CreateTempShuffleBlock(filename string) (TempShuffleBlockID, string, error) {
	for {
		id, err := d.newID()
		if err != nil {
			return TempShuffleBlockID{}, "", err
		}
		path := d.File(tempBlockFilename(filename, id))
		exists, err := vfs.Exists(d.fs, path)
		if err != nil {
			return TempShuffleBlockID{}, "", errors.Wrapf(err, "checking for existing block file %s", path)
		}
		if !exists {
			return id, path, nil
		}
	}
}
