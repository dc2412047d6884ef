/*
 * Graphon
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package graphstorage implements the on-disk storage engine: three
append-structured files (PROPERTIES, NODE_IDS, EDGES), the node/edge slot
tables, and the intrusive doubly-linked adjacency lists threaded through
the EDGES file.

Engine

Engine owns the three open file handles and caches the three header
counters (cur_node_addr, cur_node_id, cur_eid) in memory. Every mutation
updates the in-memory counters and the on-disk header before returning
(write-through), mirroring the flush-then-advance discipline of the
teacher's storage/file.TransactionManager but without its recovery log,
since crash recovery is out of scope here.

The Engine is single-writer, single-reader per instance; it does no
internal locking. A host exposing multi-client access must serialize at
the Engine boundary.
*/
package graphstorage

import (
	"encoding/binary"
	"fmt"
	"os"

	"devt.de/krotik/common/fileutil"
	"devt.de/krotik/common/logutil"

	"github.com/krotik/graphon/graph/util"
)

var glog = logutil.GetLogger("graph.storage")

const (
	nodeSlotSize = 12 // addr, edge_from, edge_to (UINT each)
	edgeRecSize  = 28 // from_nid, to_nid, prev_1, next_1, prev_2, next_2, props_addr
)

/*
Filename suffixes for the three engine files.
*/
const (
	SuffixProperties = ".pix"
	SuffixNodeIDs    = ".nix"
	SuffixEdges      = ".eix"
)

/*
Engine is the on-disk storage engine for a single graph database.
*/
type Engine struct {
	name string

	properties *os.File
	nodeIDs    *os.File
	edges      *os.File

	curNodeAddr uint32 // PROPERTIES: next free write offset
	curNodeID   uint32 // NODE_IDS: next free node id
	curEID      uint32 // EDGES: next free edge id

	cache *slotCache
}

/*
NewEngine opens (creating if necessary) the three files for a database
named by dbName in the given directory stem. dbName plus the Suffix*
constants forms each file's path.
*/
func NewEngine(dbName string) (*Engine, error) {
	e := &Engine{name: dbName, cache: newSlotCache(10000)}

	var err error
	if e.properties, err = openOrCreate(dbName + SuffixProperties); err != nil {
		return nil, util.NewError(util.ErrIo, err.Error())
	}
	if e.nodeIDs, err = openOrCreate(dbName + SuffixNodeIDs); err != nil {
		return nil, util.NewError(util.ErrIo, err.Error())
	}
	if e.edges, err = openOrCreate(dbName + SuffixEdges); err != nil {
		return nil, util.NewError(util.ErrIo, err.Error())
	}

	if err := e.readOrInitHeaders(); err != nil {
		return nil, err
	}

	glog.Info(fmt.Sprintf("Opened graph storage %s (nodes=%d edges=%d)", dbName, e.curNodeID-1, e.curEID-1))

	return e, nil
}

/*
openOrCreate opens path for read/write, creating the file if it does not
exist yet. Missing parent directories are not created.
*/
func openOrCreate(path string) (*os.File, error) {
	exists, err := fileutil.PathExists(path)
	if err != nil {
		return nil, err
	}

	flags := os.O_RDWR
	if !exists {
		flags |= os.O_CREATE
	}

	return os.OpenFile(path, flags, 0644)
}

/*
readOrInitHeaders reads the three file headers, or writes the initial
values if a file was just created empty.
*/
func (e *Engine) readOrInitHeaders() error {
	var err error

	if e.curNodeAddr, err = readOrInitUint32(e.properties, 4); err != nil {
		return util.NewError(util.ErrCorruption, "PROPERTIES header: "+err.Error())
	}
	if e.curNodeID, err = readOrInitUint32(e.nodeIDs, 1); err != nil {
		return util.NewError(util.ErrCorruption, "NODE_IDS header: "+err.Error())
	}
	if e.curEID, err = readOrInitUint32(e.edges, 1); err != nil {
		return util.NewError(util.ErrCorruption, "EDGES header: "+err.Error())
	}

	return nil
}

func readOrInitUint32(f *os.File, initial uint32) (uint32, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}

	if info.Size() == 0 {
		if err := writeUint32At(f, 0, initial); err != nil {
			return 0, err
		}
		return initial, nil
	}

	return readUint32At(f, 0)
}

func readUint32At(f *os.File, offset int64) (uint32, error) {
	var buf [4]byte
	if _, err := f.ReadAt(buf[:], offset); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

func writeUint32At(f *os.File, offset int64, v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	_, err := f.WriteAt(buf[:], offset)
	return err
}

/*
flushHeaders writes all three cached header counters to disk and syncs the
files. Called after every mutating operation (write-through).
*/
func (e *Engine) flushHeaders() error {
	if err := writeUint32At(e.properties, 0, e.curNodeAddr); err != nil {
		return util.NewError(util.ErrIo, err.Error())
	}
	if err := writeUint32At(e.nodeIDs, 0, e.curNodeID); err != nil {
		return util.NewError(util.ErrIo, err.Error())
	}
	if err := writeUint32At(e.edges, 0, e.curEID); err != nil {
		return util.NewError(util.ErrIo, err.Error())
	}

	e.properties.Sync()
	e.nodeIDs.Sync()
	e.edges.Sync()

	return nil
}

/*
Name returns the database name this Engine was opened with.
*/
func (e *Engine) Name() string {
	return e.name
}

/*
NodeCount returns the number of node ids ever allocated, including
tombstoned ones. A shard router uses this as a crude load estimate for
least-loaded placement.
*/
func (e *Engine) NodeCount() uint32 {
	return e.curNodeID - 1
}

/*
Close releases the three file handles.
*/
func (e *Engine) Close() error {
	var firstErr error
	for _, f := range []*os.File{e.properties, e.nodeIDs, e.edges} {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return util.NewError(util.ErrIo, firstErr.Error())
	}
	return nil
}

// slot offset helpers
// ===================

func nodeSlotOffset(nodeID uint32) int64 {
	return 4 + int64(nodeID-1)*nodeSlotSize
}

func edgeRecOffset(edgeID uint32) int64 {
	return 4 + int64(edgeID-1)*edgeRecSize
}
