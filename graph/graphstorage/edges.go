/*
 * Graphon
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package graphstorage

import (
	"github.com/krotik/graphon/graph/data"
	"github.com/krotik/graphon/graph/util"
)

/*
Edge is an edge record as returned to a caller.
*/
type Edge struct {
	ID     uint32
	FromID uint32
	ToID   uint32
	Props  data.PropertyMap
	From   *Node // populated only if requested
	To     *Node // populated only if requested
}

/*
CreateEdge validates both endpoints exist, appends the edge's property
record (if any), and inserts the new edge at the head of both adjacency
lists. Self-loops (fromID == toID) link into the same list twice; the
destination-side update is computed against the already-updated slot so
both links are consistent.
*/
func (e *Engine) CreateEdge(fromID uint32, props data.PropertyMap, toID uint32) (uint32, error) {
	fromSlot, err := e.readNodeSlot(fromID)
	if err != nil {
		return 0, err
	}
	if fromSlot.Addr == 0 {
		return 0, util.NewError(util.ErrNotFound, "from node does not exist")
	}

	toSlot := fromSlot
	sameNode := fromID == toID
	if !sameNode {
		toSlot, err = e.readNodeSlot(toID)
		if err != nil {
			return 0, err
		}
		if toSlot.Addr == 0 {
			return 0, util.NewError(util.ErrNotFound, "to node does not exist")
		}
	}

	var propsAddr uint32
	if len(props) > 0 {
		if propsAddr, err = e.appendPropertyRecord(props); err != nil {
			return 0, err
		}
	}

	edgeID := e.curEID
	e.curEID++

	rec := edgeRecord{FromNID: fromID, ToNID: toID, PropsAddr: propsAddr}

	// Source side: insert at head of edge_from.
	rec.Prev1 = 0
	rec.Next1 = fromSlot.EdgeFrom
	if fromSlot.EdgeFrom != 0 {
		oldHead, err := e.readEdgeRecord(fromSlot.EdgeFrom)
		if err != nil {
			return 0, err
		}
		oldHead.Prev1 = edgeID
		if err := e.writeEdgeRecord(fromSlot.EdgeFrom, oldHead); err != nil {
			return 0, err
		}
	}
	fromSlot.EdgeFrom = edgeID

	// Destination side: insert at head of edge_to, against the
	// already-updated fromSlot when this is a self-loop.
	if sameNode {
		toSlot = fromSlot
	}
	rec.Prev2 = 0
	rec.Next2 = toSlot.EdgeTo
	if toSlot.EdgeTo != 0 {
		oldHead, err := e.readEdgeRecord(toSlot.EdgeTo)
		if err != nil {
			return 0, err
		}
		oldHead.Prev2 = edgeID
		if err := e.writeEdgeRecord(toSlot.EdgeTo, oldHead); err != nil {
			return 0, err
		}
	}
	toSlot.EdgeTo = edgeID

	if sameNode {
		fromSlot = toSlot
	}

	if err := e.writeEdgeRecord(edgeID, rec); err != nil {
		return 0, err
	}

	if err := e.writeNodeSlot(fromID, fromSlot); err != nil {
		return 0, err
	}
	if !sameNode {
		if err := e.writeNodeSlot(toID, toSlot); err != nil {
			return 0, err
		}
	}

	if err := e.flushHeaders(); err != nil {
		return 0, err
	}

	return edgeID, nil
}

/*
GetEdge reads edgeID. inlineFrom/inlineTo optionally resolve and attach
the endpoint node records.
*/
func (e *Engine) GetEdge(edgeID uint32, inlineFrom, inlineTo bool) (*Edge, error) {
	rec, err := e.readEdgeRecord(edgeID)
	if err != nil {
		return nil, err
	}
	if rec.FromNID == 0 {
		return nil, util.NewError(util.ErrNotFound, "edge is deleted")
	}

	var props data.PropertyMap
	if rec.PropsAddr != 0 {
		if props, err = e.readPropertyRecord(rec.PropsAddr); err != nil {
			return nil, err
		}
	}

	edge := &Edge{ID: edgeID, FromID: rec.FromNID, ToID: rec.ToNID, Props: props}

	if inlineFrom {
		if edge.From, err = e.GetNode(rec.FromNID); err != nil {
			return nil, err
		}
	}
	if inlineTo {
		if edge.To, err = e.GetNode(rec.ToNID); err != nil {
			return nil, err
		}
	}

	return edge, nil
}

/*
UpdateEdge rewrites an edge's properties, always appending a new property
record (never an in-place overwrite), mirroring UpdateNode.
*/
func (e *Engine) UpdateEdge(edgeID uint32, props data.PropertyMap) error {
	rec, err := e.readEdgeRecord(edgeID)
	if err != nil {
		return err
	}
	if rec.FromNID == 0 {
		return util.NewError(util.ErrNotFound, "edge is deleted")
	}

	var propsAddr uint32
	if len(props) > 0 {
		if propsAddr, err = e.appendPropertyRecord(props); err != nil {
			return err
		}
	}

	rec.PropsAddr = propsAddr
	if err := e.writeEdgeRecord(edgeID, rec); err != nil {
		return err
	}

	return e.flushHeaders()
}

/*
DeleteEdge unlinks edgeID from both adjacency lists and tombstones it.
Idempotent: a second call after a successful delete succeeds without
effect.
*/
func (e *Engine) DeleteEdge(edgeID uint32) error {
	rec, err := e.readEdgeRecord(edgeID)
	if err != nil {
		return err
	}

	if rec.FromNID == 0 {
		return nil
	}

	fromSlot, err := e.readNodeSlot(rec.FromNID)
	if err != nil {
		return err
	}

	if rec.Prev1 != 0 {
		prev, err := e.readEdgeRecord(rec.Prev1)
		if err != nil {
			return err
		}
		prev.Next1 = rec.Next1
		if err := e.writeEdgeRecord(rec.Prev1, prev); err != nil {
			return err
		}
	} else {
		fromSlot.EdgeFrom = rec.Next1
		if err := e.writeNodeSlot(rec.FromNID, fromSlot); err != nil {
			return err
		}
	}

	if rec.Next1 != 0 {
		next, err := e.readEdgeRecord(rec.Next1)
		if err != nil {
			return err
		}
		next.Prev1 = rec.Prev1
		if err := e.writeEdgeRecord(rec.Next1, next); err != nil {
			return err
		}
	}

	// Re-read the destination slot: for a self-loop it is the same slot
	// already mutated above.
	toSlot := fromSlot
	if rec.ToNID != rec.FromNID {
		if toSlot, err = e.readNodeSlot(rec.ToNID); err != nil {
			return err
		}
	}

	if rec.Prev2 != 0 {
		prev, err := e.readEdgeRecord(rec.Prev2)
		if err != nil {
			return err
		}
		prev.Next2 = rec.Next2
		if err := e.writeEdgeRecord(rec.Prev2, prev); err != nil {
			return err
		}
	} else {
		toSlot.EdgeTo = rec.Next2
		if err := e.writeNodeSlot(rec.ToNID, toSlot); err != nil {
			return err
		}
	}

	if rec.Next2 != 0 {
		next, err := e.readEdgeRecord(rec.Next2)
		if err != nil {
			return err
		}
		next.Prev2 = rec.Prev2
		if err := e.writeEdgeRecord(rec.Next2, next); err != nil {
			return err
		}
	}

	rec.FromNID = 0
	if err := e.writeEdgeRecord(edgeID, rec); err != nil {
		return err
	}

	return e.flushHeaders()
}

/*
EdgesFrom returns the ids of the live edges whose from_nid is nodeID, in
LIFO insertion order (newest first). The returned slice is a snapshot, not
a restartable lazy sequence.
*/
func (e *Engine) EdgesFrom(nodeID uint32) ([]uint32, error) {
	slot, err := e.readNodeSlot(nodeID)
	if err != nil {
		return nil, err
	}

	var ids []uint32
	for eid := slot.EdgeFrom; eid != 0; {
		rec, err := e.readEdgeRecord(eid)
		if err != nil {
			return nil, err
		}
		ids = append(ids, eid)
		eid = rec.Next1
	}

	return ids, nil
}

/*
EdgesTo returns the ids of the live edges whose to_nid is nodeID, in LIFO
insertion order (newest first).
*/
func (e *Engine) EdgesTo(nodeID uint32) ([]uint32, error) {
	slot, err := e.readNodeSlot(nodeID)
	if err != nil {
		return nil, err
	}

	var ids []uint32
	for eid := slot.EdgeTo; eid != 0; {
		rec, err := e.readEdgeRecord(eid)
		if err != nil {
			return nil, err
		}
		ids = append(ids, eid)
		eid = rec.Next2
	}

	return ids, nil
}
