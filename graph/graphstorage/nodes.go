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
Node is a node record as returned to a caller: its id and its decoded
property map.
*/
type Node struct {
	ID    uint32
	Props data.PropertyMap
}

/*
CreateNode appends props as a node property record, allocates a new node
id and writes its slot. Properties may be empty.
*/
func (e *Engine) CreateNode(props data.PropertyMap) (uint32, error) {
	addr, err := e.appendPropertyRecord(props)
	if err != nil {
		return 0, err
	}

	nodeID := e.curNodeID
	e.curNodeID++

	if err := e.writeNodeSlot(nodeID, nodeSlot{Addr: addr}); err != nil {
		return 0, err
	}

	if err := e.flushHeaders(); err != nil {
		return 0, err
	}

	return nodeID, nil
}

/*
GetNode reads the node slot for nodeID and decodes its property record.
Returns ErrNotFound if the node was never created or has been deleted.
*/
func (e *Engine) GetNode(nodeID uint32) (*Node, error) {
	slot, err := e.readNodeSlot(nodeID)
	if err != nil {
		return nil, err
	}

	if slot.Addr == 0 {
		return nil, util.NewError(util.ErrNotFound, "node is deleted")
	}

	props, err := e.readPropertyRecord(slot.Addr)
	if err != nil {
		return nil, err
	}

	return &Node{ID: nodeID, Props: props}, nil
}

/*
UpdateNode rewrites a node's properties. This always appends a new
property record and rewrites only the slot's addr; the node id never
changes and the old record becomes unreachable garbage (no compaction is
performed).
*/
func (e *Engine) UpdateNode(nodeID uint32, props data.PropertyMap) error {
	slot, err := e.readNodeSlot(nodeID)
	if err != nil {
		return err
	}
	if slot.Addr == 0 {
		return util.NewError(util.ErrNotFound, "node is deleted")
	}

	addr, err := e.appendPropertyRecord(props)
	if err != nil {
		return err
	}

	slot.Addr = addr
	if err := e.writeNodeSlot(nodeID, slot); err != nil {
		return err
	}

	return e.flushHeaders()
}

/*
DeleteNode tombstones a node slot and cascades to delete every incident
edge, walking the outgoing list then the incoming list. Idempotent: a
second call on an already-deleted node succeeds without effect.
*/
func (e *Engine) DeleteNode(nodeID uint32) error {
	slot, err := e.readNodeSlot(nodeID)
	if err != nil {
		return err
	}

	if slot.Addr == 0 {
		return nil
	}

	for eid := slot.EdgeFrom; eid != 0; {
		rec, err := e.readEdgeRecord(eid)
		if err != nil {
			return err
		}
		next := rec.Next1
		if err := e.DeleteEdge(eid); err != nil {
			return err
		}
		eid = next
	}

	for eid := slot.EdgeTo; eid != 0; {
		rec, err := e.readEdgeRecord(eid)
		if err != nil {
			return err
		}
		next := rec.Next2
		if err := e.DeleteEdge(eid); err != nil {
			return err
		}
		eid = next
	}

	if err := e.writeNodeSlot(nodeID, nodeSlot{}); err != nil {
		return err
	}

	return e.flushHeaders()
}
