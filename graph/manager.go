/*
 * Graphon
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package graph

import (
	"devt.de/krotik/common/logutil"

	"github.com/krotik/graphon/graph/data"
	"github.com/krotik/graphon/graph/graphstorage"
)

var glog = logutil.GetLogger("graph")

/*
Manager is the graph engine: a storage engine plus property scans and
bounded-depth neighbourhood traversal.
*/
type Manager struct {
	gs    *graphstorage.Engine
	hooks *hookRegistry
	qs    *queryStateCache
}

/*
NewManager wraps an already-open storage engine.
*/
func NewManager(gs *graphstorage.Engine) *Manager {
	return &Manager{
		gs:    gs,
		hooks: newHookRegistry(),
		qs:    newQueryStateCache(DefaultQueryStateMaxEntries, DefaultQueryStateTTLSeconds),
	}
}

/*
OnNodeDeleted registers fn to run after a node (and its incident edges)
have been removed from storage.
*/
func (gm *Manager) OnNodeDeleted(fn DeleteHook) {
	gm.hooks.on(EventNodeDeleted, fn)
}

/*
OnEdgeDeleted registers fn to run after an edge has been removed from
storage.
*/
func (gm *Manager) OnEdgeDeleted(fn DeleteHook) {
	gm.hooks.on(EventEdgeDeleted, fn)
}

// Pass-through CRUD surface
// =========================

/*
CreateNode creates a node with the given properties and returns its id.
*/
func (gm *Manager) CreateNode(props data.PropertyMap) (uint32, error) {
	return gm.gs.CreateNode(props)
}

/*
GetNode fetches a node by id.
*/
func (gm *Manager) GetNode(nodeID uint32) (*graphstorage.Node, error) {
	return gm.gs.GetNode(nodeID)
}

/*
UpdateNode rewrites a node's properties (always by appending a new
property record, per graphstorage.Engine.UpdateNode).
*/
func (gm *Manager) UpdateNode(nodeID uint32, props data.PropertyMap) error {
	return gm.gs.UpdateNode(nodeID, props)
}

/*
DeleteNode removes a node and cascades to its incident edges, then fires
OnNodeDeleted/OnEdgeDeleted hooks for every entity the storage engine
actually removed.
*/
func (gm *Manager) DeleteNode(nodeID uint32) error {
	removedEdges, err := gm.incidentEdges(nodeID)
	if err != nil {
		return err
	}

	if err := gm.gs.DeleteNode(nodeID); err != nil {
		return err
	}

	for _, eid := range removedEdges {
		gm.hooks.fire(EventEdgeDeleted, eid)
	}
	gm.hooks.fire(EventNodeDeleted, nodeID)

	return nil
}

func (gm *Manager) incidentEdges(nodeID uint32) ([]uint32, error) {
	from, err := gm.gs.EdgesFrom(nodeID)
	if err != nil {
		return nil, err
	}
	to, err := gm.gs.EdgesTo(nodeID)
	if err != nil {
		return nil, err
	}

	seen := make(map[uint32]bool, len(from)+len(to))
	var ids []uint32
	for _, eid := range append(from, to...) {
		if !seen[eid] {
			seen[eid] = true
			ids = append(ids, eid)
		}
	}
	return ids, nil
}

/*
CreateEdge creates an edge from fromID to toID with the given properties.
*/
func (gm *Manager) CreateEdge(fromID uint32, props data.PropertyMap, toID uint32) (uint32, error) {
	return gm.gs.CreateEdge(fromID, props, toID)
}

/*
GetEdge fetches an edge by id, optionally inlining its endpoint nodes.
*/
func (gm *Manager) GetEdge(edgeID uint32, inlineFrom, inlineTo bool) (*graphstorage.Edge, error) {
	return gm.gs.GetEdge(edgeID, inlineFrom, inlineTo)
}

/*
UpdateEdge rewrites an edge's properties.
*/
func (gm *Manager) UpdateEdge(edgeID uint32, props data.PropertyMap) error {
	return gm.gs.UpdateEdge(edgeID, props)
}

/*
DeleteEdge removes an edge and fires OnEdgeDeleted.
*/
func (gm *Manager) DeleteEdge(edgeID uint32) error {
	if err := gm.gs.DeleteEdge(edgeID); err != nil {
		return err
	}
	gm.hooks.fire(EventEdgeDeleted, edgeID)
	return nil
}

/*
EdgesFrom returns the outgoing edge ids of a node, newest first.
*/
func (gm *Manager) EdgesFrom(nodeID uint32) ([]uint32, error) {
	return gm.gs.EdgesFrom(nodeID)
}

/*
EdgesTo returns the incoming edge ids of a node, newest first.
*/
func (gm *Manager) EdgesTo(nodeID uint32) ([]uint32, error) {
	return gm.gs.EdgesTo(nodeID)
}

/*
NodesByProperties returns every node whose properties are a superset of
query.
*/
func (gm *Manager) NodesByProperties(query data.PropertyMap) ([]*graphstorage.Node, error) {
	return gm.gs.NodesByProperties(query)
}

/*
EdgesByProperties returns every edge whose properties are a superset of
query.
*/
func (gm *Manager) EdgesByProperties(query data.PropertyMap) ([]*graphstorage.Edge, error) {
	return gm.gs.EdgesByProperties(query)
}

/*
Close releases the underlying storage engine.
*/
func (gm *Manager) Close() error {
	return gm.gs.Close()
}

/*
NodeCount returns the number of node ids ever allocated on this engine.
*/
func (gm *Manager) NodeCount() uint32 {
	return gm.gs.NodeCount()
}
