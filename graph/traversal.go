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

import "github.com/krotik/graphon/graph/graphstorage"

/*
NodePredicate decides whether a candidate node should be included in a
traversal result / frontier.
*/
type NodePredicate func(*graphstorage.Node) bool

/*
EdgePredicate decides whether an edge should be followed during a
traversal.
*/
type EdgePredicate func(*graphstorage.Edge) bool

/*
FindNeighbours performs a bounded-depth neighbourhood traversal:
breadth-first over 1..hops hops, starting from
startID, sharing a visited set across calls with the same queryID so a
cross-shard fan-out (driven by the shard router, which fabricates a
fresh queryID per top-level call) can deduplicate across what is
logically a single traversal.

hops == 0 yields the empty set. A nonexistent startID fails NotFound.
The result is an unordered set: callers must not rely on adjacency
order.
*/
func (gm *Manager) FindNeighbours(startID uint32, hops int, queryID string,
	nodePred NodePredicate, edgePred EdgePredicate) (map[uint32]*graphstorage.Node, error) {

	if _, err := gm.gs.GetNode(startID); err != nil {
		return nil, err
	}

	result := make(map[uint32]*graphstorage.Node)

	if hops <= 0 {
		return result, nil
	}

	visited := gm.qs.get(queryID)
	visited[startID] = true

	frontier := []uint32{startID}

	for hop := 0; hop < hops; hop++ {
		var next []uint32

		for _, nodeID := range frontier {
			neighbours, err := gm.frontierStep(nodeID, edgePred)
			if err != nil {
				return nil, err
			}

			for _, otherID := range neighbours {
				if visited[otherID] {
					continue
				}

				other, err := gm.gs.GetNode(otherID)
				if err != nil {
					// The other endpoint may have been deleted concurrently
					// in a process where the host does not serialize at the
					// engine boundary; skip it rather than fail the whole
					// traversal.
					continue
				}

				if nodePred != nil && !nodePred(other) {
					continue
				}

				visited[otherID] = true
				result[otherID] = other
				next = append(next, otherID)
			}
		}

		frontier = next
		if len(frontier) == 0 {
			break
		}
	}

	return result, nil
}

/*
frontierStep returns the ids of the nodes reachable from nodeID by one
edge satisfying edgePred, over both outgoing and incoming edges.
*/
func (gm *Manager) frontierStep(nodeID uint32, edgePred EdgePredicate) ([]uint32, error) {
	var others []uint32

	from, err := gm.gs.EdgesFrom(nodeID)
	if err != nil {
		return nil, err
	}
	for _, eid := range from {
		edge, err := gm.gs.GetEdge(eid, false, false)
		if err != nil {
			continue
		}
		if edgePred != nil && !edgePred(edge) {
			continue
		}
		others = append(others, edge.ToID)
	}

	to, err := gm.gs.EdgesTo(nodeID)
	if err != nil {
		return nil, err
	}
	for _, eid := range to {
		edge, err := gm.gs.GetEdge(eid, false, false)
		if err != nil {
			continue
		}
		if edgePred != nil && !edgePred(edge) {
			continue
		}
		others = append(others, edge.FromID)
	}

	return others, nil
}

/*
EndTraversal clears the visited-set state for queryID. Hosts that drive a
top-level traversal (in particular the shard router fanning out across
members) should call this once the traversal completes.
*/
func (gm *Manager) EndTraversal(queryID string) {
	gm.qs.clear(queryID)
}
