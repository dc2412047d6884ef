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
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krotik/graphon/graph/graphstorage"
)

func testManager(t *testing.T, name string) *Manager {
	t.Helper()

	suffixes := []string{graphstorage.SuffixProperties, graphstorage.SuffixNodeIDs, graphstorage.SuffixEdges}
	for _, s := range suffixes {
		os.Remove(name + s)
	}
	t.Cleanup(func() {
		for _, s := range suffixes {
			os.Remove(name + s)
		}
	})

	gs, err := graphstorage.NewEngine(name)
	require.NoError(t, err)

	gm := NewManager(gs)
	t.Cleanup(func() { gm.Close() })

	return gm
}

func chain(t *testing.T, gm *Manager, n int) []uint32 {
	t.Helper()

	ids := make([]uint32, n)
	for i := 0; i < n; i++ {
		id, err := gm.CreateNode(nil)
		require.NoError(t, err)
		ids[i] = id
	}
	for i := 0; i < n-1; i++ {
		_, err := gm.CreateEdge(ids[i], nil, ids[i+1])
		require.NoError(t, err)
	}
	return ids
}

func TestFindNeighboursOneHop(t *testing.T) {
	gm := testManager(t, "trav1hop")
	ids := chain(t, gm, 3)

	result, err := gm.FindNeighbours(ids[0], 1, "q1", nil, nil)
	require.NoError(t, err)

	assert.Len(t, result, 1)
	assert.Contains(t, result, ids[1])
}

func TestFindNeighboursTwoHops(t *testing.T) {
	gm := testManager(t, "trav2hop")
	ids := chain(t, gm, 3)

	result, err := gm.FindNeighbours(ids[0], 2, "q2", nil, nil)
	require.NoError(t, err)

	assert.Len(t, result, 2)
	assert.Contains(t, result, ids[1])
	assert.Contains(t, result, ids[2])
}

func TestFindNeighboursZeroHopsIsEmpty(t *testing.T) {
	gm := testManager(t, "trav0hop")
	ids := chain(t, gm, 2)

	result, err := gm.FindNeighbours(ids[0], 0, "q0", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestFindNeighboursUnknownStartFails(t *testing.T) {
	gm := testManager(t, "travbad")

	_, err := gm.FindNeighbours(999, 1, "qbad", nil, nil)
	assert.Error(t, err)
}

func TestFindNeighboursSharesVisitedSetAcrossCalls(t *testing.T) {
	gm := testManager(t, "travshared")
	ids := chain(t, gm, 3)

	first, err := gm.FindNeighbours(ids[0], 1, "shared", nil, nil)
	require.NoError(t, err)
	assert.Contains(t, first, ids[1])

	// same query_id: ids[0] was already visited by the first call, so the
	// second traversal does not return it again as an incoming neighbour of
	// ids[1].
	second, err := gm.FindNeighbours(ids[1], 1, "shared", nil, nil)
	require.NoError(t, err)
	assert.NotContains(t, second, ids[0])
}

func TestDeleteNodeFiresHooks(t *testing.T) {
	gm := testManager(t, "hooktest")
	ids := chain(t, gm, 2)

	var deletedNodes, deletedEdges []uint32
	gm.OnNodeDeleted(func(event int, id uint32) { deletedNodes = append(deletedNodes, id) })
	gm.OnEdgeDeleted(func(event int, id uint32) { deletedEdges = append(deletedEdges, id) })

	require.NoError(t, gm.DeleteNode(ids[0]))

	assert.Equal(t, []uint32{ids[0]}, deletedNodes)
	assert.Len(t, deletedEdges, 1)
}

func TestDeleteEdgeFiresHook(t *testing.T) {
	gm := testManager(t, "hookedgetest")
	ids := chain(t, gm, 2)

	edges, err := gm.EdgesFrom(ids[0])
	require.NoError(t, err)
	require.Len(t, edges, 1)

	var fired uint32
	gm.OnEdgeDeleted(func(event int, id uint32) { fired = id })

	require.NoError(t, gm.DeleteEdge(edges[0]))
	assert.Equal(t, edges[0], fired)
}

func TestDeleteNodeSelfLoopFiresEdgeHookOnce(t *testing.T) {
	gm := testManager(t, "hookselfloop")

	n1, err := gm.CreateNode(nil)
	require.NoError(t, err)
	_, err = gm.CreateEdge(n1, nil, n1)
	require.NoError(t, err)

	var deletedEdges []uint32
	gm.OnEdgeDeleted(func(event int, id uint32) { deletedEdges = append(deletedEdges, id) })

	require.NoError(t, gm.DeleteNode(n1))
	assert.Len(t, deletedEdges, 1)
}
