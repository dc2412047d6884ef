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
	"os"
	"testing"

	"github.com/krotik/graphon/graph/data"
	"github.com/krotik/graphon/graph/util"
)

func testEngine(t *testing.T, name string) *Engine {
	t.Helper()

	os.Remove(name + SuffixProperties)
	os.Remove(name + SuffixNodeIDs)
	os.Remove(name + SuffixEdges)

	t.Cleanup(func() {
		os.Remove(name + SuffixProperties)
		os.Remove(name + SuffixNodeIDs)
		os.Remove(name + SuffixEdges)
	})

	e, err := NewEngine(name)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { e.Close() })

	return e
}

func nameValue(name string) data.PropertyMap {
	return data.PropertyMap{{Key: []byte("name"), Value: data.TextValue([]byte(name))}}
}

func weightValue(w int32) data.PropertyMap {
	return data.PropertyMap{{Key: []byte("weight"), Value: data.IntValue(w)}}
}

// create nodes, create an edge, check LIFO adjacency ordering, delete

func TestCreateEdgeAndLIFOOrderingThenDelete(t *testing.T) {
	e := testEngine(t, "s1s2test")

	alice, err := e.CreateNode(nameValue("alice"))
	if err != nil || alice != 1 {
		t.Fatalf("unexpected alice id/err: %v %v", alice, err)
	}

	bob, err := e.CreateNode(nameValue("bob"))
	if err != nil || bob != 2 {
		t.Fatalf("unexpected bob id/err: %v %v", bob, err)
	}

	eid1, err := e.CreateEdge(alice, weightValue(5), bob)
	if err != nil || eid1 != 1 {
		t.Fatalf("unexpected edge id/err: %v %v", eid1, err)
	}

	from, err := e.EdgesFrom(alice)
	if err != nil || len(from) != 1 || from[0] != 1 {
		t.Fatalf("unexpected edges_from(1): %v %v", from, err)
	}

	to, err := e.EdgesTo(bob)
	if err != nil || len(to) != 1 || to[0] != 1 {
		t.Fatalf("unexpected edges_to(2): %v %v", to, err)
	}

	eid2, err := e.CreateEdge(alice, weightValue(7), bob)
	if err != nil || eid2 != 2 {
		t.Fatalf("unexpected second edge id/err: %v %v", eid2, err)
	}

	from, err = e.EdgesFrom(alice)
	if err != nil || len(from) != 2 || from[0] != 2 || from[1] != 1 {
		t.Fatalf("expected LIFO [2 1], got %v (err %v)", from, err)
	}

	if err := e.DeleteEdge(eid1); err != nil {
		t.Fatal(err)
	}

	from, err = e.EdgesFrom(alice)
	if err != nil || len(from) != 1 || from[0] != 2 {
		t.Fatalf("expected [2] after delete, got %v (err %v)", from, err)
	}
}

// multi-hop adjacency across several nodes

func TestMultiHopAdjacencyLists(t *testing.T) {
	e := testEngine(t, "s3test")

	n1, _ := e.CreateNode(nil)
	n2, _ := e.CreateNode(nil)
	n3, _ := e.CreateNode(nil)

	if _, err := e.CreateEdge(n1, nil, n2); err != nil {
		t.Fatal(err)
	}
	if _, err := e.CreateEdge(n2, nil, n3); err != nil {
		t.Fatal(err)
	}

	from1, _ := e.EdgesFrom(n1)
	if len(from1) != 1 {
		t.Fatalf("expected one outgoing edge from n1, got %v", from1)
	}

	from2, _ := e.EdgesFrom(n2)
	if len(from2) != 1 {
		t.Fatalf("expected one outgoing edge from n2, got %v", from2)
	}
}

// a self-loop edge must appear exactly once on each side

func TestSelfLoopEdge(t *testing.T) {
	e := testEngine(t, "s4test")

	n1, _ := e.CreateNode(nil)

	eid, err := e.CreateEdge(n1, nil, n1)
	if err != nil || eid != 1 {
		t.Fatalf("unexpected self-loop edge id/err: %v %v", eid, err)
	}

	from, _ := e.EdgesFrom(n1)
	to, _ := e.EdgesTo(n1)

	if len(from) != 1 || from[0] != 1 {
		t.Fatalf("expected edges_from(1) == [1], got %v", from)
	}
	if len(to) != 1 || to[0] != 1 {
		t.Fatalf("expected edges_to(1) == [1], got %v", to)
	}

	if err := e.DeleteEdge(eid); err != nil {
		t.Fatal(err)
	}

	from, _ = e.EdgesFrom(n1)
	to, _ = e.EdgesTo(n1)

	if len(from) != 0 || len(to) != 0 {
		t.Fatalf("expected both lists empty after delete, got from=%v to=%v", from, to)
	}

	slot, err := e.readNodeSlot(n1)
	if err != nil {
		t.Fatal(err)
	}
	if slot.EdgeFrom != 0 || slot.EdgeTo != 0 {
		t.Fatalf("expected slot edge_from/edge_to == 0, got %+v", slot)
	}
}

// deleting a node must cascade-delete every incident edge

func TestDeleteNodeCascadesIncidentEdges(t *testing.T) {
	e := testEngine(t, "s5test")

	n1, _ := e.CreateNode(nil)
	n2, _ := e.CreateNode(nil)

	e1, err := e.CreateEdge(n1, nil, n2)
	if err != nil {
		t.Fatal(err)
	}
	e2, err := e.CreateEdge(n2, nil, n1)
	if err != nil {
		t.Fatal(err)
	}

	if err := e.DeleteNode(n1); err != nil {
		t.Fatal(err)
	}

	if _, err := e.GetNode(n1); !util.IsNotFound(err) {
		t.Fatalf("expected node 1 to be gone, got err=%v", err)
	}

	node2, err := e.GetNode(n2)
	if err != nil {
		t.Fatal(err)
	}

	from2, _ := e.EdgesFrom(node2.ID)
	to2, _ := e.EdgesTo(node2.ID)
	if len(from2) != 0 || len(to2) != 0 {
		t.Fatalf("expected node 2 to have empty adjacency, got from=%v to=%v", from2, to2)
	}

	if _, err := e.GetEdge(e1, false, false); !util.IsNotFound(err) {
		t.Fatalf("expected edge 1 tombstoned, got err=%v", err)
	}
	if _, err := e.GetEdge(e2, false, false); !util.IsNotFound(err) {
		t.Fatalf("expected edge 2 tombstoned, got err=%v", err)
	}
}

func TestUpdateNodeAppendsNewRecord(t *testing.T) {
	e := testEngine(t, "updatetest")

	n1, err := e.CreateNode(nameValue("alice"))
	if err != nil {
		t.Fatal(err)
	}

	slotBefore, err := e.readNodeSlot(n1)
	if err != nil {
		t.Fatal(err)
	}

	if err := e.UpdateNode(n1, nameValue("alicia")); err != nil {
		t.Fatal(err)
	}

	slotAfter, err := e.readNodeSlot(n1)
	if err != nil {
		t.Fatal(err)
	}

	if slotAfter.Addr == slotBefore.Addr {
		t.Fatal("expected update to append a new property record, addr unchanged")
	}

	node, err := e.GetNode(n1)
	if err != nil {
		t.Fatal(err)
	}

	v, ok := node.Props.Lookup([]byte("name"))
	if !ok || string(v.Text) != "alicia" {
		t.Fatalf("expected updated name 'alicia', got %+v", v)
	}
}

func TestNodesByPropertiesSuperset(t *testing.T) {
	e := testEngine(t, "scantest")

	_, _ = e.CreateNode(data.PropertyMap{
		{Key: []byte("name"), Value: data.TextValue([]byte("alice"))},
		{Key: []byte("age"), Value: data.IntValue(30)},
	})
	_, _ = e.CreateNode(nameValue("bob"))

	results, err := e.NodesByProperties(nameValue("alice"))
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 match, got %d", len(results))
	}
}

func TestDeleteNodeIdempotent(t *testing.T) {
	e := testEngine(t, "idemtest")

	n1, _ := e.CreateNode(nil)

	if err := e.DeleteNode(n1); err != nil {
		t.Fatal(err)
	}
	if err := e.DeleteNode(n1); err != nil {
		t.Fatalf("expected idempotent delete, got %v", err)
	}
}

func TestDeleteEdgeIdempotent(t *testing.T) {
	e := testEngine(t, "idemedgetest")

	n1, _ := e.CreateNode(nil)
	n2, _ := e.CreateNode(nil)
	eid, _ := e.CreateEdge(n1, nil, n2)

	if err := e.DeleteEdge(eid); err != nil {
		t.Fatal(err)
	}
	if err := e.DeleteEdge(eid); err != nil {
		t.Fatalf("expected idempotent delete, got %v", err)
	}
}

func TestCreateEdgeNotFound(t *testing.T) {
	e := testEngine(t, "edgenotfoundtest")

	n1, _ := e.CreateNode(nil)

	if _, err := e.CreateEdge(n1, nil, 999); !util.IsNotFound(err) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}
