/*
 * Graphon
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package cluster

import (
	"github.com/krotik/graphon/cluster/manager"
	"github.com/krotik/graphon/graph"
	"github.com/krotik/graphon/graph/data"
	"github.com/krotik/graphon/graph/graphstorage"
	"github.com/krotik/graphon/graph/util"
)

/*
shard is a single peer engine as seen by the router: the same
operation surface as graph.Manager, but reached either in-process or
over the cluster RPC, and addressed by local (not external) ids.
*/
type shard interface {
	createNode(props data.PropertyMap) (uint32, error)
	getNode(id uint32) (*graphstorage.Node, error)
	updateNode(id uint32, props data.PropertyMap) error
	deleteNode(id uint32) error
	createEdge(from uint32, props data.PropertyMap, to uint32) (uint32, error)
	getEdge(id uint32, inlineFrom, inlineTo bool) (*graphstorage.Edge, error)
	updateEdge(id uint32, props data.PropertyMap) error
	deleteEdge(id uint32) error
	edgesFrom(id uint32) ([]uint32, error)
	edgesTo(id uint32) ([]uint32, error)
	nodesByProperties(query data.PropertyMap) ([]*graphstorage.Node, error)
	edgesByProperties(query data.PropertyMap) ([]*graphstorage.Edge, error)
	nodeCount() (uint32, error)

	// findNeighboursStep expands id by exactly one hop within this shard,
	// deduplicating against queryID's shared visited set, and returns the
	// raw neighbour nodes (proxy nodes included, unresolved).
	findNeighboursStep(id uint32, queryID string) ([]*graphstorage.Node, error)
}

/*
localShard dispatches directly to a graph.Manager owned by this process.
*/
type localShard struct {
	gm *graph.Manager
}

func (s *localShard) createNode(props data.PropertyMap) (uint32, error) {
	return s.gm.CreateNode(props)
}
func (s *localShard) getNode(id uint32) (*graphstorage.Node, error) {
	return s.gm.GetNode(id)
}
func (s *localShard) updateNode(id uint32, props data.PropertyMap) error {
	return s.gm.UpdateNode(id, props)
}
func (s *localShard) deleteNode(id uint32) error {
	return s.gm.DeleteNode(id)
}
func (s *localShard) createEdge(from uint32, props data.PropertyMap, to uint32) (uint32, error) {
	return s.gm.CreateEdge(from, props, to)
}
func (s *localShard) getEdge(id uint32, inlineFrom, inlineTo bool) (*graphstorage.Edge, error) {
	return s.gm.GetEdge(id, inlineFrom, inlineTo)
}
func (s *localShard) updateEdge(id uint32, props data.PropertyMap) error {
	return s.gm.UpdateEdge(id, props)
}
func (s *localShard) deleteEdge(id uint32) error {
	return s.gm.DeleteEdge(id)
}
func (s *localShard) edgesFrom(id uint32) ([]uint32, error) {
	return s.gm.EdgesFrom(id)
}
func (s *localShard) edgesTo(id uint32) ([]uint32, error) {
	return s.gm.EdgesTo(id)
}
func (s *localShard) nodesByProperties(query data.PropertyMap) ([]*graphstorage.Node, error) {
	return s.gm.NodesByProperties(query)
}
func (s *localShard) edgesByProperties(query data.PropertyMap) ([]*graphstorage.Edge, error) {
	return s.gm.EdgesByProperties(query)
}
func (s *localShard) nodeCount() (uint32, error) {
	return s.gm.NodeCount(), nil
}
func (s *localShard) findNeighboursStep(id uint32, queryID string) ([]*graphstorage.Node, error) {
	neighbours, err := s.gm.FindNeighbours(id, 1, queryID, nil, nil)
	if err != nil {
		return nil, err
	}

	out := make([]*graphstorage.Node, 0, len(neighbours))
	for _, n := range neighbours {
		out = append(out, n)
	}
	return out, nil
}

/*
remoteShard dispatches to another cluster peer's engine by wrapping
each call in a shardRequest sent over manager.PeerClient.SendDataRequest.
*/
type remoteShard struct {
	peer string
	client *manager.PeerClient
}

func (s *remoteShard) call(req *shardRequest) (*shardResponse, error) {
	res, err := s.client.SendDataRequest(s.peer, req)
	if err != nil {
		return nil, util.NewError(util.ErrUnreachable, err.Error())
	}

	resp, ok := res.(*shardResponse)
	if !ok {
		return nil, util.NewError(util.ErrUnreachable, "malformed shard response")
	}

	if resp.ErrKind != "" {
		return resp, util.FromKindName(resp.ErrKind, resp.ErrMsg)
	}

	return resp, nil
}

func (s *remoteShard) createNode(props data.PropertyMap) (uint32, error) {
	resp, err := s.call(&shardRequest{Op: opCreateNode, Props: props})
	if err != nil {
		return 0, err
	}
	return resp.ID, nil
}

func (s *remoteShard) getNode(id uint32) (*graphstorage.Node, error) {
	resp, err := s.call(&shardRequest{Op: opGetNode, NodeID: id})
	if err != nil {
		return nil, err
	}
	return resp.Node, nil
}

func (s *remoteShard) updateNode(id uint32, props data.PropertyMap) error {
	_, err := s.call(&shardRequest{Op: opUpdateNode, NodeID: id, Props: props})
	return err
}

func (s *remoteShard) deleteNode(id uint32) error {
	_, err := s.call(&shardRequest{Op: opDeleteNode, NodeID: id})
	return err
}

func (s *remoteShard) createEdge(from uint32, props data.PropertyMap, to uint32) (uint32, error) {
	resp, err := s.call(&shardRequest{Op: opCreateEdge, FromID: from, ToID: to, Props: props})
	if err != nil {
		return 0, err
	}
	return resp.ID, nil
}

func (s *remoteShard) getEdge(id uint32, inlineFrom, inlineTo bool) (*graphstorage.Edge, error) {
	resp, err := s.call(&shardRequest{Op: opGetEdge, EdgeID: id, Inline1: inlineFrom, Inline2: inlineTo})
	if err != nil {
		return nil, err
	}
	return resp.Edge, nil
}

func (s *remoteShard) updateEdge(id uint32, props data.PropertyMap) error {
	_, err := s.call(&shardRequest{Op: opUpdateEdge, EdgeID: id, Props: props})
	return err
}

func (s *remoteShard) deleteEdge(id uint32) error {
	_, err := s.call(&shardRequest{Op: opDeleteEdge, EdgeID: id})
	return err
}

func (s *remoteShard) edgesFrom(id uint32) ([]uint32, error) {
	resp, err := s.call(&shardRequest{Op: opEdgesFrom, NodeID: id})
	if err != nil {
		return nil, err
	}
	return resp.IDs, nil
}

func (s *remoteShard) edgesTo(id uint32) ([]uint32, error) {
	resp, err := s.call(&shardRequest{Op: opEdgesTo, NodeID: id})
	if err != nil {
		return nil, err
	}
	return resp.IDs, nil
}

func (s *remoteShard) nodesByProperties(query data.PropertyMap) ([]*graphstorage.Node, error) {
	resp, err := s.call(&shardRequest{Op: opNodesByProperties, Query: query})
	if err != nil {
		return nil, err
	}
	return resp.Nodes, nil
}

func (s *remoteShard) edgesByProperties(query data.PropertyMap) ([]*graphstorage.Edge, error) {
	resp, err := s.call(&shardRequest{Op: opEdgesByProperties, Query: query})
	if err != nil {
		return nil, err
	}
	return resp.Edges, nil
}

func (s *remoteShard) nodeCount() (uint32, error) {
	resp, err := s.call(&shardRequest{Op: opNodeCount})
	if err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (s *remoteShard) findNeighboursStep(id uint32, queryID string) ([]*graphstorage.Node, error) {
	resp, err := s.call(&shardRequest{Op: opFindNeighboursStep, NodeID: id, QueryID: queryID})
	if err != nil {
		return nil, err
	}
	return resp.Nodes, nil
}

/*
dispatch executes a shardRequest against a local graph.Manager and
builds the shardResponse to send back over RPC. This is the function a
Router registers with manager.ShardPeer.SetHandleDataRequest so
peers can reach it.
*/
func dispatch(gm *graph.Manager, req *shardRequest) *shardResponse {
	resp := &shardResponse{}

	fail := func(err error) *shardResponse {
		resp.ErrKind = util.KindName(err)
		resp.ErrMsg = util.Detail(err)
		if resp.ErrKind == "" {
			resp.ErrKind = "Io"
			resp.ErrMsg = err.Error()
		}
		return resp
	}

	switch req.Op {
	case opCreateNode:
		id, err := gm.CreateNode(req.Props)
		if err != nil {
			return fail(err)
		}
		resp.ID = id

	case opGetNode:
		node, err := gm.GetNode(req.NodeID)
		if err != nil {
			return fail(err)
		}
		resp.Node = node

	case opUpdateNode:
		if err := gm.UpdateNode(req.NodeID, req.Props); err != nil {
			return fail(err)
		}

	case opDeleteNode:
		if err := gm.DeleteNode(req.NodeID); err != nil {
			return fail(err)
		}

	case opCreateEdge:
		id, err := gm.CreateEdge(req.FromID, req.Props, req.ToID)
		if err != nil {
			return fail(err)
		}
		resp.ID = id

	case opGetEdge:
		edge, err := gm.GetEdge(req.EdgeID, req.Inline1, req.Inline2)
		if err != nil {
			return fail(err)
		}
		resp.Edge = edge

	case opUpdateEdge:
		if err := gm.UpdateEdge(req.EdgeID, req.Props); err != nil {
			return fail(err)
		}

	case opDeleteEdge:
		if err := gm.DeleteEdge(req.EdgeID); err != nil {
			return fail(err)
		}

	case opEdgesFrom:
		ids, err := gm.EdgesFrom(req.NodeID)
		if err != nil {
			return fail(err)
		}
		resp.IDs = ids

	case opEdgesTo:
		ids, err := gm.EdgesTo(req.NodeID)
		if err != nil {
			return fail(err)
		}
		resp.IDs = ids

	case opNodesByProperties:
		nodes, err := gm.NodesByProperties(req.Query)
		if err != nil {
			return fail(err)
		}
		resp.Nodes = nodes

	case opEdgesByProperties:
		edges, err := gm.EdgesByProperties(req.Query)
		if err != nil {
			return fail(err)
		}
		resp.Edges = edges

	case opNodeCount:
		resp.Count = gm.NodeCount()

	case opFindNeighboursStep:
		neighbours, err := gm.FindNeighbours(req.NodeID, 1, req.QueryID, nil, nil)
		if err != nil {
			return fail(err)
		}
		nodes := make([]*graphstorage.Node, 0, len(neighbours))
		for _, n := range neighbours {
			nodes = append(nodes, n)
		}
		resp.Nodes = nodes

	default:
		return fail(util.NewError(util.ErrInvalidArgument, "unknown shard operation"))
	}

	return resp
}
