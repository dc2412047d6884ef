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
	"encoding/gob"

	"github.com/krotik/graphon/graph/data"
	"github.com/krotik/graphon/graph/graphstorage"
)

func init() {
	gob.Register(&shardRequest{})
	gob.Register(&shardResponse{})
}

/*
shardOp identifies which graphstorage.Engine operation a shardRequest
carries. Requests travel over manager.PeerClient.SendDataRequest as an
opaque interface{}, so the request itself is the wire format.
*/
type shardOp int

const (
	opCreateNode shardOp = iota
	opGetNode
	opUpdateNode
	opDeleteNode
	opCreateEdge
	opGetEdge
	opUpdateEdge
	opDeleteEdge
	opEdgesFrom
	opEdgesTo
	opNodesByProperties
	opEdgesByProperties
	opNodeCount
	opFindNeighboursStep
)

/*
shardRequest is the request envelope dispatched to a single shard's local
engine, either in-process (localShard) or over RPC (remoteShard).
*/
type shardRequest struct {
	Op      shardOp
	NodeID  uint32
	EdgeID  uint32
	FromID  uint32
	ToID    uint32
	Props   data.PropertyMap
	Query   data.PropertyMap
	Inline1 bool
	Inline2 bool
	QueryID string
}

/*
shardResponse is the response envelope returned by a single shard.
ErrKind/ErrMsg carry a util.GraphError across the wire (error values
themselves are not gob-safe without registering every concrete type).
*/
type shardResponse struct {
	ID      uint32
	Node    *graphstorage.Node
	Edge    *graphstorage.Edge
	IDs     []uint32
	Nodes   []*graphstorage.Node
	Edges   []*graphstorage.Edge
	Count   uint32
	ErrKind string
	ErrMsg  string
}
