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
Package cluster implements the shard router: a thin layer over a
static, ordered set of graph engines (local or remote, reached through
cluster/manager's peer-to-peer RPC) that assigns every node and edge to
a shard, materializes cross-shard edges through proxy nodes, and fans
out find_neighbours across shard boundaries.

Router

Router is the entry point. Construct one with NewRouter, which wraps
the local graph.Manager as a localShard and every other configured
endpoint as a remoteShard addressed through a manager.ShardPeer.

Placement

CreateNode/CreateEdge pick a shard with either round-robin or
least-loaded placement; which one is used is not observable beyond
"successive creates need not land on the same shard". An id's shard is
immutable once assigned.

Cross-shard edges and proxy nodes

An edge whose endpoints live on different shards is represented by a
real edge on each shard, pointing at a local proxy node whose property
holds the external id of the true far endpoint (proxy.go). Deleting a
cross-shard edge deletes both real edges and both proxy nodes;
find_neighbours silently follows a proxy node to its target shard
instead of returning it to the caller.
*/
package cluster

import (
	"fmt"
	"sync/atomic"

	"devt.de/krotik/common/logutil"

	"github.com/krotik/graphon/cluster/manager"
	"github.com/krotik/graphon/graph"
	"github.com/krotik/graphon/graph/data"
	"github.com/krotik/graphon/graph/graphstorage"
	"github.com/krotik/graphon/graph/util"
)

var rlog = logutil.GetLogger("cluster")

/*
PlacementPolicy selects how Router.CreateNode picks a shard for a new
entity.
*/
type PlacementPolicy int

/*
Known placement policies.
*/
const (
	RoundRobin PlacementPolicy = iota
	LeastLoaded
)

/*
Router fronts a static set of shards with a single external-id address
space.
*/
type Router struct {
	localName string
	order     []string
	shards    map[string]shard
	policy    PlacementPolicy

	rrCounter    uint64
	queryCounter uint64
}

/*
NewRouter builds a router around the local engine gm (registered under
localName) plus one remoteShard per entry of peers (peer name ->
rpc address). mm is this node's own cluster manager: every peer is
registered with it via SendJoinCluster, which both verifies
reachability and teaches mm.PeerClient the peer's rpc address.
*/
func NewRouter(localName string, gm *graph.Manager, mm *manager.ShardPeer, peers map[string]string, policy PlacementPolicy) (*Router, error) {
	r := &Router{
		localName: localName,
		shards:    map[string]shard{localName: &localShard{gm: gm}},
		policy:    policy,
	}
	r.order = append(r.order, localName)

	mm.SetHandleDataRequest(func(data interface{}, reply *interface{}) error {
		req, ok := data.(*shardRequest)
		if !ok {
			*reply = &shardResponse{ErrKind: "InvalidArgument", ErrMsg: "malformed shard request"}
			return nil
		}
		*reply = dispatch(gm, req)
		return nil
	})

	for name, addr := range peers {
		if name == localName {
			continue
		}
		if _, err := mm.PeerClient.SendJoinCluster(name, addr); err != nil {
			return nil, util.NewError(util.ErrUnreachable, fmt.Sprintf("shard %s (%s): %v", name, addr, err))
		}
		r.shards[name] = &remoteShard{peer: name, client: mm.PeerClient}
		r.order = append(r.order, name)
	}

	return r, nil
}

func (r *Router) shardFor(name string) (shard, error) {
	sh, ok := r.shards[name]
	if !ok {
		return nil, util.NewError(util.ErrInvalidArgument, "unknown shard: "+name)
	}
	return sh, nil
}

func (r *Router) newQueryID() string {
	return fmt.Sprintf("%s-%d", r.localName, atomic.AddUint64(&r.queryCounter, 1))
}

/*
pickShard chooses a placement target under the router's policy.
*/
func (r *Router) pickShard() string {
	if r.policy == LeastLoaded {
		best := r.order[0]
		var bestCount uint32
		for i, name := range r.order {
			sh := r.shards[name]
			count, err := sh.nodeCount()
			if err != nil {
				continue
			}
			if i == 0 || count < bestCount {
				best, bestCount = name, count
			}
		}
		return best
	}

	i := atomic.AddUint64(&r.rrCounter, 1) - 1
	return r.order[i%uint64(len(r.order))]
}

// Node operations
// ===============

/*
CreateNode places props on a shard chosen by the router's placement
policy and returns the new node's external id.
*/
func (r *Router) CreateNode(props data.PropertyMap) (ExternalID, error) {
	name := r.pickShard()
	sh, err := r.shardFor(name)
	if err != nil {
		return ExternalID{}, err
	}

	id, err := sh.createNode(props)
	if err != nil {
		return ExternalID{}, err
	}

	return ExternalID{Shard: name, Local: id}, nil
}

/*
GetNode fetches a node by external id. Proxy nodes are internal and are
returned as-is if addressed directly (only find_neighbours resolves
them transparently).
*/
func (r *Router) GetNode(id ExternalID) (*graphstorage.Node, error) {
	sh, err := r.shardFor(id.Shard)
	if err != nil {
		return nil, err
	}
	return sh.getNode(id.Local)
}

/*
UpdateNode rewrites a node's properties.
*/
func (r *Router) UpdateNode(id ExternalID, props data.PropertyMap) error {
	sh, err := r.shardFor(id.Shard)
	if err != nil {
		return err
	}
	return sh.updateNode(id.Local, props)
}

/*
DeleteNode removes a node. Cross-shard edges incident to it are left to
the owning shard's own cascade; a node that is itself a cross-shard
proxy should not be deleted directly by a caller (DeleteEdge is the
supported path for removing a cross-shard edge).
*/
func (r *Router) DeleteNode(id ExternalID) error {
	sh, err := r.shardFor(id.Shard)
	if err != nil {
		return err
	}
	return sh.deleteNode(id.Local)
}

/*
NodesByProperties scans every shard and merges the results.
*/
func (r *Router) NodesByProperties(query data.PropertyMap) ([]*graphstorage.Node, error) {
	var all []*graphstorage.Node
	for _, name := range r.order {
		sh := r.shards[name]
		nodes, err := sh.nodesByProperties(query)
		if err != nil {
			return nil, err
		}
		for _, n := range nodes {
			if _, isProxy := proxyTarget(n); isProxy {
				continue
			}
			all = append(all, n)
		}
	}
	return all, nil
}

// Edge operations
// ===============

/*
CreateEdge creates an edge from `from` to `to`. If both endpoints live
on the same shard this is a single local/remote call; otherwise the
edge is materialized on both shards through proxy nodes, with
best-effort compensating delete on partial failure.
*/
func (r *Router) CreateEdge(from ExternalID, props data.PropertyMap, to ExternalID) (ExternalID, error) {
	fromShard, err := r.shardFor(from.Shard)
	if err != nil {
		return ExternalID{}, err
	}

	if from.Shard == to.Shard {
		id, err := fromShard.createEdge(from.Local, props, to.Local)
		if err != nil {
			return ExternalID{}, err
		}
		return ExternalID{Shard: from.Shard, Local: id}, nil
	}

	toShard, err := r.shardFor(to.Shard)
	if err != nil {
		return ExternalID{}, err
	}

	proxyOnFrom, err := fromShard.createNode(proxyProps(to))
	if err != nil {
		return ExternalID{}, err
	}

	edgeOnFrom, err := fromShard.createEdge(from.Local, props, proxyOnFrom)
	if err != nil {
		fromShard.deleteNode(proxyOnFrom)
		return ExternalID{}, err
	}
	fromEdgeID := ExternalID{Shard: from.Shard, Local: edgeOnFrom}

	proxyOnTo, err := toShard.createNode(proxyPropsWithEdge(from, fromEdgeID))
	if err != nil {
		fromShard.deleteEdge(edgeOnFrom)
		fromShard.deleteNode(proxyOnFrom)
		return ExternalID{}, util.NewError(util.ErrPartiallyApplied, err.Error())
	}

	edgeOnTo, err := toShard.createEdge(proxyOnTo, props, to.Local)
	if err != nil {
		fromShard.deleteEdge(edgeOnFrom)
		fromShard.deleteNode(proxyOnFrom)
		toShard.deleteNode(proxyOnTo)
		return ExternalID{}, util.NewError(util.ErrPartiallyApplied, err.Error())
	}
	toEdgeID := ExternalID{Shard: to.Shard, Local: edgeOnTo}

	if err := fromShard.updateNode(proxyOnFrom, proxyPropsWithEdge(to, toEdgeID)); err != nil {
		toShard.deleteEdge(edgeOnTo)
		toShard.deleteNode(proxyOnTo)
		fromShard.deleteEdge(edgeOnFrom)
		fromShard.deleteNode(proxyOnFrom)
		return ExternalID{}, util.NewError(util.ErrPartiallyApplied, err.Error())
	}

	return fromEdgeID, nil
}

/*
GetEdge fetches an edge by external id.
*/
func (r *Router) GetEdge(id ExternalID) (*graphstorage.Edge, error) {
	sh, err := r.shardFor(id.Shard)
	if err != nil {
		return nil, err
	}
	return sh.getEdge(id.Local, false, false)
}

/*
DeleteEdge removes an edge. If it is the local side of a cross-shard
edge (its `to` endpoint is a proxy node), the mirror edge and both
proxy nodes are removed too; a failure partway through is reported as
PartiallyApplied after best-effort compensation.
*/
func (r *Router) DeleteEdge(id ExternalID) error {
	sh, err := r.shardFor(id.Shard)
	if err != nil {
		return err
	}

	edge, err := sh.getEdge(id.Local, false, false)
	if err != nil {
		return err
	}

	proxyNode, err := sh.getNode(edge.ToID)
	if err != nil {
		// Not a proxy endpoint (or already gone): plain local delete.
		return sh.deleteEdge(id.Local)
	}

	mirrorEdgeID, isCrossShard := proxyMirrorEdge(proxyNode)
	if !isCrossShard {
		return sh.deleteEdge(id.Local)
	}

	if err := sh.deleteEdge(id.Local); err != nil {
		return err
	}
	if err := sh.deleteNode(proxyNode.ID); err != nil {
		rlog.Error(fmt.Sprintf("failed to remove proxy node %d on shard %s: %v", proxyNode.ID, id.Shard, err))
	}

	mirrorShard, err := r.shardFor(mirrorEdgeID.Shard)
	if err != nil {
		return util.NewError(util.ErrPartiallyApplied, err.Error())
	}

	mirrorEdge, err := mirrorShard.getEdge(mirrorEdgeID.Local, false, false)
	if err != nil {
		return util.NewError(util.ErrPartiallyApplied, err.Error())
	}

	if err := mirrorShard.deleteEdge(mirrorEdgeID.Local); err != nil {
		return util.NewError(util.ErrPartiallyApplied, err.Error())
	}
	if err := mirrorShard.deleteNode(mirrorEdge.FromID); err != nil {
		rlog.Error(fmt.Sprintf("failed to remove proxy node %d on shard %s: %v", mirrorEdge.FromID, mirrorEdgeID.Shard, err))
	}

	return nil
}

/*
EdgesFrom/EdgesTo return external edge ids, translating local ids on
the given shard.
*/
func (r *Router) EdgesFrom(id ExternalID) ([]ExternalID, error) {
	sh, err := r.shardFor(id.Shard)
	if err != nil {
		return nil, err
	}
	ids, err := sh.edgesFrom(id.Local)
	if err != nil {
		return nil, err
	}
	return externalize(id.Shard, ids), nil
}

func (r *Router) EdgesTo(id ExternalID) ([]ExternalID, error) {
	sh, err := r.shardFor(id.Shard)
	if err != nil {
		return nil, err
	}
	ids, err := sh.edgesTo(id.Local)
	if err != nil {
		return nil, err
	}
	return externalize(id.Shard, ids), nil
}

func externalize(shardName string, ids []uint32) []ExternalID {
	out := make([]ExternalID, len(ids))
	for i, id := range ids {
		out[i] = ExternalID{Shard: shardName, Local: id}
	}
	return out
}

/*
EdgesByProperties scans every shard and merges the results.
*/
func (r *Router) EdgesByProperties(query data.PropertyMap) ([]*graphstorage.Edge, error) {
	var all []*graphstorage.Edge
	for _, name := range r.order {
		sh := r.shards[name]
		edges, err := sh.edgesByProperties(query)
		if err != nil {
			return nil, err
		}
		all = append(all, edges...)
	}
	return all, nil
}

/*
FindNeighbours performs a bounded-depth neighbourhood traversal that
crosses shard boundaries transparently: a proxy node encountered at any
hop is followed to its target shard (consuming one hop) instead of
being returned, and a freshly-minted query_id is shared across every
shard touched so that the same node is never visited twice regardless
of which shard's local dedup set catches it.
*/
func (r *Router) FindNeighbours(start ExternalID, hops int) (map[string]*graphstorage.Node, error) {
	result := make(map[string]*graphstorage.Node)

	if hops <= 0 {
		return result, nil
	}

	if _, err := r.GetNode(start); err != nil {
		return nil, err
	}

	queryID := r.newQueryID()
	visited := map[string]bool{start.String(): true}
	frontier := []ExternalID{start}

	for h := 0; h < hops; h++ {
		var next []ExternalID

		for _, cur := range frontier {
			sh, err := r.shardFor(cur.Shard)
			if err != nil {
				continue
			}

			nodes, err := sh.findNeighboursStep(cur.Local, queryID)
			if err != nil {
				return nil, err
			}

			for _, n := range nodes {
				if target, isProxy := proxyTarget(n); isProxy {
					if visited[target.String()] {
						continue
					}
					visited[target.String()] = true

					targetShard, err := r.shardFor(target.Shard)
					if err != nil {
						return nil, err
					}
					targetNode, err := targetShard.getNode(target.Local)
					if err != nil {
						return nil, err
					}

					result[target.String()] = targetNode
					next = append(next, target)
					continue
				}

				ext := ExternalID{Shard: cur.Shard, Local: n.ID}
				if visited[ext.String()] {
					continue
				}
				visited[ext.String()] = true
				result[ext.String()] = n
				next = append(next, ext)
			}
		}

		frontier = next
		if len(frontier) == 0 {
			break
		}
	}

	return result, nil
}
