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
Package graph contains the graph engine: the higher-level operations over
the storage engine in graph/graphstorage.

Manager

Manager wraps a graphstorage.Engine and provides the property-predicate
scans and the bounded-depth neighbourhood traversal. It is the type a
caller (or the shard router) talks to.

Deletion hooks

graph/graphstorage.Engine.DeleteNode performs the deletion cascade
required by the storage format itself (unlinking every incident edge).
Manager additionally dispatches OnNodeDeleted/OnEdgeDeleted callbacks
after the storage engine's own cascade completes, so a host can keep
auxiliary state (an index, a cache, cluster proxy bookkeeping) in sync
without the storage engine knowing about it. This is a reduced form of
the event/rule dispatch in rules.go, scoped to the two events this
spec's deletion discipline actually produces.

Traversal state

FindNeighbours shares a visited-set across calls via a caller-supplied
query_id, so that a cross-shard fan-out (driven by the shard router) can
deduplicate across what is logically a single top-level traversal.
Visited sets are held in a TTL+LRU bounded cache (querystate.go) so a
never-closed query_id cannot grow without bound.
*/
package graph

/*
Event ids dispatched by Manager after a storage mutation completes.
*/
const (
	EventNodeDeleted = iota
	EventEdgeDeleted
)
