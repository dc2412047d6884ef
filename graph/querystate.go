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

import "devt.de/krotik/common/datautil"

/*
DefaultQueryStateMaxEntries bounds how many distinct query_ids can have a
live visited-set at once.
*/
const DefaultQueryStateMaxEntries = 10000

/*
DefaultQueryStateTTLSeconds bounds how long a query_id's visited-set
survives without being touched.
*/
const DefaultQueryStateTTLSeconds = 300

/*
visitedSet is the per-query_id dedup state for FindNeighbours.
*/
type visitedSet map[uint32]bool

/*
queryStateCache is a TTL+LRU bounded table of query_id -> visitedSet,
built directly on devt.de/krotik/common/datautil.MapCache (the same
cache cluster/manager.PeerClient uses for lock bookkeeping), reused here
verbatim rather than re-implemented since its size+age eviction is
exactly what a bounded traversal state table needs.
*/
type queryStateCache struct {
	cache *datautil.MapCache
}

func newQueryStateCache(maxEntries int, ttlSeconds int64) *queryStateCache {
	return &queryStateCache{cache: datautil.NewMapCache(uint64(maxEntries), ttlSeconds)}
}

/*
get returns the visited set for queryID, creating an empty one if it does
not exist yet.
*/
func (q *queryStateCache) get(queryID string) visitedSet {
	if v, ok := q.cache.Get(queryID); ok {
		return v.(visitedSet)
	}

	vs := make(visitedSet)
	q.cache.Put(queryID, vs)

	return vs
}

/*
clear removes the visited set for queryID, e.g. once a top-level
traversal completes.
*/
func (q *queryStateCache) clear(queryID string) {
	q.cache.Remove(queryID)
}
