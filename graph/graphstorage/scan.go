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

import "github.com/krotik/graphon/graph/data"

/*
NodesByProperties performs a linear scan over NODE_IDS, skipping
tombstones, and returns every node whose property map is a superset of
query. Secondary indexes on property values are out of scope; this is
intentionally O(n).
*/
func (e *Engine) NodesByProperties(query data.PropertyMap) ([]*Node, error) {
	var result []*Node

	for nodeID := uint32(1); nodeID < e.curNodeID; nodeID++ {
		slot, err := e.readNodeSlot(nodeID)
		if err != nil {
			return nil, err
		}
		if slot.Addr == 0 {
			continue
		}

		props, err := e.readPropertyRecord(slot.Addr)
		if err != nil {
			return nil, err
		}

		if props.HasSuperset(query) {
			result = append(result, &Node{ID: nodeID, Props: props})
		}
	}

	return result, nil
}

/*
EdgesByProperties performs a linear scan over EDGES, skipping tombstones,
and returns every edge whose property map is a superset of query.
*/
func (e *Engine) EdgesByProperties(query data.PropertyMap) ([]*Edge, error) {
	var result []*Edge

	for edgeID := uint32(1); edgeID < e.curEID; edgeID++ {
		rec, err := e.readEdgeRecord(edgeID)
		if err != nil {
			return nil, err
		}
		if rec.FromNID == 0 {
			continue
		}

		var props data.PropertyMap
		if rec.PropsAddr != 0 {
			if props, err = e.readPropertyRecord(rec.PropsAddr); err != nil {
				return nil, err
			}
		}

		if props.HasSuperset(query) {
			result = append(result, &Edge{ID: edgeID, FromID: rec.FromNID, ToID: rec.ToNID, Props: props})
		}
	}

	return result, nil
}
