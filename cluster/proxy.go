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
	"github.com/krotik/graphon/graph/data"
	"github.com/krotik/graphon/graph/graphstorage"
)

/*
A cross-shard edge is materialized as a real edge on each of the two
owning shards, pointing at a local proxy node on that shard. A proxy
node carries two properties: the external id of the true node it stands
in for, and (once both sides exist) the external id of the mirror edge
on the other shard, which a compensating delete needs to find the
mirror's own proxy node.
*/
const (
	proxyTargetKey = "\x00proxy_target"
	proxyEdgeKey   = "\x00proxy_edge"
)

func proxyProps(target ExternalID) data.PropertyMap {
	return data.PropertyMap{
		{Key: []byte(proxyTargetKey), Value: data.TextValue([]byte(target.String()))},
	}
}

func proxyPropsWithEdge(target, mirrorEdge ExternalID) data.PropertyMap {
	return data.PropertyMap{
		{Key: []byte(proxyTargetKey), Value: data.TextValue([]byte(target.String()))},
		{Key: []byte(proxyEdgeKey), Value: data.TextValue([]byte(mirrorEdge.String()))},
	}
}

/*
proxyTarget reports whether n is a proxy node and, if so, the external
id of the node it stands in for.
*/
func proxyTarget(n *graphstorage.Node) (ExternalID, bool) {
	v, ok := n.Props.Lookup([]byte(proxyTargetKey))
	if !ok {
		return ExternalID{}, false
	}

	target, err := ParseExternalID(string(v.Text))
	if err != nil {
		return ExternalID{}, false
	}

	return target, true
}

/*
proxyMirrorEdge returns the external id of the mirror edge recorded on a
proxy node, if any.
*/
func proxyMirrorEdge(n *graphstorage.Node) (ExternalID, bool) {
	v, ok := n.Props.Lookup([]byte(proxyEdgeKey))
	if !ok {
		return ExternalID{}, false
	}

	id, err := ParseExternalID(string(v.Text))
	if err != nil {
		return ExternalID{}, false
	}

	return id, true
}
