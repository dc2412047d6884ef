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
	"fmt"
	"strconv"
	"strings"

	"github.com/krotik/graphon/graph/util"
)

/*
ExternalID identifies a node or edge across the whole cluster: a shard
name plus the id the entity has within that shard's local engine.
*/
type ExternalID struct {
	Shard string
	Local uint32
}

/*
String renders an ExternalID as "shard:local".
*/
func (id ExternalID) String() string {
	return fmt.Sprintf("%s:%d", id.Shard, id.Local)
}

/*
ParseExternalID parses a "shard:local" string. Malformed input is an
InvalidArgument error.
*/
func ParseExternalID(s string) (ExternalID, error) {
	idx := strings.LastIndex(s, ":")
	if idx < 0 {
		return ExternalID{}, util.NewError(util.ErrInvalidArgument, "malformed external id: "+s)
	}

	shard, localStr := s[:idx], s[idx+1:]
	if shard == "" {
		return ExternalID{}, util.NewError(util.ErrInvalidArgument, "malformed external id: "+s)
	}

	local, err := strconv.ParseUint(localStr, 10, 32)
	if err != nil {
		return ExternalID{}, util.NewError(util.ErrInvalidArgument, "malformed external id: "+s)
	}

	return ExternalID{Shard: shard, Local: uint32(local)}, nil
}
