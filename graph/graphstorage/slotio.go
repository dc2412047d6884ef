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
	"encoding/binary"

	"github.com/krotik/graphon/graph/data"
	"github.com/krotik/graphon/graph/util"
)

// Node slot read/write
// ====================

func (e *Engine) readNodeSlot(nodeID uint32) (nodeSlot, error) {
	if nodeID == 0 || nodeID >= e.curNodeID {
		return nodeSlot{}, util.NewError(util.ErrNotFound, "no such node")
	}

	key := cacheKey{'n', nodeID}
	if v, ok := e.cache.get(key); ok {
		return v.(nodeSlot), nil
	}

	var buf [nodeSlotSize]byte
	if _, err := e.nodeIDs.ReadAt(buf[:], nodeSlotOffset(nodeID)); err != nil {
		return nodeSlot{}, util.NewError(util.ErrCorruption, "short read of node slot: "+err.Error())
	}

	slot := nodeSlot{
		Addr:     binary.BigEndian.Uint32(buf[0:4]),
		EdgeFrom: binary.BigEndian.Uint32(buf[4:8]),
		EdgeTo:   binary.BigEndian.Uint32(buf[8:12]),
	}

	e.cache.put(key, slot)

	return slot, nil
}

func (e *Engine) writeNodeSlot(nodeID uint32, slot nodeSlot) error {
	var buf [nodeSlotSize]byte
	binary.BigEndian.PutUint32(buf[0:4], slot.Addr)
	binary.BigEndian.PutUint32(buf[4:8], slot.EdgeFrom)
	binary.BigEndian.PutUint32(buf[8:12], slot.EdgeTo)

	if _, err := e.nodeIDs.WriteAt(buf[:], nodeSlotOffset(nodeID)); err != nil {
		return util.NewError(util.ErrIo, err.Error())
	}

	e.cache.put(cacheKey{'n', nodeID}, slot)

	return nil
}

// Edge record read/write
// =======================

func (e *Engine) readEdgeRecord(edgeID uint32) (edgeRecord, error) {
	if edgeID == 0 || edgeID >= e.curEID {
		return edgeRecord{}, util.NewError(util.ErrNotFound, "no such edge")
	}

	key := cacheKey{'e', edgeID}
	if v, ok := e.cache.get(key); ok {
		return v.(edgeRecord), nil
	}

	var buf [edgeRecSize]byte
	if _, err := e.edges.ReadAt(buf[:], edgeRecOffset(edgeID)); err != nil {
		return edgeRecord{}, util.NewError(util.ErrCorruption, "short read of edge record: "+err.Error())
	}

	rec := edgeRecord{
		FromNID:   binary.BigEndian.Uint32(buf[0:4]),
		ToNID:     binary.BigEndian.Uint32(buf[4:8]),
		Prev1:     binary.BigEndian.Uint32(buf[8:12]),
		Next1:     binary.BigEndian.Uint32(buf[12:16]),
		Prev2:     binary.BigEndian.Uint32(buf[16:20]),
		Next2:     binary.BigEndian.Uint32(buf[20:24]),
		PropsAddr: binary.BigEndian.Uint32(buf[24:28]),
	}

	e.cache.put(key, rec)

	return rec, nil
}

func (e *Engine) writeEdgeRecord(edgeID uint32, rec edgeRecord) error {
	var buf [edgeRecSize]byte
	binary.BigEndian.PutUint32(buf[0:4], rec.FromNID)
	binary.BigEndian.PutUint32(buf[4:8], rec.ToNID)
	binary.BigEndian.PutUint32(buf[8:12], rec.Prev1)
	binary.BigEndian.PutUint32(buf[12:16], rec.Next1)
	binary.BigEndian.PutUint32(buf[16:20], rec.Prev2)
	binary.BigEndian.PutUint32(buf[20:24], rec.Next2)
	binary.BigEndian.PutUint32(buf[24:28], rec.PropsAddr)

	if _, err := e.edges.WriteAt(buf[:], edgeRecOffset(edgeID)); err != nil {
		return util.NewError(util.ErrIo, err.Error())
	}

	e.cache.put(cacheKey{'e', edgeID}, rec)

	return nil
}

// Property record read/append
// ============================

/*
appendPropertyRecord encodes props and appends it to PROPERTIES at the
current cur_node_addr, advancing it. Returns the offset the record was
written at.
*/
func (e *Engine) appendPropertyRecord(props data.PropertyMap) (uint32, error) {
	rec := data.EncodeRecord(props)

	offset := e.curNodeAddr
	if _, err := e.properties.WriteAt(rec, int64(offset)); err != nil {
		return 0, util.NewError(util.ErrIo, err.Error())
	}

	e.curNodeAddr += uint32(len(rec))

	return offset, nil
}

/*
readPropertyRecord decodes the property record framed at the given
PROPERTIES offset. addr == 0 is handled by callers before reaching here
(it means "no properties").
*/
func (e *Engine) readPropertyRecord(addr uint32) (data.PropertyMap, error) {
	var lenbuf [8]byte
	if _, err := e.properties.ReadAt(lenbuf[:], int64(addr)); err != nil {
		return nil, util.NewError(util.ErrCorruption, "short read of record header: "+err.Error())
	}

	recLen := binary.BigEndian.Uint32(lenbuf[0:4])
	if recLen < 8 {
		return nil, util.NewError(util.ErrCorruption, "implausible rec_len")
	}

	body := make([]byte, recLen)
	if _, err := e.properties.ReadAt(body, int64(addr)); err != nil {
		return nil, util.NewError(util.ErrCorruption, "short read of property record: "+err.Error())
	}

	props, _, err := data.DecodeRecord(body)
	if err != nil {
		return nil, util.NewError(util.ErrCorruption, err.Error())
	}

	return props, nil
}
