/*
 * Graphon
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package data

import "encoding/binary"

/*
PropertyEntry is a single key/value pair inside a PropertyMap.
*/
type PropertyEntry struct {
	Key   []byte
	Value Value
}

/*
PropertyMap is an ordered sequence of key/value pairs as they were inserted
by the caller. Use Lookup for unique-key access; duplicate keys are folded
left-to-right, so only the first occurrence is authoritative.
*/
type PropertyMap []PropertyEntry

/*
Lookup returns the value of the first entry with the given key.
*/
func (m PropertyMap) Lookup(key []byte) (Value, bool) {
	for _, e := range m {
		if string(e.Key) == string(key) {
			return e.Value, true
		}
	}
	return Value{}, false
}

/*
HasSuperset reports whether m contains every key/value pair in query, by
key equality and value equality (which is bytewise within the same
val_desc; cross-type comparisons are always false).
*/
func (m PropertyMap) HasSuperset(query PropertyMap) bool {
	for _, q := range query {
		v, ok := m.Lookup(q.Key)
		if !ok || !v.Equal(q.Value) {
			return false
		}
	}
	return true
}

/*
EncodeProps appends the wire form of a property map's entries (without the
outer num_props count or rec_len frame) to buf.
*/
func EncodeProps(buf []byte, props PropertyMap) []byte {
	for _, e := range props {
		var lenbuf [4]byte
		binary.BigEndian.PutUint32(lenbuf[:], uint32(len(e.Key)))
		buf = append(buf, lenbuf[:]...)
		buf = append(buf, e.Key...)

		var descbuf [4]byte
		binary.BigEndian.PutUint32(descbuf[:], uint32(e.Value.ValDesc()))
		buf = append(buf, descbuf[:]...)

		buf = AppendValue(buf, e.Value)
	}
	return buf
}

/*
DecodeProps reads numProps key/value pairs from data and returns the
decoded PropertyMap together with the number of bytes consumed. Duplicate
keys are preserved in encounter order here; callers that need a
deduplicated view should use Lookup.
*/
func DecodeProps(numProps uint32, data []byte) (PropertyMap, int, error) {
	props := make(PropertyMap, 0, numProps)
	pos := 0

	for i := uint32(0); i < numProps; i++ {
		if len(data)-pos < 4 {
			return nil, 0, &DecodeError{Detail: "unexpected end of property block (key_strlen)"}
		}
		keyLen := binary.BigEndian.Uint32(data[pos : pos+4])
		pos += 4

		if uint32(len(data)-pos) < keyLen {
			return nil, 0, &DecodeError{Detail: "unexpected end of property block (key_bytes)"}
		}
		key := make([]byte, keyLen)
		copy(key, data[pos:pos+int(keyLen)])
		pos += int(keyLen)

		if len(data)-pos < 4 {
			return nil, 0, &DecodeError{Detail: "unexpected end of property block (val_desc)"}
		}
		valDesc := int32(binary.BigEndian.Uint32(data[pos : pos+4]))
		pos += 4

		value, n, err := DecodeValue(valDesc, data[pos:])
		if err != nil {
			return nil, 0, err
		}
		pos += n

		props = append(props, PropertyEntry{Key: key, Value: value})
	}

	return props, pos, nil
}

/*
EncodeRecord frames a property map with the outer rec_len/num_props header
shared by node and edge property records. rec_len includes itself.
*/
func EncodeRecord(props PropertyMap) []byte {
	body := EncodeProps(nil, props)

	// rec_len (4) + num_props (4) + body
	recLen := uint32(8 + len(body))

	out := make([]byte, 0, recLen)
	var buf [4]byte

	binary.BigEndian.PutUint32(buf[:], recLen)
	out = append(out, buf[:]...)

	binary.BigEndian.PutUint32(buf[:], uint32(len(props)))
	out = append(out, buf[:]...)

	return append(out, body...)
}

/*
DecodeRecord decodes a framed property record (rec_len · num_props ·
props...) starting at the beginning of data. It returns the decoded map
and the record's total length (== rec_len).
*/
func DecodeRecord(data []byte) (PropertyMap, uint32, error) {
	if len(data) < 8 {
		return nil, 0, &DecodeError{Detail: "unexpected end of record header"}
	}

	recLen := binary.BigEndian.Uint32(data[0:4])
	numProps := binary.BigEndian.Uint32(data[4:8])

	if uint32(len(data)) < recLen {
		return nil, 0, &DecodeError{Detail: "truncated property record"}
	}

	props, _, err := DecodeProps(numProps, data[8:recLen])
	if err != nil {
		return nil, 0, err
	}

	return props, recLen, nil
}
