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
Package data contains the codecs for a single property value and for an
ordered property map.

Value

A Value is a tagged union over the six property types BOOL, INT, UINT,
FLOAT, CHAR and TEXT. The tag is a signed 32-bit ValDesc: non-negative
values mean "TEXT of this many bytes", negative values enumerate the
scalar kinds. UINT is reserved for internal fields and must never be
produced by the user-facing API.

PropertyMap

A PropertyMap is an ordered sequence of key/value pairs. Encoding
preserves insertion order; decoding keeps every entry, and Lookup folds
duplicate keys left-to-right so only the first occurrence of a key is
authoritative.
*/
package data

import (
	"encoding/binary"
	"fmt"
	"math"

	"devt.de/krotik/common/bitutil"
)

/*
Kind identifies the scalar type of a Value (or TEXT, for which Kind is
derived from a non-negative ValDesc rather than stored directly).
*/
type Kind int

/*
Known value kinds.
*/
const (
	KindText Kind = iota
	KindBool
	KindInt
	KindUint
	KindFloat
	KindChar
)

/*
Scalar ValDesc tags. TEXT uses its own byte length (>= 0) as ValDesc.
*/
const (
	ValDescBool  int32 = -1
	ValDescInt   int32 = -2
	ValDescUint  int32 = -3
	ValDescFloat int32 = -4
	ValDescChar  int32 = -5
)

/*
Value is a single typed property value.
*/
type Value struct {
	Kind  Kind
	Bool  bool
	Int   int32
	Uint  uint32
	Float float32
	Char  rune
	Text  []byte
}

/*
BoolValue creates a BOOL Value.
*/
func BoolValue(v bool) Value { return Value{Kind: KindBool, Bool: v} }

/*
IntValue creates an INT Value.
*/
func IntValue(v int32) Value { return Value{Kind: KindInt, Int: v} }

/*
UintValue creates a UINT Value. Reserved for internal fields; the user API
must never construct or return this kind.
*/
func UintValue(v uint32) Value { return Value{Kind: KindUint, Uint: v} }

/*
FloatValue creates a FLOAT Value.
*/
func FloatValue(v float32) Value { return Value{Kind: KindFloat, Float: v} }

/*
CharValue creates a CHAR Value.
*/
func CharValue(v rune) Value { return Value{Kind: KindChar, Char: v} }

/*
TextValue creates a TEXT Value. The bytes are opaque; UTF-8 validity is
not enforced.
*/
func TextValue(v []byte) Value { return Value{Kind: KindText, Text: v} }

/*
ValDesc returns the wire tag for this Value.
*/
func (v Value) ValDesc() int32 {
	switch v.Kind {
	case KindBool:
		return ValDescBool
	case KindInt:
		return ValDescInt
	case KindUint:
		return ValDescUint
	case KindFloat:
		return ValDescFloat
	case KindChar:
		return ValDescChar
	default:
		return int32(len(v.Text))
	}
}

/*
Equal compares two values for bytewise equality within the same ValDesc.
Cross-type comparisons (including different TEXT lengths) are always
false.
*/
func (v Value) Equal(other Value) bool {
	if v.ValDesc() != other.ValDesc() {
		return false
	}

	switch v.Kind {
	case KindBool:
		return v.Bool == other.Bool
	case KindInt:
		return v.Int == other.Int
	case KindUint:
		return v.Uint == other.Uint
	case KindFloat:
		return v.Float == other.Float
	case KindChar:
		return v.Char == other.Char
	default:
		return bitutil.CompareByteArray(v.Text, other.Text)
	}
}

/*
DecodeError is returned for malformed value encodings: an out-of-range
ValDesc or a short buffer.
*/
type DecodeError struct {
	Detail string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("data: decode error: %s", e.Detail)
}

/*
EncodedSize returns the number of bytes value_bytes occupies on the wire
for the given ValDesc.
*/
func EncodedSize(valDesc int32) (int, error) {
	switch {
	case valDesc >= 0:
		return int(valDesc), nil
	case valDesc == ValDescBool:
		return 1, nil
	case valDesc == ValDescInt, valDesc == ValDescUint, valDesc == ValDescFloat, valDesc == ValDescChar:
		return 4, nil
	default:
		return 0, &DecodeError{Detail: fmt.Sprintf("val_desc %d is out of range", valDesc)}
	}
}

/*
AppendValue appends the wire form of a Value (value_bytes only, not the
val_desc tag) to buf and returns the extended slice.
*/
func AppendValue(buf []byte, v Value) []byte {
	switch v.Kind {
	case KindBool:
		if v.Bool {
			return append(buf, 1)
		}
		return append(buf, 0)

	case KindInt:
		var tmp [4]byte
		binary.BigEndian.PutUint32(tmp[:], uint32(v.Int))
		return append(buf, tmp[:]...)

	case KindUint:
		var tmp [4]byte
		binary.BigEndian.PutUint32(tmp[:], v.Uint)
		return append(buf, tmp[:]...)

	case KindFloat:
		var tmp [4]byte
		binary.BigEndian.PutUint32(tmp[:], math.Float32bits(v.Float))
		return append(buf, tmp[:]...)

	case KindChar:
		var tmp [4]byte
		binary.BigEndian.PutUint32(tmp[:], uint32(v.Char))
		return append(buf, tmp[:]...)

	default:
		return append(buf, v.Text...)
	}
}

/*
DecodeValue reads one value from data given its val_desc tag. It returns
the Value and the number of bytes consumed from data.
*/
func DecodeValue(valDesc int32, data []byte) (Value, int, error) {
	n, err := EncodedSize(valDesc)
	if err != nil {
		return Value{}, 0, err
	}

	if len(data) < n {
		return Value{}, 0, &DecodeError{Detail: "unexpected end of value bytes"}
	}

	switch {
	case valDesc >= 0:
		text := make([]byte, n)
		copy(text, data[:n])
		return TextValue(text), n, nil

	case valDesc == ValDescBool:
		return BoolValue(data[0] != 0), 1, nil

	case valDesc == ValDescInt:
		return IntValue(int32(binary.BigEndian.Uint32(data[:4]))), 4, nil

	case valDesc == ValDescUint:
		return UintValue(binary.BigEndian.Uint32(data[:4])), 4, nil

	case valDesc == ValDescFloat:
		return FloatValue(math.Float32frombits(binary.BigEndian.Uint32(data[:4]))), 4, nil

	case valDesc == ValDescChar:
		return CharValue(rune(binary.BigEndian.Uint32(data[:4]))), 4, nil
	}

	return Value{}, 0, &DecodeError{Detail: fmt.Sprintf("val_desc %d is out of range", valDesc)}
}
