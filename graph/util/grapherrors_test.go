/*
 * Graphon
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package util

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGraphErrorString(t *testing.T) {
	err := NewError(ErrNotFound, "node 5")
	assert.Equal(t, "GraphError: not found (node 5)", err.Error())

	err2 := NewError(ErrNotFound, "")
	assert.Equal(t, "GraphError: not found", err2.Error())
}

func TestGraphErrorIs(t *testing.T) {
	err := NewError(ErrNotFound, "node 5")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, IsNotFound(err))
	assert.False(t, IsCorruption(err))
}

func TestKindNameRoundTrip(t *testing.T) {
	for _, kind := range []error{ErrNotFound, ErrInvalidArgument, ErrCorruption, ErrIo, ErrPartiallyApplied, ErrUnreachable} {
		err := NewError(kind, "detail")

		name := KindName(err)
		assert.NotEmpty(t, name)

		rebuilt := FromKindName(name, Detail(err))
		assert.True(t, errors.Is(rebuilt, kind))
		assert.Equal(t, "detail", Detail(rebuilt))
	}
}

func TestKindNameUnrecognizedError(t *testing.T) {
	assert.Equal(t, "", KindName(errors.New("plain")))
	assert.Equal(t, "", Detail(errors.New("plain")))
}

func TestFromKindNameUnknownDegradesToIo(t *testing.T) {
	err := FromKindName("SomeFutureKind", "oops")
	assert.True(t, errors.Is(err, ErrIo))
	assert.Equal(t, "oops", Detail(err))
}
