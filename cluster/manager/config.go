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
Package manager contains the management code for Graphon's clustering feature.

The management code deals with cluster building, general communication between cluster
peers, verification of communicating peers and monitoring of peers.

The cluster structure is pure peer-to-peer design with no single point of failure. All
peers of the cluster share a versioned cluster state which is persisted. Peers have
to manually be added or removed from the cluster. Each peer also has a peer info object
which can be used by the application which uses the cluster to store additional peer
related information.

Temporary failures are detected automatically. Every peer of the cluster monitors the
state of all its peers by sending ping requests to them on a regular schedule.
*/
package manager

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sync"

	"devt.de/krotik/common/datautil"
	"devt.de/krotik/common/errorutil"
	"devt.de/krotik/common/fileutil"
	"devt.de/krotik/common/pools"
)

/*
bufferPool is a reusable pool of byte buffers for gob-encoding state info
and peer info maps.
*/
var bufferPool = pools.NewByteBufferPool()

// Cluster config
// ==============

/*
ConfigRPC is the PRC network interface for the local cluster manager
*/
const ConfigRPC = "ClusterPeerRPC"

/*
ConfigPeerName is the name of the cluster peer
*/
const ConfigPeerName = "ClusterPeerName"

/*
ConfigClusterSecret is the secret which authorizes a cluster peer
(the secret must never be send directly over the network)
*/
const ConfigClusterSecret = "ClusterSecret"

/*
ConfigReplicationFactor is the number of times a given datum must be stored
redundently. The cluster can suffer n-1 peer losses before it becomes
inoperational. The value is set once in the configuration and becomes afterwards
part of the global cluster state info (once this is there the config value is ignored).
*/
const ConfigReplicationFactor = "ReplicationFactor"

/*
DefaultConfig is the defaut configuration
*/
var DefaultConfig = map[string]interface{}{
	ConfigRPC:               "127.0.0.1:9030",
	ConfigPeerName:          "peer1",
	ConfigClusterSecret:     "secret123",
	ConfigReplicationFactor: 1.0,
}

// Cluster state info
// ==================

/*
Known ShardState entries
*/
const (
	ShardStateTS     = "ts"          // Timestamp of state info
	ShardStateTSOLD  = "tsold"       // Previous timestamp of state info
	ShardStatePEERS  = "peers"       // List of known cluster peers
	ShardStateFAILED = "failed"      // List of failed peers
	ShardStateREPFAC = "replication" // Replication factor of the cluster
)

/*
Known PeerInfo entries
*/
const (
	PeerInfoError   = "error"   // Error message if a peer was not reachable
	PeerInfoTermURL = "termurl" // URL to the cluster terminal of the peer
)

/*
ShardState models a state object which stores cluster related data. This
information is exchanged between cluster peers. It is not expected that
the info changes frequently.
*/
type ShardState interface {

	/*
		Put stores some data in the state info.
	*/
	Put(key string, value interface{})

	/*
		Get retrievtes some data from the state info.
	*/
	Get(key string) (interface{}, bool)

	/*
		Map returns the state info as a map.
	*/
	Map() map[string]interface{}

	/*
		Flush persists the state info.
	*/
	Flush() error
}

/*
DefaultShardState is the default state info which uses a file to persist its data.
*/
type DefaultShardState struct {
	*datautil.PersistentMap
	datalock *sync.RWMutex
}

/*
NewDefaultShardState creates a new DefaultShardState.
*/
func NewDefaultShardState(filename string) (ShardState, error) {
	var pm *datautil.PersistentMap
	var err error

	if res, _ := fileutil.PathExists(filename); !res {

		pm, err = datautil.NewPersistentMap(filename)
		if err != nil {
			return nil, &Error{ErrClusterConfig,
				fmt.Sprintf("Cannot create state info file %v: %v",
					filename, err.Error())}
		}

	} else {

		pm, err = datautil.LoadPersistentMap(filename)
		if err != nil {
			return nil, &Error{ErrClusterConfig,
				fmt.Sprintf("Cannot load state info file %v: %v",
					filename, err.Error())}
		}
	}

	return &DefaultShardState{pm, &sync.RWMutex{}}, nil
}

/*
Map returns the state info as a map.
*/
func (dsi *DefaultShardState) Map() map[string]interface{} {
	var ret map[string]interface{}
	datautil.CopyObject(dsi.Data, &ret)
	return ret
}

/*
Get retrieves some data from the state info.
*/
func (dsi *DefaultShardState) Get(key string) (interface{}, bool) {
	dsi.datalock.RLock()
	defer dsi.datalock.RUnlock()
	v, ok := dsi.Data[key]
	return v, ok
}

/*
Put stores some data in the state info.
*/
func (dsi *DefaultShardState) Put(key string, value interface{}) {
	dsi.datalock.Lock()
	defer dsi.datalock.Unlock()
	dsi.Data[key] = value
}

/*
Flush persists the state info.
*/
func (dsi *DefaultShardState) Flush() error {
	if err := dsi.PersistentMap.Flush(); err != nil {
		return &Error{ErrClusterConfig,
			fmt.Sprintf("Cannot persist state info: %v",
				err.Error())}
	}
	return nil
}

/*
MsiRetFlush nil or the error which should be returned by a Flush call
*/
var MsiRetFlush error

/*
MemShardState is a state info object which does not persist its data.
*/
type MemShardState struct {
	data     map[string]interface{}
	datalock *sync.RWMutex
}

/*
NewMemShardState creates a new MemShardState.
*/
func NewMemShardState() ShardState {
	return &MemShardState{make(map[string]interface{}), &sync.RWMutex{}}
}

/*
Map returns the state info as a map.
*/
func (msi *MemShardState) Map() map[string]interface{} {
	var ret map[string]interface{}
	datautil.CopyObject(msi.data, &ret)
	return ret
}

/*
Get retrieves some data from the state info.
*/
func (msi *MemShardState) Get(key string) (interface{}, bool) {
	msi.datalock.RLock()
	defer msi.datalock.RUnlock()
	v, ok := msi.data[key]
	return v, ok
}

/*
Put stores some data in the state info.
*/
func (msi *MemShardState) Put(key string, value interface{}) {
	msi.datalock.Lock()
	defer msi.datalock.Unlock()
	msi.data[key] = value
}

/*
Flush does not do anything :-)
*/
func (msi *MemShardState) Flush() error {
	return MsiRetFlush
}

// Helper functions to properly serialize maps
// ===========================================

/*
mapToBytes converts a given map to bytes. This method panics on errors.
*/
func mapToBytes(m map[string]interface{}) []byte {
	bb := bufferPool.Get().(*bytes.Buffer)
	defer func() {
		bb.Reset()
		bufferPool.Put(bb)
	}()

	errorutil.AssertOk(gob.NewEncoder(bb).Encode(m))

	return bb.Bytes()
}

/*
bytesToMap tries to convert a given byte array into a map. This method panics on errors.
*/
func bytesToMap(b []byte) map[string]interface{} {
	var ret map[string]interface{}

	errorutil.AssertOk(gob.NewDecoder(bytes.NewReader(b)).Decode(&ret))

	return ret
}
