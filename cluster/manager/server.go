/*
 * Graphon
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package manager

import (
	"crypto/sha512"
	"fmt"
	"net/rpc"

	"devt.de/krotik/common/errorutil"
)

func init() {

	// Create singleton PeerServer instance.

	server = &PeerServer{make(map[string]*ShardPeer)}

	// Register the cluster API as RPC server

	errorutil.AssertOk(rpc.Register(server))
}

/*
PeerRPCFunc is used to identify the called function in a RPC call
*/
type PeerRPCFunc string

/*
List of all possible RPC functions. The list includes all RPC callable
functions in this file.
*/
const (

	// General functions

	RPCPing      PeerRPCFunc = "Ping"
	RPCSIRequest             = "ShardStateRequest"
	RPCMIRequest             = "PeerInfoRequest"

	// Cluster-wide locking

	RPCAcquireLock = "AcquireLock"
	RPCReleaseLock = "ReleaseLock"

	// Cluster peer management

	RPCJoinCluster = "JoinCluster"
	RPCAddPeer     = "AddPeer"
	RPCEjectPeer   = "EjectPeer"

	// ShardState functions

	RPCUpdateShardState = "UpdateShardState"

	// Data request functions

	RPCDataRequest = "DataRequest"
)

/*
PeerArg is used to identify arguments in a RPC call
*/
type PeerArg int

/*
List of all possible arguments in a RPC request. There are usually no
checks which give back an error if a required argument is missing. The
RPC API is an internal API and might change without backwards
compatibility.
*/
const (

	// General arguments

	RequestTARGET       PeerArg = iota // Required argument which identifies the target cluster peer
	RequestTOKEN                       // Peer token which is used for authorization checks
	RequestLOCK                        // Lock name which a peer requests to take
	RequestPEERNAME                    // Name for a peer
	RequestPEERRPC                     // Rpc address and port for a peer
	RequestSTATEINFOMAP                // ShardState object as a map
	RequestDATA                        // Data request object
)

/*
server is the PeerServer instance which serves rpc calls
*/
var server *PeerServer

/*
PeerServer is the RPC exposed cluster API of a cluster peer. PeerServer is a
singleton and will route incoming (authenticated) requests to
registered ShardPeers. The calling peer is referred to as source
peer and the called peer is referred to as target peer.
*/
type PeerServer struct {
	managers map[string]*ShardPeer // Map of local cluster peers
}

// General functions
// =================

/*
Ping answers with a Pong if the given client token was verified and the
local cluster peer exists.
*/
func (ms *PeerServer) Ping(request map[PeerArg]interface{},
	response *interface{}) error {

	manager, err := ms.checkToken(request, false)
	if err != nil {
		return err
	}

	res := []string{"Pong"}

	// Only reveal timestamps to actual cluster peers

	token := request[RequestTOKEN].(*PeerToken)

	if _, ok := manager.PeerClient.peers[token.PeerName]; ok {

		ts, _ := manager.shardState.Get(ShardStateTS)
		res = append(res, ts.([]string)...)

		tsold, _ := manager.shardState.Get(ShardStateTSOLD)
		res = append(res, tsold.([]string)...)
	}

	*response = res

	return nil
}

/*
ShardStateRequest answers with the peer's state info.
*/
func (ms *PeerServer) ShardStateRequest(request map[PeerArg]interface{},
	response *interface{}) error {

	manager, err := ms.checkToken(request, false)
	if err != nil {
		return err
	}

	*response = mapToBytes(manager.shardState.Map())

	return nil
}

/*
PeerInfoRequest answers with the peer's static info.
*/
func (ms *PeerServer) PeerInfoRequest(request map[PeerArg]interface{},
	response *interface{}) error {

	manager, err := ms.checkToken(request, false)
	if err != nil {
		return err
	}

	*response = mapToBytes(manager.peerInfo)

	return nil
}

// Cluster membership functions
// ============================

/*
JoinCluster is used by a new peer if it wants to join the cluster.
*/
func (ms *PeerServer) JoinCluster(request map[PeerArg]interface{},
	response *interface{}) error {

	manager, err := ms.checkToken(request, false)
	if err != nil {
		return err
	}

	newPeerName := request[RequestPEERNAME].(string)
	newPeerRPC := request[RequestPEERRPC].(string)

	err = manager.JoinNewPeer(newPeerName, newPeerRPC)

	if err == nil {
		*response = mapToBytes(manager.shardState.Map())
	}

	return err
}

/*
AddPeer adds a new peer on the target peer.
*/
func (ms *PeerServer) AddPeer(request map[PeerArg]interface{},
	response *interface{}) error {

	manager, err := ms.checkToken(request, true)
	if err != nil {
		return err
	}

	newPeerName := request[RequestPEERNAME].(string)
	newPeerRPC := request[RequestPEERRPC].(string)
	newShardState := bytesToMap(request[RequestSTATEINFOMAP].([]byte))

	return manager.addPeer(newPeerName, newPeerRPC, newShardState)
}

/*
EjectPeer can be called by a cluster peer to eject itself or another
cluster peer.
*/
func (ms *PeerServer) EjectPeer(request map[PeerArg]interface{},
	response *interface{}) error {

	manager, err := ms.checkToken(request, true)
	if err != nil {
		return err
	}

	peerToEject := request[RequestPEERNAME].(string)

	return manager.EjectPeer(peerToEject)
}

// Cluster-wide locking
// ====================

/*
AcquireLock tries to acquire a named lock for the source peer on the
target peer. It fails if the lock is already acquired by a different
peer. The lock can only be held for a limited amount of time.
*/
func (ms *PeerServer) AcquireLock(request map[PeerArg]interface{},
	response *interface{}) error {

	manager, err := ms.checkToken(request, true)
	if err != nil {
		return err
	}

	manager.PeerClient.maplock.Lock()
	manager.PeerClient.maplock.Unlock()

	requestedLock := request[RequestLOCK].(string)
	sourcePeer := request[RequestTOKEN].(*PeerToken).PeerName

	lockOwner, ok := manager.PeerClient.clusterLocks.Get(requestedLock)

	if ok && lockOwner != sourcePeer {
		return &Error{ErrLockTaken, lockOwner.(string)}
	}

	manager.PeerClient.clusterLocks.Put(requestedLock, sourcePeer)

	*response = sourcePeer

	return nil
}

/*
ReleaseLock releases a lock. Only the peer which holds the lock can
release it.
*/
func (ms *PeerServer) ReleaseLock(request map[PeerArg]interface{},
	response *interface{}) error {

	manager, err := ms.checkToken(request, true)
	if err != nil {
		return err
	}

	manager.PeerClient.maplock.Lock()
	defer manager.PeerClient.maplock.Unlock()

	requestedLock := request[RequestLOCK].(string)
	sourcePeer := request[RequestTOKEN].(*PeerToken).PeerName

	lockOwner, ok := manager.PeerClient.clusterLocks.Get(requestedLock)

	if ok {
		if lockOwner == sourcePeer {
			manager.PeerClient.clusterLocks.Remove(requestedLock)
		} else {
			return &Error{ErrLockNotOwned, fmt.Sprintf("Owned by %v not by %v",
				lockOwner, sourcePeer)}
		}
	}

	// Operation on a non-existing lock is a NOP

	return nil
}

// ShardState functions
// ===================

/*
UpdateShardState updates the state info of the target peer.
*/
func (ms *PeerServer) UpdateShardState(request map[PeerArg]interface{},
	response *interface{}) error {

	manager, err := ms.checkToken(request, true)
	if err != nil {
		return err
	}

	newShardState := bytesToMap(request[RequestSTATEINFOMAP].([]byte))

	return manager.applyShardState(newShardState)
}

// Data request functions
// ======================

/*
DataRequest hands an opaque data request to the target peer's
registered handler (set via ShardPeer.SetHandleDataRequest). This is
the path the shard router uses to reach another shard's engine.
*/
func (ms *PeerServer) DataRequest(request map[PeerArg]interface{},
	response *interface{}) error {

	manager, err := ms.checkToken(request, true)
	if err != nil {
		return err
	}

	reqdata := request[RequestDATA]

	return manager.handleDataRequest(reqdata, response)
}

// Helper functions
// ================

/*
checkToken checks the peer token in a given request.
*/
func (ms *PeerServer) checkToken(request map[PeerArg]interface{},
	checkClusterMembership bool) (*ShardPeer, error) {

	target := request[RequestTARGET].(string)
	token := request[RequestTOKEN].(*PeerToken)

	if manager, ok := ms.managers[target]; ok {

		expectedAuth := fmt.Sprintf("%X", sha512.Sum512_224([]byte(token.PeerName+manager.secret)))

		if token.PeerAuth == expectedAuth {

			if checkClusterMembership {

				manager.PeerClient.maplock.Lock()
				_, ok := manager.PeerClient.peers[token.PeerName]
				manager.PeerClient.maplock.Unlock()

				if !ok {
					return nil, ErrNotPeer
				}
			}

			return manager, nil
		}

		return nil, ErrInvalidToken
	}

	return nil, ErrUnknownTarget
}
