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
	"math/rand"
	"net"
	"net/rpc"
	"sort"
	"strconv"
	"sync"
	"time"

	"devt.de/krotik/common/datautil"
)

/*
ShardPeer is the management object for a cluster peer.

This is the main object of the clustering code it contains the main API.
A peer registers itself to the rpc server which is the global
PeerServer (server) object. Each cluster peer needs to have a unique name.
Communication between peers is secured by using a secret string which
is never exchanged over the network and a hash generated token which
identifies a peer.

Each ShardPeer object contains a PeerClient object which can be used to
communicate with other cluster peers. This object should be used by pure
clients - code which should communicate with the cluster without running an
actual peer.

*/
type ShardPeer struct {
	name   string // Name of the cluster peer
	secret string // Cluster secret

	shardState       ShardState             // ShardState object which can persist runtime configuration
	peerInfo         map[string]interface{} // Static info about this peer
	housekeeping     bool                   // Housekeeping thread running
	housekeepingLock *sync.Mutex            // Lock for housekeeping (prevent housekeeping from running)
	StopHousekeeping bool                   // Flag to temporarily stop housekeeping

	handleDataRequest func(interface{}, *interface{}) error // Handler for cluster data requests

	notifyStateUpdate  func() // Handler which is called when the state info is updated
	notifyHouseKeeping func() // Handler which is called each time the housekeeping thread has finished

	PeerClient *PeerClient    // RPC client object
	listener   net.Listener   // RPC server listener
	wg         sync.WaitGroup // RPC server Waitgroup for listener shutdown
}

/*
NewShardPeer create a new ShardPeer object.
*/
func NewShardPeer(rpcInterface string, name string, secret string, shardState ShardState) *ShardPeer {

	// Generate peer token

	token := &PeerToken{name, fmt.Sprintf("%X", sha512.Sum512_224([]byte(name+secret)))}

	// By default a client can hold a lock for up to 30 seconds before it is cleared.

	mm := &ShardPeer{name, secret, shardState, make(map[string]interface{}),
		false, &sync.Mutex{}, false, func(interface{}, *interface{}) error { return nil }, func() {}, func() {},
		&PeerClient{token, rpcInterface, make(map[string]string), make(map[string]*rpc.Client),
			make(map[string]string), &sync.RWMutex{}, datautil.NewMapCache(0, 30)},
		nil, sync.WaitGroup{}}

	// Check if given state info should be initialized or applied

	if _, ok := shardState.Get(ShardStateTS); !ok {
		mm.updateShardState(true)
	} else {
		mm.applyShardState(shardState.Map())
	}

	return mm
}

// General cluster peer API
// ==========================

/*
Start starts the manager process for this cluster peer.
*/
func (mm *ShardPeer) Start() error {

	mm.LogInfo("Starting peer manager ", mm.name, " rpc server on: ", mm.PeerClient.rpc)

	l, err := net.Listen("tcp", mm.PeerClient.rpc)
	if err != nil {
		return err
	}

	go func() {
		rpc.Accept(l)
		mm.wg.Done()
		mm.LogInfo("Connection closed: ", mm.PeerClient.rpc)
	}()

	mm.listener = l

	server.managers[mm.name] = mm

	if runHousekeeping {

		s1 := rand.NewSource(time.Now().UnixNano())
		r1 := rand.New(s1)

		// Start housekeeping thread which will check for configuration changes

		mm.housekeeping = true
		go func() {
			for mm.housekeeping {
				mm.HousekeepingWorker()
				time.Sleep(time.Duration(FreqHousekeeping*(1+r1.Float64())) * time.Millisecond)
			}
			mm.wg.Done()
		}()
	}

	return nil
}

/*
Shutdown shuts the peer manager rpc server for this cluster peer down.
*/
func (mm *ShardPeer) Shutdown() error {

	// Stop housekeeping

	if mm.housekeeping {
		mm.wg.Add(1)
		mm.housekeeping = false
		mm.wg.Wait()
		mm.LogInfo("Housekeeping stopped")
	}

	// Close socket

	if mm.listener != nil {
		mm.LogInfo("Shutdown rpc server on: ", mm.PeerClient.rpc)
		mm.wg.Add(1)
		mm.listener.Close()
		mm.listener = nil
		mm.wg.Wait()
	} else {
		LogDebug("Peer manager ", mm.name, " already shut down")
	}

	return nil
}

/*
LogInfo logs a peer related message at info level.
*/
func (mm *ShardPeer) LogInfo(v ...interface{}) {
	LogInfo(mm.name, ": ", fmt.Sprint(v...))
}

/*
Name returns the peer name.
*/
func (mm *ShardPeer) Name() string {
	return mm.name
}

/*
NetAddr returns the network address of the peer.
*/
func (mm *ShardPeer) NetAddr() string {
	return mm.PeerClient.rpc
}

/*
Peers returns a list of all cluster peers.
*/
func (mm *ShardPeer) Peers() []string {
	var ret []string

	siPeers, _ := mm.shardState.Get(ShardStatePEERS)
	peers := siPeers.([]string)

	for i := 0; i < len(peers); i += 2 {
		ret = append(ret, peers[i])
	}

	sort.Strings(ret)

	return ret
}

/*
ShardState returns the current state info.
*/
func (mm *ShardPeer) ShardState() ShardState {
	return mm.shardState
}

/*
PeerInfo returns the current static peer info. Clients may modify the
returned map. Peer info can be used to store additional information
on every peer (e.g. a peer specific URL).
*/
func (mm *ShardPeer) PeerInfo() map[string]interface{} {
	return mm.peerInfo
}

/*
SetEventHandler sets event handler funtions which are called when the state info
is updated or when housekeeping has been done.
*/
func (mm *ShardPeer) SetEventHandler(notifyStateUpdate func(), notifyHouseKeeping func()) {
	mm.notifyStateUpdate = notifyStateUpdate
	mm.notifyHouseKeeping = notifyHouseKeeping
}

/*
SetHandleDataRequest sets the data request handler.
*/
func (mm *ShardPeer) SetHandleDataRequest(handleDataRequest func(interface{}, *interface{}) error) {
	mm.handleDataRequest = handleDataRequest
}

/*
PeerInfoCluster returns the current static peer info for every known
cluster peer. This calls every peer in the cluster.
*/
func (mm *ShardPeer) PeerInfoCluster() map[string]map[string]interface{} {

	clusterPeerInfo := make(map[string]map[string]interface{})

	clusterPeerInfo[mm.name] = mm.PeerInfo()

	for p := range mm.PeerClient.peers {

		mi, err := mm.PeerClient.SendPeerInfoRequest(p)

		if err != nil {
			clusterPeerInfo[p] = map[string]interface{}{PeerInfoError: err.Error()}
		} else {
			clusterPeerInfo[p] = mi
		}
	}

	return clusterPeerInfo
}

// Cluster membership functions
// ============================

/*
JoinCluster lets this peer try to join an existing cluster. The secret must
be correct otherwise the peer will be rejected.
*/
func (mm *ShardPeer) JoinCluster(newPeerName string, newPeerRPC string) error {

	// Housekeeping should not be running while joining a cluster

	mm.housekeepingLock.Lock()
	defer mm.housekeepingLock.Unlock()

	res, err := mm.PeerClient.SendJoinCluster(newPeerName, newPeerRPC)

	if err == nil {

		// Update the state info of this peer if the join was successful

		mm.applyShardState(res)
	}

	return err
}

/*
JoinNewPeer joins a new peer to the current cluster. It is assumed that
the new peers token has already been verified.
*/
func (mm *ShardPeer) JoinNewPeer(newPeerName string, newPeerRPC string) error {

	// Acquire cluster lock for updating the state info

	if err := mm.PeerClient.SendAcquireClusterLock(ClusterLockUpdateShardState); err != nil {
		return err
	}

	// Get operational peers (operational cluster is NOT required - other peers should
	// update eventually)

	peers, _ := mm.PeerClient.OperationalPeers()

	mm.LogInfo("Adding peer ", newPeerName, " with rpc ", newPeerRPC, " to the cluster")

	// Add peer to local state info

	if err := mm.addPeer(newPeerName, newPeerRPC, nil); err != nil {

		// Try to release the cluster lock if something went wrong at this point

		mm.PeerClient.SendReleaseClusterLock(ClusterLockUpdateShardState)

		return err
	}

	// Add peer to all other cluster peers (ignore failures - failed peers
	// should be updated eventually by the HousekeepingWorker)

	for _, p := range peers {
		mm.PeerClient.SendRequest(p, RPCAddPeer, map[PeerArg]interface{}{
			RequestPEERNAME:     newPeerName,
			RequestPEERRPC:      newPeerRPC,
			RequestSTATEINFOMAP: mapToBytes(mm.shardState.Map()),
		})
	}

	// Release cluster lock for updating the state info

	return mm.PeerClient.SendReleaseClusterLock(ClusterLockUpdateShardState)
}

/*
EjectPeer ejects a peer from the current cluster. Trying to remove a non-existent
peer has no effect.
*/
func (mm *ShardPeer) EjectPeer(peerToEject string) error {
	var err error

	// Get operational peers (operational cluster is NOT required - other peers should
	// update eventually)

	peers, _ := mm.PeerClient.OperationalPeers()

	// Check if the given peer name is valid - it must be a peer or this peer

	if peerToEjectRPC, ok := mm.PeerClient.peers[peerToEject]; ok {

		// Acquire cluster lock for updating the state info

		if err := mm.PeerClient.SendAcquireClusterLock(ClusterLockUpdateShardState); err != nil {
			return err
		}

		mm.LogInfo("Ejecting peer ", peerToEject, " from the cluster")

		mm.PeerClient.maplock.Lock()
		delete(mm.PeerClient.peers, peerToEject)
		delete(mm.PeerClient.conns, peerToEject)
		delete(mm.PeerClient.failed, peerToEject)
		mm.PeerClient.maplock.Unlock()

		if err := mm.updateShardState(true); err != nil {

			// Put the peer to eject back into the peers map

			mm.PeerClient.peers[peerToEject] = peerToEjectRPC

			// Try to release the cluster lock if something went wrong at this point

			mm.PeerClient.SendReleaseClusterLock(ClusterLockUpdateShardState)

			return err
		}

		// Send the state info to all other cluster peers (ignore failures - failed peers
		// should be updated eventually by the HousekeepingWorker)

		for _, k := range peers {
			mm.PeerClient.SendRequest(k, RPCUpdateShardState, map[PeerArg]interface{}{
				RequestSTATEINFOMAP: mapToBytes(mm.shardState.Map()),
			})
		}

		// Release cluster lock for updating the state info

		err = mm.PeerClient.SendReleaseClusterLock(ClusterLockUpdateShardState)

	} else if mm.name == peerToEject {

		// If we should eject ourselves then forward the request

		mm.LogInfo("Ejecting this peer from the cluster")

		if len(peers) > 0 {
			if err := mm.PeerClient.SendEjectPeer(peers[0], mm.name); err != nil {
				return err
			}
		}

		// Clear peer maps and update the cluster state

		mm.PeerClient.maplock.Lock()
		mm.PeerClient.peers = make(map[string]string)
		mm.PeerClient.conns = make(map[string]*rpc.Client)
		mm.PeerClient.failed = make(map[string]string)
		mm.PeerClient.maplock.Unlock()

		err = mm.updateShardState(true)
	}

	return err
}

// ShardState functions
// ===================

/*
UpdateClusterShardState updates the peers state info and sends it to all peers in
the cluster.
*/
func (mm *ShardPeer) UpdateClusterShardState() error {

	// Get operational peers - fail if the cluster is not operational

	peers, err := mm.PeerClient.OperationalPeers()
	if err != nil {
		return err
	}

	// Acquire cluster lock for updating the state info

	if err := mm.PeerClient.SendAcquireClusterLock(ClusterLockUpdateShardState); err != nil {
		return err
	}

	mm.LogInfo("Updating cluster state info")

	if err := mm.updateShardState(true); err != nil {

		// Try to release the cluster lock if something went wrong at this point

		mm.PeerClient.SendReleaseClusterLock(ClusterLockUpdateShardState)

		return err
	}

	// Send the state info to all other cluster peers (ignore failures - failed peers
	// should be updated eventually by the HousekeepingWorker)

	for _, k := range peers {
		mm.PeerClient.SendRequest(k, RPCUpdateShardState, map[PeerArg]interface{}{
			RequestSTATEINFOMAP: mapToBytes(mm.shardState.Map()),
		})
	}

	// Release cluster lock for updating the state info

	return mm.PeerClient.SendReleaseClusterLock(ClusterLockUpdateShardState)
}

// Helper functions
// ================

/*
addPeer adds a new peer to the local state info.
*/
func (mm *ShardPeer) addPeer(newPeerName string, newPeerRPC string,
	newShardState map[string]interface{}) error {

	// Check if peer exists already

	if _, ok := mm.PeerClient.peers[newPeerName]; ok {
		return &Error{ErrClusterConfig,
			fmt.Sprintf("Cannot add peer %v as a peer with the same name exists already",
				newPeerName)}
	}

	// Add new peer to peer map - peer.PeerClient.conns will be updated on the
	// first connection

	mm.PeerClient.maplock.Lock()
	mm.PeerClient.peers[newPeerName] = newPeerRPC
	mm.PeerClient.maplock.Unlock()

	// Store the new state or just update the state

	if newShardState != nil {
		return mm.applyShardState(newShardState)
	}

	return mm.updateShardState(true)
}

/*
updateShardState updates the ShardState from the current runtime state.
Only updates the timestamp if newTS is true.
*/
func (mm *ShardPeer) updateShardState(newTS bool) error {

	sortMapKeys := func(m map[string]string) []string {
		var ks []string
		for k := range m {
			ks = append(ks, k)
		}
		sort.Strings(ks)
		return ks
	}

	// Populate peers entry

	peers := make([]string, 0, len(mm.PeerClient.peers)*2)

	// Add this peer to the state info

	peers = append(peers, mm.name)
	peers = append(peers, mm.PeerClient.rpc)

	// Add other known peers to the state info

	mm.PeerClient.maplock.Lock()

	for _, name := range sortMapKeys(mm.PeerClient.peers) {
		rpc := mm.PeerClient.peers[name]
		peers = append(peers, name)
		peers = append(peers, rpc)
	}

	mm.shardState.Put(ShardStatePEERS, peers)

	failed := make([]string, 0, len(mm.PeerClient.failed)*2)

	// Add all known failed peers to the state info

	for _, name := range sortMapKeys(mm.PeerClient.failed) {
		errstr := mm.PeerClient.failed[name]
		failed = append(failed, name)
		failed = append(failed, errstr)
	}

	mm.PeerClient.maplock.Unlock()

	mm.shardState.Put(ShardStateFAILED, failed)

	// Check for replication factor entry - don't touch if it is set

	if _, ok := mm.shardState.Get(ShardStateREPFAC); !ok {
		mm.shardState.Put(ShardStateREPFAC, 1)
	}

	if newTS {

		// Populate old timestamp and timestamp

		newOldTS, ok := mm.shardState.Get(ShardStateTS)
		if !ok {
			newOldTS = []string{"", "0"}
		}
		mm.shardState.Put(ShardStateTSOLD, newOldTS)

		v, _ := strconv.ParseInt(newOldTS.([]string)[1], 10, 64)
		mm.shardState.Put(ShardStateTS, []string{mm.name, fmt.Sprint(v + 1)})
	}

	err := mm.shardState.Flush()

	if err == nil {

		// Notify others of the state update

		mm.notifyStateUpdate()
	}

	return err
}

/*
applyShardState sets the runtime state from the given ShardState map.
*/
func (mm *ShardPeer) applyShardState(stateInfoMap map[string]interface{}) error {

	// Set peers entry

	mm.applyShardStatePeers(stateInfoMap, true)

	// Set failed entry

	mm.PeerClient.maplock.Lock()

	mm.PeerClient.failed = make(map[string]string)

	siFailed, _ := stateInfoMap[ShardStateFAILED]
	failed := siFailed.([]string)

	for i := 0; i < len(failed); i += 2 {
		mm.PeerClient.failed[failed[i]] = failed[i+1]
	}

	mm.PeerClient.maplock.Unlock()

	// Set give replication factor entry

	mm.shardState.Put(ShardStateREPFAC, stateInfoMap[ShardStateREPFAC])

	// Set given timestamp

	mm.shardState.Put(ShardStateTS, stateInfoMap[ShardStateTS])
	mm.shardState.Put(ShardStateTSOLD, stateInfoMap[ShardStateTSOLD])

	// Set state info

	return mm.updateShardState(false)
}

/*
applyShardStatePeers sets the peer related runtime state from the given ShardState map.
*/
func (mm *ShardPeer) applyShardStatePeers(stateInfoMap map[string]interface{}, replaceExisting bool) {

	// Set peers entry

	if replaceExisting {
		mm.PeerClient.maplock.Lock()
		mm.PeerClient.peers = make(map[string]string)
		mm.PeerClient.maplock.Unlock()
	}

	siPeers, _ := stateInfoMap[ShardStatePEERS]
	peers := siPeers.([]string)

	for i := 0; i < len(peers); i += 2 {

		// Do not add this peer as peer

		if peers[i] != mm.name {
			mm.PeerClient.maplock.Lock()
			mm.PeerClient.peers[peers[i]] = peers[i+1]
			mm.PeerClient.maplock.Unlock()
		}
	}
}
