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
	"fmt"
	"strconv"
	"strings"
)

/*
runHousekeeping flag to switch off automatic start of housekeeping
*/
var runHousekeeping = true

/*
FreqHousekeeping is the frequency of running housekeeping tasks (ms)
*/
var FreqHousekeeping float64 = 1000

/*
logHousekeeping flag to write a log message every time the housekeeping task is running
*/
var logHousekeeping = false

/*
HousekeepingWorker is the background thread which handles various tasks to provide
"eventual" consistency for the cluster.
*/
func (mm *ShardPeer) HousekeepingWorker() {

	mm.housekeepingLock.Lock()
	defer mm.housekeepingLock.Unlock()

	if mm.StopHousekeeping {
		return
	} else if logHousekeeping {
		LogDebug(mm.name, "(HK): Running housekeeping task")
	}

	// Special function which ensures that the given peer is removed from the
	// failed list.

	removeFromFailedState := func(peer string) {

		mm.PeerClient.maplock.Lock()
		defer mm.PeerClient.maplock.Unlock()

		if _, ok := mm.PeerClient.failed[peer]; ok {

			// Remove a peer from the failed state list and send an update

			LogDebug(mm.name, "(HK): ",
				fmt.Sprintf("Removing %v from list of failed peers", peer))

			delete(mm.PeerClient.failed, peer)
		}
	}

	// Housekeeping will try to talk to all peers

	resolveConflict := false // Flag to resolve a state conflict at the end of a cycle.

	for peer := range mm.PeerClient.peers {

		LogDebug(mm.name, "(HK): ",
			fmt.Sprintf("Housekeeping talking to: %v", peer))

		// Send a ping to the peer

		res, err := mm.PeerClient.SendPing(peer, "")

		if err != nil {
			LogDebug(mm.name, "(HK): ",
				fmt.Sprintf("Error pinging %v - %v", peer, err))
			continue

		} else if len(res) == 1 {
			LogDebug(mm.name, "(HK): ",
				fmt.Sprintf("Peer %v says this instance is not part of the cluster", peer))

			mm.PeerClient.maplock.Lock()
			mm.PeerClient.failed[peer] = ErrNotPeer.Error()
			mm.PeerClient.maplock.Unlock()

			continue
		}

		// Check timestamp on the result and see where this peer is:

		peerTsPeer := res[1]
		peerTsTS, _ := strconv.ParseInt(res[2], 10, 64)
		peerTsOldPeer := res[3]
		peerTsOldTS, _ := strconv.ParseInt(res[4], 10, 64)

		simmTS, _ := mm.shardState.Get(ShardStateTS)
		mmTS := simmTS.([]string)
		simmOldTS, _ := mm.shardState.Get(ShardStateTSOLD)
		mmOldTS := simmOldTS.([]string)

		mmTsPeer := mmTS[0]
		mmTsTS, _ := strconv.ParseInt(mmTS[1], 10, 64)
		mmTsOldPeer := mmOldTS[0]
		mmTsOldTS, _ := strconv.ParseInt(mmOldTS[1], 10, 64)

		LogDebug(mm.name, "(HK): ",
			fmt.Sprintf("TS Me  : Curr:%v:%v - Old:%v:%v", mmTsPeer, mmTsTS, mmTsOldPeer, mmTsOldTS))
		LogDebug(mm.name, "(HK): ",
			fmt.Sprintf("TS Peer: Curr:%v:%v - Old:%v:%v", peerTsPeer, peerTsTS, peerTsOldPeer, peerTsOldTS))

		if peerTsTS > mmTsTS || peerTsPeer != mmTsPeer {

			// Peer has a newer version

			if peerTsPeer == mmTsPeer && peerTsOldPeer == mmTsPeer && peerTsOldTS == mmTsTS {

				// Peer has the next state info version - update the local state info

				sf, err := mm.PeerClient.SendShardStateRequest(peer)

				if err == nil {
					LogDebug(mm.name, ": Updating state info of peer")
					mm.applyShardState(sf)
				}

			} else {

				// Peer has a different version - potential conflict send a
				// state update at the end of the cycle

				if sf, err := mm.PeerClient.SendShardStateRequest(peer); err == nil {

					LogDebug(mm.name, ": Merging peers in state infos")

					// Add any newly known cluster peers

					mm.applyShardStatePeers(sf, false)

					resolveConflict = true
				}
			}

			// Remove the peer from the failed state list if it is on there

			removeFromFailedState(peer)

		} else if peerTsTS == mmTsTS && peerTsPeer == mmTsPeer {

			// Peer is up-to-date - check if it is in a failed state list

			removeFromFailedState(peer)
		}

		// We do nothing with peers using an outdated cluster state
		// they should update eventually through their own housekeeping
	}

	// Check if there is a new failed peers list

	sfFailed, _ := mm.shardState.Get(ShardStateFAILED)

	if len(sfFailed.([]string))/2 != len(mm.PeerClient.failed) || resolveConflict {

		LogDebug(mm.name, "(HK): ",
			fmt.Sprintf("Updating other peers with current failed peers list: %v",
				strings.Join(mm.PeerClient.FailedPeerErrors(), ", ")))

		if err := mm.UpdateClusterShardState(); err != nil {

			// Just update local state info if we could not update the peers

			LogDebug(mm.name, "(HK): ",
				fmt.Sprintf("Could not update cluster state: %v", err.Error()))

			mm.updateShardState(true)
		}
	}

	// Notify others that housekeeping has finished

	mm.notifyHouseKeeping()
}
