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
Graphon runs a single shard of the graph storage engine and, if other
shards are configured, joins them into a cluster fronted by a shard
router.

Usage:

	graphon [-config <file>]

A missing config file is created with the default configuration on
first run (see the config package for recognized keys).
*/
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/krotik/graphon/cluster"
	"github.com/krotik/graphon/cluster/manager"
	"github.com/krotik/graphon/config"
	"github.com/krotik/graphon/graph"
	"github.com/krotik/graphon/graph/graphstorage"
)

var fatal = log.Fatal
var print = log.Print

func main() {
	configFile := flag.String("config", config.DefaultConfigFile, "configuration file")
	flag.Parse()

	if err := loadConfig(*configFile); err != nil {
		fatal(err)
		return
	}

	print("Opening storage engine: ", config.Str(config.DBName))

	engine, err := graphstorage.NewEngine(config.Str(config.DBName))
	if err != nil {
		fatal(err)
		return
	}
	defer engine.Close()

	gm := graph.NewManager(engine)

	localShard := config.Str(config.LocalShard)
	peers, localAddr, err := parseShardEndpoints(config.StrList(config.ShardEndpoints), localShard)
	if err != nil {
		fatal(err)
		return
	}

	mm := manager.NewShardPeer(localAddr, localShard, config.Str(config.RPCSecret), manager.NewMemShardState())

	if err := mm.Start(); err != nil {
		fatal(err)
		return
	}
	defer mm.Shutdown()

	router, err := cluster.NewRouter(localShard, gm, mm, peers, cluster.RoundRobin)
	if err != nil {
		fatal(err)
		return
	}
	_ = router

	print(fmt.Sprintf("Shard %q ready (%d peer shard(s))", localShard, len(peers)-1))

	waitForShutdown()

	print("Shutting down")
}

/*
loadConfig loads configFile, creating it with defaults if it does not
exist yet.
*/
func loadConfig(configFile string) error {
	return config.LoadConfigFile(configFile)
}

/*
parseShardEndpoints turns the "name:host:port" entries of ShardEndpoints
into a peer map keyed by shard name, plus the rpc address of localShard
within that set.
*/
func parseShardEndpoints(entries []string, localShard string) (map[string]string, string, error) {
	peers := make(map[string]string, len(entries))

	for _, e := range entries {
		parts := strings.SplitN(e, ":", 2)
		if len(parts) != 2 {
			return nil, "", fmt.Errorf("malformed shard endpoint %q, want name:host:port", e)
		}
		peers[parts[0]] = parts[1]
	}

	localAddr, ok := peers[localShard]
	if !ok {
		return nil, "", fmt.Errorf("local shard %q not present in ShardEndpoints", localShard)
	}

	return peers, localAddr, nil
}

func waitForShutdown() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
}
