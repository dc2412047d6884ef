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
Package config holds the JSON based runtime configuration for a graph
storage node: its db file name, its shard routing table and the bounds
on traversal query state.

NeighbourQueryTTL and NeighbourQueryMax are loaded like every other key,
but no code in this module reads them: the graph engine always uses
graph.DefaultQueryStateTTLSeconds and graph.DefaultQueryStateMaxEntries.
*/
package config

import (
	"fmt"
	"strconv"
	"strings"

	"devt.de/krotik/common/errorutil"
	"devt.de/krotik/common/fileutil"
	"devt.de/krotik/common/stringutil"
)

/*
DefaultConfigFile is the default config file name.
*/
var DefaultConfigFile = "graphon.config.json"

/*
Known configuration options.
*/
const (
	DBName            = "DBName"
	ShardEndpoints    = "ShardEndpoints"
	LocalShard        = "LocalShard"
	RPCSecret         = "RPCSecret"
	NeighbourQueryTTL = "NeighbourQueryTTL"
	NeighbourQueryMax = "NeighbourQueryMax"
	LogLevel          = "LogLevel"
)

/*
DefaultConfig is the default configuration.
*/
var DefaultConfig = map[string]interface{}{
	DBName:            "graphon",
	ShardEndpoints:    "",
	LocalShard:        "",
	RPCSecret:         "",
	NeighbourQueryTTL: "300",
	NeighbourQueryMax: "10000",
	LogLevel:          "info",
}

/*
Config is the actual configuration in use.
*/
var Config map[string]interface{}

/*
LoadConfigFile loads a given config file. If the file does not exist it
is created with the default options.
*/
func LoadConfigFile(configfile string) error {
	var err error

	Config, err = fileutil.LoadConfig(configfile, DefaultConfig)

	return err
}

/*
LoadDefaultConfig loads the default configuration.
*/
func LoadDefaultConfig() {
	data := make(map[string]interface{})
	for k, v := range DefaultConfig {
		data[k] = v
	}

	Config = data
}

/*
Str reads a config value as a string.
*/
func Str(key string) string {
	return stringutil.ConvertToString(Config[key])
}

/*
Int reads a config value as an int.
*/
func Int(key string) int64 {
	ret, err := strconv.ParseInt(fmt.Sprint(Config[key]), 10, 64)

	errorutil.AssertTrue(err == nil,
		fmt.Sprintf("Could not parse config key %v: %v", key, err))

	return ret
}

/*
Bool reads a config value as a boolean.
*/
func Bool(key string) bool {
	ret, err := strconv.ParseBool(fmt.Sprint(Config[key]))

	errorutil.AssertTrue(err == nil,
		fmt.Sprintf("Could not parse config key %v: %v", key, err))

	return ret
}

/*
StrList reads a comma-separated config value as a list of trimmed,
non-empty strings. Used for ShardEndpoints, which holds a static,
comma-separated set of "shard:host:port" entries.
*/
func StrList(key string) []string {
	raw := Str(key)
	if raw == "" {
		return nil
	}

	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}

	return out
}
