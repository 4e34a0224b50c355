package main

import (
	"strings"
)

var opts struct {
	Node struct {
		Name     string `long:"name" env:"NAME" required:"true" description:"client name (maid), used as the sender of every request"`
		PmidHint string `long:"pmid-hint" env:"PMID_HINT" description:"storage provider to put data on"`
	} `group:"node" namespace:"node" env-namespace:"NODE"`

	Cluster struct {
		BindAddr      string `long:"bind-addr" description:"address to bind memberlist to" env:"BIND_ADDR" default:"0.0.0.0"`
		BindPort      int    `long:"bind-port" description:"port to bind memberlist to" env:"BIND_PORT" default:"7946"`
		AdvertiseAddr string `long:"advertise-addr" description:"address to advertise to other nodes" env:"ADVERTISE_ADDR"`
		JoinAddrs     string `long:"join-addrs" description:"comma-separated list of nodes to join" env:"JOIN_ADDRS" required:"true"`
		JoinTimeout   int    `long:"join-timeout" description:"give up joining after (ms)" env:"JOIN_TIMEOUT" default:"30000"`
		Unreliable    bool   `long:"unreliable" description:"send messages over udp" env:"UNRELIABLE"`
	} `group:"cluster" namespace:"cluster" env-namespace:"CLUSTER"`

	Network struct {
		GroupSize int  `long:"group-size" description:"number of nodes responsible for a name" env:"GROUP_SIZE" default:"4"`
		Timeout   int  `long:"timeout" description:"operation timeout (ms)" env:"TIMEOUT" default:"10000"`
		Strict    bool `long:"strict" description:"crash on duplicate correlation ids" env:"STRICT"`
	} `group:"network" namespace:"network" env-namespace:"NETWORK"`

	Metrics struct {
		BindAddr string `long:"bind-addr" description:"address to serve prometheus metrics on, disabled if empty" env:"BIND_ADDR"`
	} `group:"metrics" namespace:"metrics" env-namespace:"METRICS"`

	Verbose bool `long:"verbose" description:"verbose mode" env:"VERBOSE"`
}

func parseAddrs(addrs string) []string {
	sl := strings.Split(addrs, ",")
	res := make([]string, 0, len(sl))

	for _, addr := range sl {
		trimmed := strings.TrimSpace(addr)
		if trimmed != "" {
			res = append(res, trimmed)
		}
	}

	return res
}
