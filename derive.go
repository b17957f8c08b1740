package main

import (
	"fmt"
	"path/filepath"
)

type NodeRole string

const (
	RoleValidator NodeRole = "validator"
	RoleObserver  NodeRole = "observer"
)

// TopologyError reports invalid derivation input. It is a programmer
// or configuration error and is raised before any node is spawned.
type TopologyError struct {
	Ordinal int
	Total   int
	Reason  string
}

func (e *TopologyError) Error() string {
	return fmt.Sprintf("invalid topology (ordinal %d, total %d): %s", e.Ordinal, e.Total, e.Reason)
}

// NodeConfig is the complete launch configuration for one node. It is
// computed once, before spawn, and never mutated afterwards.
type NodeConfig struct {
	ID             string   `json:"node_id"`
	Role           NodeRole `json:"mode"`
	ListenAddr     string   `json:"listen_addr"`
	BootstrapPeers []string `json:"bootstrap_peers,omitempty"`
	DataDir        string   `json:"db_path"`
	GenesisFile    string   `json:"genesis_file"`

	P2PPort     int `json:"p2p_port"`
	RPCPort     int `json:"rpc_port"`
	MetricsPort int `json:"metrics_port"`

	MaxPeers      int  `json:"max_peers"`
	BlockTimeMS   int  `json:"block_time_ms"`
	MempoolSize   int  `json:"mempool_size"`
	EnableMetrics bool `json:"enable_metrics"`
	DevMode       bool `json:"dev_mode"`
}

// RPCEndpoint is the node's JSON-RPC base URL on loopback.
func (nc NodeConfig) RPCEndpoint() string {
	return fmt.Sprintf("http://localhost:%d", nc.RPCPort)
}

// MetricsEndpoint is the node's metrics URL on loopback.
func (nc NodeConfig) MetricsEndpoint() string {
	return fmt.Sprintf("http://localhost:%d/metrics", nc.MetricsPort)
}

// deriveNodeConfig computes the launch configuration for the node at
// the given 1-indexed ordinal in a topology of total nodes. It is pure
// and deterministic: ports are base + ordinal - 1, and the bootstrap
// peer list contains every other node's loopback P2P address in
// ascending ordinal order.
func deriveNodeConfig(conf config, ordinal, total int, role NodeRole) (NodeConfig, error) {
	if total < 1 {
		return NodeConfig{}, &TopologyError{Ordinal: ordinal, Total: total, Reason: "total nodes must be at least 1"}
	}
	if ordinal < 1 || ordinal > total {
		return NodeConfig{}, &TopologyError{Ordinal: ordinal, Total: total, Reason: "ordinal out of range"}
	}

	p2pPort := conf.basePort + ordinal - 1

	var peers []string
	for i := 1; i <= total; i++ {
		if i == ordinal {
			continue
		}
		peers = append(peers, fmt.Sprintf("/ip4/127.0.0.1/tcp/%d", conf.basePort+i-1))
	}

	id := fmt.Sprintf("%s-%d", role, ordinal)
	dataDir := filepath.ToSlash(filepath.Join(conf.dataDir, id))

	return NodeConfig{
		ID:             id,
		Role:           role,
		ListenAddr:     fmt.Sprintf("/ip4/0.0.0.0/tcp/%d", p2pPort),
		BootstrapPeers: peers,
		DataDir:        dataDir,
		GenesisFile:    dataDir + "/genesis.json",
		P2PPort:        p2pPort,
		RPCPort:        conf.baseRPCPort + ordinal - 1,
		MetricsPort:    conf.baseMetricsPort + ordinal - 1,
		MaxPeers:       conf.maxPeers,
		BlockTimeMS:    conf.blockTimeMS,
		MempoolSize:    conf.mempoolSize,
		EnableMetrics:  conf.enableMetrics,
		DevMode:        conf.devMode,
	}, nil
}
