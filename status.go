package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"testnetd/jsonrpc"
)

const (
	methodSendTransaction = "blockchain_sendTransaction"
	methodGetNodeStatus   = "blockchain_getNodeStatus"
)

// NodeRPCStatus is the application-level health a node reports over
// RPC. Only the fields the launcher displays are decoded.
type NodeRPCStatus struct {
	NodeID         string `json:"node_id"`
	IsValidator    bool   `json:"is_validator"`
	CurrentHeight  uint64 `json:"current_height"`
	ConnectedPeers int    `json:"connected_peers"`
	MempoolSize    int    `json:"mempool_size"`
	IsSyncing      bool   `json:"is_syncing"`
}

// NodeReport is one node's entry in a cluster status report. Error is
// set when the RPC probe failed; the liveness fields are filled in
// regardless.
type NodeReport struct {
	ID          string         `json:"id"`
	Role        NodeRole       `json:"role"`
	RPCEndpoint string         `json:"rpc_endpoint"`
	StartedAt   string         `json:"started_at,omitempty"`
	Liveness    Liveness       `json:"liveness"`
	Status      *NodeRPCStatus `json:"status,omitempty"`
	Error       *string        `json:"error,omitempty"`
}

// ClusterReport aggregates the per-node reports for one status pass.
type ClusterReport struct {
	RunID       uuid.UUID       `json:"run_id"`
	State       ControllerState `json:"state"`
	GeneratedAt string          `json:"generated_at"`
	Nodes       []NodeReport    `json:"nodes"`
}

// txParams is the sample transaction payload shape.
type txParams struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
	Fee    uint64 `json:"fee"`
}

// sampleTransaction builds the i-th (0-based) test transaction.
func sampleTransaction(i int) txParams {
	return txParams{
		From:   "0x" + strings.Repeat("1", 40),
		To:     "0x" + strings.Repeat("2", 40),
		Amount: uint64(1000 + i*100),
		Fee:    10,
	}
}

func sendTransaction(ctx context.Context, client *jsonrpc.Client, endpoint string, params txParams, id int) error {
	_, err := client.Call(ctx, endpoint, methodSendTransaction, params, id)
	return err
}

func fetchNodeStatus(ctx context.Context, client *jsonrpc.Client, endpoint string) (*NodeRPCStatus, error) {
	result, err := client.Call(ctx, endpoint, methodGetNodeStatus, struct{}{}, 1)
	if err != nil {
		return nil, err
	}

	var status NodeRPCStatus
	if err := json.Unmarshal(result, &status); err != nil {
		return nil, fmt.Errorf("failed to decode node status: %w", err)
	}
	return &status, nil
}

// printNodeInfo prints the connection banner for a freshly started
// testnet.
func printNodeInfo(configs []NodeConfig) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("BLOCKCHAIN TESTNET INFORMATION")
	fmt.Println(strings.Repeat("=", 60))

	for _, nc := range configs {
		fmt.Printf("\nNode: %s\n", nc.ID)
		fmt.Printf("  Mode: %s\n", nc.Role)
		fmt.Printf("  P2P Port: %d\n", nc.P2PPort)
		fmt.Printf("  RPC Port: %d\n", nc.RPCPort)
		fmt.Printf("  Metrics Port: %d\n", nc.MetricsPort)
		fmt.Printf("  Data Directory: %s\n", nc.DataDir)
		fmt.Printf("  RPC Endpoint: %s\n", nc.RPCEndpoint())
		fmt.Printf("  Metrics Endpoint: %s\n", nc.MetricsEndpoint())
	}

	fmt.Printf("\nTestnet Status: %d nodes running\n", len(configs))
	fmt.Println(strings.Repeat("=", 60))
}

// printReport renders one status pass, one line per node. Probe
// failures show up inline next to the nodes that did answer.
func printReport(report ClusterReport) {
	log.Printf("Checking node status...")
	for _, nr := range report.Nodes {
		switch {
		case nr.Status != nil:
			log.Printf("%s: Height=%d, Peers=%d, Mempool=%d",
				nr.ID, nr.Status.CurrentHeight, nr.Status.ConnectedPeers, nr.Status.MempoolSize)
		case nr.Error != nil:
			log.Printf("%s: %s", nr.ID, *nr.Error)
		default:
			log.Printf("%s: no status available", nr.ID)
		}
	}
}
