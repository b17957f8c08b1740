package main

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleTransaction_Payloads(t *testing.T) {
	for i := 0; i < 3; i++ {
		tx := sampleTransaction(i)

		assert.Equal(t, "0x"+strings.Repeat("1", 40), tx.From)
		assert.Equal(t, "0x"+strings.Repeat("2", 40), tx.To)
		assert.Equal(t, uint64(1000+i*100), tx.Amount)
		assert.Equal(t, uint64(10), tx.Fee)
	}
}

func TestSampleTransaction_JSONShape(t *testing.T) {
	data, err := json.Marshal(sampleTransaction(1))
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"from": "0x1111111111111111111111111111111111111111",
		"to": "0x2222222222222222222222222222222222222222",
		"amount": 1100,
		"fee": 10
	}`, string(data))
}

func TestNodeRPCStatus_DecodesNodeResponse(t *testing.T) {
	raw := []byte(`{
		"node_id": "validator-2",
		"is_validator": true,
		"current_height": 128,
		"current_view": 3,
		"current_round": 1,
		"connected_peers": 4,
		"mempool_size": 12,
		"is_syncing": false
	}`)

	var status NodeRPCStatus
	require.NoError(t, json.Unmarshal(raw, &status))

	assert.Equal(t, "validator-2", status.NodeID)
	assert.Equal(t, uint64(128), status.CurrentHeight)
	assert.Equal(t, 4, status.ConnectedPeers)
	assert.Equal(t, 12, status.MempoolSize)
	assert.False(t, status.IsSyncing)
}
