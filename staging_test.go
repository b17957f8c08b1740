package main

import (
	"encoding/json"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deriveAll(t *testing.T, conf config, total int) []NodeConfig {
	t.Helper()
	configs := make([]NodeConfig, 0, total)
	for ordinal := 1; ordinal <= total; ordinal++ {
		nc, err := deriveNodeConfig(conf, ordinal, total, RoleValidator)
		require.NoError(t, err)
		configs = append(configs, nc)
	}
	return configs
}

func TestStageRunDirectory_CreatesTree(t *testing.T) {
	conf := testConfig()
	fs := afero.NewMemMapFs()
	configs := deriveAll(t, conf, 3)

	require.NoError(t, stageRunDirectory(fs, conf, configs))

	for _, nc := range configs {
		isDir, err := afero.IsDir(fs, nc.DataDir)
		require.NoError(t, err)
		assert.True(t, isDir)

		exists, err := afero.Exists(fs, nc.GenesisFile)
		require.NoError(t, err)
		assert.True(t, exists)
	}
}

func TestStageRunDirectory_WipesPreviousRun(t *testing.T) {
	conf := testConfig()
	fs := afero.NewMemMapFs()

	stale := conf.dataDir + "/validator-9/stale.db"
	require.NoError(t, fs.MkdirAll(conf.dataDir+"/validator-9", 0o755))
	require.NoError(t, afero.WriteFile(fs, stale, []byte("old"), 0o644))

	require.NoError(t, stageRunDirectory(fs, conf, deriveAll(t, conf, 2)))

	exists, err := afero.Exists(fs, stale)
	require.NoError(t, err)
	assert.False(t, exists, "previous run data must be removed")
}

func TestStageRunDirectory_CopiesGenesisSource(t *testing.T) {
	conf := testConfig()
	conf.genesisSource = "config/genesis.json"
	fs := afero.NewMemMapFs()

	source := []byte(`{"chain_id":"my-chain"}`)
	require.NoError(t, fs.MkdirAll("config", 0o755))
	require.NoError(t, afero.WriteFile(fs, conf.genesisSource, source, 0o644))

	configs := deriveAll(t, conf, 2)
	require.NoError(t, stageRunDirectory(fs, conf, configs))

	for _, nc := range configs {
		data, err := afero.ReadFile(fs, nc.GenesisFile)
		require.NoError(t, err)
		assert.Equal(t, source, data)
	}
}

func TestStageRunDirectory_GeneratesDevGenesis(t *testing.T) {
	conf := testConfig()
	conf.genesisSource = "config/does-not-exist.json"
	fs := afero.NewMemMapFs()

	configs := deriveAll(t, conf, 1)
	require.NoError(t, stageRunDirectory(fs, conf, configs))

	data, err := afero.ReadFile(fs, configs[0].GenesisFile)
	require.NoError(t, err)

	var genesis defaultGenesis
	require.NoError(t, json.Unmarshal(data, &genesis))
	assert.Equal(t, "local-testnet", genesis.ChainID)
	assert.True(t, genesis.DevMode)
	assert.NotEmpty(t, genesis.GenesisTime)
}
