package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/afero"
)

// defaultGenesis is written when no genesis source file exists, so a
// bare checkout can still launch a dev testnet. The node treats the
// genesis file as an opaque descriptor.
type defaultGenesis struct {
	ChainID     string `json:"chain_id"`
	GenesisTime string `json:"genesis_time"`
	DevMode     bool   `json:"dev_mode"`
}

// stageRunDirectory prepares the root run directory for a fresh run:
// any previous run's data is removed, one subdirectory per node is
// created, and each is seeded with genesis.json before its node is
// spawned.
func stageRunDirectory(fs afero.Fs, conf config, configs []NodeConfig) error {
	exists, err := afero.DirExists(fs, conf.dataDir)
	if err != nil {
		return fmt.Errorf("failed to check run directory %s: %w", conf.dataDir, err)
	}
	if exists {
		log.Printf("Removing previous run data in %s", conf.dataDir)
		if err := fs.RemoveAll(conf.dataDir); err != nil {
			return fmt.Errorf("failed to remove previous run directory %s: %w", conf.dataDir, err)
		}
	}

	if err := fs.MkdirAll(conf.dataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create run directory %s: %w", conf.dataDir, err)
	}

	genesis, err := loadGenesisSource(fs, conf.genesisSource)
	if err != nil {
		return err
	}

	for _, nc := range configs {
		if err := fs.MkdirAll(nc.DataDir, 0o755); err != nil {
			return fmt.Errorf("failed to create node directory %s: %w", nc.DataDir, err)
		}
		if err := afero.WriteFile(fs, nc.GenesisFile, genesis, 0o644); err != nil {
			return fmt.Errorf("failed to seed genesis for %s: %w", nc.ID, err)
		}
	}

	return nil
}

// loadGenesisSource reads the configured genesis file, or builds a
// minimal dev genesis when the source does not exist.
func loadGenesisSource(fs afero.Fs, path string) ([]byte, error) {
	data, err := afero.ReadFile(fs, path)
	if err == nil {
		return data, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read genesis source %s: %w", path, err)
	}

	log.Printf("Genesis source %s not found, generating dev genesis", path)
	genesis, err := json.Marshal(defaultGenesis{
		ChainID:     "local-testnet",
		GenesisTime: time.Now().UTC().Format(time.RFC3339),
		DevMode:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal dev genesis: %w", err)
	}
	return genesis, nil
}
