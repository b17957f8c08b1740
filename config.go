package main

import (
	"fmt"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

type config struct {
	// nodeBinary is the blockchain node executable launched for
	// every member of the testnet.
	nodeBinary    string
	dataDir       string
	genesisSource string

	basePort        int
	baseRPCPort     int
	baseMetricsPort int

	maxPeers      int
	blockTimeMS   int
	mempoolSize   int
	enableMetrics bool
	devMode       bool
	nodeLogLevel  string

	startDelay   time.Duration
	settleDelay  time.Duration
	stopGrace    time.Duration
	probeTimeout time.Duration

	listenAddress string
}

func defaultConfig() config {
	return config{
		nodeBinary:      "blockchain-node",
		dataDir:         "./testnet_data",
		genesisSource:   "config/genesis.json",
		basePort:        8000,
		baseRPCPort:     9000,
		baseMetricsPort: 9100,
		maxPeers:        100,
		blockTimeMS:     2000, // 2 second blocks for testing
		mempoolSize:     1000,
		enableMetrics:   true,
		devMode:         true,
		nodeLogLevel:    "info",
		startDelay:      2 * time.Second,
		settleDelay:     10 * time.Second,
		stopGrace:       10 * time.Second,
		probeTimeout:    5 * time.Second,
		listenAddress:   ":7070",
	}
}

// fileConfig is the YAML shape of the optional launcher config file.
// Fields are pointers so "not set" is distinguishable from a zero
// value when merging over defaults.
type fileConfig struct {
	NodeBinary      *string        `yaml:"node_binary"`
	DataDir         *string        `yaml:"data_dir"`
	GenesisSource   *string        `yaml:"genesis_source"`
	BasePort        *int           `yaml:"base_port"`
	BaseRPCPort     *int           `yaml:"base_rpc_port"`
	BaseMetricsPort *int           `yaml:"base_metrics_port"`
	MaxPeers        *int           `yaml:"max_peers"`
	BlockTimeMS     *int           `yaml:"block_time_ms"`
	MempoolSize     *int           `yaml:"mempool_size"`
	EnableMetrics   *bool          `yaml:"enable_metrics"`
	DevMode         *bool          `yaml:"dev_mode"`
	NodeLogLevel    *string        `yaml:"node_log_level"`
	StartDelay      *time.Duration `yaml:"start_delay"`
	SettleDelay     *time.Duration `yaml:"settle_delay"`
	StopGrace       *time.Duration `yaml:"stop_grace"`
	ProbeTimeout    *time.Duration `yaml:"probe_timeout"`
	ListenAddress   *string        `yaml:"listen"`
}

func loadConfigFile(fs afero.Fs, path string) (*fileConfig, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return &file, nil
}

func (c *config) applyFile(file *fileConfig) {
	if file.NodeBinary != nil {
		c.nodeBinary = *file.NodeBinary
	}
	if file.DataDir != nil {
		c.dataDir = *file.DataDir
	}
	if file.GenesisSource != nil {
		c.genesisSource = *file.GenesisSource
	}
	if file.BasePort != nil {
		c.basePort = *file.BasePort
	}
	if file.BaseRPCPort != nil {
		c.baseRPCPort = *file.BaseRPCPort
	}
	if file.BaseMetricsPort != nil {
		c.baseMetricsPort = *file.BaseMetricsPort
	}
	if file.MaxPeers != nil {
		c.maxPeers = *file.MaxPeers
	}
	if file.BlockTimeMS != nil {
		c.blockTimeMS = *file.BlockTimeMS
	}
	if file.MempoolSize != nil {
		c.mempoolSize = *file.MempoolSize
	}
	if file.EnableMetrics != nil {
		c.enableMetrics = *file.EnableMetrics
	}
	if file.DevMode != nil {
		c.devMode = *file.DevMode
	}
	if file.NodeLogLevel != nil {
		c.nodeLogLevel = *file.NodeLogLevel
	}
	if file.StartDelay != nil {
		c.startDelay = *file.StartDelay
	}
	if file.SettleDelay != nil {
		c.settleDelay = *file.SettleDelay
	}
	if file.StopGrace != nil {
		c.stopGrace = *file.StopGrace
	}
	if file.ProbeTimeout != nil {
		c.probeTimeout = *file.ProbeTimeout
	}
	if file.ListenAddress != nil {
		c.listenAddress = *file.ListenAddress
	}
}
