package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"testnetd/jsonrpc"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		log.Fatalf("Failed to start testnet: %v", err)
	}
}

func rootCommand() *cobra.Command {
	conf := defaultConfig()

	var (
		numNodes   int
		testTx     bool
		statusOnly bool
		configPath string
	)

	cmd := &cobra.Command{
		Use:           "testnetd",
		Short:         "Launch and supervise a local multi-node blockchain testnet",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := afero.NewOsFs()

			if configPath != "" {
				file, err := loadConfigFile(fs, configPath)
				if err != nil {
					return err
				}
				conf.applyFile(file)
			}
			applyFlagOverrides(cmd, &conf)

			if statusOnly {
				return runStatusCheck(cmd.Context(), conf, numNodes)
			}

			return runTestnet(conf, fs, numNodes, testTx)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&numNodes, "nodes", 5, "Number of nodes to run")
	flags.BoolVar(&testTx, "test-tx", false, "Send test transactions after startup")
	flags.BoolVar(&statusOnly, "status", false, "Check node status and exit")
	flags.StringVar(&configPath, "config", "", "Path to a YAML launcher config file")
	flags.String("binary", conf.nodeBinary, "Path to the blockchain node binary")
	flags.String("data-dir", conf.dataDir, "Root run directory for node data")
	flags.String("genesis", conf.genesisSource, "Path to the genesis file to seed nodes with")
	flags.String("listen", conf.listenAddress, "Controller status server listen address")
	flags.Duration("stop-grace", conf.stopGrace, "Grace period before force killing a node")

	return cmd
}

// applyFlagOverrides layers explicitly set flags over the config file
// values.
func applyFlagOverrides(cmd *cobra.Command, conf *config) {
	flags := cmd.Flags()
	if flags.Changed("binary") {
		conf.nodeBinary, _ = flags.GetString("binary")
	}
	if flags.Changed("data-dir") {
		conf.dataDir, _ = flags.GetString("data-dir")
	}
	if flags.Changed("genesis") {
		conf.genesisSource, _ = flags.GetString("genesis")
	}
	if flags.Changed("listen") {
		conf.listenAddress, _ = flags.GetString("listen")
	}
	if flags.Changed("stop-grace") {
		conf.stopGrace, _ = flags.GetDuration("stop-grace")
	}
}

// runStatusCheck probes the derived RPC endpoints of an already
// running testnet without starting anything. Per-node probe failures
// are printed inline and do not affect the exit code.
func runStatusCheck(ctx context.Context, conf config, numNodes int) error {
	if ctx == nil {
		ctx = context.Background()
	}

	client := jsonrpc.NewClient(conf.probeTimeout)

	log.Printf("Checking node status...")
	for ordinal := 1; ordinal <= numNodes; ordinal++ {
		nc, err := deriveNodeConfig(conf, ordinal, numNodes, RoleValidator)
		if err != nil {
			return err
		}

		status, err := fetchNodeStatus(ctx, client, nc.RPCEndpoint())
		if err != nil {
			log.Printf("%s: %v", nc.ID, err)
			continue
		}
		log.Printf("%s: Height=%d, Peers=%d, Mempool=%d",
			nc.ID, status.CurrentHeight, status.ConnectedPeers, status.MempoolSize)
	}

	return nil
}

func runTestnet(conf config, fs afero.Fs, numNodes int, testTx bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrl := NewController(conf, fs, nil)

	bridge := newSignalBridge(cancel)
	bridge.Start()
	defer bridge.Close()

	if err := ctrl.Start(ctx, numNodes); err != nil {
		return err
	}

	printNodeInfo(ctrl.NodeConfigs())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runStatusServer(gctx, conf, ctrl)
	})

	g.Go(func() error {
		// Give the nodes time to find each other before poking
		// them.
		select {
		case <-gctx.Done():
			return nil
		case <-time.After(conf.settleDelay):
		}

		if testTx {
			ctrl.SendTestTransactions(gctx)
			select {
			case <-gctx.Done():
				return nil
			case <-time.After(5 * time.Second):
			}
		}

		printReport(ctrl.StatusReport(gctx))
		log.Printf("Testnet is running. Press Ctrl+C to stop.")
		return nil
	})

	if err := g.Wait(); err != nil && err != http.ErrServerClosed {
		log.Printf("Runtime error: %v", err)
	}

	if err := ctrl.Stop(); err != nil {
		log.Printf("Errors during shutdown: %v", err)
	}

	return nil
}
