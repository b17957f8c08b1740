package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"

	"testnetd/jsonrpc"
)

type ControllerState string

const (
	StateIdle     ControllerState = "idle"
	StateStarting ControllerState = "starting"
	StateRunning  ControllerState = "running"
	StateStopping ControllerState = "stopping"
	StateStopped  ControllerState = "stopped"
)

// NodeHandle tracks one launched node. The handle outlives the
// process: proc is cleared once the process is confirmed gone, but the
// handle itself is only removed at full teardown.
type NodeHandle struct {
	ID        string
	Config    NodeConfig
	StartedAt time.Time

	proc *Supervisor
}

// Controller owns the full set of node supervisors and sequences the
// testnet lifecycle: staged startup with rollback on failure,
// concurrent shutdown, and best-effort status aggregation.
type Controller struct {
	conf  config
	fs    afero.Fs
	probe *jsonrpc.Client
	sink  LogSink
	runID uuid.UUID

	// spawn is swapped out in tests.
	spawn func(binary string, args, env []string, id string, sink LogSink) (*Supervisor, error)

	// mu guards state and handles. The controller itself only
	// mutates them from its sequential start/stop flow, but the
	// status HTTP server reads them concurrently.
	mu      sync.RWMutex
	state   ControllerState
	handles []*NodeHandle
}

func NewController(conf config, fs afero.Fs, sink LogSink) *Controller {
	if sink == nil {
		sink = stdlogSink
	}
	return &Controller{
		conf:  conf,
		fs:    fs,
		probe: jsonrpc.NewClient(conf.probeTimeout),
		sink:  sink,
		runID: uuid.New(),
		spawn: startSupervisor,
		state: StateIdle,
	}
}

func (c *Controller) State() ControllerState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Controller) RunID() uuid.UUID {
	return c.runID
}

func (c *Controller) setState(state ControllerState) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

func (c *Controller) snapshotHandles() []*NodeHandle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*NodeHandle, len(c.handles))
	copy(out, c.handles)
	return out
}

// NodeConfigs returns the launch configurations of the current
// handles in startup order.
func (c *Controller) NodeConfigs() []NodeConfig {
	handles := c.snapshotHandles()
	configs := make([]NodeConfig, len(handles))
	for i, h := range handles {
		configs[i] = h.Config
	}
	return configs
}

// Start derives configurations for numNodes validators, stages their
// run directories, and launches them in ascending ordinal order with a
// fixed delay between starts. A node is considered started once its
// process is spawned; RPC reachability is checked separately via
// StatusReport. If any spawn fails, the nodes already started are
// stopped (best effort) and the spawn error is returned with the
// controller in the stopped state.
func (c *Controller) Start(ctx context.Context, numNodes int) error {
	c.mu.Lock()
	if c.state == StateStarting || c.state == StateRunning || c.state == StateStopping {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("cannot start testnet in state %s", state)
	}
	c.state = StateStarting
	c.handles = nil
	c.mu.Unlock()

	log.Printf("Starting %d-node blockchain testnet...", numNodes)

	// Derive every config up front so a topology error aborts
	// before anything is staged or spawned.
	configs := make([]NodeConfig, 0, numNodes)
	for ordinal := 1; ordinal <= numNodes; ordinal++ {
		nc, err := deriveNodeConfig(c.conf, ordinal, numNodes, RoleValidator)
		if err != nil {
			c.setState(StateStopped)
			return err
		}
		configs = append(configs, nc)
	}

	if err := stageRunDirectory(c.fs, c.conf, configs); err != nil {
		c.setState(StateStopped)
		return err
	}

	for i, nc := range configs {
		log.Printf("Starting %s...", nc.ID)

		sup, err := c.spawn(c.conf.nodeBinary, buildNodeArgs(nc), buildNodeEnv(c.conf), nc.ID, c.sink)
		if err != nil {
			metricSpawnFailures.Inc()
			log.Printf("Failed to start %s: %v", nc.ID, err)
			c.rollback()
			return err
		}

		metricNodesStarted.Inc()
		c.mu.Lock()
		c.handles = append(c.handles, &NodeHandle{
			ID:        nc.ID,
			Config:    nc,
			StartedAt: time.Now(),
			proc:      sup,
		})
		c.mu.Unlock()

		// Stagger starts so N nodes don't bind and dial loopback
		// ports all at once. Bootstrap lists are address-based,
		// so ordering here is policy, not correctness.
		if i < len(configs)-1 {
			select {
			case <-ctx.Done():
				c.rollback()
				return fmt.Errorf("startup interrupted: %w", ctx.Err())
			case <-time.After(c.conf.startDelay):
			}
		}
	}

	c.setState(StateRunning)
	log.Printf("Testnet started with %d nodes", numNodes)
	return nil
}

// rollback stops whatever was already started after a failed startup
// sequence. Stop errors are logged but the original failure is what
// gets surfaced to the caller.
func (c *Controller) rollback() {
	c.setState(StateStopping)
	if err := c.stopAllHandles(); err != nil {
		log.Printf("Errors during startup rollback: %v", err)
	}
	c.clearHandles()
	c.setState(StateStopped)
}

// Stop shuts the whole testnet down: every node gets a concurrent stop
// with its own grace period, so one wedged node cannot delay the
// others. Stop is idempotent.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if c.state == StateStopped || c.state == StateIdle {
		c.mu.Unlock()
		return nil
	}
	c.state = StateStopping
	c.mu.Unlock()

	log.Printf("Stopping testnet...")
	err := c.stopAllHandles()
	c.clearHandles()
	c.setState(StateStopped)
	log.Printf("Testnet stopped")
	return err
}

func (c *Controller) stopAllHandles() error {
	handles := c.snapshotHandles()

	var wg sync.WaitGroup
	errCh := make(chan error, len(handles))

	for _, h := range handles {
		wg.Add(1)
		go func(h *NodeHandle) {
			defer wg.Done()

			outcome, err := h.proc.Stop(c.conf.stopGrace)
			if err != nil {
				errCh <- fmt.Errorf("stop %s: %w", h.ID, err)
				return
			}
			switch outcome {
			case StopOutcomeForceKilled:
				metricForceKills.Inc()
			default:
				metricGracefulStops.Inc()
			}
		}(h)
	}

	wg.Wait()
	close(errCh)

	var result *multierror.Error
	for err := range errCh {
		result = multierror.Append(result, err)
	}

	// Processes are confirmed gone at this point; drop the
	// references but keep the handles until teardown completes.
	c.mu.Lock()
	for _, h := range c.handles {
		h.proc = nil
	}
	c.mu.Unlock()

	return result.ErrorOrNil()
}

// handleProc reads a handle's process reference under the lock, since
// stopAllHandles clears it concurrently with status readers.
func (c *Controller) handleProc(h *NodeHandle) *Supervisor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return h.proc
}

func (c *Controller) clearHandles() {
	c.mu.Lock()
	c.handles = nil
	c.mu.Unlock()
}

// StatusReport collects process liveness for every handle (local,
// instant) and probes each node's RPC endpoint concurrently. A failed
// probe is recorded inline on that node's entry and never prevents
// reporting on the others.
func (c *Controller) StatusReport(ctx context.Context) ClusterReport {
	handles := c.snapshotHandles()

	report := ClusterReport{
		RunID:       c.runID,
		State:       c.State(),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Nodes:       make([]NodeReport, len(handles)),
	}

	var wg sync.WaitGroup
	for i, h := range handles {
		wg.Add(1)
		go func(i int, h *NodeHandle) {
			defer wg.Done()
			report.Nodes[i] = c.reportNode(ctx, h)
		}(i, h)
	}
	wg.Wait()

	return report
}

func (c *Controller) reportNode(ctx context.Context, h *NodeHandle) NodeReport {
	nr := NodeReport{
		ID:          h.ID,
		Role:        h.Config.Role,
		RPCEndpoint: h.Config.RPCEndpoint(),
		StartedAt:   h.StartedAt.UTC().Format(time.RFC3339),
	}

	if proc := c.handleProc(h); proc != nil {
		nr.Liveness = proc.Poll()
	}

	status, err := fetchNodeStatus(ctx, c.probe, h.Config.RPCEndpoint())
	if err != nil {
		metricProbeFailures.Inc()
		errStr := err.Error()
		nr.Error = &errStr
		return nr
	}
	nr.Status = status
	return nr
}

// Healthy reports whether the testnet is running and every supervised
// process is still alive. It never touches the network.
func (c *Controller) Healthy() (bool, int, int) {
	if c.State() != StateRunning {
		return false, 0, 0
	}

	handles := c.snapshotHandles()
	alive := 0
	for _, h := range handles {
		if proc := c.handleProc(h); proc != nil && proc.Poll().Running {
			alive++
		}
	}
	return alive == len(handles), len(handles), alive
}

// SendTestTransactions submits one sample transaction to each of the
// first three nodes (fewer if the testnet is smaller). Failures are
// logged per node and do not abort the rest.
func (c *Controller) SendTestTransactions(ctx context.Context) {
	log.Printf("Sending test transactions...")

	handles := c.snapshotHandles()
	if len(handles) > 3 {
		handles = handles[:3]
	}

	for i, h := range handles {
		if err := sendTransaction(ctx, c.probe, h.Config.RPCEndpoint(), sampleTransaction(i), i+1); err != nil {
			log.Printf("Error sending transaction to %s: %v", h.ID, err)
			continue
		}
		log.Printf("Sent transaction to %s", h.ID)
	}
}
