package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"
)

// LogSink receives one line of child output at a time. Sinks must be
// safe for concurrent callers; the default sink forwards through a
// log.Logger, which serializes writes internally.
type LogSink func(nodeID, line string)

func stdlogSink(nodeID, line string) {
	log.Printf("[%s] %s", nodeID, line)
}

// SpawnError reports that the OS refused to launch a node's process.
type SpawnError struct {
	Node string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn %s: %v", e.Node, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

type StopOutcome string

const (
	StopOutcomeStopped     StopOutcome = "stopped"
	StopOutcomeForceKilled StopOutcome = "force-killed"
)

// Liveness is the OS-level process state as seen by Poll. ExitCode is
// nil while the process is running; -1 means the process was killed by
// a signal.
type Liveness struct {
	Running  bool `json:"running"`
	ExitCode *int `json:"exit_code,omitempty"`
}

// Supervisor owns exactly one spawned child process: it drains the
// child's output to a sink for the full process lifetime and provides
// non-blocking liveness polling and an escalating stop.
type Supervisor struct {
	id   string
	cmd  *exec.Cmd
	sink LogSink

	// drainWG tracks the stdout/stderr drain goroutines. They must
	// finish before cmd.Wait is called, per os/exec pipe rules.
	drainWG sync.WaitGroup

	// waitDone is closed by the waiter goroutine once the process
	// exit status has been collected and both drains have finished.
	waitDone chan struct{}
	exitCode int
}

// buildNodeArgs builds the child argument vector from a node config.
// The same config always produces the same arguments.
func buildNodeArgs(nc NodeConfig) []string {
	args := []string{
		"--node-id", nc.ID,
		"--mode", string(nc.Role),
		"--listen-addr", nc.ListenAddr,
		"--db-path", nc.DataDir,
		"--rpc-port", strconv.Itoa(nc.RPCPort),
		"--metrics-port", strconv.Itoa(nc.MetricsPort),
		"--max-peers", strconv.Itoa(nc.MaxPeers),
		"--block-time-ms", strconv.Itoa(nc.BlockTimeMS),
		"--mempool-size", strconv.Itoa(nc.MempoolSize),
		"--genesis-file", nc.GenesisFile,
	}

	if len(nc.BootstrapPeers) > 0 {
		args = append(args, "--bootstrap-peers", joinPeers(nc.BootstrapPeers))
	}
	if nc.EnableMetrics {
		args = append(args, "--enable-metrics")
	}
	if nc.DevMode {
		args = append(args, "--dev-mode")
	}

	return args
}

func joinPeers(peers []string) string {
	out := ""
	for i, p := range peers {
		if i > 0 {
			out += ","
		}
		out += p
	}
	return out
}

// buildNodeEnv returns the extra environment passed to the child. The
// node reads its log verbosity from RUST_LOG.
func buildNodeEnv(conf config) []string {
	return []string{"RUST_LOG=" + conf.nodeLogLevel}
}

// startSupervisor launches the child process with both output streams
// captured and starts the drain and wait goroutines. A failed launch
// is returned as *SpawnError; nothing to clean up in that case.
func startSupervisor(binary string, args []string, env []string, id string, sink LogSink) (*Supervisor, error) {
	if sink == nil {
		sink = stdlogSink
	}

	cmd := exec.Command(binary, args...)
	cmd.Env = append(os.Environ(), env...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &SpawnError{Node: id, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &SpawnError{Node: id, Err: err}
	}

	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Node: id, Err: err}
	}

	s := &Supervisor{
		id:       id,
		cmd:      cmd,
		sink:     sink,
		waitDone: make(chan struct{}),
	}

	s.drainWG.Add(2)
	go s.drain(stdout)
	go s.drain(stderr)

	go func() {
		// The pipes report EOF once the process exits, so the
		// drains are guaranteed to finish.
		s.drainWG.Wait()
		_ = cmd.Wait()
		s.exitCode = cmd.ProcessState.ExitCode()
		close(s.waitDone)
	}()

	return s, nil
}

// drain forwards child output line by line until the stream closes.
func (s *Supervisor) drain(r io.Reader) {
	defer s.drainWG.Done()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		s.sink(s.id, scanner.Text())
	}
}

// Poll reports the current OS-level process state without blocking and
// without side effects.
func (s *Supervisor) Poll() Liveness {
	select {
	case <-s.waitDone:
		code := s.exitCode
		return Liveness{Running: false, ExitCode: &code}
	default:
		return Liveness{Running: true}
	}
}

// Stop requests graceful termination and waits up to grace for the
// process to exit; if it does not, the process is killed and Stop
// waits unconditionally for the exit status. Stopping a process that
// has already exited is a no-op reporting StopOutcomeStopped. All
// output produced before exit is flushed to the sink before Stop
// returns.
func (s *Supervisor) Stop(grace time.Duration) (StopOutcome, error) {
	select {
	case <-s.waitDone:
		log.Printf("Node %s already stopped", s.id)
		return StopOutcomeStopped, nil
	default:
	}

	if err := s.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		log.Printf("Failed to signal %s, force killing: %v", s.id, err)
		return s.forceKill()
	}

	select {
	case <-s.waitDone:
		log.Printf("Stopped %s", s.id)
		return StopOutcomeStopped, nil
	case <-time.After(grace):
		log.Printf("Force killing %s after %s grace period", s.id, grace)
		return s.forceKill()
	}
}

func (s *Supervisor) forceKill() (StopOutcome, error) {
	if err := s.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return StopOutcomeForceKilled, fmt.Errorf("failed to kill %s: %w", s.id, err)
	}
	<-s.waitDone
	return StopOutcomeForceKilled, nil
}
