package main

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collectSink records forwarded lines for assertions.
type collectSink struct {
	mu    sync.Mutex
	lines []string
}

func (cs *collectSink) sink(nodeID, line string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.lines = append(cs.lines, "["+nodeID+"] "+line)
}

func (cs *collectSink) all() []string {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	out := make([]string, len(cs.lines))
	copy(out, cs.lines)
	return out
}

func waitExited(t *testing.T, s *Supervisor, timeout time.Duration) Liveness {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if l := s.Poll(); !l.Running {
			return l
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("process did not exit in time")
	return Liveness{}
}

func TestSupervisor_DrainsBothStreams(t *testing.T) {
	cs := &collectSink{}

	s, err := startSupervisor("/bin/sh", []string{"-c", "echo out-line; echo err-line 1>&2"}, nil, "node-a", cs.sink)
	require.NoError(t, err)

	liveness := waitExited(t, s, 5*time.Second)
	require.NotNil(t, liveness.ExitCode)
	assert.Equal(t, 0, *liveness.ExitCode)

	lines := cs.all()
	assert.Contains(t, lines, "[node-a] out-line")
	assert.Contains(t, lines, "[node-a] err-line")
}

func TestSupervisor_SpawnError(t *testing.T) {
	_, err := startSupervisor("/nonexistent/binary/for/test", nil, nil, "node-a", nil)
	require.Error(t, err)

	var spawnErr *SpawnError
	require.True(t, errors.As(err, &spawnErr))
	assert.Equal(t, "node-a", spawnErr.Node)
}

func TestSupervisor_PollRunning(t *testing.T) {
	s, err := startSupervisor("/bin/sh", []string{"-c", "exec sleep 30"}, nil, "node-a", func(string, string) {})
	require.NoError(t, err)
	defer s.Stop(time.Second)

	liveness := s.Poll()
	assert.True(t, liveness.Running)
	assert.Nil(t, liveness.ExitCode)
}

func TestSupervisor_GracefulStop(t *testing.T) {
	s, err := startSupervisor("/bin/sh", []string{"-c", "exec sleep 30"}, nil, "node-a", func(string, string) {})
	require.NoError(t, err)

	outcome, err := s.Stop(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, StopOutcomeStopped, outcome)
	assert.False(t, s.Poll().Running)
}

func TestSupervisor_StopIdempotent(t *testing.T) {
	s, err := startSupervisor("/bin/sh", []string{"-c", "exec sleep 30"}, nil, "node-a", func(string, string) {})
	require.NoError(t, err)

	outcome, err := s.Stop(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, StopOutcomeStopped, outcome)

	outcome, err = s.Stop(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, StopOutcomeStopped, outcome)
}

func TestSupervisor_ForceKillAfterGrace(t *testing.T) {
	// The child ignores SIGTERM, so the stop must escalate to a
	// kill once the grace period elapses.
	script := `trap "" TERM; while :; do sleep 0.1; done`
	s, err := startSupervisor("/bin/sh", []string{"-c", script}, nil, "node-a", func(string, string) {})
	require.NoError(t, err)

	grace := 300 * time.Millisecond
	started := time.Now()
	outcome, err := s.Stop(grace)
	elapsed := time.Since(started)

	require.NoError(t, err)
	assert.Equal(t, StopOutcomeForceKilled, outcome)
	assert.GreaterOrEqual(t, elapsed, grace)
	assert.Less(t, elapsed, grace+3*time.Second, "force kill must not wait indefinitely")
	assert.False(t, s.Poll().Running)
}

func TestBuildNodeArgs_MatchesChildContract(t *testing.T) {
	conf := defaultConfig()
	nc, err := deriveNodeConfig(conf, 3, 5, RoleValidator)
	require.NoError(t, err)

	args := buildNodeArgs(nc)

	assert.Equal(t, []string{
		"--node-id", "validator-3",
		"--mode", "validator",
		"--listen-addr", "/ip4/0.0.0.0/tcp/8002",
		"--db-path", "testnet_data/validator-3",
		"--rpc-port", "9002",
		"--metrics-port", "9102",
		"--max-peers", "100",
		"--block-time-ms", "2000",
		"--mempool-size", "1000",
		"--genesis-file", "testnet_data/validator-3/genesis.json",
		"--bootstrap-peers", "/ip4/127.0.0.1/tcp/8000,/ip4/127.0.0.1/tcp/8001,/ip4/127.0.0.1/tcp/8003,/ip4/127.0.0.1/tcp/8004",
		"--enable-metrics",
		"--dev-mode",
	}, args)

	// Same config, same argv.
	assert.Equal(t, args, buildNodeArgs(nc))
}

func TestBuildNodeArgs_SingleNodeOmitsPeers(t *testing.T) {
	conf := defaultConfig()
	nc, err := deriveNodeConfig(conf, 1, 1, RoleValidator)
	require.NoError(t, err)

	args := buildNodeArgs(nc)
	assert.NotContains(t, args, "--bootstrap-peers")
}

func TestBuildNodeEnv(t *testing.T) {
	conf := defaultConfig()
	conf.nodeLogLevel = "debug"

	assert.Equal(t, []string{"RUST_LOG=debug"}, buildNodeEnv(conf))
}

func TestJoinPeers(t *testing.T) {
	assert.Equal(t, "", joinPeers(nil))
	assert.Equal(t, "a", joinPeers([]string{"a"}))
	assert.Equal(t, "a,b,c", joinPeers([]string{"a", "b", "c"}))
	assert.True(t, strings.Contains(joinPeers([]string{"x", "y"}), ","))
}
