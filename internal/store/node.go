package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
)

// NodeConfig describes a Raft node backed by BoltDB on disk.
type NodeConfig struct {
	NodeID   string
	RaftAddr string
	DataDir  string

	// LogOutput receives raft's own log lines. Defaults to stderr.
	LogOutput io.Writer
}

// Node is a running Raft node and the resources it holds open.
type Node struct {
	Raft *raft.Raft

	transport *raft.NetworkTransport
	bolt      *raftboltdb.BoltStore
}

// OpenNode starts a Raft node for fsm. A node with no existing state
// bootstraps a single-server cluster containing only itself.
func OpenNode(cfg NodeConfig, fsm raft.FSM) (*Node, error) {
	logOutput := cfg.LogOutput
	if logOutput == nil {
		logOutput = os.Stderr
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create raft data dir: %w", err)
	}

	conf := raft.DefaultConfig()
	conf.LocalID = raft.ServerID(cfg.NodeID)
	conf.LogOutput = logOutput

	bolt, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open raft log store: %w", err)
	}

	snapshots, err := raft.NewFileSnapshotStore(cfg.DataDir, 2, logOutput)
	if err != nil {
		bolt.Close()
		return nil, fmt.Errorf("failed to open snapshot store: %w", err)
	}

	transport, err := raft.NewTCPTransport(cfg.RaftAddr, nil, 3, 10*time.Second, logOutput)
	if err != nil {
		bolt.Close()
		return nil, fmt.Errorf("failed to start raft transport: %w", err)
	}

	existing, err := raft.HasExistingState(bolt, bolt, snapshots)
	if err != nil {
		transport.Close()
		bolt.Close()
		return nil, fmt.Errorf("failed to inspect raft state: %w", err)
	}

	r, err := raft.NewRaft(conf, fsm, bolt, bolt, snapshots, transport)
	if err != nil {
		transport.Close()
		bolt.Close()
		return nil, fmt.Errorf("failed to start raft: %w", err)
	}

	if !existing {
		boot := raft.Configuration{
			Servers: []raft.Server{{ID: conf.LocalID, Address: transport.LocalAddr()}},
		}
		if err := r.BootstrapCluster(boot).Error(); err != nil && !errors.Is(err, raft.ErrCantBootstrap) {
			r.Shutdown()
			transport.Close()
			bolt.Close()
			return nil, fmt.Errorf("failed to bootstrap raft: %w", err)
		}
	}

	return &Node{Raft: r, transport: transport, bolt: bolt}, nil
}

// Shutdown stops raft and releases the transport and log store.
func (n *Node) Shutdown() error {
	err := n.Raft.Shutdown().Error()
	return errors.Join(err, n.transport.Close(), n.bolt.Close())
}
