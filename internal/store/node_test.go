package store

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/hashicorp/raft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heysubinoy/pyazkv/pkg/kv"
)

func TestOpenNodeBootstrapsAndRecovers(t *testing.T) {
	if testing.Short() {
		t.Skip("starts a TCP raft node")
	}
	dir := t.TempDir()

	// Reuse one address so the bootstrapped configuration stays valid.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	open := func(mem *kv.MemStore) (*RaftStore, *Node) {
		rs := NewRaftStore(mem)
		node, err := OpenNode(NodeConfig{
			NodeID:    "node-1",
			RaftAddr:  addr,
			DataDir:   dir,
			LogOutput: io.Discard,
		}, rs.FSM())
		require.NoError(t, err)
		rs.SetRaft(node.Raft)
		require.Eventually(t, func() bool { return node.Raft.State() == raft.Leader },
			10*time.Second, 50*time.Millisecond)
		return rs, node
	}

	rs, node := open(kv.NewMemStore())
	require.NoError(t, rs.Set("region", kv.String("eu")))
	require.NoError(t, node.Shutdown())

	// The log is replayed from BoltDB into a fresh store.
	mem := kv.NewMemStore()
	_, node = open(mem)
	defer node.Shutdown()

	require.Eventually(t, func() bool { return mem.Has("region") },
		10*time.Second, 50*time.Millisecond)
	v, err := mem.Get("region")
	require.NoError(t, err)
	assert.Equal(t, kv.String("eu"), v)
}
