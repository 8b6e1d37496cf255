package store

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hashicorp/raft"

	"github.com/heysubinoy/pyazkv/pkg/codec"
	"github.com/heysubinoy/pyazkv/pkg/kv"
)

// applyTimeout bounds how long Set and Delete wait for a commit.
const applyTimeout = 5 * time.Second

// GetRaft returns the underlying raft.Raft pointer (for API layer leader checks)
func (rs *RaftStore) GetRaft() *raft.Raft {
	return rs.raft
}

// RaftCommand represents a set/delete operation to be applied via Raft.
// Values travel as kind + text so they replay with their exact kind.
type RaftCommand struct {
	Op    string `json:"op"` // "set" or "delete"
	Key   string `json:"key"`
	Kind  string `json:"kind,omitempty"`  // only for set
	Value string `json:"value,omitempty"` // only for set
}

type snapshotEntry struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// RaftStore wraps a MemStore and applies changes via Raft consensus.
// Reads are served from the local store.
type RaftStore struct {
	store *kv.MemStore
	raft  *raft.Raft
}

var _ kv.Store = (*RaftStore)(nil)

// NewRaftStore wraps store. Create the raft node with FSM() and attach it
// with SetRaft.
func NewRaftStore(store *kv.MemStore) *RaftStore {
	return &RaftStore{store: store}
}

// SetRaft attaches the raft node that writes are applied through.
func (rs *RaftStore) SetRaft(r *raft.Raft) {
	rs.raft = r
}

// FSM returns the state machine that applies committed log entries to the
// local store.
func (rs *RaftStore) FSM() raft.FSM {
	return &storeFSM{store: rs.store}
}

type storeFSM struct {
	store *kv.MemStore
}

// Apply applies a Raft log entry to the local store.
func (f *storeFSM) Apply(log *raft.Log) interface{} {
	var cmd RaftCommand
	if err := codec.JSON.Unmarshal(log.Data, &cmd); err != nil {
		return err
	}
	switch cmd.Op {
	case "set":
		kind, err := kv.ParseKind(cmd.Kind)
		if err != nil {
			return err
		}
		v, err := kv.ParseValue(kind, cmd.Value)
		if err != nil {
			return err
		}
		return f.store.Set(cmd.Key, v)
	case "delete":
		return f.store.Delete(cmd.Key)
	default:
		return fmt.Errorf("unknown raft command %q", cmd.Op)
	}
}

// Snapshot captures the store contents with their kinds.
func (f *storeFSM) Snapshot() (raft.FSMSnapshot, error) {
	entries := make(map[string]snapshotEntry)
	for k, v := range f.store.Snapshot() {
		entries[k] = snapshotEntry{Kind: v.Kind().String(), Value: v.String()}
	}
	data, err := codec.JSON.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return &storeSnapshot{data: data}, nil
}

// Restore replaces the store contents with a snapshot.
func (f *storeFSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	var entries map[string]snapshotEntry
	if err := codec.JSON.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to decode snapshot: %w", err)
	}

	values := make(map[string]kv.Value, len(entries))
	for k, e := range entries {
		kind, err := kv.ParseKind(e.Kind)
		if err != nil {
			return err
		}
		if values[k], err = kv.ParseValue(kind, e.Value); err != nil {
			return err
		}
	}

	f.store.Clear()
	return kv.LoadMap(f.store, values)
}

type storeSnapshot struct {
	data []byte
}

func (s *storeSnapshot) Persist(sink raft.SnapshotSink) error {
	if _, err := sink.Write(s.data); err != nil {
		sink.Cancel()
		return err
	}
	return sink.Close()
}

func (s *storeSnapshot) Release() {}

// Set submits a set command to Raft.
func (rs *RaftStore) Set(key string, value kv.Value) error {
	if key == "" {
		return kv.ErrEmptyKey
	}
	if !value.IsValid() {
		return kv.ErrInvalidValue
	}
	return rs.apply(RaftCommand{Op: "set", Key: key, Kind: value.Kind().String(), Value: value.String()})
}

// Delete submits a delete command to Raft.
func (rs *RaftStore) Delete(key string) error {
	return rs.apply(RaftCommand{Op: "delete", Key: key})
}

func (rs *RaftStore) apply(cmd RaftCommand) error {
	if rs.raft == nil {
		return errors.New("raft node not attached")
	}
	data, err := codec.JSON.Marshal(cmd)
	if err != nil {
		return err
	}
	f := rs.raft.Apply(data, applyTimeout)
	if err := f.Error(); err != nil {
		return err
	}
	if err, ok := f.Response().(error); ok {
		return err
	}
	return nil
}

// Get reads directly from the local store.
func (rs *RaftStore) Get(key string) (kv.Value, error) {
	return rs.store.Get(key)
}

// Lookup reads directly from the local store.
func (rs *RaftStore) Lookup(key string) (kv.Value, bool) {
	return rs.store.Lookup(key)
}

// Has reads directly from the local store.
func (rs *RaftStore) Has(key string) bool {
	return rs.store.Has(key)
}

// Snapshot copies the local store.
func (rs *RaftStore) Snapshot() map[string]kv.Value {
	return rs.store.Snapshot()
}
