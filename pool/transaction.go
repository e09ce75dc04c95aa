// Package pool implements the delayed-transaction table that correlates
// outgoing CoAP requests with their eventual responses by (token,
// remote). It is the only piece of shared mutable state in the core —
// packets, options, and buffers are otherwise owned by whichever
// goroutine is processing them.
package pool

import (
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/coregx/coap/message"
)

// ResponseCallback is the pair of hooks a pending request registers: OnSent
// fires once the send completes successfully, OnResponse fires when a
// matching reply arrives, and OnError fires if the send fails or the
// transaction is torn down (e.g. by a disconnect) before a response
// arrives. Exactly one of OnResponse/OnError ever fires for a given
// transaction. Modeled as a small record of function slots rather than an
// interface hierarchy, per the specification's design notes.
type ResponseCallback struct {
	OnSent     func()
	OnResponse func(message.Packet)
	OnError    func(error)
}

// DelayedTransactionID is the composite key identifying an outstanding
// request: its token and the string form of its remote endpoint. Remote
// is captured as a string (rather than net.Addr) because net.Addr is an
// interface with no guaranteed comparability across implementations —
// using its String() form is the idiomatic way to get a comparable,
// hashable key from it.
type DelayedTransactionID struct {
	Token  string
	Remote string
}

// NewDelayedTransactionID builds an ID from raw token bytes and a remote
// address string.
func NewDelayedTransactionID(token []byte, remote string) DelayedTransactionID {
	return DelayedTransactionID{Token: string(token), Remote: remote}
}

const defaultShardCount = 16

type shard struct {
	mu      sync.Mutex
	entries map[DelayedTransactionID]ResponseCallback
}

// TransactionMap is a concurrent map from DelayedTransactionID to a
// single-shot ResponseCallback. It is sharded by the hash of the remote
// string so that DrainByRemote — which in practice touches a cluster of
// entries sharing one remote — only has to walk the shards that could
// possibly hold that remote's entries, and so that unrelated remotes
// rarely contend on the same lock.
type TransactionMap struct {
	shards []*shard
}

// NewTransactionMap returns a TransactionMap with the default shard count.
func NewTransactionMap() *TransactionMap {
	return NewTransactionMapShards(defaultShardCount)
}

// NewTransactionMapShards returns a TransactionMap with an explicit shard count.
func NewTransactionMapShards(shardCount int) *TransactionMap {
	if shardCount < 1 {
		shardCount = 1
	}
	m := &TransactionMap{shards: make([]*shard, shardCount)}
	for i := range m.shards {
		m.shards[i] = &shard{entries: make(map[DelayedTransactionID]ResponseCallback)}
	}
	return m
}

func (m *TransactionMap) shardFor(id DelayedTransactionID) *shard {
	h := xxhash.Sum64String(id.Remote)
	return m.shards[h%uint64(len(m.shards))]
}

// Insert registers cb as the pending callback for id. Callers send the
// request only after Insert returns, so a fast response can never race
// ahead of the registration.
func (m *TransactionMap) Insert(id DelayedTransactionID, cb ResponseCallback) {
	s := m.shardFor(id)
	s.mu.Lock()
	s.entries[id] = cb
	s.mu.Unlock()
}

// Take atomically removes and returns the callback registered for id, if
// any. This is the operation an incoming response (or an external
// timeout) uses to claim a transaction exactly once.
func (m *TransactionMap) Take(id DelayedTransactionID) (ResponseCallback, bool) {
	s := m.shardFor(id)
	s.mu.Lock()
	cb, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
	}
	s.mu.Unlock()
	return cb, ok
}

// DrainedEntry pairs a removed transaction's ID with its callback, as
// returned by DrainByRemote.
type DrainedEntry struct {
	ID       DelayedTransactionID
	Callback ResponseCallback
}

// DrainByRemote atomically removes and returns every transaction whose
// remote matches. Used when a connection to that remote is torn down.
// Every entry for a remote lives in the one shard its remote hashes to,
// so only that shard is locked and walked.
func (m *TransactionMap) DrainByRemote(remote string) []DrainedEntry {
	var drained []DrainedEntry
	s := m.shardFor(DelayedTransactionID{Remote: remote})
	s.mu.Lock()
	for id, cb := range s.entries {
		if id.Remote == remote {
			drained = append(drained, DrainedEntry{ID: id, Callback: cb})
			delete(s.entries, id)
		}
	}
	s.mu.Unlock()
	return drained
}

// Len returns the total number of pending transactions across all shards.
// Intended for tests and diagnostics, not the hot path.
func (m *TransactionMap) Len() int {
	n := 0
	for _, s := range m.shards {
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}
