package pool_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/coap/message"
	"github.com/coregx/coap/pool"
)

func TestInsertTakeRoundTrip(t *testing.T) {
	m := pool.NewTransactionMap()
	id := pool.NewDelayedTransactionID([]byte{0x01, 0x02}, "10.0.0.1:5683")

	m.Insert(id, pool.ResponseCallback{OnResponse: func(message.Packet) {}})

	cb, ok := m.Take(id)
	require.True(t, ok, "Take() should find the inserted transaction")
	assert.NotNil(t, cb.OnResponse)

	_, ok = m.Take(id)
	assert.False(t, ok, "Take() must be single-shot: a second Take should find nothing")
}

func TestTakeMissingReturnsFalse(t *testing.T) {
	m := pool.NewTransactionMap()
	id := pool.NewDelayedTransactionID([]byte{0xFF}, "10.0.0.2:5683")

	_, ok := m.Take(id)
	assert.False(t, ok)
}

func TestDrainByRemoteOnlyMatchesThatRemote(t *testing.T) {
	m := pool.NewTransactionMap()
	idA1 := pool.NewDelayedTransactionID([]byte{0x01}, "10.0.0.1:5683")
	idA2 := pool.NewDelayedTransactionID([]byte{0x02}, "10.0.0.1:5683")
	idB := pool.NewDelayedTransactionID([]byte{0x03}, "10.0.0.2:5683")

	m.Insert(idA1, pool.ResponseCallback{})
	m.Insert(idA2, pool.ResponseCallback{})
	m.Insert(idB, pool.ResponseCallback{})

	drained := m.DrainByRemote("10.0.0.1:5683")
	assert.Len(t, drained, 2)
	assert.Equal(t, 1, m.Len(), "the unrelated remote's transaction must survive the drain")

	_, ok := m.Take(idB)
	assert.True(t, ok, "10.0.0.2's transaction should be untouched")
}

func TestConcurrentInsertAndTake(t *testing.T) {
	m := pool.NewTransactionMap()
	const n = 200

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			id := pool.NewDelayedTransactionID([]byte{byte(i)}, "10.0.0.3:5683")
			m.Insert(id, pool.ResponseCallback{})
			_, _ = m.Take(id)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, m.Len(), "every inserted transaction should have been taken exactly once")
}
