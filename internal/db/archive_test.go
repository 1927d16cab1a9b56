package db

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memWriter struct {
	mu      sync.Mutex
	batches [][]RoundRecord
}

func (m *memWriter) BatchRecordRounds(_ context.Context, records []RoundRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, append([]RoundRecord(nil), records...))
	return nil
}

func (m *memWriter) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.batches {
		n += len(b)
	}
	return n
}

func TestArchiver_FlushesOnTicker(t *testing.T) {
	w := &memWriter{}
	a := NewArchiver(w, 10, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Run(ctx)

	require.True(t, a.Enqueue(RoundRecord{RoomCode: "AB12C", Round: 1}))
	require.True(t, a.Enqueue(RoundRecord{RoomCode: "AB12C", Round: 2}))

	assert.Eventually(t, func() bool { return w.total() == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestArchiver_DropsWhenFull(t *testing.T) {
	a := NewArchiver(&memWriter{}, 1, zerolog.Nop())
	assert.True(t, a.Enqueue(RoundRecord{Round: 1}))
	assert.False(t, a.Enqueue(RoundRecord{Round: 2}))
}

func TestArchiver_DrainsOnShutdown(t *testing.T) {
	w := &memWriter{}
	a := NewArchiver(w, 10, zerolog.Nop())
	for i := 1; i <= 3; i++ {
		a.Enqueue(RoundRecord{RoomCode: "AB12C", Round: i})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, 3, w.total())
}

// closingWriter fails once closed, like a database pool after Close.
type closingWriter struct {
	memWriter
	closed atomic.Bool
}

func (c *closingWriter) BatchRecordRounds(ctx context.Context, records []RoundRecord) error {
	if c.closed.Load() {
		return errors.New("sql: database is closed")
	}
	time.Sleep(20 * time.Millisecond)
	return c.memWriter.BatchRecordRounds(ctx, records)
}

func TestArchiver_WaitCoversFinalFlush(t *testing.T) {
	w := &closingWriter{}
	a := NewArchiver(w, 10, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go a.Run(ctx)

	for i := 1; i <= 3; i++ {
		require.True(t, a.Enqueue(RoundRecord{RoomCode: "AB12C", Round: i}))
	}
	cancel()
	a.Wait()
	w.closed.Store(true)

	assert.Equal(t, 3, w.total())
}
