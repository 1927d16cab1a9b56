package db

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const (
	archiveBatchSize     = 50
	archiveFlushInterval = 500 * time.Millisecond
)

type RoundWriter interface {
	BatchRecordRounds(ctx context.Context, records []RoundRecord) error
}

// Archiver buffers completed rounds and writes them in batches so room
// operations never wait on the database.
type Archiver struct {
	buffer chan RoundRecord
	writer RoundWriter
	log    zerolog.Logger
	done   chan struct{}
}

func NewArchiver(w RoundWriter, size int, log zerolog.Logger) *Archiver {
	return &Archiver{
		buffer: make(chan RoundRecord, size),
		writer: w,
		log:    log,
		done:   make(chan struct{}),
	}
}

// Enqueue queues a record without blocking. It reports false when the buffer is full.
func (a *Archiver) Enqueue(r RoundRecord) bool {
	select {
	case a.buffer <- r:
		return true
	default:
		a.log.Warn().Str("room", r.RoomCode).Int("round", r.Round).Msg("archive buffer full, dropping round")
		return false
	}
}

// Run flushes batches until ctx is cancelled, then writes whatever is left.
// It must be called at most once.
func (a *Archiver) Run(ctx context.Context) {
	defer close(a.done)
	ticker := time.NewTicker(archiveFlushInterval)
	defer ticker.Stop()

	batch := make([]RoundRecord, 0, archiveBatchSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := a.writer.BatchRecordRounds(ctx, batch); err != nil {
			a.log.Error().Err(err).Int("rounds", len(batch)).Msg("archiving rounds")
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case r := <-a.buffer:
					batch = append(batch, r)
				default:
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					flush(shutdownCtx)
					cancel()
					return
				}
			}
		case r := <-a.buffer:
			batch = append(batch, r)
			if len(batch) >= archiveBatchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		}
	}
}

// Wait blocks until Run has returned, including the final flush.
func (a *Archiver) Wait() {
	<-a.done
}
