package db

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"voicerelay/internal/app/chat"
	"voicerelay/internal/pkg/logx"
)

const (
	// maxBatchSize bounds the number of rows written by one round trip.
	maxBatchSize = 64

	// writeTimeout bounds one batch write.
	writeTimeout = 5 * time.Second

	insertActivitySQL = `INSERT INTO room_activity (kind, room_code, conn_id, user_name, occurred_at)
VALUES ($1, $2, $3, $4, $5)`

	recentActivitySQL = `SELECT kind, room_code, conn_id::text, user_name, occurred_at
FROM room_activity
WHERE room_code = $1
ORDER BY occurred_at DESC, id DESC
LIMIT $2`
)

// ActivityStore persists chat.Activity rows. Record only enqueues; a single worker
// goroutine drains the queue in batches, so the event path never waits on the database.
type ActivityStore struct {
	pool *pgxpool.Pool

	queue chan chat.Activity
	done  chan struct{}

	// closed guards queue against Record after Close.
	closed bool
	mu     sync.RWMutex

	dropped atomic.Int64

	logger zerolog.Logger
}

// NewActivityStore starts the background writer. bufferSize is the number of
// activities held in memory before new ones are dropped.
func NewActivityStore(pool *pgxpool.Pool, bufferSize int) *ActivityStore {
	s := &ActivityStore{
		pool:   pool,
		queue:  make(chan chat.Activity, bufferSize),
		done:   make(chan struct{}),
		logger: logx.For("ActivityStore"),
	}

	go s.run()

	return s
}

// Record implements chat.ActivityRecorder.
func (s *ActivityStore) Record(a chat.Activity) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return
	}

	select {
	case s.queue <- a:
	default:
		n := s.dropped.Add(1)
		s.logger.Warn().Int64("dropped_total", n).Str("room_code", a.RoomCode).Msg("Activity queue full, dropping record.")
	}
}

// Dropped returns the number of activities discarded because the queue was full.
func (s *ActivityStore) Dropped() int64 {
	return s.dropped.Load()
}

// Close stops accepting activity, flushes what is queued, and waits for the writer.
func (s *ActivityStore) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	<-s.done
	s.logger.Info().Msg("Activity store closed.")
}

func (s *ActivityStore) run() {
	defer close(s.done)

	for first := range s.queue {
		batch := []chat.Activity{first}

	drain:
		for len(batch) < maxBatchSize {
			select {
			case a, ok := <-s.queue:
				if !ok {
					break drain
				}
				batch = append(batch, a)
			default:
				break drain
			}
		}

		if err := s.write(batch); err != nil {
			s.logger.Error().Err(err).Int("rows", len(batch)).Msg("Failed to persist activity batch.")
		}
	}
}

func (s *ActivityStore) write(activities []chat.Activity) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	batch := &pgx.Batch{}
	for _, a := range activities {
		batch.Queue(insertActivitySQL, string(a.Kind), a.RoomCode, a.ConnID, a.Name, a.At)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range activities {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert activity: %w", err)
		}
	}
	return nil
}

// RecentActivity returns up to limit activities for roomCode, newest first.
func (s *ActivityStore) RecentActivity(ctx context.Context, roomCode string, limit int) ([]chat.Activity, error) {
	rows, err := s.pool.Query(ctx, recentActivitySQL, roomCode, limit)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}

	activities, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (chat.Activity, error) {
		var (
			a    chat.Activity
			kind string
		)
		if err := row.Scan(&kind, &a.RoomCode, &a.ConnID, &a.Name, &a.At); err != nil {
			return a, err
		}
		a.Kind = chat.ActivityKind(kind)
		return a, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan activity: %w", err)
	}

	return activities, nil
}
