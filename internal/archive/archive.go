package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Trust-in-depth/BAYKUS/internal/metrics"
	"github.com/Trust-in-depth/BAYKUS/internal/models"
)

// Store is the cold-storage collaborator boundary: a blob writer keyed by
// object name. The platform's bucket service satisfies it in production;
// FSStore stands in for local deployments and tests.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
}

// Batch is one overflow handoff from a conversation actor.
type Batch struct {
	SourceKey   string           `json:"source_key"`
	Messages    []models.Message `json:"messages"`
	RequestedAt time.Time        `json:"requested_at"`
}

// Archiver writes overflow batches to the Store off the send hot path.
// Handoff is strictly fire-and-forget: the caller has already trimmed the
// messages from its history, and a failed write only produces a log line and
// a counter bump. Archival is at-most-once.
type Archiver struct {
	store   Store
	logger  zerolog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
	now     func() time.Time
}

// NewArchiver creates an Archiver writing to store.
func NewArchiver(store Store, logger zerolog.Logger) *Archiver {
	return &Archiver{
		store:   store,
		logger:  logger.With().Str("component", "archiver").Logger(),
		timeout: 30 * time.Second,
		now:     time.Now,
	}
}

// Handoff dispatches the batch asynchronously and returns immediately.
func (a *Archiver) Handoff(b Batch) {
	if len(b.Messages) == 0 {
		return
	}
	if b.RequestedAt.IsZero() {
		b.RequestedAt = a.now()
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if err := a.write(ctx, b); err != nil {
			metrics.ArchiveFailures.Inc()
			a.logger.Error().
				Str("source_key", b.SourceKey).
				Int("messages", len(b.Messages)).
				Err(err).
				Msg("archive handoff failed; batch dropped")
			return
		}
		metrics.MessagesArchived.Add(float64(len(b.Messages)))
		a.logger.Debug().
			Str("source_key", b.SourceKey).
			Int("messages", len(b.Messages)).
			Msg("overflow batch archived")
	}()
}

func (a *Archiver) write(ctx context.Context, b Batch) error {
	data, err := json.Marshal(b.Messages)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}
	key := ObjectKey(b.SourceKey, b.RequestedAt)
	if err := a.store.Put(ctx, key, data); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Wait blocks until all in-flight handoffs finish. Used on shutdown and in
// tests; the hot path never calls it.
func (a *Archiver) Wait() { a.wg.Wait() }

// ObjectKey names an archived batch by source and time.
func ObjectKey(sourceKey string, at time.Time) string {
	return fmt.Sprintf("room/%s/%d.json", sourceKey, at.UnixMilli())
}
