package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/Trust-in-depth/BAYKUS/internal/actor"
	"github.com/Trust-in-depth/BAYKUS/internal/archive"
	"github.com/Trust-in-depth/BAYKUS/internal/metrics"
	"github.com/Trust-in-depth/BAYKUS/internal/models"
	"github.com/Trust-in-depth/BAYKUS/internal/session"
	pebblestore "github.com/Trust-in-depth/BAYKUS/internal/storage/pebble"
)

// ErrEmptyContent rejects sends with no content and no attachment.
var ErrEmptyContent = errors.New("conversation: empty message")

// RoomKey returns the actor key for a room.
func RoomKey(roomID string) string { return "room:" + roomID }

// DMKey returns the actor key for a direct-message pair. The pair is ordered
// so both participants resolve the same actor.
func DMKey(userA, userB string) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return "dm:" + userA + ":" + userB
}

// Sender identifies the author of a message, verified upstream.
type Sender struct {
	UserID   string
	Username string
}

// Frame is the JSON envelope pushed to live sessions.
type Frame struct {
	Type    string          `json:"type"`
	Message *models.Message `json:"message,omitempty"`
}

// Actor owns one conversation: the retained message history in Pebble and
// the set of live sessions. Every operation runs single-flight on the
// actor's key, so sends are totally ordered and no field needs a lock.
type Actor struct {
	key      string
	db       *pebblestore.DB
	disp     *actor.Dispatcher
	archiver *archive.Archiver
	retain   int
	logger   zerolog.Logger
	now      func() time.Time

	// Mutated only from inside dispatched tasks.
	sessions *session.Registry
	loaded   bool
	meta     meta
}

// New creates the in-memory handle for one conversation key. Durable state
// is loaded lazily on first use; an actor for a key that has history picks
// it up, a fresh key starts empty.
func New(key string, db *pebblestore.DB, disp *actor.Dispatcher, archiver *archive.Archiver, retain int, logger zerolog.Logger) *Actor {
	return &Actor{
		key:      key,
		db:       db,
		disp:     disp,
		archiver: archiver,
		retain:   retain,
		logger:   logger.With().Str("component", "conversation").Str("key", key).Logger(),
		now:      time.Now,
		sessions: session.NewRegistry(),
	}
}

// Key returns the actor key.
func (a *Actor) Key() string { return a.key }

func (a *Actor) kind() string {
	if strings.HasPrefix(a.key, "dm:") {
		return "dm"
	}
	return "room"
}

func (a *Actor) load() error {
	if a.loaded {
		return nil
	}
	b, err := a.db.Get(keyMeta(a.key))
	switch {
	case err == nil:
		if m, ok := decodeMeta(b); ok {
			a.meta = m
		}
	case errors.Is(err, pebblestore.ErrNotFound):
		// First activation for this key.
	default:
		return fmt.Errorf("load meta: %w", err)
	}
	a.loaded = true
	return nil
}

// Send appends a message, trims overflow beyond the retention bound, hands
// the overflow to the archiver, and broadcasts the new message to every live
// session. The append, trim, and meta update commit as one atomic batch;
// nothing is broadcast if the commit fails. Archival is fire-and-forget.
func (a *Actor) Send(ctx context.Context, from Sender, content, attachmentRef string) (models.Message, error) {
	var out models.Message
	err := a.disp.Do(ctx, a.key, func() error {
		if content == "" && attachmentRef == "" {
			return ErrEmptyContent
		}
		if err := a.load(); err != nil {
			return err
		}

		sentAt := a.now().UnixMilli()
		if sentAt < a.meta.lastSentAt {
			sentAt = a.meta.lastSentAt
		}
		msg := models.Message{
			ID:            ulid.Make().String(),
			AuthorID:      from.UserID,
			AuthorName:    from.Username,
			Content:       content,
			AttachmentRef: attachmentRef,
			SentAt:        sentAt,
			Seq:           a.meta.lastSeq + 1,
		}

		var overflow []models.Message
		newCount := a.meta.count + 1
		if a.retain > 0 && newCount > uint64(a.retain) {
			var err error
			overflow, err = a.oldest(int(newCount - uint64(a.retain)))
			if err != nil {
				return err
			}
		}

		payload, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("encode message: %w", err)
		}

		b := a.db.NewBatch()
		defer b.Close()
		if err := b.Set(keyEntry(a.key, msg.Seq), encodeRecord(stampHeader(sentAt), payload), nil); err != nil {
			return err
		}
		for _, old := range overflow {
			if err := b.Delete(keyEntry(a.key, old.Seq), nil); err != nil {
				return err
			}
		}
		next := meta{
			lastSeq:    msg.Seq,
			count:      newCount - uint64(len(overflow)),
			lastSentAt: sentAt,
		}
		if err := b.Set(keyMeta(a.key), encodeMeta(next), nil); err != nil {
			return err
		}
		if err := a.db.CommitBatch(ctx, b); err != nil {
			return fmt.Errorf("persist message: %w", err)
		}
		a.meta = next

		// The trimmed messages are gone from history regardless of how the
		// handoff fares; the archiver logs and drops failures.
		if len(overflow) > 0 {
			a.archiver.Handoff(archive.Batch{
				SourceKey:   a.key,
				Messages:    overflow,
				RequestedAt: a.now(),
			})
		}

		a.broadcast(Frame{Type: "message", Message: &msg})
		metrics.MessagesSent.WithLabelValues(a.kind()).Inc()
		out = msg
		return nil
	})
	if err != nil {
		return models.Message{}, err
	}
	return out, nil
}

// History returns the retained messages in append order.
func (a *Actor) History(ctx context.Context) ([]models.Message, error) {
	var out []models.Message
	err := a.disp.Do(ctx, a.key, func() error {
		if err := a.load(); err != nil {
			return err
		}
		msgs, err := a.scan(0)
		if err != nil {
			return err
		}
		out = msgs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Connect attaches a live session. The handle receives every subsequent
// broadcast for this conversation until it disconnects or a delivery fails.
func (a *Actor) Connect(ctx context.Context, s session.Session) error {
	return a.disp.Do(ctx, a.key, func() error {
		a.sessions.Add(s)
		a.logger.Debug().Str("session", s.ID()).Int("live", a.sessions.Len()).Msg("session attached")
		return nil
	})
}

// Disconnect detaches a session by ID. Invoked by the transport on close or
// error; unknown IDs are a no-op.
func (a *Actor) Disconnect(sessionID string) {
	a.disp.Post(a.key, func() error {
		a.sessions.Remove(sessionID)
		a.logger.Debug().Str("session", sessionID).Int("live", a.sessions.Len()).Msg("session detached")
		return nil
	})
}

// Sessions reports the number of live sessions.
func (a *Actor) Sessions(ctx context.Context) (int, error) {
	n := 0
	err := a.disp.Do(ctx, a.key, func() error {
		n = a.sessions.Len()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (a *Actor) broadcast(f Frame) {
	payload, err := json.Marshal(f)
	if err != nil {
		a.logger.Error().Err(err).Msg("encode broadcast frame")
		return
	}
	delivered, evicted := a.sessions.Broadcast(payload)
	metrics.BroadcastFanout.Observe(float64(delivered))
	if len(evicted) > 0 {
		metrics.SessionsEvicted.Add(float64(len(evicted)))
		a.logger.Warn().Strs("sessions", evicted).Msg("evicted sessions after failed delivery")
	}
}

// oldest returns the first n retained messages in append order.
func (a *Actor) oldest(n int) ([]models.Message, error) {
	return a.scan(n)
}

// scan iterates retained entries in sequence order; limit 0 means all.
func (a *Actor) scan(limit int) ([]models.Message, error) {
	low, high := entryBounds(a.key)
	iter, err := a.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: high})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []models.Message
	for ok := iter.First(); ok; ok = iter.Next() {
		if limit > 0 && len(out) >= limit {
			break
		}
		dec, okDec := decodeRecord(iter.Value())
		if !okDec {
			a.logger.Warn().Uint64("seq", entrySeq(iter.Key())).Msg("skipping corrupt record")
			continue
		}
		var msg models.Message
		if err := json.Unmarshal(dec.payload, &msg); err != nil {
			a.logger.Warn().Uint64("seq", entrySeq(iter.Key())).Err(err).Msg("skipping undecodable message")
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}
