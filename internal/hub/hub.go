package hub

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Trust-in-depth/BAYKUS/internal/actor"
	"github.com/Trust-in-depth/BAYKUS/internal/metrics"
	"github.com/Trust-in-depth/BAYKUS/internal/models"
	"github.com/Trust-in-depth/BAYKUS/internal/session"
	pebblestore "github.com/Trust-in-depth/BAYKUS/internal/storage/pebble"
)

// Key is the fixed actor key of the platform-wide hub singleton.
const Key = "global"

var trackCountKey = []byte("hub/" + Key + "/track")

// Hub is the notification singleton: presence, friend-status, and
// structural events published by the CRUD layer fan out here to every
// subscribed session. Events are never persisted; only the auxiliary track
// counter is durable. Everything runs single-flight on the hub key.
type Hub struct {
	db     *pebblestore.DB
	disp   *actor.Dispatcher
	logger zerolog.Logger
	now    func() time.Time

	// Mutated only from inside dispatched tasks.
	sessions *session.Registry
	filters  map[string]celFilter
}

// New creates the hub handle.
func New(db *pebblestore.DB, disp *actor.Dispatcher, logger zerolog.Logger) *Hub {
	return &Hub{
		db:       db,
		disp:     disp,
		logger:   logger.With().Str("component", "hub").Logger(),
		now:      time.Now,
		sessions: session.NewRegistry(),
		filters:  make(map[string]celFilter),
	}
}

// Connect attaches a session, optionally with a CEL filter expression that
// selects which events the session receives. A bad expression rejects the
// attach; an empty one matches everything.
func (h *Hub) Connect(ctx context.Context, s session.Session, filterExpr string) error {
	filter, err := newCELFilter(filterExpr)
	if err != nil {
		return fmt.Errorf("hub: bad filter: %w", err)
	}
	return h.disp.Do(ctx, Key, func() error {
		h.sessions.Add(s)
		h.filters[s.ID()] = filter
		h.logger.Debug().Str("session", s.ID()).Int("live", h.sessions.Len()).Msg("session attached")
		return nil
	})
}

// Disconnect detaches a session by ID.
func (h *Hub) Disconnect(sessionID string) {
	h.disp.Post(Key, func() error {
		h.sessions.Remove(sessionID)
		delete(h.filters, sessionID)
		return nil
	})
}

// Publish fans the event out to every live session whose filter matches.
// Fire-and-forget: the caller proceeds immediately and must not assume
// delivery. Sessions that fail delivery are evicted.
func (h *Hub) Publish(ev models.Event) {
	if ev.Type == "" {
		h.logger.Warn().Msg("dropping event without type")
		return
	}
	h.disp.Post(Key, func() error {
		if ev.Ts == 0 {
			ev.Ts = h.now().UnixMilli()
		}
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encode event: %w", err)
		}
		delivered := 0
		var evicted []string
		h.sessions.Each(func(s session.Session) bool {
			if f, ok := h.filters[s.ID()]; ok && !f.Eval(ev) {
				return true
			}
			if err := s.Deliver(payload); err != nil {
				s.Close()
				evicted = append(evicted, s.ID())
				return true
			}
			delivered++
			return true
		})
		for _, id := range evicted {
			h.sessions.Remove(id)
			delete(h.filters, id)
		}
		metrics.HubPublishes.WithLabelValues(ev.Type).Inc()
		metrics.BroadcastFanout.Observe(float64(delivered))
		if len(evicted) > 0 {
			metrics.SessionsEvicted.Add(float64(len(evicted)))
			h.logger.Warn().Strs("sessions", evicted).Msg("evicted sessions after failed delivery")
		}
		return nil
	})
}

// Track increments the durable counter and returns the new value.
func (h *Hub) Track(ctx context.Context) (uint64, error) {
	var out uint64
	err := h.disp.Do(ctx, Key, func() error {
		n, err := h.readCount()
		if err != nil {
			return err
		}
		n++
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], n)
		if err := h.db.Set(trackCountKey, buf[:]); err != nil {
			return fmt.Errorf("persist count: %w", err)
		}
		out = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	return out, nil
}

// Count reads the durable counter.
func (h *Hub) Count(ctx context.Context) (uint64, error) {
	var out uint64
	err := h.disp.Do(ctx, Key, func() error {
		n, err := h.readCount()
		if err != nil {
			return err
		}
		out = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	return out, nil
}

// Sessions reports the number of live sessions.
func (h *Hub) Sessions(ctx context.Context) (int, error) {
	n := 0
	err := h.disp.Do(ctx, Key, func() error {
		n = h.sessions.Len()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (h *Hub) readCount() (uint64, error) {
	b, err := h.db.Get(trackCountKey)
	switch {
	case err == nil && len(b) >= 8:
		return binary.BigEndian.Uint64(b[:8]), nil
	case err == nil, errors.Is(err, pebblestore.ErrNotFound):
		return 0, nil
	default:
		return 0, fmt.Errorf("read count: %w", err)
	}
}
