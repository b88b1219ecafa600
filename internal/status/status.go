package status

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Trust-in-depth/BAYKUS/internal/actor"
	pebblestore "github.com/Trust-in-depth/BAYKUS/internal/storage/pebble"
)

// Info is the durable per-user presence record.
type Info struct {
	Status   string `json:"status,omitempty"`
	LastSeen int64  `json:"last_seen,omitempty"` // Unix ms, 0 if never seen
}

// Tracker owns the per-user status/last-seen actors. One actor per user id;
// both fields are durable and survive reactivation.
type Tracker struct {
	db     *pebblestore.DB
	disp   *actor.Dispatcher
	logger zerolog.Logger
	now    func() time.Time
}

// New creates a Tracker.
func New(db *pebblestore.DB, disp *actor.Dispatcher, logger zerolog.Logger) *Tracker {
	return &Tracker{
		db:     db,
		disp:   disp,
		logger: logger.With().Str("component", "status").Logger(),
		now:    time.Now,
	}
}

func statusKey(userID string) []byte   { return []byte("user/" + userID + "/status") }
func lastSeenKey(userID string) []byte { return []byte("user/" + userID + "/lastseen") }

// SetStatus persists the user's presence string (e.g. "online", "away").
func (t *Tracker) SetStatus(ctx context.Context, userID, status string) error {
	if userID == "" {
		return errors.New("status: empty user id")
	}
	return t.disp.Do(ctx, "status:"+userID, func() error {
		if err := t.db.Set(statusKey(userID), []byte(status)); err != nil {
			return fmt.Errorf("persist status: %w", err)
		}
		return nil
	})
}

// Touch updates the user's last-seen stamp to now.
func (t *Tracker) Touch(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New("status: empty user id")
	}
	return t.disp.Do(ctx, "status:"+userID, func() error {
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], uint64(t.now().UnixMilli()))
		if err := t.db.Set(lastSeenKey(userID), buf[:]); err != nil {
			return fmt.Errorf("persist last-seen: %w", err)
		}
		return nil
	})
}

// Get reads the user's status and last-seen stamp. Unknown users return the
// zero Info, not an error.
func (t *Tracker) Get(ctx context.Context, userID string) (Info, error) {
	var info Info
	err := t.disp.Do(ctx, "status:"+userID, func() error {
		b, err := t.db.Get(statusKey(userID))
		switch {
		case err == nil:
			info.Status = string(b)
		case errors.Is(err, pebblestore.ErrNotFound):
		default:
			return fmt.Errorf("read status: %w", err)
		}
		b, err = t.db.Get(lastSeenKey(userID))
		switch {
		case err == nil && len(b) >= 8:
			info.LastSeen = int64(binary.BigEndian.Uint64(b[:8]))
		case err == nil, errors.Is(err, pebblestore.ErrNotFound):
		default:
			return fmt.Errorf("read last-seen: %w", err)
		}
		return nil
	})
	if err != nil {
		return Info{}, err
	}
	return info, nil
}
