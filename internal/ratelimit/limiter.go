package ratelimit

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Trust-in-depth/BAYKUS/internal/actor"
	"github.com/Trust-in-depth/BAYKUS/internal/metrics"
	pebblestore "github.com/Trust-in-depth/BAYKUS/internal/storage/pebble"
)

// DefaultInterval is the minimum spacing between accepted requests per key.
const DefaultInterval = time.Second

// Limiter enforces a minimum inter-request interval per subject key. Each
// key is its own actor: the last-accepted stamp is durable and check-and-set
// runs single-flight, so concurrent callers on one key can never both pass.
type Limiter struct {
	db       *pebblestore.DB
	disp     *actor.Dispatcher
	interval time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// New creates a Limiter. interval <= 0 falls back to DefaultInterval.
func New(db *pebblestore.DB, disp *actor.Dispatcher, interval time.Duration, logger zerolog.Logger) *Limiter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Limiter{
		db:       db,
		disp:     disp,
		interval: interval,
		logger:   logger.With().Str("component", "ratelimit").Logger(),
		now:      time.Now,
	}
}

func stampKey(subject string) []byte {
	return []byte("rl/" + subject)
}

// Admit accepts the request if at least the configured interval has passed
// since the last accepted request on the same subject. A rejection does not
// mutate state; an acceptance persists the new stamp before returning.
func (l *Limiter) Admit(ctx context.Context, subject string) (bool, error) {
	if subject == "" {
		return false, errors.New("ratelimit: empty subject")
	}
	accepted := false
	err := l.disp.Do(ctx, "rl:"+subject, func() error {
		now := l.now().UnixMilli()
		var last int64
		b, err := l.db.Get(stampKey(subject))
		switch {
		case err == nil && len(b) >= 8:
			last = int64(binary.BigEndian.Uint64(b[:8]))
		case err == nil, errors.Is(err, pebblestore.ErrNotFound):
			// No prior acceptance.
		default:
			return fmt.Errorf("read stamp: %w", err)
		}
		if last > 0 && now-last < l.interval.Milliseconds() {
			metrics.RateLimitRejections.Inc()
			return nil
		}
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], uint64(now))
		if err := l.db.Set(stampKey(subject), buf[:]); err != nil {
			return fmt.Errorf("persist stamp: %w", err)
		}
		accepted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return accepted, nil
}
