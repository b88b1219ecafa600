package runtime

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Trust-in-depth/BAYKUS/internal/actor"
	"github.com/Trust-in-depth/BAYKUS/internal/archive"
	cfgpkg "github.com/Trust-in-depth/BAYKUS/internal/config"
	"github.com/Trust-in-depth/BAYKUS/internal/conversation"
	"github.com/Trust-in-depth/BAYKUS/internal/hub"
	"github.com/Trust-in-depth/BAYKUS/internal/ratelimit"
	"github.com/Trust-in-depth/BAYKUS/internal/status"
	pebblestore "github.com/Trust-in-depth/BAYKUS/internal/storage/pebble"
)

// Options for building the Runtime.
type Options struct {
	DataDir       string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Config        cfgpkg.Config
	Logger        zerolog.Logger
	// Metrics is handed to the storage layer. Optional.
	Metrics pebblestore.MetricsHook
	// ArchiveStore overrides the default filesystem blob store. Optional;
	// used by deployments that archive to a remote bucket and by tests.
	ArchiveStore archive.Store
}

// Runtime wires storage, the key dispatcher, the archiver, and the actor
// facades for a single-node instance.
type Runtime struct {
	db       *pebblestore.DB
	config   cfgpkg.Config
	logger   zerolog.Logger
	disp     *actor.Dispatcher
	archiver *archive.Archiver

	hub     *hub.Hub
	limiter *ratelimit.Limiter
	status  *status.Tracker

	mu    sync.Mutex
	convs map[string]*conversation.Actor
}

// Open initializes storage and the shared actor infrastructure.
func Open(opts Options) (*Runtime, error) {
	db, err := pebblestore.Open(pebblestore.Options{
		DataDir:       opts.DataDir,
		Fsync:         opts.Fsync,
		FsyncInterval: opts.FsyncInterval,
		Metrics:       opts.Metrics,
	})
	if err != nil {
		return nil, err
	}

	store := opts.ArchiveStore
	if store == nil {
		dir := opts.Config.ArchiveDir
		if dir == "" {
			dir = filepath.Join(opts.DataDir, "..", "archive")
		}
		fs, err := archive.NewFSStore(dir)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		store = fs
	}

	disp := actor.NewDispatcher(actor.Options{
		IdleTTL: opts.Config.ActorIdleTTL(),
		Logger:  opts.Logger,
	})
	archiver := archive.NewArchiver(store, opts.Logger)

	return &Runtime{
		db:       db,
		config:   opts.Config,
		logger:   opts.Logger,
		disp:     disp,
		archiver: archiver,
		hub:      hub.New(db, disp, opts.Logger),
		limiter:  ratelimit.New(db, disp, opts.Config.RateLimitInterval(), opts.Logger),
		status:   status.New(db, disp, opts.Logger),
		convs:    make(map[string]*conversation.Actor),
	}, nil
}

// Conversation returns the actor for the given key, creating the in-memory
// handle lazily. Handles are cached so every caller on one key shares the
// same session registry; durable state is keyed in the store either way.
func (r *Runtime) Conversation(key string) *conversation.Actor {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.convs[key]; ok {
		return a
	}
	a := conversation.New(key, r.db, r.disp, r.archiver, r.config.RetentionLimit, r.logger)
	r.convs[key] = a
	return a
}

// Hub returns the notification hub singleton.
func (r *Runtime) Hub() *hub.Hub { return r.hub }

// RateLimiter returns the shared rate-limit facade.
func (r *Runtime) RateLimiter() *ratelimit.Limiter { return r.limiter }

// Status returns the user status tracker.
func (r *Runtime) Status() *status.Tracker { return r.status }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }

// CheckHealth verifies the storage layer responds to a read.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.db == nil {
		return errors.New("db not open")
	}
	it, err := r.db.NewIter(nil)
	if err != nil {
		return err
	}
	return it.Close()
}

// Close drains dispatched work, waits for in-flight archives, and closes
// storage.
func (r *Runtime) Close() error {
	if r.disp != nil {
		r.disp.Close()
	}
	if r.archiver != nil {
		r.archiver.Wait()
	}
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}
