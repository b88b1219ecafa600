package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Trust-in-depth/BAYKUS/internal/actor"
	"github.com/Trust-in-depth/BAYKUS/internal/archive"
	"github.com/Trust-in-depth/BAYKUS/internal/models"
	pebblestore "github.com/Trust-in-depth/BAYKUS/internal/storage/pebble"
)

type captureStore struct {
	mu   sync.Mutex
	puts map[string][]byte
}

func (c *captureStore) Put(_ context.Context, key string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.puts == nil {
		c.puts = make(map[string][]byte)
	}
	c.puts[key] = append([]byte(nil), data...)
	return nil
}

func (c *captureStore) batches(t *testing.T, sourceKey string) [][]models.Message {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	var out [][]models.Message
	for key, data := range c.puts {
		if !strings.HasPrefix(key, "room/"+sourceKey+"/") {
			continue
		}
		var msgs []models.Message
		if err := json.Unmarshal(data, &msgs); err != nil {
			t.Fatalf("decode archived batch %q: %v", key, err)
		}
		out = append(out, msgs)
	}
	return out
}

type env struct {
	db       *pebblestore.DB
	disp     *actor.Dispatcher
	store    *captureStore
	archiver *archive.Archiver
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	disp := actor.NewDispatcher(actor.Options{Logger: zerolog.Nop()})
	store := &captureStore{}
	arch := archive.NewArchiver(store, zerolog.Nop())
	t.Cleanup(func() {
		disp.Close()
		arch.Wait()
		_ = db.Close()
	})
	return &env{db: db, disp: disp, store: store, archiver: arch}
}

func (e *env) actor(key string, retain int) *Actor {
	return New(key, e.db, e.disp, e.archiver, retain, zerolog.Nop())
}

func send(t *testing.T, a *Actor, content string) models.Message {
	t.Helper()
	msg, err := a.Send(context.Background(), Sender{UserID: "u1", Username: "ada"}, content, "")
	if err != nil {
		t.Fatalf("send %q: %v", content, err)
	}
	return msg
}

func contents(msgs []models.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}

func TestSendAppendsInOrder(t *testing.T) {
	e := newEnv(t)
	a := e.actor(RoomKey("r1"), 500)
	for _, c := range []string{"one", "two", "three"} {
		send(t, a, c)
	}
	hist, err := a.History(context.Background())
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	got := contents(hist)
	want := []string{"one", "two", "three"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("history = %v, want %v", got, want)
		}
	}
	for i := 1; i < len(hist); i++ {
		if hist[i].Seq <= hist[i-1].Seq {
			t.Fatalf("seq not increasing: %+v", hist)
		}
		if hist[i].SentAt < hist[i-1].SentAt {
			t.Fatalf("sentAt not monotonic: %+v", hist)
		}
	}
}

func TestRetentionTrimsAndArchivesOldest(t *testing.T) {
	e := newEnv(t)
	a := e.actor(RoomKey("r1"), 2)
	send(t, a, "a")
	send(t, a, "b")
	send(t, a, "c")
	e.archiver.Wait()

	hist, err := a.History(context.Background())
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if got := contents(hist); len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Fatalf("history = %v, want [b c]", got)
	}

	batches := e.store.batches(t, RoomKey("r1"))
	if len(batches) != 1 {
		t.Fatalf("expected exactly 1 archived batch, got %d", len(batches))
	}
	if len(batches[0]) != 1 || batches[0][0].Content != "a" {
		t.Fatalf("archived batch = %v, want [a]", contents(batches[0]))
	}
}

func TestRetentionHoldsAtBound(t *testing.T) {
	e := newEnv(t)
	a := e.actor(RoomKey("r1"), 3)
	for i := 0; i < 10; i++ {
		send(t, a, string(rune('a'+i)))
	}
	e.archiver.Wait()
	hist, err := a.History(context.Background())
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 3 {
		t.Fatalf("len(history) = %d, want 3", len(hist))
	}
	if got := contents(hist); got[0] != "h" || got[2] != "j" {
		t.Fatalf("history = %v, want [h i j]", got)
	}
}

func TestHistorySurvivesReincarnation(t *testing.T) {
	e := newEnv(t)
	first := e.actor(RoomKey("r1"), 500)
	send(t, first, "hello")
	send(t, first, "world")

	// A new in-memory instance for the same key sees the same durable
	// history; the session registry starts empty.
	second := e.actor(RoomKey("r1"), 500)
	hist, err := second.History(context.Background())
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if got := contents(hist); len(got) != 2 || got[0] != "hello" || got[1] != "world" {
		t.Fatalf("history = %v", got)
	}
	n, err := second.Sessions(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("sessions = %d, %v; want 0", n, err)
	}
	// Appending through the new incarnation continues the sequence.
	msg := send(t, second, "again")
	if msg.Seq != 3 {
		t.Fatalf("seq = %d, want 3", msg.Seq)
	}
}

func TestKeysAreIsolated(t *testing.T) {
	e := newEnv(t)
	r1 := e.actor(RoomKey("r1"), 500)
	r2 := e.actor(RoomKey("r2"), 500)
	send(t, r1, "only-r1")
	hist, err := r2.History(context.Background())
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 0 {
		t.Fatalf("r2 sees r1 state: %v", contents(hist))
	}
}

func TestDMKeyOrdersPair(t *testing.T) {
	if DMKey("u2", "u1") != DMKey("u1", "u2") {
		t.Fatal("DM key must not depend on argument order")
	}
	if DMKey("u1", "u2") != "dm:u1:u2" {
		t.Fatalf("unexpected key %q", DMKey("u1", "u2"))
	}
}

type testSession struct {
	id     string
	frames []Frame
	fail   error
	closed bool
}

func (s *testSession) ID() string { return s.id }
func (s *testSession) Deliver(p []byte) error {
	if s.fail != nil {
		return s.fail
	}
	var f Frame
	if err := json.Unmarshal(p, &f); err != nil {
		return err
	}
	s.frames = append(s.frames, f)
	return nil
}
func (s *testSession) Close() { s.closed = true }

func TestBroadcastReachesLiveSessionsAndEvictsFailed(t *testing.T) {
	e := newEnv(t)
	a := e.actor(RoomKey("r1"), 500)
	good := &testSession{id: "s1"}
	bad := &testSession{id: "s2", fail: errors.New("gone")}
	other := &testSession{id: "s3"}
	for _, s := range []*testSession{good, bad, other} {
		if err := a.Connect(context.Background(), s); err != nil {
			t.Fatalf("connect: %v", err)
		}
	}

	send(t, a, "ping")
	if len(good.frames) != 1 || good.frames[0].Message.Content != "ping" {
		t.Fatalf("s1 frames = %+v", good.frames)
	}
	if len(other.frames) != 1 {
		t.Fatalf("s3 frames = %+v", other.frames)
	}
	if !bad.closed {
		t.Fatal("failed session not closed")
	}

	send(t, a, "pong")
	if len(good.frames) != 2 || len(other.frames) != 2 {
		t.Fatal("healthy sessions missed second broadcast")
	}
	n, err := a.Sessions(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("sessions = %d, %v; want 2", n, err)
	}
}

func TestLateSessionMissesEarlierMessages(t *testing.T) {
	e := newEnv(t)
	a := e.actor(RoomKey("r1"), 500)
	send(t, a, "early")
	late := &testSession{id: "late"}
	if err := a.Connect(context.Background(), late); err != nil {
		t.Fatalf("connect: %v", err)
	}
	send(t, a, "now")
	if len(late.frames) != 1 || late.frames[0].Message.Content != "now" {
		t.Fatalf("late frames = %+v", late.frames)
	}
}

func TestDisconnectStopsDelivery(t *testing.T) {
	e := newEnv(t)
	a := e.actor(RoomKey("r1"), 500)
	s := &testSession{id: "s1"}
	if err := a.Connect(context.Background(), s); err != nil {
		t.Fatalf("connect: %v", err)
	}
	a.Disconnect("s1")
	send(t, a, "after")
	if len(s.frames) != 0 {
		t.Fatalf("detached session still received frames: %+v", s.frames)
	}
}

func TestEmptySendRejected(t *testing.T) {
	e := newEnv(t)
	a := e.actor(RoomKey("r1"), 500)
	if _, err := a.Send(context.Background(), Sender{UserID: "u1"}, "", ""); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("got %v, want ErrEmptyContent", err)
	}
	hist, _ := a.History(context.Background())
	if len(hist) != 0 {
		t.Fatal("rejected send left state behind")
	}
}

func TestAbandonedSendReturnsZeroMessage(t *testing.T) {
	e := newEnv(t)
	a := e.actor(RoomKey("r1"), 500)

	// Hold the key's worker so the send stays queued past the cancel.
	block := make(chan struct{})
	e.disp.Post(a.Key(), func() error {
		<-block
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	msg, err := a.Send(ctx, Sender{UserID: "u1", Username: "ada"}, "queued", "")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if msg != (models.Message{}) {
		t.Fatalf("abandoned send handed back a result: %+v", msg)
	}

	// The queued task still runs once the worker frees up; only the
	// abandoned caller's return value stays zero.
	close(block)
	hist, err := a.History(context.Background())
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 1 || hist[0].Content != "queued" {
		t.Fatalf("history = %v, want [queued]", contents(hist))
	}
}

func TestPersistFailureFailsSendWithoutBroadcast(t *testing.T) {
	e := newEnv(t)
	a := e.actor(RoomKey("r1"), 500)
	send(t, a, "seed")

	s := &testSession{id: "s1"}
	if err := a.Connect(context.Background(), s); err != nil {
		t.Fatalf("connect: %v", err)
	}

	if err := e.db.Close(); err != nil {
		t.Fatalf("close db: %v", err)
	}
	_, err := a.Send(context.Background(), Sender{UserID: "u1"}, "doomed", "")
	if !errors.Is(err, pebblestore.ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
	if len(s.frames) != 0 {
		t.Fatalf("failed persist still broadcast: %+v", s.frames)
	}
}

func TestAttachmentOnlySendAccepted(t *testing.T) {
	e := newEnv(t)
	a := e.actor(RoomKey("r1"), 500)
	msg, err := a.Send(context.Background(), Sender{UserID: "u1"}, "", "blob/abc")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.AttachmentRef != "blob/abc" {
		t.Fatalf("attachment lost: %+v", msg)
	}
}
