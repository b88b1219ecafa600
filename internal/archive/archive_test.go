package archive

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Trust-in-depth/BAYKUS/internal/models"
)

type memStore struct {
	mu   sync.Mutex
	puts map[string][]byte
	fail error
}

func (m *memStore) Put(_ context.Context, key string, data []byte) error {
	if m.fail != nil {
		return m.fail
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.puts == nil {
		m.puts = make(map[string][]byte)
	}
	m.puts[key] = append([]byte(nil), data...)
	return nil
}

func TestHandoffWritesBatch(t *testing.T) {
	st := &memStore{}
	a := NewArchiver(st, zerolog.Nop())
	at := time.UnixMilli(1_700_000_000_000)
	a.Handoff(Batch{
		SourceKey:   "room:r1",
		Messages:    []models.Message{{ID: "m1", Content: "a", Seq: 1}},
		RequestedAt: at,
	})
	a.Wait()

	key := ObjectKey("room:r1", at)
	data, ok := st.puts[key]
	if !ok {
		t.Fatalf("expected object at %q, got keys %v", key, st.puts)
	}
	var msgs []models.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		t.Fatalf("unmarshal archived batch: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "a" {
		t.Fatalf("unexpected batch: %+v", msgs)
	}
}

func TestHandoffFailureIsSwallowed(t *testing.T) {
	st := &memStore{fail: errors.New("bucket down")}
	a := NewArchiver(st, zerolog.Nop())
	a.Handoff(Batch{SourceKey: "room:r1", Messages: []models.Message{{ID: "m1"}}})
	// Must not panic or surface anywhere; Wait just returns.
	a.Wait()
}

func TestHandoffSkipsEmptyBatch(t *testing.T) {
	st := &memStore{}
	a := NewArchiver(st, zerolog.Nop())
	a.Handoff(Batch{SourceKey: "room:r1"})
	a.Wait()
	if len(st.puts) != 0 {
		t.Fatalf("empty batch produced a write: %v", st.puts)
	}
}

func TestFSStorePut(t *testing.T) {
	root := t.TempDir()
	st, err := NewFSStore(root)
	if err != nil {
		t.Fatalf("new fs store: %v", err)
	}
	if err := st.Put(context.Background(), "room/r1/123.json", []byte(`[]`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(root, "room", "r1", "123.json"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "[]" {
		t.Fatalf("got %q", data)
	}
}

func TestObjectKey(t *testing.T) {
	got := ObjectKey("r1", time.UnixMilli(42))
	if got != "room/r1/42.json" {
		t.Fatalf("got %q", got)
	}
}
