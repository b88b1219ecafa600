package conversation

import "encoding/binary"

// Keyspace helpers for Pebble keys.
//
// Layout (byte-wise, lexicographically sortable):
// - conv/{key}/m            meta: lastSeq(be8) count(be8) lastSentAt(be8)
// - conv/{key}/e/{seq_be8}  one retained message per sequence number
//
// {key} is the actor key ("room:{id}" or "dm:{low}:{high}"); distinct keys
// occupy disjoint prefixes, which is what keeps actor state from ever being
// shared.

var (
	convPrefix = []byte("conv/")
	metaSuffix = []byte("/m")
	entrySeg   = []byte("/e/")
)

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

// keyMeta builds the actor metadata key.
func keyMeta(actorKey string) []byte {
	k := make([]byte, 0, len(convPrefix)+len(actorKey)+len(metaSuffix))
	k = append(k, convPrefix...)
	k = append(k, actorKey...)
	k = append(k, metaSuffix...)
	return k
}

// keyEntry builds an entry key with a big-endian sequence for ordering.
func keyEntry(actorKey string, seq uint64) []byte {
	k := make([]byte, 0, len(convPrefix)+len(actorKey)+len(entrySeg)+8)
	k = append(k, convPrefix...)
	k = append(k, actorKey...)
	k = append(k, entrySeg...)
	k = appendBE8(k, seq)
	return k
}

// entryBounds returns the [low, high) iterator bounds covering every entry
// of one actor.
func entryBounds(actorKey string) (low, high []byte) {
	low = keyEntry(actorKey, 0)
	high = keyEntry(actorKey, ^uint64(0))
	high = append(high, 0x00)
	return low, high
}

// entrySeq extracts the sequence from an entry key.
func entrySeq(key []byte) uint64 {
	return binary.BigEndian.Uint64(key[len(key)-8:])
}

// meta is the small durable header for one conversation actor.
type meta struct {
	lastSeq    uint64
	count      uint64
	lastSentAt int64
}

func encodeMeta(m meta) []byte {
	b := make([]byte, 24)
	binary.BigEndian.PutUint64(b[0:8], m.lastSeq)
	binary.BigEndian.PutUint64(b[8:16], m.count)
	binary.BigEndian.PutUint64(b[16:24], uint64(m.lastSentAt))
	return b
}

func decodeMeta(b []byte) (meta, bool) {
	if len(b) < 24 {
		return meta{}, false
	}
	return meta{
		lastSeq:    binary.BigEndian.Uint64(b[0:8]),
		count:      binary.BigEndian.Uint64(b[8:16]),
		lastSentAt: int64(binary.BigEndian.Uint64(b[16:24])),
	}, true
}
