package logging

import "time"

func String(key, value string) Field   { return Field{Key: key, Value: value} }
func Int(key string, value int) Field  { return Field{Key: key, Value: value} }
func Int64(key string, value int64) Field { return Field{Key: key, Value: value} }
func Uint64(key string, value uint64) Field { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

func Any(key string, value any) Field { return Field{Key: key, Value: value} }

func Component(name string) Field { return String("component", name) }
func Operation(op string) Field   { return String("operation", op) }
func Latency(d time.Duration) Field { return Duration("latency", d) }
func Count(n int) Field           { return Int("count", n) }

// LSN names a write-ahead-log position field, formatted as decimal since
// safekeepers and the broadcaster exchange raw uint64 offsets, not the
// "hi/lo" hex text the primary uses on the wire.
func LSN(key string, value uint64) Field { return Uint64(key, value) }

// Term names an election-term field.
func Term(value uint64) Field { return Uint64("term", value) }

// PeerAddr names a safekeeper's dial address.
func PeerAddr(addr string) Field { return String("peer_addr", addr) }

// PeerIndex names a safekeeper's configured slot index.
func PeerIndex(i int) Field { return Int("peer_index", i) }

// Quorum names the configured quorum size.
func Quorum(n int) Field { return Int("quorum", n) }

// Seq names a broadcast queue sequence number.
func Seq(n uint64) Field { return Uint64("seq", n) }
