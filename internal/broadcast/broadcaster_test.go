package broadcast

import (
	"context"
	"encoding/binary"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pgdisagg/walbroadcaster/internal/wire"
)

const testFrameSize = wire.HeaderSize

// runFakeSafekeeper plays a full safekeeper session: handshake, accept
// whatever vote it is offered, and ack every WAL frame with the frame's own
// EndLSN, until it reads a quit frame or the connection closes. lag, if
// nonzero, sleeps that long before acking every WAL frame, simulating a
// slow peer.
func runFakeSafekeeper(t *testing.T, ln net.Listener, lag time.Duration) {
	t.Helper()
	conn, err := ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	if _, err := wire.ReadServerInfo(conn); err != nil {
		t.Errorf("fake: ReadServerInfo: %v", err)
		return
	}
	peerInfo := wire.ServerInfo{ProtocolVersion: wire.ProtocolVersion, NodeID: wire.NodeID{Term: 1, UUID: uuid.New()}}
	if err := wire.WriteServerInfo(conn, peerInfo); err != nil {
		t.Errorf("fake: WriteServerInfo: %v", err)
		return
	}

	proposal, err := wire.ReadNodeID(conn)
	if err != nil {
		t.Errorf("fake: ReadNodeID: %v", err)
		return
	}
	if err := wire.WriteNodeID(conn, proposal); err != nil {
		t.Errorf("fake: WriteNodeID: %v", err)
		return
	}

	for {
		frame, ok, err := readWALFrame(conn)
		if err != nil {
			return
		}
		if !ok {
			return
		}
		if lag > 0 {
			time.Sleep(lag)
		}
		if err := wire.WriteAck(conn, frame.EndLSN); err != nil {
			return
		}
	}
}

// readWALFrame reads one 'w'-tagged frame off conn the way a real safekeeper
// does: the fixed header first, then start_lsn/end_lsn tell it exactly how
// many more payload bytes to read, since the broadcaster rewrites end_lsn
// on enqueue for precisely this reason. Returns ok=false on a quit frame.
func readWALFrame(conn net.Conn) (wire.WALFrame, bool, error) {
	header := make([]byte, testFrameSize)
	if _, err := readFullConn(conn, header); err != nil {
		return wire.WALFrame{}, false, err
	}
	if header[0] == 'q' {
		return wire.WALFrame{}, false, nil
	}
	frame, err := wire.DecodeWAL(header)
	if err != nil {
		return wire.WALFrame{}, false, err
	}
	if payloadLen := frame.EndLSN - frame.StartLSN; payloadLen > 0 {
		buf := make([]byte, wire.HeaderSize+payloadLen)
		copy(buf, header)
		if _, err := readFullConn(conn, buf[wire.HeaderSize:]); err != nil {
			return wire.WALFrame{}, false, err
		}
		frame.Raw = buf
	}
	return frame, true, nil
}

// runFakeSafekeeperWithWalEnd behaves like runFakeSafekeeper but advertises
// walEnd in its handshake ServerInfo, the way a safekeeper reports how much
// WAL it already holds.
func runFakeSafekeeperWithWalEnd(t *testing.T, ln net.Listener, walEnd uint64) {
	t.Helper()
	conn, err := ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	if _, err := wire.ReadServerInfo(conn); err != nil {
		return
	}
	peerInfo := wire.ServerInfo{ProtocolVersion: wire.ProtocolVersion, NodeID: wire.NodeID{Term: 1, UUID: uuid.New()}, WalEnd: walEnd}
	if err := wire.WriteServerInfo(conn, peerInfo); err != nil {
		return
	}

	proposal, err := wire.ReadNodeID(conn)
	if err != nil {
		return
	}
	_ = wire.WriteNodeID(conn, proposal)

	for {
		_, ok, err := readWALFrame(conn)
		if err != nil || !ok {
			return
		}
	}
}

func readFullConn(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// makeWALFrame builds a 'w' frame with a payload sized so that
// start_lsn+len(payload) equals endLSN, matching what enqueue rewrites
// the header to. The header's own end_lsn is deliberately left at
// startLSN (as if the primary hadn't set it) since the broadcaster is
// expected to derive it from size, not trust the header.
func makeWALFrame(startLSN, endLSN uint64) []byte {
	payload := make([]byte, endLSN-startLSN)
	buf := make([]byte, wire.HeaderSize+len(payload))
	buf[0] = wire.TagWAL
	binary.BigEndian.PutUint64(buf[1:9], startLSN)
	binary.BigEndian.PutUint64(buf[9:17], startLSN)
	binary.BigEndian.PutUint64(buf[17:25], 0)
	copy(buf[wire.HeaderSize:], payload)
	return buf
}

// makePrimaryFrame builds a 'w' frame the way a real primary stream would:
// the header's end_lsn is whatever the primary happened to write (here,
// deliberately wrong), and payload is appended after the fixed header. It
// exists to prove enqueue derives end_lsn from the frame's own size rather
// than trusting the header, since a real primary's buffer boundaries don't
// necessarily land where this broadcaster splits messages.
func makePrimaryFrame(startLSN, bogusEndLSN uint64, payload []byte) []byte {
	buf := make([]byte, wire.HeaderSize+len(payload))
	buf[0] = wire.TagWAL
	binary.BigEndian.PutUint64(buf[1:9], startLSN)
	binary.BigEndian.PutUint64(buf[9:17], bogusEndLSN)
	binary.BigEndian.PutUint64(buf[17:25], 0)
	copy(buf[wire.HeaderSize:], payload)
	return buf
}

// TestHandleUpstreamRewritesEndLSN covers the review-driven fix: enqueue
// must rewrite a primary frame's end_lsn to start_lsn+len(payload) so
// safekeepers can recover record size without reparsing, rather than
// trusting whatever end_lsn the primary's buffer happened to carry.
func TestHandleUpstreamRewritesEndLSN(t *testing.T) {
	b, err := New(Config{
		Addrs:   []string{"127.0.0.1:1"},
		Quorum:  1,
		LocalID: wire.NodeID{Term: 0, UUID: uuid.New()},
		BaseInfo: wire.ServerInfo{
			ProtocolVersion: wire.ProtocolVersion,
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	payload := []byte("some wal bytes")
	frame := makePrimaryFrame(1000, 9999999, payload)

	if err := b.handleUpstream(UpstreamEvent{Kind: UpstreamWAL, Frame: frame}); err != nil {
		t.Fatalf("handleUpstream: %v", err)
	}

	msgs := b.queue.All()
	if len(msgs) != 1 {
		t.Fatalf("queue has %d messages, want 1", len(msgs))
	}

	wantEndLSN := uint64(1000) + uint64(len(payload))
	if msgs[0].EndLSN != wantEndLSN {
		t.Errorf("queued EndLSN = %d, want %d", msgs[0].EndLSN, wantEndLSN)
	}

	decoded, err := wire.DecodeWAL(msgs[0].Frame)
	if err != nil {
		t.Fatalf("DecodeWAL: %v", err)
	}
	if decoded.EndLSN != wantEndLSN {
		t.Errorf("rewritten frame header EndLSN = %d, want %d (bogus header value must not survive enqueue)", decoded.EndLSN, wantEndLSN)
	}
}

// TestBroadcasterQuorumTwoOfThree covers spec.md §8's headline scenario:
// with 3 safekeepers and quorum 2, one lagging peer must not block commit,
// and the primary stream ending must drain the queue before Run returns.
func TestBroadcasterQuorumTwoOfThree(t *testing.T) {
	var addrs []string
	var listeners []net.Listener
	for i := 0; i < 3; i++ {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
		listeners = append(listeners, ln)
		addrs = append(addrs, ln.Addr().String())
	}
	defer func() {
		for _, ln := range listeners {
			ln.Close()
		}
	}()

	// Peer 2 is slow; quorum 2 of 3 must still be reached without it.
	go runFakeSafekeeper(t, listeners[0], 0)
	go runFakeSafekeeper(t, listeners[1], 0)
	go runFakeSafekeeper(t, listeners[2], 300*time.Millisecond)

	b, err := New(Config{
		Addrs:   addrs,
		Quorum:  2,
		LocalID: wire.NodeID{Term: 0, UUID: uuid.New()},
		BaseInfo: wire.ServerInfo{
			ProtocolVersion: wire.ProtocolVersion,
			PgVersion:       150004,
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	walEvents := make(chan UpstreamEvent, 4)
	feedback := make(chan []byte, 4)

	walEvents <- UpstreamEvent{Kind: UpstreamWAL, Frame: makeWALFrame(0, 100)}
	walEvents <- UpstreamEvent{Kind: UpstreamWAL, Frame: makeWALFrame(100, 200)}
	walEvents <- UpstreamEvent{Kind: UpstreamStreamEnd}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- b.Run(ctx, walEvents, feedback) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-ctx.Done():
		t.Fatal("Run did not complete before timeout")
	}

	if b.lastAckLSN != 200 {
		t.Errorf("lastAckLSN = %d, want 200 (full drain, all 3 peers eventually ack)", b.lastAckLSN)
	}
	if b.queue.Len() != 0 {
		t.Errorf("queue not drained: %d messages left", b.queue.Len())
	}

	sawFeedback := false
	for {
		select {
		case buf := <-feedback:
			if len(buf) > 0 && buf[0] == wire.TagFeedback {
				sawFeedback = true
			}
		default:
			if !sawFeedback {
				t.Error("expected at least one feedback frame")
			}
			return
		}
	}
}

// TestPeerHandshakeSeedsAckLSN covers the review-driven fix: a peer's
// AckLSN must start at its reported WalEnd, not zero, so a freshly
// reconnected safekeeper with WAL already on disk immediately counts
// toward quorum commit instead of looking like it has nothing. Observed
// indirectly through the QuorumReached snapshot, since peer state belongs
// to the owning loop and must not be read from the test goroutine while
// Run is still active.
func TestPeerHandshakeSeedsAckLSN(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go runFakeSafekeeperWithWalEnd(t, ln, 12345)

	acked := make(chan uint64, 1)
	b, err := New(Config{
		Addrs:   []string{ln.Addr().String()},
		Quorum:  1,
		LocalID: wire.NodeID{Term: 0, UUID: uuid.New()},
		BaseInfo: wire.ServerInfo{
			ProtocolVersion: wire.ProtocolVersion,
		},
		QuorumReached: func(acks []uint64) {
			acked <- acks[0]
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	walEvents := make(chan UpstreamEvent, 1)
	feedback := make(chan []byte, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- b.Run(ctx, walEvents, feedback) }()

	select {
	case got := <-acked:
		if got != 12345 {
			t.Errorf("AckLSN snapshot = %d, want 12345 seeded from handshake WalEnd", got)
		}
	case <-ctx.Done():
		t.Fatal("QuorumReached did not fire before timeout")
	}

	cancel()
	<-done
}

// TestQuorumReachedFiresWithAckSnapshot covers the deferred-START_REPLICATION
// hook: once quorum is reached, Config.QuorumReached must fire exactly once
// with a snapshot of the current ack LSNs, so a caller can compute the
// primary's replication start position from real quorum state rather than
// starting blind.
func TestQuorumReachedFiresWithAckSnapshot(t *testing.T) {
	var addrs []string
	var listeners []net.Listener
	for i := 0; i < 3; i++ {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
		listeners = append(listeners, ln)
		addrs = append(addrs, ln.Addr().String())
	}
	defer func() {
		for _, ln := range listeners {
			ln.Close()
		}
	}()

	walEnds := []uint64{500, 700, 0}
	for i, ln := range listeners {
		go runFakeSafekeeperWithWalEnd(t, ln, walEnds[i])
	}

	var mu sync.Mutex
	var gotAcks []uint64
	fired := make(chan struct{})

	b, err := New(Config{
		Addrs:   addrs,
		Quorum:  2,
		LocalID: wire.NodeID{Term: 0, UUID: uuid.New()},
		BaseInfo: wire.ServerInfo{
			ProtocolVersion: wire.ProtocolVersion,
			PgVersion:       150004,
		},
		QuorumReached: func(acks []uint64) {
			mu.Lock()
			gotAcks = append([]uint64(nil), acks...)
			mu.Unlock()
			close(fired)
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	walEvents := make(chan UpstreamEvent, 1)
	feedback := make(chan []byte, 4)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- b.Run(ctx, walEvents, feedback) }()

	select {
	case <-fired:
	case <-ctx.Done():
		t.Fatal("QuorumReached did not fire before timeout")
	}

	close(walEvents)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not complete after stream end")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(gotAcks) != 3 {
		t.Fatalf("gotAcks = %v, want 3 entries", gotAcks)
	}
	for _, a := range gotAcks {
		if a != 500 && a != 700 && a != 0 {
			t.Errorf("unexpected ack %d in quorum snapshot", a)
		}
	}
}
