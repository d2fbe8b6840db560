package broadcast

// WalMessage is one queued 'w' frame, held until every peer has acked it.
// Messages are referenced by Seq, never by pointer, so the queue can be
// trimmed and walked without any peer holding a dangling reference.
type WalMessage struct {
	Seq      uint64
	StartLSN uint64
	EndLSN   uint64
	Frame    []byte // fully framed 'w' buffer, ready to write verbatim
	acked    []bool // per-peer ack set, sized to the configured peer count
}

// newWalMessage wraps a frame with a fresh, all-false ack set. peerCount
// replaces the fixed uint64 bitmask the original design used, which capped
// the deployment at 64 safekeepers (spec.md Open Question 4).
func newWalMessage(seq uint64, startLSN, endLSN uint64, frame []byte, peerCount int) *WalMessage {
	return &WalMessage{
		Seq:      seq,
		StartLSN: startLSN,
		EndLSN:   endLSN,
		Frame:    frame,
		acked:    make([]bool, peerCount),
	}
}

// Ack marks peerIndex as having acknowledged this message.
func (m *WalMessage) Ack(peerIndex int) {
	if peerIndex >= 0 && peerIndex < len(m.acked) {
		m.acked[peerIndex] = true
	}
}

// AckedBy reports whether peerIndex has acknowledged this message.
func (m *WalMessage) AckedBy(peerIndex int) bool {
	if peerIndex < 0 || peerIndex >= len(m.acked) {
		return false
	}
	return m.acked[peerIndex]
}

// AckCount returns how many peers have acknowledged this message.
func (m *WalMessage) AckCount() int {
	n := 0
	for _, ok := range m.acked {
		if ok {
			n++
		}
	}
	return n
}

// Queue is the FIFO of undelivered-or-unacked WAL messages, ordered by Seq.
// It is owned exclusively by the event loop.
type Queue struct {
	peerCount int
	nextSeq   uint64
	msgs      []*WalMessage
}

// NewQueue creates an empty queue sized for peerCount safekeepers.
func NewQueue(peerCount int) *Queue {
	return &Queue{peerCount: peerCount}
}

// Push appends a new WAL frame to the tail of the queue and returns it.
func (q *Queue) Push(startLSN, endLSN uint64, frame []byte) *WalMessage {
	m := newWalMessage(q.nextSeq, startLSN, endLSN, frame, q.peerCount)
	q.nextSeq++
	q.msgs = append(q.msgs, m)
	return m
}

// Len returns the number of messages still in the queue.
func (q *Queue) Len() int {
	return len(q.msgs)
}

// All returns the queue contents oldest-first. Callers must not retain the
// returned slice across a Trim.
func (q *Queue) All() []*WalMessage {
	return q.msgs
}

// FirstUnackedFor walks the queue from the head and returns the oldest
// message peerIndex has not yet acknowledged, or nil if it is caught up.
// This is the "full queue walk" redelivery policy (spec.md Open Question
// 2): a reconnecting peer is resent every message it missed, oldest first,
// rather than only the newest.
func (q *Queue) FirstUnackedFor(peerIndex int) *WalMessage {
	for _, m := range q.msgs {
		if !m.AckedBy(peerIndex) {
			return m
		}
	}
	return nil
}

// Trim drops every message at the head of the queue that has been
// acknowledged by all peerCount peers, since no future dispatch or quorum
// computation needs them anymore (spec.md §8 testable property 3).
func (q *Queue) Trim() {
	i := 0
	for i < len(q.msgs) && q.msgs[i].AckCount() >= q.peerCount {
		i++
	}
	if i > 0 {
		q.msgs = q.msgs[i:]
	}
}
