// Package wire implements the framing used on both sides of the broadcaster:
// the primary's replication copy-data stream (tags 'w', 'k', 'r') and the
// fixed-layout binary records exchanged with safekeepers.
package wire

import (
	"encoding/binary"
	"errors"
)

// Copy-data tags on the primary<->broadcaster channel.
const (
	TagWAL      byte = 'w'
	TagKeepalive byte = 'k'
	TagFeedback  byte = 'r'
)

// HeaderSize is the size of a 'w'-tagged copy-data header: tag + start_lsn +
// end_lsn + send_time.
const HeaderSize = 1 + 8 + 8 + 8

const (
	offsetTag      = 0
	offsetStartLSN = 1
	offsetEndLSN   = 9
	offsetSendTime = 17
)

// InvalidLSN is the zero LSN, used where the spec calls for "no data yet".
const InvalidLSN uint64 = 0

var (
	// ErrShortFrame is returned when a copy-data buffer is smaller than a
	// tag byte.
	ErrShortFrame = errors.New("wire: copy-data frame is empty")
	// ErrShortWALFrame is returned when a 'w'-tagged frame is shorter than
	// its fixed header.
	ErrShortWALFrame = errors.New("wire: WAL frame shorter than header")
)

// WALFrame is a decoded 'w'-tagged copy-data buffer. Raw retains the raw
// buffer including the header, because safekeepers expect the verbatim
// buffer (with EndLSN rewritten) on the wire.
type WALFrame struct {
	StartLSN uint64
	EndLSN   uint64
	SendTime int64
	Raw      []byte // full buffer including header, tag included
}

// Tag returns the first byte of a copy-data buffer, or an error if empty.
func Tag(buf []byte) (byte, error) {
	if len(buf) == 0 {
		return 0, ErrShortFrame
	}
	return buf[0], nil
}

// DecodeWAL parses a 'w'-tagged copy-data buffer. The returned WALFrame
// shares the backing array with buf.
func DecodeWAL(buf []byte) (WALFrame, error) {
	if len(buf) < HeaderSize {
		return WALFrame{}, ErrShortWALFrame
	}
	return WALFrame{
		StartLSN: binary.BigEndian.Uint64(buf[offsetStartLSN:offsetEndLSN]),
		EndLSN:   binary.BigEndian.Uint64(buf[offsetEndLSN:offsetSendTime]),
		SendTime: int64(binary.BigEndian.Uint64(buf[offsetSendTime:HeaderSize])),
		Raw:      buf,
	}, nil
}

// RewriteEndLSN patches the end_lsn slot of a 'w' frame in place. The
// broadcaster uses this so that safekeepers can recover the record size
// without re-parsing the primary's original header.
func RewriteEndLSN(buf []byte, endLSN uint64) error {
	if len(buf) < HeaderSize {
		return ErrShortWALFrame
	}
	binary.BigEndian.PutUint64(buf[offsetEndLSN:offsetSendTime], endLSN)
	return nil
}

// FeedbackFrame is the 'r'-tagged standby status update sent upstream.
type FeedbackFrame struct {
	WriteLSN       uint64
	FlushLSN       uint64
	ApplyLSN       uint64
	SendTime       int64
	ReplyRequested bool
}

// FeedbackSize is the encoded size of a FeedbackFrame, tag included.
const FeedbackSize = 1 + 8 + 8 + 8 + 8 + 1

// Encode serializes the feedback frame in the primary's replication wire
// format: big-endian integers, matching the physical replication protocol.
func (f FeedbackFrame) Encode() []byte {
	buf := make([]byte, FeedbackSize)
	buf[0] = TagFeedback
	binary.BigEndian.PutUint64(buf[1:9], f.WriteLSN)
	binary.BigEndian.PutUint64(buf[9:17], f.FlushLSN)
	binary.BigEndian.PutUint64(buf[17:25], f.ApplyLSN)
	binary.BigEndian.PutUint64(buf[25:33], uint64(f.SendTime))
	if f.ReplyRequested {
		buf[33] = 1
	}
	return buf
}

// ErrShortFeedbackFrame is returned when a buffer is too small to hold a
// FeedbackFrame.
var ErrShortFeedbackFrame = errors.New("wire: feedback frame shorter than expected")

// DecodeFeedback parses an 'r'-tagged copy-data buffer, the inverse of
// Encode. Broadcaster code never needs this (it only writes feedback
// frames), but tests and any future replay tooling do.
func DecodeFeedback(buf []byte) (FeedbackFrame, error) {
	if len(buf) < FeedbackSize {
		return FeedbackFrame{}, ErrShortFeedbackFrame
	}
	return FeedbackFrame{
		WriteLSN:       binary.BigEndian.Uint64(buf[1:9]),
		FlushLSN:       binary.BigEndian.Uint64(buf[9:17]),
		ApplyLSN:       binary.BigEndian.Uint64(buf[17:25]),
		SendTime:       int64(binary.BigEndian.Uint64(buf[25:33])),
		ReplyRequested: buf[33] != 0,
	}, nil
}

// AlignToSegment rounds an LSN down to the start of its WAL segment, as
// required before issuing START_REPLICATION (spec invariant: the reported
// commit LSN is always segment-aligned when used as a replication start
// point).
func AlignToSegment(lsn uint64, segSize uint64) uint64 {
	if segSize == 0 {
		return lsn
	}
	return lsn - (lsn % segSize)
}
