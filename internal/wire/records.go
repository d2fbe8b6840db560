package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// ProtocolVersion is the fixed constant transmitted in the first ServerInfo
// exchanged with a peer. A mismatch is fatal to the whole broadcaster run.
const ProtocolVersion uint32 = 1

// byteOrder is used for every broadcaster<->safekeeper binary record. The
// spec leaves this implementation-defined as long as both ends agree;
// little-endian matches the on-disk record layout the teacher's WAL codec
// uses (encoding/binary, binary.LittleEndian).
var byteOrder = binary.LittleEndian

// NodeID identifies a candidate leader: a monotonic term plus a random
// UUID used to break ties between broadcasters proposing the same term.
type NodeID struct {
	Term uint64
	UUID uuid.UUID
}

// nodeIDSize is the encoded size of a NodeID record.
const nodeIDSize = 8 + 16

// Compare orders NodeIDs by term ascending, then by UUID byte-wise. It
// implements the total order spec.md §3 requires (and fixes the C source's
// self-comparison typo called out in DESIGN.md: the intended semantics is a
// full lexicographic UUID compare, not comparing a value to itself).
func (n NodeID) Compare(other NodeID) int {
	if n.Term != other.Term {
		if n.Term < other.Term {
			return -1
		}
		return 1
	}
	return bytes.Compare(n.UUID[:], other.UUID[:])
}

func (n NodeID) encode() []byte {
	buf := make([]byte, nodeIDSize)
	byteOrder.PutUint64(buf[0:8], n.Term)
	copy(buf[8:24], n.UUID[:])
	return buf
}

func decodeNodeID(buf []byte) (NodeID, error) {
	if len(buf) < nodeIDSize {
		return NodeID{}, fmt.Errorf("wire: short NodeID record (%d bytes)", len(buf))
	}
	var id NodeID
	id.Term = byteOrder.Uint64(buf[0:8])
	copy(id.UUID[:], buf[8:24])
	return id, nil
}

// WriteNodeID writes a NodeID record: used for both the vote proposal
// (broadcaster -> peer) and the vote verdict (peer -> broadcaster).
func WriteNodeID(w io.Writer, id NodeID) error {
	_, err := w.Write(id.encode())
	return err
}

// ReadNodeID reads a NodeID record.
func ReadNodeID(r io.Reader) (NodeID, error) {
	buf := make([]byte, nodeIDSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return NodeID{}, err
	}
	return decodeNodeID(buf)
}

// ServerInfo is sent once by the broadcaster at handshake, and returned by
// each peer describing itself.
type ServerInfo struct {
	ProtocolVersion uint32
	PgVersion       uint32
	SystemID        uint64
	WalSegSize      uint64
	Timeline        uint32
	WalEnd          uint64
	NodeID          NodeID
}

// serverInfoSize is the encoded size of a ServerInfo record. Fields are
// fixed-width and fixed-order so that both ends agree without a schema.
const serverInfoSize = 4 + 4 + 8 + 8 + 4 + 8 + nodeIDSize

func (s ServerInfo) encode() []byte {
	buf := make([]byte, serverInfoSize)
	byteOrder.PutUint32(buf[0:4], s.ProtocolVersion)
	byteOrder.PutUint32(buf[4:8], s.PgVersion)
	byteOrder.PutUint64(buf[8:16], s.SystemID)
	byteOrder.PutUint64(buf[16:24], s.WalSegSize)
	byteOrder.PutUint32(buf[24:28], s.Timeline)
	byteOrder.PutUint64(buf[28:36], s.WalEnd)
	copy(buf[36:36+nodeIDSize], s.NodeID.encode())
	return buf
}

func decodeServerInfo(buf []byte) (ServerInfo, error) {
	if len(buf) < serverInfoSize {
		return ServerInfo{}, fmt.Errorf("wire: short ServerInfo record (%d bytes)", len(buf))
	}
	var s ServerInfo
	s.ProtocolVersion = byteOrder.Uint32(buf[0:4])
	s.PgVersion = byteOrder.Uint32(buf[4:8])
	s.SystemID = byteOrder.Uint64(buf[8:16])
	s.WalSegSize = byteOrder.Uint64(buf[16:24])
	s.Timeline = byteOrder.Uint32(buf[24:28])
	s.WalEnd = byteOrder.Uint64(buf[28:36])
	id, err := decodeNodeID(buf[36 : 36+nodeIDSize])
	if err != nil {
		return ServerInfo{}, err
	}
	s.NodeID = id
	return s, nil
}

// WriteServerInfo writes a ServerInfo record.
func WriteServerInfo(w io.Writer, info ServerInfo) error {
	_, err := w.Write(info.encode())
	return err
}

// ReadServerInfo reads a ServerInfo record.
func ReadServerInfo(r io.Reader) (ServerInfo, error) {
	buf := make([]byte, serverInfoSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return ServerInfo{}, err
	}
	return decodeServerInfo(buf)
}

// WriteAck writes the u64 ack LSN a safekeeper returns after flushing a WAL
// frame.
func WriteAck(w io.Writer, lsn uint64) error {
	buf := make([]byte, 8)
	byteOrder.PutUint64(buf, lsn)
	_, err := w.Write(buf)
	return err
}

// ReadAck reads the u64 ack LSN.
func ReadAck(r io.Reader) (uint64, error) {
	buf := make([]byte, 8)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	return byteOrder.Uint64(buf), nil
}

// QuitBuffer is the WAL-sized buffer sent to tell a safekeeper to
// disconnect: its first byte is 'q', the rest is unused padding so that it
// round-trips through the same fixed-size framing as a WAL frame.
func QuitBuffer(size int) []byte {
	if size < 1 {
		size = HeaderSize
	}
	buf := make([]byte, size)
	buf[0] = 'q'
	return buf
}
