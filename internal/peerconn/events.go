// Package peerconn is the connection layer: one goroutine per safekeeper
// ("I/O pump") that performs blocking dial and read/write I/O and reports
// every outcome as an Event on a channel shared by all peers. It never
// touches broadcaster state directly — see SPEC_FULL.md §4.1.
package peerconn

import "github.com/pgdisagg/walbroadcaster/internal/wire"

// EventKind discriminates the payload carried by an Event.
type EventKind int

const (
	// EventConnected fires once dial succeeds and the local ServerInfo has
	// been sent.
	EventConnected EventKind = iota
	// EventHandshake fires when the peer's own ServerInfo has been fully
	// received.
	EventHandshake
	// EventVerdict fires when a vote verdict NodeID has been received.
	EventVerdict
	// EventWriteDone fires when a queued WAL frame has been fully written.
	EventWriteDone
	// EventAck fires when the peer's ack LSN for the in-flight frame has
	// been received.
	EventAck
	// EventError fires on any I/O failure; the pump exits after sending it.
	EventError
)

// Event is sent by a peer's I/O pump to the owning event loop.
type Event struct {
	PeerIndex int
	Kind      EventKind
	Info      wire.ServerInfo
	Verdict   wire.NodeID
	AckLSN    uint64
	Err       error
}

// CommandKind discriminates the payload carried by a Command.
type CommandKind int

const (
	// CmdProposeVote tells a peer in the Vote state to send the decided
	// candidate NodeID and wait for its verdict.
	CmdProposeVote CommandKind = iota
	// CmdSendWAL tells an Idle peer to write a WAL frame and then wait for
	// its ack.
	CmdSendWAL
	// CmdQuit tells the pump to send the quit buffer and shut down.
	CmdQuit
)

// Command is sent by the owning event loop to a single peer's I/O pump.
type Command struct {
	Kind     CommandKind
	Proposal wire.NodeID
	WAL      []byte
}
