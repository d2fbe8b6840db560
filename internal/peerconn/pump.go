package peerconn

import (
	"context"

	"github.com/pgdisagg/walbroadcaster/internal/wire"
)

// Run drives one safekeeper connection end to end: dial, handshake, then a
// command/event loop until ctx is cancelled, a CmdQuit is received, or an
// I/O error occurs. It is meant to be started with `go peerconn.Run(...)`
// once per configured safekeeper; every outcome — including failure — is
// reported on events so the owning loop never blocks waiting on a peer that
// has died.
//
// Run never touches broadcaster state. It only sequences bytes on the wire
// and turns them into Events, and only acts on Commands it is given; the
// decision of *when* to propose a vote or *which* WAL frame to send next
// belongs entirely to internal/broadcast.
func Run(ctx context.Context, peerIndex int, addr string, localInfo wire.ServerInfo, events chan<- Event, commands <-chan Command) {
	fail := func(err error) {
		select {
		case events <- Event{PeerIndex: peerIndex, Kind: EventError, Err: err}:
		case <-ctx.Done():
		}
	}

	conn, err := Dial(ctx, addr)
	if err != nil {
		fail(err)
		return
	}
	defer conn.Close()

	if err := conn.SendServerInfo(localInfo); err != nil {
		fail(err)
		return
	}
	select {
	case events <- Event{PeerIndex: peerIndex, Kind: EventConnected}:
	case <-ctx.Done():
		return
	}

	peerInfo, err := conn.RecvServerInfo()
	if err != nil {
		fail(err)
		return
	}
	select {
	case events <- Event{PeerIndex: peerIndex, Kind: EventHandshake, Info: peerInfo}:
	case <-ctx.Done():
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-commands:
			if !ok {
				return
			}
			if !runCommand(ctx, peerIndex, conn, cmd, events) {
				return
			}
		}
	}
}

// runCommand executes one Command and reports its outcome. It returns false
// when the pump should stop (quit or fatal I/O error).
func runCommand(ctx context.Context, peerIndex int, conn *Conn, cmd Command, events chan<- Event) bool {
	send := func(ev Event) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	switch cmd.Kind {
	case CmdProposeVote:
		if err := conn.SendNodeID(cmd.Proposal); err != nil {
			send(Event{PeerIndex: peerIndex, Kind: EventError, Err: err})
			return false
		}
		verdict, err := conn.RecvNodeID()
		if err != nil {
			send(Event{PeerIndex: peerIndex, Kind: EventError, Err: err})
			return false
		}
		return send(Event{PeerIndex: peerIndex, Kind: EventVerdict, Verdict: verdict})

	case CmdSendWAL:
		if err := conn.SendWAL(cmd.WAL); err != nil {
			send(Event{PeerIndex: peerIndex, Kind: EventError, Err: err})
			return false
		}
		if !send(Event{PeerIndex: peerIndex, Kind: EventWriteDone}) {
			return false
		}
		ackLSN, err := conn.RecvAck()
		if err != nil {
			send(Event{PeerIndex: peerIndex, Kind: EventError, Err: err})
			return false
		}
		return send(Event{PeerIndex: peerIndex, Kind: EventAck, AckLSN: ackLSN})

	case CmdQuit:
		_ = conn.SendQuit(wire.QuitBuffer(wire.HeaderSize))
		return false

	default:
		return true
	}
}
