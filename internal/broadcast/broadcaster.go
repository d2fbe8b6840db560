package broadcast

import (
	"context"
	"fmt"
	"time"

	"github.com/pgdisagg/walbroadcaster/internal/election"
	"github.com/pgdisagg/walbroadcaster/internal/logging"
	"github.com/pgdisagg/walbroadcaster/internal/peerconn"
	"github.com/pgdisagg/walbroadcaster/internal/safekeeper"
	"github.com/pgdisagg/walbroadcaster/internal/wire"
)

// Config carries everything Broadcaster needs to start a run.
type Config struct {
	Addrs      []string // one per configured safekeeper, in stable order
	Quorum     int
	LocalID    wire.NodeID
	BaseInfo   wire.ServerInfo // ProtocolVersion/PgVersion/SystemID/Timeline/WalEnd; NodeID is overwritten
	Logger     logging.Logger
	Metrics    Metrics
	StatusFeed StatusFeed

	// QuorumReached is invoked exactly once, the moment the leader-election
	// vote round decides (spec.md §4.3: "once n_votes reaches quorum"), with
	// a snapshot of every peer's AckLSN at that instant. It runs on its own
	// goroutine so a slow caller (issuing START_REPLICATION against the
	// primary, say) never blocks the owning loop. May be nil.
	QuorumReached func(ackLSNs []uint64)
}

// Broadcaster is the owning event loop: the only goroutine that ever
// mutates peer state, the queue, or the ballot. Everything else is a pure
// I/O pump reporting events on a channel.
type Broadcaster struct {
	cfg      Config
	peers    []*safekeeper.Peer
	commands []chan peerconn.Command
	events   chan peerconn.Event
	queue    *Queue
	ballot   *election.Ballot

	lastAckLSN uint64
	streaming  bool

	voteRoundStart time.Time

	log        logging.Logger
	metrics    Metrics
	statusFeed StatusFeed
}

// New builds a Broadcaster ready for Run. It does not start any I/O.
func New(cfg Config) (*Broadcaster, error) {
	n := len(cfg.Addrs)
	if cfg.Quorum <= 0 || cfg.Quorum > n {
		return nil, fmt.Errorf("broadcast: %w (quorum=%d, peers=%d)", ErrQuorumUnreachable, cfg.Quorum, n)
	}

	log := cfg.Logger
	if log == nil {
		log = logging.NewNopLogger()
	}
	m := cfg.Metrics
	if m == nil {
		m = nopMetrics{}
	}
	sf := cfg.StatusFeed
	if sf == nil {
		sf = nopStatusFeed{}
	}

	b := &Broadcaster{
		cfg:            cfg,
		peers:          make([]*safekeeper.Peer, n),
		commands:       make([]chan peerconn.Command, n),
		events:         make(chan peerconn.Event, n*4),
		queue:          NewQueue(n),
		ballot:         election.NewBallot(cfg.Quorum),
		streaming:      true,
		voteRoundStart: time.Now(),
		log:            log,
		metrics:        m,
		statusFeed:     sf,
	}
	for i, addr := range cfg.Addrs {
		b.peers[i] = safekeeper.NewPeer(i, addr)
		b.commands[i] = make(chan peerconn.Command, 1)
	}
	return b, nil
}

// localInfo returns the ServerInfo this broadcaster presents to every
// safekeeper during handshake.
func (b *Broadcaster) localInfo() wire.ServerInfo {
	info := b.cfg.BaseInfo
	info.NodeID = b.cfg.LocalID
	return info
}

// startPeer spawns (or respawns) peerIndex's I/O pump goroutine.
func (b *Broadcaster) startPeer(ctx context.Context, peerIndex int) {
	p := b.peers[peerIndex]
	p.State = safekeeper.Connecting
	b.metrics.SetPeerState(peerIndex, p.State.String())
	addr := p.Addr
	go peerconn.Run(ctx, peerIndex, addr, b.localInfo(), b.events, b.commands[peerIndex])
}

// Run drives the broadcaster to completion: it streams WAL from walEvents,
// fans it out to safekeepers, computes quorum commit, and writes feedback
// frames to feedback until the primary stream ends and every queued message
// has been fully acknowledged, then stops every safekeeper and returns.
//
// Run returns a *BroadcastError for any Class 2 protocol-fatal condition
// (version mismatch, vote rejection, unexpected-state event); it returns
// nil on ordinary completion or ctx cancellation.
func (b *Broadcaster) Run(ctx context.Context, walEvents <-chan UpstreamEvent, feedback chan<- []byte) error {
	for i := range b.peers {
		b.startPeer(ctx, i)
	}

	for b.streaming || b.queue.Len() > 0 {
		select {
		case <-ctx.Done():
			b.stopSafekeepers()
			return nil

		case ev, ok := <-walEvents:
			if !ok {
				b.streaming = false
				continue
			}
			if err := b.handleUpstream(ev); err != nil {
				b.log.Error("upstream event error", logging.Error(err))
			}

		case ev := <-b.events:
			if err := b.handlePeerEvent(ctx, ev, feedback); err != nil {
				b.stopSafekeepers()
				return err
			}
		}
	}

	b.stopSafekeepers()
	return nil
}

func (b *Broadcaster) handleUpstream(ev UpstreamEvent) error {
	switch ev.Kind {
	case UpstreamWAL:
		frame, err := wire.DecodeWAL(ev.Frame)
		if err != nil {
			return err
		}
		endLSN := frame.StartLSN + uint64(len(frame.Raw)-wire.HeaderSize)
		if err := wire.RewriteEndLSN(frame.Raw, endLSN); err != nil {
			return err
		}
		b.queue.Push(frame.StartLSN, endLSN, frame.Raw)
		b.metrics.ObserveQueueDepth(b.queue.Len())
		b.dispatchToIdlePeers()
	case UpstreamStreamEnd:
		b.streaming = false
	case UpstreamError:
		b.log.Error("upstream stream error, treating as stream end", logging.Error(ev.Err))
		b.streaming = false
	}
	return nil
}

func (b *Broadcaster) handlePeerEvent(ctx context.Context, ev peerconn.Event, feedback chan<- []byte) error {
	if ev.PeerIndex < 0 || ev.PeerIndex >= len(b.peers) {
		return nil
	}
	p := b.peers[ev.PeerIndex]

	switch ev.Kind {
	case peerconn.EventConnected:
		p.State = safekeeper.Handshake
		b.metrics.SetPeerState(ev.PeerIndex, p.State.String())

	case peerconn.EventHandshake:
		if ev.Info.ProtocolVersion != wire.ProtocolVersion {
			return &BroadcastError{PeerIndex: ev.PeerIndex, Err: ErrVersionMismatch}
		}
		p.Info = ev.Info
		if ev.Info.WalEnd > p.AckLSN {
			p.AckLSN = ev.Info.WalEnd
		}
		p.State = safekeeper.Vote
		b.metrics.SetPeerState(ev.PeerIndex, p.State.String())
		b.observeVote(ev.PeerIndex)

	case peerconn.EventVerdict:
		if p.State != safekeeper.WaitVerdict {
			return &BroadcastError{PeerIndex: ev.PeerIndex, Err: ErrUnexpectedState}
		}
		if err := b.ballot.CheckVerdict(ev.Verdict); err != nil {
			b.metrics.RecordElection("rejected", time.Since(b.voteRoundStart), ev.Verdict.Term)
			return &BroadcastError{PeerIndex: ev.PeerIndex, Err: err}
		}
		p.State = safekeeper.Idle
		b.metrics.SetPeerState(ev.PeerIndex, p.State.String())
		b.dispatchToPeer(ev.PeerIndex)

	case peerconn.EventWriteDone:
		b.log.Debug("wal frame written", logging.PeerIndex(ev.PeerIndex))

	case peerconn.EventAck:
		if p.State != safekeeper.SendWal {
			return &BroadcastError{PeerIndex: ev.PeerIndex, Err: ErrUnexpectedState}
		}
		b.recordAck(ev.PeerIndex, ev.AckLSN, feedback)

	case peerconn.EventError:
		b.log.Info("peer connection reset", logging.PeerIndex(ev.PeerIndex), logging.Error(ev.Err))
		p.Reset()
		b.metrics.SetPeerState(ev.PeerIndex, p.State.String())
		b.metrics.IncReconnect(ev.PeerIndex)
		b.startPeer(ctx, ev.PeerIndex)
	}

	b.statusFeed.Publish("peer."+p.Addr, p.State.String())
	return nil
}

// observeVote folds a newly-arrived Vote-state peer into the ballot and
// dispatches proposals to every peer that is now ready for one: either the
// whole cohort of Vote-state peers (the round just decided) or, for a late
// arrival after the round already decided, just that one peer (spec.md
// Open Question 1).
func (b *Broadcaster) observeVote(peerIndex int) {
	wasDecided := b.ballot.Decided()
	decidedNow := b.ballot.Observe(b.peers[peerIndex].Info.NodeID)

	switch {
	case decidedNow:
		proposal, _ := b.ballot.Proposal()
		b.metrics.RecordElection("decided", time.Since(b.voteRoundStart), proposal.Term)
		if b.cfg.QuorumReached != nil {
			acks := make([]uint64, len(b.peers))
			for i, p := range b.peers {
				acks[i] = p.AckLSN
			}
			go b.cfg.QuorumReached(acks)
		}
		for i, p := range b.peers {
			if p.State == safekeeper.Vote {
				b.dispatchVote(i, proposal)
			}
		}
	case wasDecided:
		proposal, _ := b.ballot.Proposal()
		b.dispatchVote(peerIndex, proposal)
	}
}

func (b *Broadcaster) dispatchVote(peerIndex int, proposal wire.NodeID) {
	p := b.peers[peerIndex]
	p.State = safekeeper.WaitVerdict
	b.metrics.SetPeerState(peerIndex, p.State.String())
	b.commands[peerIndex] <- peerconn.Command{Kind: peerconn.CmdProposeVote, Proposal: proposal}
}

// dispatchToPeer sends the oldest message peerIndex has not yet
// acknowledged, if it is Idle and behind.
func (b *Broadcaster) dispatchToPeer(peerIndex int) {
	p := b.peers[peerIndex]
	if p.State != safekeeper.Idle {
		return
	}
	msg := b.queue.FirstUnackedFor(peerIndex)
	if msg == nil {
		return
	}
	p.BeginSend(msg.Seq)
	b.metrics.SetPeerState(peerIndex, p.State.String())
	b.commands[peerIndex] <- peerconn.Command{Kind: peerconn.CmdSendWAL, WAL: msg.Frame}
}

func (b *Broadcaster) dispatchToIdlePeers() {
	for i, p := range b.peers {
		if p.State == safekeeper.Idle {
			b.dispatchToPeer(i)
		}
	}
}

func (b *Broadcaster) recordAck(peerIndex int, ackLSN uint64, feedback chan<- []byte) {
	p := b.peers[peerIndex]
	seq := p.InFlightSeq
	p.CompleteSend(ackLSN)
	b.metrics.SetPeerState(peerIndex, p.State.String())
	b.metrics.IncAck(peerIndex)

	for _, m := range b.queue.All() {
		if m.Seq == seq {
			m.Ack(peerIndex)
			break
		}
	}
	b.queue.Trim()
	b.metrics.ObserveQueueDepth(b.queue.Len())

	b.maybeAdvanceCommit(feedback)
	b.dispatchToPeer(peerIndex)
}

func (b *Broadcaster) maybeAdvanceCommit(feedback chan<- []byte) {
	acks := make([]uint64, len(b.peers))
	for i, p := range b.peers {
		acks[i] = p.AckLSN
	}
	committed := CommittedLSN(acks, b.cfg.Quorum)
	if committed <= b.lastAckLSN {
		return
	}
	b.lastAckLSN = committed
	b.metrics.SetCommittedLSN(committed)
	b.statusFeed.Publish("commit.lsn", committed)

	frame := wire.FeedbackFrame{
		WriteLSN: committed,
		FlushLSN: committed,
		ApplyLSN: wire.InvalidLSN,
	}
	select {
	case feedback <- frame.Encode():
	default:
		b.log.Debug("feedback channel full, dropping stale feedback frame")
	}
}

func (b *Broadcaster) stopSafekeepers() {
	quit := peerconn.Command{Kind: peerconn.CmdQuit}
	for i, p := range b.peers {
		if p.State != safekeeper.Offline {
			select {
			case b.commands[i] <- quit:
			default:
			}
		}
	}
}
