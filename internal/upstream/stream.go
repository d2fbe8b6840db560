package upstream

import (
	"context"
	"errors"
	"io"

	"github.com/jackc/pgx/v5/pgproto3"
	"github.com/pgdisagg/walbroadcaster/internal/broadcast"
)

// ReceiveMessage blocks for the next backend message on the replication
// connection. During CopyBoth this is always a CopyData ('w'/'k' tagged) or
// a CopyDone.
func (c *Conn) ReceiveMessage(ctx context.Context) (pgproto3.BackendMessage, error) {
	return c.pg.ReceiveMessage(ctx)
}

// SendCopyData writes one frontend CopyData message — used for standby
// status update ('r') feedback frames — and flushes it immediately, since
// the primary only advances its own flush horizon on receipt.
func (c *Conn) SendCopyData(buf []byte) error {
	fe := c.pg.Frontend()
	fe.Send(&pgproto3.CopyData{Data: buf})
	return fe.Flush()
}

// Stream is the reader goroutine referenced throughout SPEC_FULL.md §4.6: it
// turns backend messages into broadcast.UpstreamEvent values on out, and
// relays every feedback frame it is handed on feedback back to the primary.
// It returns once ctx is cancelled, the primary sends CopyDone, or a read
// error occurs. On CopyDone or a read error it sends exactly one terminal
// event before returning, satisfying Class 3 error handling (treated as
// stream end, not fatal); once ctx is cancelled that event may be dropped.
func Stream(ctx context.Context, conn *Conn, out chan<- broadcast.UpstreamEvent, feedback <-chan []byte) {
	go feedbackWriter(ctx, conn, feedback)

	for {
		msg, err := conn.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				sendEvent(ctx, out, broadcast.UpstreamEvent{Kind: broadcast.UpstreamStreamEnd})
			} else {
				sendEvent(ctx, out, broadcast.UpstreamEvent{Kind: broadcast.UpstreamError, Err: err})
			}
			return
		}

		switch m := msg.(type) {
		case *pgproto3.CopyData:
			if len(m.Data) == 0 {
				continue
			}
			switch m.Data[0] {
			case 'w':
				if !sendEvent(ctx, out, broadcast.UpstreamEvent{Kind: broadcast.UpstreamWAL, Frame: m.Data}) {
					return
				}
			case 'k':
				// Primary keepalive: nothing to enqueue and no reply is
				// sent; feedbackWriter only relays the frames it is handed.
			}
		case *pgproto3.CopyDone:
			sendEvent(ctx, out, broadcast.UpstreamEvent{Kind: broadcast.UpstreamStreamEnd})
			return
		}
	}
}

func sendEvent(ctx context.Context, out chan<- broadcast.UpstreamEvent, ev broadcast.UpstreamEvent) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// feedbackWriter relays queued standby status frames to the primary as
// they arrive, decoupling the send side from the blocking receive loop
// above so a slow primary read never delays flow-control feedback.
func feedbackWriter(ctx context.Context, conn *Conn, feedback <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case buf, ok := <-feedback:
			if !ok {
				return
			}
			_ = conn.SendCopyData(buf)
		}
	}
}
