package peerconn

import (
	"context"
	"net"
	"time"

	"github.com/pgdisagg/walbroadcaster/internal/wire"
)

// Conn wraps the raw TCP socket to one safekeeper with the blocking
// read/write primitives the I/O pump needs. It holds no protocol state of
// its own.
type Conn struct {
	nc net.Conn
}

// Dial opens a TCP connection to addr with TCP_NODELAY set, matching the
// low-latency requirement of a per-frame WAL/ack exchange.
func Dial(ctx context.Context, addr string) (*Conn, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if tc, ok := nc.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	return &Conn{nc: nc}, nil
}

// SetDeadline forwards to the underlying socket; a zero time disables it.
func (c *Conn) SetDeadline(t time.Time) error {
	return c.nc.SetDeadline(t)
}

func (c *Conn) SendServerInfo(info wire.ServerInfo) error {
	return wire.WriteServerInfo(c.nc, info)
}

func (c *Conn) RecvServerInfo() (wire.ServerInfo, error) {
	return wire.ReadServerInfo(c.nc)
}

func (c *Conn) SendNodeID(id wire.NodeID) error {
	return wire.WriteNodeID(c.nc, id)
}

func (c *Conn) RecvNodeID() (wire.NodeID, error) {
	return wire.ReadNodeID(c.nc)
}

// SendWAL writes a fully framed WAL or keepalive buffer produced by
// internal/wire.
func (c *Conn) SendWAL(buf []byte) error {
	_, err := c.nc.Write(buf)
	return err
}

func (c *Conn) RecvAck() (uint64, error) {
	return wire.ReadAck(c.nc)
}

// SendQuit writes the quit sentinel buffer and half-closes the write side
// so the peer sees EOF after it, then leaves final teardown to Close.
func (c *Conn) SendQuit(buf []byte) error {
	if _, err := c.nc.Write(buf); err != nil {
		return err
	}
	if tc, ok := c.nc.(*net.TCPConn); ok {
		return tc.CloseWrite()
	}
	return nil
}

func (c *Conn) Close() error {
	return c.nc.Close()
}
