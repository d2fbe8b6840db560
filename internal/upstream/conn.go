// Package upstream drives the primary's physical replication protocol: it
// connects with the pgconn/pgproto3 replication startup parameters,
// authenticates as a standby, and streams raw copy-data frames off a
// pgproto3.Frontend the same way real physical- and logical-replication
// clients in the pgx ecosystem do (the "connection" concern of this repo,
// distinct from internal/wire which only frames the bytes).
package upstream

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgproto3"
)

// DefaultWalSegSize is the standard PostgreSQL WAL segment size (16MiB),
// used for START_REPLICATION segment-boundary alignment when the actual
// configured wal_segment_size isn't queried separately.
const DefaultWalSegSize uint64 = 16 * 1024 * 1024

// Identity is the result of IDENTIFY_SYSTEM: the primary's current
// timeline, WAL insert position, and system identifier.
type Identity struct {
	SystemID string
	Timeline uint32
	WalEnd   uint64
	DBName   string
}

// Conn is one physical-replication connection to the primary.
type Conn struct {
	pg *pgconn.PgConn
}

// Connect opens a replication connection. connString must be a normal
// libpq connection string or URL; Connect appends the "replication=physical"
// runtime parameter pgconn recognizes for replication-mode startup.
func Connect(ctx context.Context, connString string) (*Conn, error) {
	cfg, err := pgconn.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("upstream: parse connection string: %w", err)
	}
	if cfg.RuntimeParams == nil {
		cfg.RuntimeParams = map[string]string{}
	}
	cfg.RuntimeParams["replication"] = "physical"

	pg, err := pgconn.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("upstream: connect: %w", err)
	}
	return &Conn{pg: pg}, nil
}

// Close terminates the connection.
func (c *Conn) Close(ctx context.Context) error {
	return c.pg.Close(ctx)
}

// IdentifySystem issues IDENTIFY_SYSTEM over the simple query protocol, the
// standard first step of any physical-replication session.
func (c *Conn) IdentifySystem(ctx context.Context) (Identity, error) {
	rows, err := c.pg.Exec(ctx, "IDENTIFY_SYSTEM").ReadAll()
	if err != nil {
		return Identity{}, fmt.Errorf("upstream: IDENTIFY_SYSTEM: %w", err)
	}
	if len(rows) == 0 || len(rows[0].Rows) == 0 {
		return Identity{}, fmt.Errorf("upstream: IDENTIFY_SYSTEM returned no rows")
	}
	row := rows[0].Rows[0]
	if len(row) < 3 {
		return Identity{}, fmt.Errorf("upstream: IDENTIFY_SYSTEM returned %d columns, want >= 3", len(row))
	}

	var ident Identity
	ident.SystemID = string(row[0])
	if _, err := fmt.Sscanf(string(row[1]), "%d", &ident.Timeline); err != nil {
		return Identity{}, fmt.Errorf("upstream: parse timeline: %w", err)
	}
	if err := parseLSN(string(row[2]), &ident.WalEnd); err != nil {
		return Identity{}, fmt.Errorf("upstream: parse xlogpos: %w", err)
	}
	if len(row) >= 4 {
		ident.DBName = string(row[3])
	}
	return ident, nil
}

// StartReplication issues START_REPLICATION and leaves the connection in
// CopyBoth mode; from this point on all further I/O must go through
// ReceiveMessage / SendCopyData.
func (c *Conn) StartReplication(ctx context.Context, startLSN uint64, timeline uint32) error {
	sql := fmt.Sprintf("START_REPLICATION PHYSICAL %s TIMELINE %d", formatLSN(startLSN), timeline)
	// START_REPLICATION never returns a normal result set; it puts the wire
	// straight into CopyBoth. Exec still fires the request correctly, but
	// its result reader must not be drained the normal way.
	mrr := c.pg.Exec(ctx, sql)
	return mrr.Close()
}

// Frontend exposes the raw pgproto3.Frontend for the copy-both duplex loop
// once START_REPLICATION has switched the connection over.
func (c *Conn) Frontend() *pgproto3.Frontend {
	return c.pg.Frontend()
}

func parseLSN(s string, out *uint64) error {
	var hi, lo uint32
	if _, err := fmt.Sscanf(s, "%X/%X", &hi, &lo); err != nil {
		return err
	}
	*out = uint64(hi)<<32 | uint64(lo)
	return nil
}

func formatLSN(lsn uint64) string {
	return fmt.Sprintf("%X/%X", uint32(lsn>>32), uint32(lsn))
}
