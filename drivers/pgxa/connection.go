package pgxa

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/timzifer/xarecover/xa"
)

const closeTimeout = 5 * time.Second

// Conn is a single PostgreSQL connection. At most one branch is associated
// with it at a time.
type Conn struct {
	pg     *pgx.Conn
	logger zerolog.Logger

	mu      sync.Mutex
	started bool
	branch  *branch
}

// branch is the transaction currently open on the connection.
type branch struct {
	xid   xa.Xid
	ended bool
}

var _ xa.XAConnection = (*Conn)(nil)

// Start verifies the server accepts prepared transactions.
func (c *Conn) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}
	var raw string
	if err := c.pg.QueryRow(ctx, "SHOW max_prepared_transactions").Scan(&raw); err != nil {
		return fmt.Errorf("pgxa: read max_prepared_transactions: %w", err)
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("pgxa: parse max_prepared_transactions %q: %w", raw, err)
	}
	if limit <= 0 {
		return errors.New("pgxa: max_prepared_transactions is 0, two-phase commit is disabled on the server")
	}
	c.started = true
	return nil
}

// Close terminates the connection. Any branch that was not prepared is
// rolled back by the server.
func (c *Conn) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	c.mu.Lock()
	c.branch = nil
	c.mu.Unlock()
	return c.pg.Close(ctx)
}

// CreateXASession returns a session bound to this connection.
func (c *Conn) CreateXASession(context.Context) (xa.XASession, error) {
	if c.pg.IsClosed() {
		return nil, errors.New("pgxa: connection is closed")
	}
	return &session{conn: c}, nil
}

type session struct {
	conn *Conn
}

func (s *session) XAResource() (xa.Resource, error) {
	return &resource{conn: s.conn}, nil
}

// Close is a no-op; the session lives as long as its connection.
func (s *session) Close() error {
	return nil
}

func sameXid(a, b xa.Xid) bool {
	return a.FormatID == b.FormatID &&
		bytes.Equal(a.GlobalTransactionID, b.GlobalTransactionID) &&
		bytes.Equal(a.BranchQualifier, b.BranchQualifier)
}
