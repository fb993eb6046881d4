package pgxa

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/timzifer/xarecover/xa"
)

const preparedQuery = `SELECT gid FROM pg_prepared_xacts WHERE database = current_database() ORDER BY prepared`

type resource struct {
	conn *Conn
}

var _ xa.Resource = (*resource)(nil)

func (r *resource) Start(ctx context.Context, xid xa.Xid, flags xa.Flags) error {
	if flags.Has(xa.Join) || flags.Has(xa.Resume) {
		return fmt.Errorf("pgxa: start %s: join/resume: %w", xid, xa.ErrUnsupported)
	}
	if err := xid.Validate(); err != nil {
		return err
	}
	c := r.conn
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.branch != nil {
		return fmt.Errorf("pgxa: start %s: connection already associated with %s", xid, c.branch.xid)
	}
	if _, err := c.pg.Exec(ctx, "BEGIN"); err != nil {
		return fmt.Errorf("pgxa: start %s: %w", xid, err)
	}
	c.branch = &branch{xid: xid}
	return nil
}

func (r *resource) End(ctx context.Context, xid xa.Xid, flags xa.Flags) error {
	if flags.Has(xa.Suspend) {
		return fmt.Errorf("pgxa: end %s: suspend: %w", xid, xa.ErrUnsupported)
	}
	c := r.conn
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.branch == nil || !sameXid(c.branch.xid, xid) {
		return fmt.Errorf("pgxa: end %s: branch not associated with this connection", xid)
	}
	if flags.Has(xa.Fail) {
		c.branch = nil
		if _, err := c.pg.Exec(ctx, "ROLLBACK"); err != nil {
			return fmt.Errorf("pgxa: end %s: rollback failed branch: %w", xid, err)
		}
		return nil
	}
	c.branch.ended = true
	return nil
}

func (r *resource) Prepare(ctx context.Context, xid xa.Xid) (xa.Vote, error) {
	c := r.conn
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.branch == nil || !sameXid(c.branch.xid, xid) || !c.branch.ended {
		return xa.VoteOK, fmt.Errorf("pgxa: prepare %s: branch is not ended on this connection", xid)
	}
	c.branch = nil
	if _, err := c.pg.Exec(ctx, "PREPARE TRANSACTION "+quoteLiteral(encodeGID(xid))); err != nil {
		return xa.VoteOK, fmt.Errorf("pgxa: prepare %s: %w", xid, err)
	}
	return xa.VoteOK, nil
}

func (r *resource) Commit(ctx context.Context, xid xa.Xid, onePhase bool) error {
	c := r.conn
	c.mu.Lock()
	defer c.mu.Unlock()
	if onePhase {
		if c.branch == nil || !sameXid(c.branch.xid, xid) {
			return fmt.Errorf("pgxa: commit %s: one-phase commit needs the branch on this connection", xid)
		}
		c.branch = nil
		if _, err := c.pg.Exec(ctx, "COMMIT"); err != nil {
			return fmt.Errorf("pgxa: commit %s: %w", xid, err)
		}
		return nil
	}
	if c.branch != nil {
		return fmt.Errorf("pgxa: commit %s: connection has an open branch %s", xid, c.branch.xid)
	}
	if _, err := c.pg.Exec(ctx, "COMMIT PREPARED "+quoteLiteral(encodeGID(xid))); err != nil {
		return fmt.Errorf("pgxa: commit prepared %s: %w", xid, err)
	}
	return nil
}

func (r *resource) Rollback(ctx context.Context, xid xa.Xid) error {
	c := r.conn
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.branch != nil && sameXid(c.branch.xid, xid) {
		c.branch = nil
		if _, err := c.pg.Exec(ctx, "ROLLBACK"); err != nil {
			return fmt.Errorf("pgxa: rollback %s: %w", xid, err)
		}
		return nil
	}
	if c.branch != nil {
		return fmt.Errorf("pgxa: rollback %s: connection has an open branch %s", xid, c.branch.xid)
	}
	if _, err := c.pg.Exec(ctx, "ROLLBACK PREPARED "+quoteLiteral(encodeGID(xid))); err != nil {
		return fmt.Errorf("pgxa: rollback prepared %s: %w", xid, err)
	}
	return nil
}

// Recover lists the prepared branches of the current database. The full list
// is returned on StartRScan; continuation calls return nothing.
func (r *resource) Recover(ctx context.Context, flags xa.Flags) ([]xa.Xid, error) {
	if !flags.Has(xa.StartRScan) {
		return nil, nil
	}
	c := r.conn
	c.mu.Lock()
	defer c.mu.Unlock()
	rows, err := c.pg.Query(ctx, preparedQuery)
	if err != nil {
		return nil, fmt.Errorf("pgxa: recover: %w", err)
	}
	gids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("pgxa: recover: %w", err)
	}
	xids := make([]xa.Xid, 0, len(gids))
	for _, gid := range gids {
		xid, err := decodeGID(gid)
		if err != nil {
			c.logger.Debug().Str("gid", gid).Msg("pgxa: skipping foreign prepared transaction")
			continue
		}
		xids = append(xids, xid)
	}
	return xids, nil
}

// Forget is a no-op: PostgreSQL never completes a prepared branch on its own.
func (r *resource) Forget(context.Context, xa.Xid) error {
	return nil
}
