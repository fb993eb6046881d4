package pgxa

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/timzifer/xarecover/recovery"
	"github.com/timzifer/xarecover/xa"
)

func postgresFactory(t *testing.T) *Factory {
	t.Helper()
	dsn := os.Getenv("XARECOVER_PG_DSN")
	if dsn == "" {
		t.Skip("XARECOVER_PG_DSN not set")
	}
	factory, err := NewFactory(Settings{DSN: dsn, ConnectTimeout: 5 * time.Second, ApplicationName: "xarecover-test"}, zerolog.Nop())
	require.NoError(t, err)
	return factory
}

func containsXid(xids []xa.Xid, want xa.Xid) bool {
	for _, xid := range xids {
		if sameXid(xid, want) {
			return true
		}
	}
	return false
}

func TestPreparedBranchIsRecoveredThroughNamedResource(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	named, err := recovery.NewNamedResourceFactory("pgxa-test", postgresFactory(t))
	require.NoError(t, err)

	gtrid := uuid.New()
	xid := xa.Xid{FormatID: 0x5841, GlobalTransactionID: gtrid[:], BranchQualifier: []byte("b1")}

	first, err := named.NamedResource(ctx)
	require.NoError(t, err)
	require.NoError(t, first.Start(ctx, xid, xa.NoFlags))
	require.NoError(t, first.End(ctx, xid, xa.Success))
	vote, err := first.Prepare(ctx, xid)
	require.NoError(t, err)
	require.Equal(t, xa.VoteOK, vote)
	named.ReturnNamedResource(first)

	second, err := named.NamedResource(ctx)
	require.NoError(t, err)
	defer named.ReturnNamedResource(second)

	xids, err := second.Recover(ctx, xa.StartRScan|xa.EndRScan)
	require.NoError(t, err)
	require.True(t, containsXid(xids, xid), "prepared branch not listed")

	require.NoError(t, second.Commit(ctx, xid, false))

	xids, err = second.Recover(ctx, xa.StartRScan|xa.EndRScan)
	require.NoError(t, err)
	require.False(t, containsXid(xids, xid), "committed branch still listed")
}

func TestOnePhaseCommitAndRollback(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	factory := postgresFactory(t)
	conn, err := factory.CreateXAConnection(ctx)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.Start(ctx))

	session, err := conn.CreateXASession(ctx)
	require.NoError(t, err)
	res, err := session.XAResource()
	require.NoError(t, err)

	gtrid := uuid.New()
	committed := xa.Xid{FormatID: 0x5841, GlobalTransactionID: gtrid[:]}
	require.NoError(t, res.Start(ctx, committed, xa.NoFlags))
	require.NoError(t, res.End(ctx, committed, xa.Success))
	require.NoError(t, res.Commit(ctx, committed, true))

	gtrid = uuid.New()
	failed := xa.Xid{FormatID: 0x5841, GlobalTransactionID: gtrid[:]}
	require.NoError(t, res.Start(ctx, failed, xa.NoFlags))
	require.NoError(t, res.Rollback(ctx, failed))
}
