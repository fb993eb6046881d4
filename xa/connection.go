package xa

import "context"

// Connection is a messaging connection that must be started before use and
// closed when no longer needed.
type Connection interface {
	Start(ctx context.Context) error
	Close() error
}

// ConnectionFactory opens plain messaging connections.
type ConnectionFactory interface {
	CreateConnection(ctx context.Context) (Connection, error)
}

// XAConnectionFactory is the capability of opening XA-capable connections.
// A ConnectionFactory that also implements it can take part in recovery.
type XAConnectionFactory interface {
	CreateXAConnection(ctx context.Context) (XAConnection, error)
}

// XAConnection is a connection able to open XA sessions. Closing the
// connection releases every session opened on it.
type XAConnection interface {
	Connection
	CreateXASession(ctx context.Context) (XASession, error)
}

// XASession exposes the XA resource bound to a session. A session that did
// not yield a usable resource is closed before its connection.
type XASession interface {
	XAResource() (Resource, error)
	Close() error
}

// Transaction is a global transaction owned by a TransactionManager. Recovery
// never begins transactions; Transaction and Begin describe the ordinary
// manager that a RecoverableTransactionManager extends.
type Transaction interface {
	EnlistResource(res Resource) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager begins global transactions.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// RecoverableTransactionManager is the capability of recovering in-doubt
// branches through registered named resource factories.
type RecoverableTransactionManager interface {
	TransactionManager
	RegisterNamedResourceFactory(factory NamedResourceFactory) error
}
