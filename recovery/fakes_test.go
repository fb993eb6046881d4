package recovery

import (
	"context"
	"errors"
	"sync"

	"github.com/timzifer/xarecover/xa"
)

type fakeResource struct {
	xa.Resource
	id int
}

type fakeSession struct {
	res      xa.Resource
	resErr   error
	closeErr error
	closed   bool
}

func (s *fakeSession) XAResource() (xa.Resource, error) {
	if s.resErr != nil {
		return nil, s.resErr
	}
	return s.res, nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return s.closeErr
}

type fakeConn struct {
	id         int
	sessionErr error
	startErr   error
	resErr     error
	closeErr   error
	closePanic bool

	mu      sync.Mutex
	started bool
	closed  int
	session *fakeSession
}

func (c *fakeConn) Start(context.Context) error {
	if c.startErr != nil {
		return c.startErr
	}
	c.mu.Lock()
	c.started = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed++
	c.mu.Unlock()
	if c.closePanic {
		panic("connection already torn down")
	}
	return c.closeErr
}

func (c *fakeConn) CreateXASession(context.Context) (xa.XASession, error) {
	if c.sessionErr != nil {
		return nil, c.sessionErr
	}
	session := &fakeSession{res: &fakeResource{id: c.id}, resErr: c.resErr}
	c.mu.Lock()
	c.session = session
	c.mu.Unlock()
	return session, nil
}

func (c *fakeConn) isStarted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

func (c *fakeConn) sessionClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil && c.session.closed
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fakeXAFactory is an XA-capable connection factory recording every connection it opens.
type fakeXAFactory struct {
	createErr error
	configure func(conn *fakeConn)

	mu    sync.Mutex
	conns []*fakeConn
}

func (f *fakeXAFactory) CreateConnection(ctx context.Context) (xa.Connection, error) {
	return f.CreateXAConnection(ctx)
}

func (f *fakeXAFactory) CreateXAConnection(context.Context) (xa.XAConnection, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	conn := &fakeConn{id: len(f.conns) + 1}
	f.conns = append(f.conns, conn)
	f.mu.Unlock()
	if f.configure != nil {
		f.configure(conn)
	}
	return conn, nil
}

func (f *fakeXAFactory) connections() []*fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeConn(nil), f.conns...)
}

type plainFactory struct{}

func (plainFactory) CreateConnection(context.Context) (xa.Connection, error) {
	return nil, errors.New("plain connections are not used in recovery")
}

type plainTM struct{}

func (plainTM) Begin(context.Context) (xa.Transaction, error) {
	return nil, xa.ErrUnsupported
}

type fakeTM struct {
	plainTM
	registerErr   error
	registerPanic bool

	mu        sync.Mutex
	factories []xa.NamedResourceFactory
}

func (tm *fakeTM) RegisterNamedResourceFactory(factory xa.NamedResourceFactory) error {
	if tm.registerPanic {
		panic("coordinator not initialised")
	}
	if tm.registerErr != nil {
		return tm.registerErr
	}
	tm.mu.Lock()
	tm.factories = append(tm.factories, factory)
	tm.mu.Unlock()
	return nil
}

func (tm *fakeTM) registered() []xa.NamedResourceFactory {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return append([]xa.NamedResourceFactory(nil), tm.factories...)
}

type foreignResource struct {
	xa.Resource
}

func (foreignResource) Name() string { return "broker1" }
