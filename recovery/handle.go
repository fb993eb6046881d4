package recovery

import "github.com/timzifer/xarecover/xa"

// ConnectionResource is a named XA resource that owns the connection it was
// derived from. The connection is closed when the coordinator returns the
// resource to the factory that produced it.
type ConnectionResource struct {
	*xa.WrapperNamedResource

	conn    xa.XAConnection
	factory *NamedResourceFactory
}

func newConnectionResource(res xa.Resource, name string, conn xa.XAConnection, factory *NamedResourceFactory) *ConnectionResource {
	return &ConnectionResource{
		WrapperNamedResource: xa.NewWrapperNamedResource(res, name),
		conn:                 conn,
		factory:              factory,
	}
}

// Connection returns the owned connection.
func (r *ConnectionResource) Connection() xa.XAConnection {
	if r == nil {
		return nil
	}
	return r.conn
}
