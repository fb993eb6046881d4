package recovery

import "github.com/timzifer/xarecover/xa"

// CapabilitySet lists which recovery prerequisites a Manager satisfies.
type CapabilitySet struct {
	XAConnectionFactory           bool
	RecoverableTransactionManager bool
	ResourceName                  bool
}

// Complete reports whether every prerequisite is satisfied.
func (c CapabilitySet) Complete() bool {
	return c.XAConnectionFactory && c.RecoverableTransactionManager && c.ResourceName
}

// Capabilities probes the collaborators configured on m.
func Capabilities(m *Manager) CapabilitySet {
	if m == nil {
		return CapabilitySet{}
	}
	_, xaFactory := m.ConnectionFactory.(xa.XAConnectionFactory)
	_, recoverable := m.TransactionManager.(xa.RecoverableTransactionManager)
	return CapabilitySet{
		XAConnectionFactory:           xaFactory,
		RecoverableTransactionManager: recoverable,
		ResourceName:                  m.ResourceName != "",
	}
}

// IsRecoverable reports whether m can be registered for XA recovery: the
// connection factory must be XA-capable, the transaction manager must support
// recovery and the resource name must be set.
func IsRecoverable(m *Manager) bool {
	return Capabilities(m).Complete()
}
