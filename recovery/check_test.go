package recovery

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/timzifer/xarecover/xa"
)

func TestIsRecoverable(t *testing.T) {
	tests := []struct {
		name    string
		manager *Manager
		want    bool
	}{
		{name: "nil manager", manager: nil, want: false},
		{name: "valid", manager: &Manager{ResourceName: "broker1", ConnectionFactory: &fakeXAFactory{}, TransactionManager: &fakeTM{}}, want: true},
		{name: "plain factory", manager: &Manager{ResourceName: "broker1", ConnectionFactory: plainFactory{}, TransactionManager: &fakeTM{}}, want: false},
		{name: "plain transaction manager", manager: &Manager{ResourceName: "broker1", ConnectionFactory: &fakeXAFactory{}, TransactionManager: plainTM{}}, want: false},
		{name: "empty name", manager: &Manager{ConnectionFactory: &fakeXAFactory{}, TransactionManager: &fakeTM{}}, want: false},
		{name: "nil factory", manager: &Manager{ResourceName: "broker1", TransactionManager: &fakeTM{}}, want: false},
		{name: "nil transaction manager", manager: &Manager{ResourceName: "broker1", ConnectionFactory: &fakeXAFactory{}}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, IsRecoverable(tt.manager))
		})
	}
}

func TestCapabilitiesReportsMissingParts(t *testing.T) {
	caps := Capabilities(&Manager{ConnectionFactory: plainFactory{}, TransactionManager: &fakeTM{}})
	require.False(t, caps.XAConnectionFactory)
	require.True(t, caps.RecoverableTransactionManager)
	require.False(t, caps.ResourceName)
	require.False(t, caps.Complete())
}

func TestRecoverSkipsUnrecoverableConfigurations(t *testing.T) {
	configs := []*Manager{
		{ResourceName: "broker1", ConnectionFactory: plainFactory{}, TransactionManager: &fakeTM{}},
		{ResourceName: "", ConnectionFactory: &fakeXAFactory{}, TransactionManager: &fakeTM{}},
		{ResourceName: "broker1", ConnectionFactory: &fakeXAFactory{}, TransactionManager: plainTM{}},
	}
	for _, m := range configs {
		ok, err := Recover(m)
		require.NoError(t, err)
		require.False(t, ok)
		if tm, isFake := m.TransactionManager.(*fakeTM); isFake {
			require.Empty(t, tm.registered())
		}
	}
}

var _ xa.ConnectionFactory = (*fakeXAFactory)(nil)
var _ xa.XAConnectionFactory = (*fakeXAFactory)(nil)
var _ xa.RecoverableTransactionManager = (*fakeTM)(nil)
