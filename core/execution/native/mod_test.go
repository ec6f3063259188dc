package native

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/arena/core/execution"
	"go.dedis.ch/arena/core/store"
	"go.dedis.ch/arena/core/txn"
	"go.dedis.ch/arena/crypto"
	"go.dedis.ch/arena/internal/testing/fake"
)

func TestService_Execute(t *testing.T) {
	srvc := NewExecution()
	srvc.Set("abc", fakeContract{})

	res, err := srvc.Execute(fake.NewSnapshot(), makeStep(t, "abc"))
	require.NoError(t, err)
	require.True(t, res.Accepted)

	srvc.Set("bad", fakeContract{err: fake.GetError()})

	res, err = srvc.Execute(fake.NewSnapshot(), makeStep(t, "bad"))
	require.NoError(t, err)
	require.False(t, res.Accepted)
	require.Equal(t, "fake error", res.Message)

	_, err = srvc.Execute(fake.NewSnapshot(), makeStep(t, "unknown"))
	require.EqualError(t, err, "unknown contract 'unknown'")
}

func TestService_Set(t *testing.T) {
	srvc := NewExecution()
	srvc.Set("abc", fakeContract{})

	require.PanicsWithError(t, "contract 'abc' already registered", func() {
		srvc.Set("abc", fakeContract{})
	})
}

// -----------------------------------------------------------------------------
// Utility functions

func makeStep(t *testing.T, contract string) execution.Step {
	return execution.Step{Current: fakeTx{contract: contract}}
}

type fakeContract struct {
	err error
}

func (c fakeContract) Execute(store.Snapshot, execution.Step) error {
	return c.err
}

type fakeTx struct {
	txn.Transaction

	contract string
}

func (tx fakeTx) GetArg(key string) []byte {
	if key == ContractArg {
		return []byte(tx.contract)
	}

	return nil
}

func (tx fakeTx) GetIdentity() crypto.PublicKey {
	return fake.PublicKey{}
}
