package wallet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"medjournal/internal/journal"
)

const testAddress = "0x52908400098527886E0F7030069857D2E4169EE7"

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(func(account string) *journal.Workflow {
		return journal.NewWorkflow(account, nil, nil, nil, time.Second, zap.NewNop())
	}, "test-secret", time.Hour, zap.NewNop())
}

func TestConnect_IssuesResolvableToken(t *testing.T) {
	m := newTestManager(t)

	token, expiresAt, err := m.Connect(testAddress, 11155111)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))

	sess, err := m.Resolve(token)
	require.NoError(t, err)
	assert.Equal(t, testAddress, sess.Address)
	assert.Equal(t, int64(11155111), sess.ChainID)
	assert.NotNil(t, sess.Workflow)
}

func TestConnect_InvalidAddress(t *testing.T) {
	m := newTestManager(t)

	for _, addr := range []string{"", "0x123", "52908400098527886E0F7030069857D2E4169EE7", "0xZZ908400098527886E0F7030069857D2E4169EE7"} {
		_, _, err := m.Connect(addr, 1)
		assert.ErrorIs(t, err, ErrInvalidAddress, "address %q", addr)
	}
}

func TestConnect_ReconnectReplacesSession(t *testing.T) {
	m := newTestManager(t)

	_, _, err := m.Connect(testAddress, 11155111)
	require.NoError(t, err)
	token, _, err := m.Connect(testAddress, 11155111)
	require.NoError(t, err)

	first, err := m.Resolve(token)
	require.NoError(t, err)

	// Case differences in the address map to the same session.
	tokenLower, _, err := m.Connect("0x"+"52908400098527886e0f7030069857d2e4169ee7", 11155111)
	require.NoError(t, err)
	second, err := m.Resolve(tokenLower)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestDisconnect_RemovesSession(t *testing.T) {
	m := newTestManager(t)

	token, _, err := m.Connect(testAddress, 11155111)
	require.NoError(t, err)

	m.Disconnect(testAddress)

	_, err = m.Resolve(token)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestResolve_GarbageToken(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Resolve("not-a-jwt")
	assert.Error(t, err)
}

func TestResolve_WrongSecret(t *testing.T) {
	m := newTestManager(t)
	other := NewManager(func(account string) *journal.Workflow {
		return journal.NewWorkflow(account, nil, nil, nil, time.Second, zap.NewNop())
	}, "different-secret", time.Hour, zap.NewNop())

	token, _, err := other.Connect(testAddress, 1)
	require.NoError(t, err)

	_, err = m.Resolve(token)
	assert.Error(t, err)
}
