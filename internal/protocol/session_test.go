package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionLifecycleTransitions(t *testing.T) {
	sess := NewSession("sess-1")
	assert.Equal(t, StateNew, sess.State())

	require.NoError(t, sess.Transition(StateInitializing))
	require.NoError(t, sess.Transition(StateReady))
	assert.Equal(t, StateReady, sess.State())

	require.NoError(t, sess.Transition(StateClosed))
	assert.Error(t, sess.Transition(StateReady))
}

func TestSessionTransitionRejectsIllegalEdge(t *testing.T) {
	sess := NewSession("sess-2")
	err := sess.Transition(StateReady)
	assert.Error(t, err)
	var invalid *InvalidTransitionError
	assert.ErrorAs(t, err, &invalid)
}

func TestTableRegisterAndIdleBeyond(t *testing.T) {
	table := NewTable()
	sess := NewSession("sess-3")
	table.Register(sess)
	assert.Equal(t, 1, table.Count())

	got, ok := table.Get("sess-3")
	require.True(t, ok)
	assert.Same(t, sess, got)

	assert.Empty(t, table.IdleBeyond(time.Hour))
	sess.lastActivity = time.Now().Add(-2 * time.Hour)
	assert.Equal(t, []string{"sess-3"}, table.IdleBeyond(time.Hour))

	table.Unregister("sess-3")
	assert.Equal(t, 0, table.Count())
}
