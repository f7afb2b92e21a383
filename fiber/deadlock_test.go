package fiber

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_deadlockedNone(t *testing.T) {
	s := newTestScheduler(t)
	assert.Empty(t, s.Deadlocked())

	target := newStarted(t, s, nil, 0)
	a := newStarted(t, s, nil, 0)
	b := newStarted(t, s, nil, 0)
	_, err := a.Await(target)
	require.NoError(t, err)
	_, err = b.Await(a)
	require.NoError(t, err)

	// b -> a -> target, which is active
	assert.Empty(t, s.Deadlocked())
}

func TestScheduler_deadlockedMutualAwait(t *testing.T) {
	s := newTestScheduler(t)
	a := newStarted(t, s, nil, 0)
	b := newStarted(t, s, nil, 0)
	c := newStarted(t, s, nil, 0)
	d := newStarted(t, s, nil, 0)

	_, err := a.Await(b)
	require.NoError(t, err)
	_, err = b.Await(a)
	require.NoError(t, err)
	// c only leads into the cycle, d waits on c
	_, err = c.Await(a)
	require.NoError(t, err)
	_, err = d.Await(c)
	require.NoError(t, err)

	assert.Equal(t, []*Context{a, b, c, d}, s.Deadlocked())

	// breaking the cycle frees every context in it
	require.NoError(t, a.Rouse(nil))
	assert.Empty(t, s.Deadlocked())
	requireQueueInvariants(t, a, b, c, d)
}

func TestScheduler_deadlockedSelfAwait(t *testing.T) {
	s := newTestScheduler(t)
	a := newStarted(t, s, nil, 0)
	_, err := a.Await(a)
	require.NoError(t, err)
	assert.Equal(t, []*Context{a}, s.Deadlocked())
}

func TestScheduler_closeLogsDeadlocked(t *testing.T) {
	var buf bytes.Buffer
	s, err := New(WithLogger(newTestLogger(&buf)))
	require.NoError(t, err)

	a := newStarted(t, s, nil, 0)
	b := newStarted(t, s, nil, 0)
	_, err = a.Await(b)
	require.NoError(t, err)
	_, err = b.Await(a)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	assert.Contains(t, buf.String(), `fiber: scheduler closed with contexts still suspended`)
	assert.Contains(t, buf.String(), `"deadlocked":2`)
}
