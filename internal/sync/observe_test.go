package sync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriptionReceivesChanges(t *testing.T) {
	remote := newFakeRemote()
	p := remote.addProject("Launch")
	task := remote.addTask(p.ID, "Ship")
	c, _ := newTestCache(t, remote)

	sub := c.Subscribe()
	_, err := c.LoadTask(context.Background(), task.ID)
	require.NoError(t, err)

	msg := WaitForChange(sub)()
	change, ok := msg.(ChangeMsg)
	require.True(t, ok)
	assert.Equal(t, TaskKey(task.ID), change.Key)
	assert.Equal(t, ReasonLoaded, change.Reason)
	require.NotNil(t, change.Task)
	assert.Equal(t, "Ship", change.Task.Title)

	c.Unsubscribe(sub)
	assert.Nil(t, WaitForChange(sub)(), "a closed subscription yields no message")
}

func TestChangesAreCopies(t *testing.T) {
	remote := newFakeRemote()
	p := remote.addProject("Launch")
	task := remote.addTask(p.ID, "Ship")
	c, rec := newTestCache(t, remote)

	_, err := c.LoadTask(context.Background(), task.ID)
	require.NoError(t, err)
	ch := rec.next(t, TaskKey(task.ID), ReasonLoaded)
	ch.Task.Title = "mutated by observer"

	cached, _ := c.Task(task.ID)
	assert.Equal(t, "Ship", cached.Title)
}

func TestFullSubscriptionDropsInsteadOfBlocking(t *testing.T) {
	remote := newFakeRemote()
	p := remote.addProject("Launch")
	c, _ := newTestCache(t, remote)
	sub := c.Subscribe()

	for i := 0; i < subscriptionBuffer+10; i++ {
		remote.addTask(p.ID, "T")
	}
	_, _, err := c.LoadProjectTasks(context.Background(), p.ID)
	require.NoError(t, err)

	assert.Len(t, sub.C(), subscriptionBuffer)
}

func TestObserveUnregister(t *testing.T) {
	remote := newFakeRemote()
	p := remote.addProject("Launch")
	a := remote.addTask(p.ID, "A")
	b := remote.addTask(p.ID, "B")
	c, _ := newTestCache(t, remote)

	var seen []Key
	stop := c.Observe(func(ch Change) { seen = append(seen, ch.Key) })
	_, err := c.LoadTask(context.Background(), a.ID)
	require.NoError(t, err)
	stop()
	_, err = c.LoadTask(context.Background(), b.ID)
	require.NoError(t, err)

	assert.Equal(t, []Key{TaskKey(a.ID)}, seen)
}

func TestSubscribeAfterClose(t *testing.T) {
	c := New(newFakeRemote())
	require.NoError(t, c.Close())

	_, open := <-c.Subscribe().C()
	assert.False(t, open)
}
