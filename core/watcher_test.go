package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type counterObserver struct {
	count int
}

func (obs *counterObserver) NotifyCallback(event interface{}) {
	obs.count += event.(int)
}

func TestWatcher_Notify(t *testing.T) {
	watcher := NewWatcher()

	obs := &counterObserver{}
	watcher.Add(obs)

	watcher.Notify(1)
	watcher.Notify(2)
	require.Equal(t, 3, obs.count)

	watcher.Remove(obs)

	watcher.Notify(4)
	require.Equal(t, 3, obs.count)
}
