package mq

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_DeliversToChannelSubscribers(t *testing.T) {
	l := NewLocal()
	var got []Event
	l.Subscribe(MaintenanceChannel, func(channel string, evt Event) {
		assert.Equal(t, MaintenanceChannel, channel)
		got = append(got, evt)
	})
	l.Subscribe("other", func(string, Event) { t.Fatal("wrong channel") })

	require.NoError(t, l.Publish(context.Background(), MaintenanceChannel, Event{Kind: "diagnose", RunID: "r1"}))
	require.Len(t, got, 1)
	assert.Equal(t, "r1", got[0].RunID)
}

func TestLocal_NoSubscribers(t *testing.T) {
	assert.NoError(t, NewLocal().Publish(context.Background(), MaintenanceChannel, Event{Kind: "heartbeat"}))
}
