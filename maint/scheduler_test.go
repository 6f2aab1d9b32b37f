package maint

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bazaar/mq"
	"bazaar/testutil"
)

func setup(t *testing.T) (*Scheduler, *testutil.FakeClock, *[]mq.Event) {
	t.Helper()
	clock := testutil.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	bus := mq.NewLocal()
	var events []mq.Event
	bus.Subscribe(mq.MaintenanceChannel, func(_ string, e mq.Event) { events = append(events, e) })
	s := New(bus, Options{Idle: 5 * time.Second, MaxDefer: time.Minute, Now: clock.Now})
	return s, clock, &events
}

func counter(name string, every time.Duration, n *int) Job {
	return Job{Name: name, Every: every, Run: func(context.Context) ([]string, error) {
		*n++
		return []string{name + " done"}, nil
	}}
}

func TestTick_RunsDueJobWhenIdle(t *testing.T) {
	s, clock, events := setup(t)
	ctx := context.Background()
	runs := 0
	s.Add(counter("diagnose", 10*time.Second, &runs))

	clock.Advance(9 * time.Second)
	assert.Empty(t, s.Tick(ctx), "not due yet")

	clock.Advance(time.Second)
	assert.Equal(t, []string{"diagnose"}, s.Tick(ctx))
	assert.Equal(t, 1, runs)

	require.Len(t, *events, 1)
	e := (*events)[0]
	assert.Equal(t, "diagnose", e.Kind)
	assert.Equal(t, []string{"diagnose done"}, e.Log)
	assert.False(t, e.Forced)
	assert.NotEmpty(t, e.RunID)

	assert.Empty(t, s.Tick(ctx), "rescheduled one interval out")
}

func TestTick_DefersWhileBusyThenForces(t *testing.T) {
	s, clock, events := setup(t)
	ctx := context.Background()
	runs := 0
	s.Add(counter("cleanup", 10*time.Second, &runs))

	clock.Advance(10 * time.Second)
	s.Touch()
	assert.Empty(t, s.Tick(ctx), "host is busy")

	// Stay busy right up to the deferral bound.
	for i := 0; i < 11; i++ {
		clock.Advance(5*time.Second - time.Millisecond)
		s.Touch()
		s.Tick(ctx)
	}
	assert.Zero(t, runs)

	clock.Advance(6 * time.Second)
	s.Touch()
	assert.Equal(t, []string{"cleanup"}, s.Tick(ctx))
	require.Len(t, *events, 1)
	assert.True(t, (*events)[0].Forced)
}

func TestTick_PublishesErrors(t *testing.T) {
	s, clock, events := setup(t)
	s.Add(Job{Name: "heartbeat", Every: time.Second, Run: func(context.Context) ([]string, error) {
		return nil, errors.New("kv down")
	}})

	clock.Advance(10 * time.Second)
	s.Tick(context.Background())
	require.Len(t, *events, 1)
	assert.Equal(t, "kv down", (*events)[0].Error)
}

func TestActivity_TouchesScheduler(t *testing.T) {
	s, clock, _ := setup(t)
	runs := 0
	s.Add(counter("diagnose", time.Second, &runs))
	clock.Advance(10 * time.Second)

	h := s.Activity(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Empty(t, s.Tick(context.Background()))
}

func TestStartStop(t *testing.T) {
	ran := make(chan struct{}, 1)
	s := New(nil, Options{Idle: time.Nanosecond, Tick: 5 * time.Millisecond})
	s.Add(Job{Name: "heartbeat", Every: time.Millisecond, Run: func(context.Context) ([]string, error) {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil, nil
	}})

	s.Start(context.Background())
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job never ran")
	}
	s.Stop()
	s.Stop()
}
