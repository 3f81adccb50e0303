package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"firewatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	gate   chan struct{}
	err    error
}

func (s *recordingSink) Handle(_ context.Context, e Event) error {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestEvent_Message(t *testing.T) {
	alert := models.Alert{ID: "a1", AlertType: models.AlertSOSPressed, Resolved: true, Resolution: models.ResolutionAuto}

	msg, ok := Event{Kind: KindAlertResolved, Alert: &alert}.Message().(models.AlertResolvedMessage)
	require.True(t, ok)
	assert.Equal(t, "alert_resolved", msg.Type)
	assert.Equal(t, "a1", msg.AlertID)

	raised, ok := Event{Kind: KindAlertRaised, Alert: &alert}.Message().(models.AlertMessage)
	require.True(t, ok)
	assert.Equal(t, "alert", raised.Type)

	tag := models.TagState{Telemetry: models.Telemetry{Firefighter: models.Firefighter{ID: "FF-1"}}}
	tm, ok := Event{Kind: KindTelemetry, Tag: &tag}.Message().(models.TagTelemetryMessage)
	require.True(t, ok)
	assert.Equal(t, "FF-1", tm.Firefighter.ID)

	assert.Nil(t, Event{Kind: "bogus"}.Message())
}

func TestFanout_PublishesInOrder(t *testing.T) {
	var got []string
	f := Fanout{
		PublisherFunc(func(e Event) { got = append(got, "a:"+e.Key) }),
		PublisherFunc(func(e Event) { got = append(got, "b:"+e.Key) }),
	}
	f.Publish(Event{Key: "tag:1"})
	assert.Equal(t, []string{"a:tag:1", "b:tag:1"}, got)
}

func TestAsync_DeliversAndDrainsOnStop(t *testing.T) {
	sink := &recordingSink{err: errors.New("ignored")}
	a := NewAsync("test", sink, 16, zap.NewNop(), nil)
	a.Start(context.Background())

	for i := 0; i < 10; i++ {
		a.Publish(Event{Kind: KindTelemetry})
	}
	a.Stop()
	assert.Equal(t, 10, sink.count())

	a.Publish(Event{Kind: KindTelemetry})
	a.Stop()
	assert.Equal(t, 10, sink.count())
}

func TestAsync_DropsWhenFull(t *testing.T) {
	sink := &recordingSink{gate: make(chan struct{})}
	var dropped []string
	var mu sync.Mutex
	a := NewAsync("archive", sink, 2, zap.NewNop(), func(name string) {
		mu.Lock()
		dropped = append(dropped, name)
		mu.Unlock()
	})
	a.Start(context.Background())

	a.Publish(Event{Kind: KindTelemetry})
	require.Eventually(t, func() bool { return len(a.queue) == 0 }, time.Second, time.Millisecond)
	a.Publish(Event{Kind: KindTelemetry})
	a.Publish(Event{Kind: KindTelemetry})
	a.Publish(Event{Kind: KindTelemetry})

	close(sink.gate)
	a.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"archive"}, dropped)
	assert.Equal(t, 3, sink.count())
}
