package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

type blockingSink struct {
	release chan struct{}
	got     chan Event
}

func (s *blockingSink) Emit(_ context.Context, e Event) {
	<-s.release
	s.got <- e
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	sink := NewChannelSink(8)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink)

	for _, typ := range []string{"login_success", "refresh_success", "logout"} {
		d.Emit(context.Background(), Event{EventType: typ, Success: true})
	}
	d.Close()

	var got []string
	for i := 0; i < 3; i++ {
		select {
		case e := <-sink.Events():
			got = append(got, e.EventType)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
	if strings.Join(got, ",") != "login_success,refresh_success,logout" {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{}), got: make(chan Event, 16)}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "refresh_throttled"})
	}
	if d.Dropped() == 0 {
		t.Fatalf("expected drops with a blocked sink and buffer of 1")
	}
	close(sink.release)
	d.Close()
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatalf("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{EventType: "login_success"})
	d.Close()
	if d.Pending() != 0 || d.Dropped() != 0 {
		t.Fatalf("nil dispatcher must be inert")
	}
}

func TestJSONWriterSinkWritesLines(t *testing.T) {
	var buf bytes.Buffer
	s := NewJSONWriterSink(&buf)
	s.Emit(context.Background(), Event{EventType: "login_failure", Error: "invalid_credentials"})
	s.Emit(context.Background(), Event{EventType: "logout", Success: true})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var e Event
	if err := json.Unmarshal([]byte(lines[0]), &e); err != nil || e.Error != "invalid_credentials" {
		t.Fatalf("unexpected first line %q err=%v", lines[0], err)
	}
}

func TestSlogSinkLevels(t *testing.T) {
	var buf bytes.Buffer
	s := SlogSink{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}
	s.Emit(context.Background(), Event{EventType: "refresh_failure", DeviceID: "ios-1-a"})
	if !strings.Contains(buf.String(), `"level":"WARN"`) || !strings.Contains(buf.String(), `"device_id":"ios-1-a"`) {
		t.Fatalf("unexpected log %s", buf.String())
	}
}

type panicSink struct {
	got chan Event
}

func (s *panicSink) Emit(_ context.Context, e Event) {
	if e.EventType == "bad" {
		panic("sink failure")
	}
	s.got <- e
}

func TestDispatcherSurvivesPanickingSink(t *testing.T) {
	sink := &panicSink{got: make(chan Event, 4)}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)
	d.Emit(context.Background(), Event{EventType: "bad"})
	d.Emit(context.Background(), Event{EventType: "logout"})
	d.Close()

	if d.Failed() != 1 {
		t.Fatalf("expected one failed delivery, got %d", d.Failed())
	}
	select {
	case e := <-sink.got:
		if e.EventType != "logout" || e.Timestamp.IsZero() {
			t.Fatalf("unexpected event %+v", e)
		}
	default:
		t.Fatalf("event after the panic was not delivered")
	}
}
