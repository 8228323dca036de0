package pubsub

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func receive(t *testing.T, sub Subscription) Event {
	t.Helper()
	select {
	case event := <-sub.Events():
		return event
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for event")
	}
	return Event{}
}

func expectNone(t *testing.T, sub Subscription) {
	t.Helper()
	select {
	case event := <-sub.Events():
		t.Errorf("Received unexpected event version %d", event.Version)
	case <-time.After(50 * time.Millisecond):
	}
}

func publishN(t *testing.T, pub Publisher, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		if err := pub.Publish("test", "event", map[string]int{"num": i}); err != nil {
			t.Fatalf("Failed to publish event %d: %v", i, err)
		}
	}
}

func TestReplay(t *testing.T) {
	tests := []struct {
		name   string
		config TopicConfig
		want   []int
	}{
		{"replay all of buffer", TopicConfig{BufferSize: 3, ReplayAll: true}, []int{3, 4, 5}},
		{"replay last only", TopicConfig{BufferSize: 5}, []int{5}},
		{"no buffer", TopicConfig{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := NewSSEPublisher()
			defer pub.Close()
			pub.ConfigureTopic("test", tt.config)
			publishN(t, pub, 5)

			sub, err := pub.Subscribe(context.Background(), "test")
			if err != nil {
				t.Fatalf("Failed to subscribe: %v", err)
			}
			defer sub.Close()

			for _, version := range tt.want {
				if got := receive(t, sub).Version; got != version {
					t.Errorf("Expected version %d, got %d", version, got)
				}
			}
			expectNone(t, sub)

			// Live events follow the replay
			publishN(t, pub, 1)
			if got := receive(t, sub).Version; got != 6 {
				t.Errorf("Expected live version 6, got %d", got)
			}
		})
	}
}

func TestBuildPublisherReplaysLatestStatus(t *testing.T) {
	pub := NewBuildPublisher()
	defer pub.Close()

	_ = pub.Publish(TopicBuildStatus, EventStarted, BuildStatus{State: EventStarted, Step: 1, Total: 5})
	code := 0
	_ = pub.Publish(TopicBuildStatus, EventFinished, BuildStatus{State: EventFinished, Step: 5, Total: 5, ExitCode: &code})

	sub, err := pub.Subscribe(context.Background(), TopicBuildStatus)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()

	event := receive(t, sub)
	if event.Type != EventFinished {
		t.Fatalf("Expected finished event, got %s", event.Type)
	}
	var status BuildStatus
	if err := json.Unmarshal(event.Data, &status); err != nil {
		t.Fatal(err)
	}
	if status.ExitCode == nil || *status.ExitCode != 0 {
		t.Errorf("Expected exit code 0 in payload, got %+v", status)
	}
}

func TestContextCancelUnsubscribes(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := pub.Subscribe(ctx, "test"); err != nil {
		t.Fatal(err)
	}
	if pub.Subscribers("test") != 1 {
		t.Fatalf("Expected 1 subscriber, got %d", pub.Subscribers("test"))
	}

	cancel()
	deadline := time.Now().Add(time.Second)
	for pub.Subscribers("test") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("Subscription was not removed after cancel")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestClose(t *testing.T) {
	pub := NewSSEPublisher()
	sub, err := pub.Subscribe(context.Background(), "test")
	if err != nil {
		t.Fatal(err)
	}

	if err := pub.Close(); err != nil {
		t.Fatal(err)
	}
	if _, ok := <-sub.Events(); ok {
		t.Error("Expected subscription channel to be closed")
	}
	if err := pub.Publish("test", "event", nil); err != ErrClosed {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
	if _, err := pub.Subscribe(context.Background(), "test"); err != ErrClosed {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Errorf("Second Close() error = %v", err)
	}
}

func TestWriteSSE(t *testing.T) {
	var buf bytes.Buffer
	err := WriteSSE(&buf, Event{Topic: TopicBuildStatus, Type: EventCompiling, Data: json.RawMessage(`{"step":3}`), Version: 7})
	if err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "event: compiling\ndata: {") || !strings.HasSuffix(out, "}\n\n") {
		t.Errorf("Unexpected SSE framing %q", out)
	}
	if !strings.Contains(out, `"version":7`) {
		t.Errorf("Expected version in payload, got %q", out)
	}
}
