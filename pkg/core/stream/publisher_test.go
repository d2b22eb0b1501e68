package stream

import (
	"strings"
	"testing"
	"time"

	"strategy_arena/pkg/models"
)

func TestChunkBufferFlushOnNewline(t *testing.T) {
	var flushed []string
	buf := NewChunkBuffer(func(text string) { flushed = append(flushed, text) })

	buf.Write("thinking about ")
	if len(flushed) != 0 {
		t.Fatalf("Expected no flush yet, got %v", flushed)
	}

	buf.Write("momentum\n")
	if len(flushed) != 1 || flushed[0] != "thinking about momentum\n" {
		t.Fatalf("Expected newline flush, got %v", flushed)
	}
}

func TestChunkBufferFlushOnThreshold(t *testing.T) {
	var flushed []string
	buf := NewChunkBuffer(func(text string) { flushed = append(flushed, text) })

	long := strings.Repeat("x", chunkFlushThreshold+1)
	buf.Write(long)
	if len(flushed) != 1 || flushed[0] != long {
		t.Fatalf("Expected threshold flush, got %d flushes", len(flushed))
	}
}

func TestChunkBufferFinalFlush(t *testing.T) {
	var flushed []string
	buf := NewChunkBuffer(func(text string) { flushed = append(flushed, text) })

	buf.Write("tail")
	buf.Flush()
	if len(flushed) != 1 || flushed[0] != "tail" {
		t.Fatalf("Expected explicit flush of remainder, got %v", flushed)
	}

	// Flushing an empty buffer publishes nothing.
	buf.Flush()
	if len(flushed) != 1 {
		t.Fatalf("Empty flush must be silent, got %v", flushed)
	}
}

func TestHubHistoryReplay(t *testing.T) {
	hub := NewHub("arena-1", nil)

	hub.PublishSystem("first", nil)
	hub.PublishSystem("second", nil)

	ch, history := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	if len(history) != 2 {
		t.Fatalf("Expected 2 replayed messages, got %d", len(history))
	}
	if history[0].Content != "first" || history[1].Content != "second" {
		t.Errorf("History out of order: %q, %q", history[0].Content, history[1].Content)
	}

	hub.Publish("agent-1", models.RoleGenerator, "live", models.MessageThinking, "r-1",
		map[string]interface{}{"target_strategy_id": "s-1"})

	select {
	case msg := <-ch:
		if msg.Content != "live" {
			t.Errorf("Expected live message, got %q", msg.Content)
		}
		if msg.TargetStrategyID != "s-1" {
			t.Errorf("Expected target strategy promoted from metadata, got %q", msg.TargetStrategyID)
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for live message")
	}
}

func TestHubDropsForSlowSubscribers(t *testing.T) {
	hub := NewHub("arena-1", nil)

	ch, _ := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	// Never read from ch; overflow past the channel buffer must not block
	// the publisher.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 250; i++ {
			hub.PublishSystem("flood", nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Publisher blocked on a slow subscriber")
	}

	if got := len(hub.History()); got != 250 {
		t.Errorf("History must keep everything, got %d", got)
	}
}

func TestHubUnsubscribeCloses(t *testing.T) {
	hub := NewHub("arena-1", nil)
	ch, _ := hub.Subscribe()
	hub.Unsubscribe(ch)

	if _, open := <-ch; open {
		t.Error("Unsubscribed channel should be closed")
	}
}
