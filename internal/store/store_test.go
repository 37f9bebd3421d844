package store

import (
	"fmt"
	"testing"
)

func TestHistoryCap(t *testing.T) {
	s := New()
	for i := 0; i < 30; i++ {
		s.AppendMessage("user", fmt.Sprintf("msg-%d", i))
	}
	h := s.History()
	if len(h) != historyCap {
		t.Fatalf("history len = %d, want %d", len(h), historyCap)
	}
	if h[0].Content != "msg-10" {
		t.Fatalf("oldest kept = %q, want msg-10", h[0].Content)
	}
	if h[len(h)-1].Content != "msg-29" {
		t.Fatalf("newest = %q, want msg-29", h[len(h)-1].Content)
	}
}

func TestDrainPendingEmptiesQueue(t *testing.T) {
	s := New()
	s.PushPending("one")
	s.PushPending("two")
	got := s.DrainPending()
	if len(got) != 2 || got[0].Content != "one" {
		t.Fatalf("drained = %+v", got)
	}
	if again := s.DrainPending(); len(again) != 0 {
		t.Fatalf("second drain = %+v, want empty", again)
	}
}

func TestEventLogTruncation(t *testing.T) {
	s := New()
	for i := 0; i < eventCap+50; i++ {
		s.AppendEvent("tick", map[string]any{"n": i})
	}
	evts := s.Events()
	if len(evts) != eventCap {
		t.Fatalf("events len = %d, want %d", len(evts), eventCap)
	}
	if evts[0].Payload["n"] != 50 {
		t.Fatalf("oldest kept n = %v, want 50", evts[0].Payload["n"])
	}
}

func TestClearHistory(t *testing.T) {
	s := New()
	s.AppendMessage("user", "hi")
	s.ClearHistory()
	if len(s.History()) != 0 {
		t.Fatal("history not cleared")
	}
}
