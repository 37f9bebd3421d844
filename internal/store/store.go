// Package store keeps the in-memory conversation state: chat history,
// pending UI messages, and the per-session event log.
package store

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"haptic/agent/internal/types"
)

const (
	historyCap = 20
	eventCap   = 200
)

type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

type Store struct {
	mu      sync.RWMutex
	history []types.ChatMessage
	pending []types.ChatMessage
	events  []Event
}

func New() *Store {
	return &Store{}
}

// AppendMessage records a chat turn in the rolling history. The oldest
// turns fall off past the cap so prompts stay bounded.
func (s *Store) AppendMessage(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, types.ChatMessage{Role: role, Content: content})
	if len(s.history) > historyCap {
		s.history = s.history[len(s.history)-historyCap:]
	}
}

func (s *Store) History() []types.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.ChatMessage, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Store) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
}

// PushPending queues an assistant message for the UI poll endpoint.
func (s *Store) PushPending(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, types.ChatMessage{Role: "assistant", Content: content})
}

// DrainPending returns queued UI messages and empties the queue.
func (s *Store) DrainPending() []types.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = nil
	return out
}

// AppendEvent logs a structured event, truncating the oldest entries
// past the cap.
func (s *Store) AppendEvent(typ string, payload map[string]any) Event {
	evt := Event{
		ID:        uuid.NewString(),
		Type:      typ,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	s.mu.Lock()
	s.events = append(s.events, evt)
	if len(s.events) > eventCap {
		s.events = s.events[len(s.events)-eventCap:]
	}
	s.mu.Unlock()
	return evt
}

func (s *Store) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}
