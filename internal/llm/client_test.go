package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"haptic/agent/internal/motion"
	"haptic/agent/internal/types"
)

func TestExtractFirstJSON(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{`leading text {"chat":"hi"} trailing`, `{"chat":"hi"}`, true},
		{`{"a":{"b":1}} {"c":2}`, `{"a":{"b":1}}`, true},
		{`string with brace "{" inside {"x":"a } b"}`, `{"x":"a } b"}`, true},
		{`no json here`, ``, false},
		{`{broken`, ``, false},
	}
	for _, c := range cases {
		got, ok := extractFirstJSON(c.in)
		if ok != c.ok {
			t.Fatalf("extractFirstJSON(%q) ok=%v want %v", c.in, ok, c.ok)
		}
		if ok && string(got) != c.want {
			t.Fatalf("extractFirstJSON(%q) = %s want %s", c.in, got, c.want)
		}
	}
}

func TestParseReplyEnvelope(t *testing.T) {
	r := parseReply(`Mmh, slower now. {"chat":"Going slower for you.","move":{"sp":18,"dp":50,"rng":40},"new_mood":"Tender"}`)
	if r.Chat != "Going slower for you." {
		t.Fatalf("chat = %q", r.Chat)
	}
	if r.Move == nil || *r.Move != (motion.Tuple{Speed: 18, Depth: 50, Range: 40}) {
		t.Fatalf("move = %+v", r.Move)
	}
	if r.NewMood != "Tender" {
		t.Fatalf("mood = %q", r.NewMood)
	}
}

func TestParseReplyHeuristicFallback(t *testing.T) {
	r := parseReply("I'll go very slow, just the tip for now.")
	if r.Move == nil {
		t.Fatal("expected inferred move")
	}
	if r.Move.Speed != 20 {
		t.Fatalf("speed = %d, want 20", r.Move.Speed)
	}
	if r.Move.Depth != 15 {
		t.Fatalf("depth = %d, want 15", r.Move.Depth)
	}
	if r.NewMood != "" {
		t.Fatalf("mood = %q, want empty", r.NewMood)
	}
}

func TestInferMoveFallbackStaysInBounds(t *testing.T) {
	seen := map[motion.Tuple]bool{}
	for i := 0; i < 25; i++ {
		m := inferMove("mmh, thinking of you")
		if m == nil {
			t.Fatal("expected inferred move")
		}
		if m.Speed < 20 || m.Speed > 80 {
			t.Fatalf("speed = %d, want 20..80", m.Speed)
		}
		if m.Depth < 30 || m.Depth > 70 {
			t.Fatalf("depth = %d, want 30..70", m.Depth)
		}
		if m.Range < 30 || m.Range > 70 {
			t.Fatalf("range = %d, want 30..70", m.Range)
		}
		seen[*m] = true
	}
	if len(seen) < 2 {
		t.Fatal("fallback tuples never vary")
	}
}

func TestCompleteRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req wireRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %+v", err)
		}
		if len(req.Messages) == 0 || req.Messages[0].Role != "system" {
			t.Fatalf("expected leading system message, got %+v", req.Messages)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": `{"chat":"ok","move":{"sp":60,"dp":55,"rng":50},"new_mood":""}`}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-model", 5*time.Second)
	reply, err := c.Complete(context.Background(), []types.ChatMessage{{Role: "user", Content: "faster"}}, Scene{
		Persona: "You are a playful companion.",
		Phase:   motion.Active,
		Mood:    "Curious",
	})
	if err != nil {
		t.Fatalf("Complete: %+v", err)
	}
	if reply.Chat != "ok" || reply.Move == nil || reply.Move.Speed != 60 {
		t.Fatalf("reply = %+v", reply)
	}
}

func TestCompleteServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-model", 5*time.Second)
	if _, err := c.Complete(context.Background(), nil, Scene{Phase: motion.Warmup}); err == nil {
		t.Fatal("expected error on 503")
	}
}
