// Package llm talks to an OpenAI-compatible chat completions endpoint
// (LM Studio by default). The model replies in prose or with an embedded
// JSON object {"chat","move","new_mood"}; either way the caller gets a
// Reply, never a hard failure on odd output.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"haptic/agent/internal/motion"
	"haptic/agent/internal/types"
)

type Client struct {
	http  *http.Client
	url   string
	model string
}

func NewClient(url, model string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		http:  &http.Client{Timeout: timeout},
		url:   url,
		model: model,
	}
}

func (c *Client) Model() string { return c.model }

// Scene is the per-turn context woven into the system prompt.
type Scene struct {
	Persona   string
	Mood      string
	Phase     motion.Phase
	EdgeCount int
	Directive string // one-turn task directive, optional
}

// Reply is the parsed model output.
type Reply struct {
	Chat    string
	Move    *motion.Tuple
	NewMood string
}

type wireRequest struct {
	Model       string              `json:"model"`
	Messages    []types.ChatMessage `json:"messages"`
	Temperature float64             `json:"temperature"`
	TopP        float64             `json:"top_p"`
	MaxTokens   int                 `json:"max_tokens"`
}

type wireResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends the scene prompt plus history and parses the reply.
func (c *Client) Complete(ctx context.Context, history []types.ChatMessage, sc Scene) (Reply, error) {
	msgs := make([]types.ChatMessage, 0, len(history)+2)
	if sys := systemPrompt(sc); sys != "" {
		msgs = append(msgs, types.ChatMessage{Role: "system", Content: sys})
	}
	if sc.Directive != "" {
		msgs = append(msgs, types.ChatMessage{Role: "system", Content: sc.Directive})
	}
	msgs = append(msgs, history...)

	body, err := json.Marshal(wireRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: 0.9,
		TopP:        0.95,
		MaxTokens:   1200,
	})
	if err != nil {
		return Reply{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Reply{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Reply{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return Reply{}, fmt.Errorf("llm: %s: %s", resp.Status, string(b))
	}

	var wire wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return Reply{}, fmt.Errorf("llm: decode response: %w", err)
	}
	if len(wire.Choices) == 0 {
		return Reply{}, fmt.Errorf("llm: empty choices")
	}
	return parseReply(wire.Choices[0].Message.Content), nil
}

func systemPrompt(sc Scene) string {
	var b strings.Builder
	if sc.Persona != "" {
		b.WriteString(strings.TrimSpace(sc.Persona))
		b.WriteString("\n")
	}
	bounds := motion.BoundsFor(sc.Phase)
	fmt.Fprintf(&b, "Current phase: %s. Stay strictly in this phase until the user transitions.\n", sc.Phase)
	fmt.Fprintf(&b, "When choosing move values, keep them within these envelopes (the app may clamp):\n")
	fmt.Fprintf(&b, "- speed (sp): %d-%d\n- depth (dp): %d-%d\n- range (rng): %d-%d\n",
		bounds.Speed.Lo, bounds.Speed.Hi, bounds.Depth.Lo, bounds.Depth.Hi, bounds.Range.Lo, bounds.Range.Hi)
	if sc.Mood != "" {
		fmt.Fprintf(&b, "Current mood: %s.\n", sc.Mood)
	}
	if sc.EdgeCount > 0 {
		fmt.Fprintf(&b, "The user has been edged %d times this session.\n", sc.EdgeCount)
	}
	return b.String()
}

// replyEnvelope is the JSON shape the model is asked to emit.
type replyEnvelope struct {
	Chat    string `json:"chat"`
	Move    *struct {
		Sp  int `json:"sp"`
		Dp  int `json:"dp"`
		Rng int `json:"rng"`
	} `json:"move"`
	NewMood string `json:"new_mood"`
}

func parseReply(text string) Reply {
	out := Reply{Chat: text}
	if obj, ok := extractFirstJSON(text); ok {
		var env replyEnvelope
		if err := json.Unmarshal(obj, &env); err == nil && (env.Chat != "" || env.Move != nil || env.NewMood != "") {
			if env.Chat != "" {
				out.Chat = env.Chat
			}
			if env.Move != nil {
				out.Move = &motion.Tuple{Speed: env.Move.Sp, Depth: env.Move.Dp, Range: env.Move.Rng}
			}
			out.NewMood = env.NewMood
		}
	}
	if out.Move == nil {
		out.Move = inferMove(out.Chat)
	}
	return out
}

// extractFirstJSON returns the first balanced top-level {...} block,
// honoring string literals and escapes.
func extractFirstJSON(s string) ([]byte, bool) {
	inStr, esc := false, false
	depth, start := 0, -1
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inStr {
			switch {
			case esc:
				esc = false
			case ch == '\\':
				esc = true
			case ch == '"':
				inStr = false
			}
			continue
		}
		switch ch {
		case '"':
			inStr = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					block := []byte(s[start : i+1])
					if json.Valid(block) {
						return block, true
					}
					start = -1
				}
			}
		}
	}
	return nil, false
}

// inferMove maps narration keywords to a rough tuple when the model gave
// no explicit move. The base tuple is drawn at random so keyword-free
// turns don't repeat the same values forever; keyword hits then override
// the relevant fields, and the session's clamping decides what sticks.
func inferMove(text string) *motion.Tuple {
	t := strings.ToLower(text)
	m := motion.Tuple{
		Speed: 20 + rand.Intn(61),
		Depth: 30 + rand.Intn(41),
		Range: 30 + rand.Intn(41),
	}

	switch {
	case containsAny(t, "very slow", "molto lento", "slowly"):
		m.Speed = 20
	case containsAny(t, "slow", "lento", "piano", "take it slow", "rallenta"):
		m.Speed = 35
	case containsAny(t, "very fast", "full speed", "massimo"):
		m.Speed = 85
	case containsAny(t, "fast", "veloce", "accelera", "rapido"):
		m.Speed = 70
	case containsAny(t, "medium", "medio", "steady", "costante"):
		m.Speed = 50
	}

	if containsAny(t, "tip", "punta", "shallow") {
		m.Depth = 15
	}
	if containsAny(t, "base", "deep", "profondo", "a fondo") {
		m.Depth = 85
	}
	if containsAny(t, "short", "half stroke", "mezze") {
		m.Range = 25
	}
	if containsAny(t, "long", "full stroke", "colpi lunghi") {
		m.Range = 85
	}
	return &m
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
