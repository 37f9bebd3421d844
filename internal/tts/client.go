// Package tts synthesizes speech for chat replies via the ElevenLabs
// REST API and buffers the audio until the UI fetches it. Unconfigured
// clients (no API key) turn every call into a no-op so the rest of the
// agent never has to care whether voice is on.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultVoiceID = "EXAVITQu4vr4xnSDxMaL"

type Client struct {
	http    *http.Client
	apiKey  string
	voiceID string
	baseURL string

	mu    sync.Mutex
	queue []Chunk
}

// Chunk is one synthesized utterance waiting for pickup.
type Chunk struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Audio []byte `json:"audio"`
	Mime  string `json:"mime"`
}

func NewClient(apiKey, voiceID string) *Client {
	if voiceID == "" {
		voiceID = defaultVoiceID
	}
	return &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		apiKey:  apiKey,
		voiceID: voiceID,
		baseURL: "https://api.elevenlabs.io",
	}
}

func (c *Client) Enabled() bool { return c.apiKey != "" }

// Speak synthesizes text and queues the resulting audio. Disabled
// clients return immediately with no error.
func (c *Client) Speak(ctx context.Context, text string) error {
	if !c.Enabled() || text == "" {
		return nil
	}
	start := time.Now()
	audio, err := c.synthesize(ctx, text)
	if err != nil {
		ttsSynthesisTotal.WithLabelValues("error").Inc()
		return err
	}
	ttsSynthesisTotal.WithLabelValues("ok").Inc()
	ttsLatencyMS.Observe(float64(time.Since(start).Milliseconds()))

	c.mu.Lock()
	c.queue = append(c.queue, Chunk{
		ID:    uuid.NewString(),
		Text:  text,
		Audio: audio,
		Mime:  "audio/mpeg",
	})
	c.mu.Unlock()
	return nil
}

// Drain returns all queued chunks and empties the queue.
func (c *Client) Drain() []Chunk {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.queue
	c.queue = nil
	return out
}

func (c *Client) synthesize(ctx context.Context, text string) ([]byte, error) {
	url := fmt.Sprintf("%s/v1/text-to-speech/%s", c.baseURL, c.voiceID)
	body, err := json.Marshal(map[string]any{
		"text":     text,
		"model_id": "eleven_multilingual_v2",
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("accept", "audio/mpeg")
	req.Header.Set("content-type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("tts: status=%d body=%s", resp.StatusCode, string(b))
	}
	return io.ReadAll(resp.Body)
}
