package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"haptic/agent/internal/auth"
	"haptic/agent/internal/config"
	"haptic/agent/internal/device"
	"haptic/agent/internal/health"
	"haptic/agent/internal/intent"
	"haptic/agent/internal/orchestrator"
	"haptic/agent/internal/session"
	"haptic/agent/internal/settings"
	"haptic/agent/internal/store"
	"haptic/agent/internal/tts"
)

type Handlers struct {
	cfg    config.Config
	orch   *orchestrator.Orchestrator
	store  *store.Store
	speech *tts.Client
	sets   *settings.File
	dev    *device.Client
	sess   *session.Session
}

func NewHandlers(cfg config.Config, orch *orchestrator.Orchestrator, st *store.Store, speech *tts.Client, sets *settings.File, dev *device.Client, sess *session.Session) *Handlers {
	return &Handlers{cfg: cfg, orch: orch, store: st, speech: speech, sets: sets, dev: dev, sess: sess}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handlers) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
		Text    string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	text := req.Message
	if text == "" {
		text = req.Text
	}
	if text == "" {
		http.Error(w, "missing message", http.StatusBadRequest)
		return
	}
	res, err := h.orch.HandleText(r.Context(), text)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) HandleDirective(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		http.Error(w, "read failed", http.StatusBadRequest)
		return
	}
	res, err := h.orch.HandleJSON(r.Context(), body)
	if err != nil {
		if errors.Is(err, intent.ErrParse) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) HandleModeToggle(w http.ResponseWriter, r *http.Request, mode string, on bool) {
	res, err := h.orch.ToggleMode(mode, on)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) HandleSignalEdge(w http.ResponseWriter, r *http.Request) {
	count, taken := h.orch.SignalEdge()
	writeJSON(w, http.StatusOK, map[string]any{"count": count, "taken": taken})
}

func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.orch.Status())
}

// HandleUpdates drains pending chat messages and synthesized audio for
// polling UIs that do not hold a websocket.
func (h *Handlers) HandleUpdates(w http.ResponseWriter, r *http.Request) {
	msgs := h.store.DrainPending()
	var audio []tts.Chunk
	if h.speech != nil {
		audio = h.speech.Drain()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"messages": msgs,
		"audio":    audio,
	})
}

func (h *Handlers) HandleEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": h.sess.ID(),
		"events":     h.store.Events(),
	})
}

func (h *Handlers) HandleMintUIToken(w http.ResponseWriter, r *http.Request) {
	if h.cfg.UI.TokenSecret == "" {
		http.Error(w, "ui auth not configured", http.StatusBadRequest)
		return
	}
	exp := time.Now().Add(time.Duration(h.cfg.UI.TokenExpMin) * time.Minute).Unix()
	tok := auth.GenerateUIToken(h.cfg.UI.TokenSecret, h.sess.ID(), exp)
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": h.sess.ID(),
		"token":      tok,
		"exp":        exp,
	})
}

// HandleReady probes the downstream collaborators. Degraded
// dependencies report 503 with per-check detail.
func (h *Handlers) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	status := health.CheckAll(ctx, h.cfg)
	code := http.StatusOK
	if !status.OK {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (h *Handlers) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sets.Get())
}

func (h *Handlers) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var s settings.Settings
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		http.Error(w, "invalid settings payload", http.StatusBadRequest)
		return
	}
	if err := h.sets.Update(s); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	cur := h.sets.Get()
	if h.dev != nil {
		h.dev.SetKey(cur.HandyKey)
		h.dev.SetCalibration(cur.Calibration)
	}
	h.orch.SetPersona(cur.Persona)
	h.store.AppendEvent("settings_updated", nil)
	writeJSON(w, http.StatusOK, cur)
}
