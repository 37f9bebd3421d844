// Package uiws manages the websocket channel that pushes chat replies,
// motion updates, and status changes to the control UI.
package uiws

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	ws "nhooyr.io/websocket"

	"haptic/agent/internal/auth"
	"haptic/agent/internal/store"
)

type Message struct {
	Type    string         `json:"type"`
	TsMs    int64          `json:"ts_ms"`
	Payload map[string]any `json:"payload,omitempty"`
}

type Server struct {
	Secret    string
	SkewSecs  int
	SessionID func() string
	Store     *store.Store
	Reg       *Registry
}

func NewServer(secret string, skewSecs int, sessionID func() string, st *store.Store, reg *Registry) *Server {
	return &Server{Secret: secret, SkewSecs: skewSecs, SessionID: sessionID, Store: st, Reg: reg}
}

func (s *Server) HandleUIWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sessionID := q.Get("session_id")
	if sessionID == "" {
		http.Error(w, "missing session_id", http.StatusBadRequest)
		return
	}
	if sessionID != s.SessionID() {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	if s.Secret != "" {
		authz := r.Header.Get("Authorization")
		token := strings.TrimPrefix(authz, "Bearer ")
		if token == "" || token == authz {
			token = q.Get("token")
		}
		if token == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}
		if _, _, err := auth.ValidateUIToken(s.Secret, token, sessionID, time.Now(), s.SkewSecs); err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
	}

	c, err := ws.Accept(w, r, nil)
	if err != nil {
		log.Printf("[uiws] accept: %v", err)
		return
	}
	if s.Reg.Replace(sessionID, c) {
		s.Store.AppendEvent("ui_replaced", nil)
	}
	s.Store.AppendEvent("ui_connected", nil)

	ctx := r.Context()
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			break
		}
		if typ != ws.MessageText {
			continue
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.Store.AppendEvent("ui_msg_invalid", map[string]any{"error": err.Error()})
			continue
		}
		payload := msg.Payload
		if payload == nil {
			payload = map[string]any{}
		}
		payload["ts_ms"] = msg.TsMs
		s.Store.AppendEvent(msg.Type, payload)
	}
	_ = c.Close(ws.StatusNormalClosure, "done")
	s.Reg.Remove(sessionID)
	s.Store.AppendEvent("ui_disconnected", nil)
}
