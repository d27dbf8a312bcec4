package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"tourchat/internal/orchestrator"

	"github.com/gorilla/websocket"
)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req orchestrator.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" || req.RequestID == "" {
		jsonErr(w, "message and requestId are required", http.StatusBadRequest)
		return
	}

	s.mu.RLock()
	orch := s.orchestrator
	s.mu.RUnlock()

	choice, err := orch.ProcessTurn(r.Context(), req)
	if err != nil {
		var cv *orchestrator.ContractViolationError
		if errors.As(err, &cv) {
			jsonErr(w, cv.Error(), http.StatusBadGateway)
			return
		}
		jsonErr(w, err.Error(), http.StatusInternalServerError)
		return
	}

	jsonResp(w, choice)
}

var upgrader = websocket.Upgrader{
	// Same-origin policy is handled by the CORS middleware for the rest of
	// the API; the websocket endpoint mirrors that openness.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsEvent is one message pushed over the chat websocket. Type is "step"
// while the pipeline runs, then "choice" or "error".
type wsEvent struct {
	Type   string                       `json:"type"`
	Step   string                       `json:"step,omitempty"`
	Choice *orchestrator.ResponseChoice `json:"choice,omitempty"`
	Error  string                       `json:"error,omitempty"`
}

// handleChatWS runs chat turns over a websocket, reporting pipeline
// progress as each step starts.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		var req orchestrator.ChatRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Websocket read error: %v", err)
			}
			return
		}

		if strings.TrimSpace(req.Message) == "" || req.RequestID == "" {
			if err := conn.WriteJSON(wsEvent{Type: "error", Error: "message and requestId are required"}); err != nil {
				return
			}
			continue
		}

		s.mu.RLock()
		orch := s.orchestrator
		s.mu.RUnlock()

		choice, err := orch.ProcessTurnWithProgress(r.Context(), req, func(step string) {
			_ = conn.WriteJSON(wsEvent{Type: "step", Step: step})
		})
		if err != nil {
			if err := conn.WriteJSON(wsEvent{Type: "error", Error: err.Error()}); err != nil {
				return
			}
			continue
		}
		if err := conn.WriteJSON(wsEvent{Type: "choice", Choice: choice}); err != nil {
			return
		}
	}
}
