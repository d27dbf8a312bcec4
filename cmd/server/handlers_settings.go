package main

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
)

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.mu.RLock()
		resp := map[string]interface{}{
			"openai_key":          maskKey(s.openAIKey),
			"chat_model":          s.chatModel,
			"user_name":           s.profiles.User().Name,
			"tesseract_available": s.tesseractOk,
		}
		s.mu.RUnlock()
		jsonResp(w, resp)

	case http.MethodPost:
		var req struct {
			OpenAIKey string `json:"openai_key"`
			ChatModel string `json:"chat_model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonErr(w, "Invalid request", http.StatusBadRequest)
			return
		}

		s.mu.Lock()
		// Only update the key if a real (non-masked) value was sent
		if req.OpenAIKey != "" && !strings.Contains(req.OpenAIKey, "...") {
			s.openAIKey = req.OpenAIKey
		}
		if req.ChatModel != "" {
			s.chatModel = req.ChatModel
		}
		if err := s.rebuildOrchestrator(); err != nil {
			s.mu.Unlock()
			jsonErr(w, err.Error(), http.StatusBadRequest)
			return
		}
		saved := SavedSettings{
			OpenAIKey: s.openAIKey,
			ChatModel: s.chatModel,
			UserName:  s.profiles.User().Name,
		}
		s.mu.Unlock()

		if err := persistSettings(saved); err != nil {
			log.Printf("Failed to persist settings: %v", err)
		}

		log.Printf("Settings updated: model=%s", saved.ChatModel)
		jsonResp(w, map[string]string{"status": "saved"})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
