package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"sync"

	"tourchat/internal/crypto"
	"tourchat/internal/docstore"
	"tourchat/internal/indexer"
	"tourchat/internal/orchestrator"
	"tourchat/internal/retriever"
	"tourchat/internal/state"
)

// Server holds all shared state.
type Server struct {
	mu sync.RWMutex

	docs          *docstore.Store
	index         *indexer.Index
	retriever     *retriever.Retriever
	embedder      indexer.Embedder
	orchestrator  *orchestrator.Orchestrator
	profiles      *state.ProfileStore
	conversations *state.Store

	openAIKey   string
	chatModel   string
	vectorsPath string
	tesseractOk bool
}

// rebuildOrchestrator rewires the pipeline after a settings change. Caller
// holds s.mu.
func (s *Server) rebuildOrchestrator() error {
	provider, err := orchestrator.NewProvider("openai", s.openAIKey, s.chatModel)
	if err != nil {
		return err
	}
	s.embedder = indexer.NewOpenAIEmbedder(s.openAIKey, "")
	s.index.Embedder = s.embedder
	s.orchestrator = orchestrator.New(provider, s.embedder, s.retriever, s.profiles, s.conversations)
	return nil
}

// ========== Settings Persistence ==========

const settingsFile = "data/settings.json"

type SavedSettings struct {
	OpenAIKey string `json:"openai_key"`
	ChatModel string `json:"chat_model"`
	UserName  string `json:"user_name"`
}

func loadSavedSettings() *SavedSettings {
	data, err := os.ReadFile(settingsFile)
	if err != nil {
		return nil
	}
	var s SavedSettings
	if err := json.Unmarshal(data, &s); err != nil {
		log.Printf("Warning: could not parse %s: %v", settingsFile, err)
		return nil
	}

	// Decrypt API key fields (backward-compatible: if decryption fails, use raw value)
	s.OpenAIKey = decryptOrPassthrough(s.OpenAIKey)

	return &s
}

// decryptOrPassthrough tries to decrypt a value; if it fails (e.g. legacy
// plaintext), returns the original value unchanged.
func decryptOrPassthrough(val string) string {
	if val == "" {
		return ""
	}
	decrypted, err := crypto.Decrypt(val)
	if err != nil {
		return val
	}
	return decrypted
}

func persistSettings(s SavedSettings) error {
	_ = os.MkdirAll("data", 0755)

	// Encrypt the API key before writing to disk
	toSave := s
	var err error
	if toSave.OpenAIKey, err = crypto.Encrypt(s.OpenAIKey); err != nil {
		log.Printf("Warning: failed to encrypt OpenAI key: %v", err)
		toSave.OpenAIKey = s.OpenAIKey
	}

	data, err := json.MarshalIndent(toSave, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(settingsFile, data, 0644)
}

func maskKey(key string) string {
	if len(key) <= 8 {
		if key == "" {
			return ""
		}
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// ========== Middleware ==========

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ========== Helpers ==========

func jsonResp(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func jsonErr(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
