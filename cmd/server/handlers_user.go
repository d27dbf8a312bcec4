package main

import (
	"net/http"
	"strings"
)

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	jsonResp(w, s.profiles.User())
}

// handleUserRequest returns the condensed request state of one
// conversation. A conversation with no committed turn reads as nulls.
func (s *Server) handleUserRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	requestID := strings.TrimPrefix(r.URL.Path, "/api/user-request/")
	if requestID == "" || strings.Contains(requestID, "/") {
		jsonErr(w, "request id is required", http.StatusBadRequest)
		return
	}

	conv := s.conversations.GetOrCreate(requestID)
	jsonResp(w, conv.Snapshot())
}
