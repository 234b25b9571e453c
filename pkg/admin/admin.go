// Copyright 2025 The agenthub-go Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package admin exposes a REST API for inspecting and managing the agent
// runtime: listing agents, reading their state, sending activities, and
// terminating them.
package admin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RuntimeInterface is the narrow surface the admin API needs from the
// runtime. The concrete registry is generic over the agent state type, so
// the main binary adapts it to this interface.
type RuntimeInterface interface {
	ListAgents() []string
	GetAgentInfo(id string) (*AgentInfo, error)
	CreateAgent(id string) error
	TerminateAgent(id string) error
	SendActivity(id, kind string, payload interface{}, priority *int, metadata map[string]string) (string, error)
	ListModels() []string
	ListProviders() []string
	NodeID() string
}

// AgentInfo is the admin view of one agent.
type AgentInfo struct {
	ID                      string      `json:"id"`
	Status                  string      `json:"status"`
	State                   interface{} `json:"state"`
	LastUpdated             time.Time   `json:"last_updated"`
	ProcessedCount          uint64      `json:"processed_count"`
	FailureCount            uint64      `json:"failure_count"`
	AverageProcessingTimeMs float64     `json:"average_processing_time_ms"`
	LastError               string      `json:"last_error,omitempty"`
	MailboxDepth            int         `json:"mailbox_depth"`
	DroppedActivities       uint64      `json:"dropped_activities"`
}

// SendActivityRequest is the body of POST /api/v1/agents/{id}/activities.
type SendActivityRequest struct {
	Kind     string      `json:"kind"`
	Payload  interface{} `json:"payload"`
	Priority *int        `json:"priority,omitempty"`
	// Metadata is attached to the activity verbatim. The keys "principal"
	// and "secret" form the auth context the policy chain evaluates.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// APIResponse is the envelope for all admin responses.
type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// APIServer serves the admin REST API.
type APIServer struct {
	runtime RuntimeInterface
}

// NewAPIServer creates a new API server instance
func NewAPIServer(runtime RuntimeInterface) *APIServer {
	return &APIServer{runtime: runtime}
}

// RegisterRoutes registers all API routes
func (s *APIServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/agents", s.handleAgents)
	mux.HandleFunc("/api/v1/agents/", s.handleAgentByID)
	mux.HandleFunc("/api/v1/models", s.handleModels)
	mux.HandleFunc("/api/v1/providers", s.handleProviders)
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/health", s.handleHealth)
}

func (s *APIServer) handleAgents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		ids := s.runtime.ListAgents()
		page, limit := s.getPagination(r)
		start := (page - 1) * limit
		if start > len(ids) {
			start = len(ids)
		}
		end := start + limit
		if end > len(ids) {
			end = len(ids)
		}
		s.writeJSON(w, http.StatusOK, APIResponse{
			Code: http.StatusOK,
			Data: map[string]interface{}{
				"agents": ids[start:end],
				"total":  len(ids),
				"page":   page,
				"limit":  limit,
			},
		})
	case http.MethodPost:
		var body struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ID == "" {
			s.writeError(w, http.StatusBadRequest, "Agent ID is required")
			return
		}
		if err := s.runtime.CreateAgent(body.ID); err != nil {
			s.writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.writeJSON(w, http.StatusCreated, APIResponse{
			Code:    http.StatusCreated,
			Message: "Agent created",
			Data:    map[string]string{"id": body.ID},
		})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *APIServer) handleAgentByID(w http.ResponseWriter, r *http.Request) {
	rest := s.extractIDFromPath(r.URL.Path, "/api/v1/agents/")
	if rest == "" {
		s.writeError(w, http.StatusBadRequest, "Agent ID is required")
		return
	}

	// POST /api/v1/agents/{id}/activities enqueues an activity
	if id, ok := strings.CutSuffix(rest, "/activities"); ok {
		s.handleSendActivity(w, r, id)
		return
	}

	switch r.Method {
	case http.MethodGet:
		info, err := s.runtime.GetAgentInfo(rest)
		if err != nil {
			s.writeError(w, http.StatusNotFound, "Agent not found")
			return
		}
		s.writeJSON(w, http.StatusOK, APIResponse{Code: http.StatusOK, Data: info})
	case http.MethodDelete:
		if err := s.runtime.TerminateAgent(rest); err != nil {
			s.writeError(w, http.StatusNotFound, "Agent not found")
			return
		}
		s.writeJSON(w, http.StatusOK, APIResponse{
			Code:    http.StatusOK,
			Message: "Agent terminated",
		})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *APIServer) handleSendActivity(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req SendActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Kind == "" {
		s.writeError(w, http.StatusBadRequest, "Activity kind is required")
		return
	}

	activityID, err := s.runtime.SendActivity(id, req.Kind, req.Payload, req.Priority, req.Metadata)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}

	s.writeJSON(w, http.StatusAccepted, APIResponse{
		Code:    http.StatusAccepted,
		Message: "Activity enqueued",
		Data:    map[string]string{"activity_id": activityID},
	})
}

func (s *APIServer) handleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, APIResponse{
		Code: http.StatusOK,
		Data: map[string]interface{}{"models": s.runtime.ListModels()},
	})
}

func (s *APIServer) handleProviders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, APIResponse{
		Code: http.StatusOK,
		Data: map[string]interface{}{"providers": s.runtime.ListProviders()},
	})
}

func (s *APIServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, APIResponse{
		Code: http.StatusOK,
		Data: map[string]interface{}{
			"node_id": s.runtime.NodeID(),
			"agents":  len(s.runtime.ListAgents()),
			"uptime":  time.Since(startTime).String(),
		},
	})
}

func (s *APIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

var startTime = time.Now()

func (s *APIServer) writeError(w http.ResponseWriter, statusCode int, message string) {
	s.writeJSON(w, statusCode, APIResponse{
		Code:    statusCode,
		Message: message,
	})
}

func (s *APIServer) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode JSON", http.StatusInternalServerError)
	}
}

func (s *APIServer) extractIDFromPath(path, prefix string) string {
	if !strings.HasPrefix(path, prefix) {
		return ""
	}
	return strings.TrimPrefix(path, prefix)
}

func (s *APIServer) getPagination(r *http.Request) (page int, limit int) {
	page = 1
	limit = 20

	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			page = p
		}
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 1000 {
			limit = l
		}
	}

	return page, limit
}

// Serve starts the admin API server
func Serve(addr string, runtime RuntimeInterface) error {
	server := NewAPIServer(runtime)
	mux := http.NewServeMux()
	server.RegisterRoutes(mux)

	fmt.Printf("Admin API server listening on %s\n", addr)
	return http.ListenAndServe(addr, mux)
}
