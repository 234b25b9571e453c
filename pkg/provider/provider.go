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

// Package provider abstracts model backends behind a small completion
// interface and keeps a registry of the backends available to the runtime.
// Agents never talk to a backend directly; they go through a Service which
// looks providers up by name.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
)

// ErrProviderNotFound is returned when a provider name is not registered.
var ErrProviderNotFound = errors.New("provider not found")

// CompletionRequest carries a single completion call to a backend.
type CompletionRequest struct {
	Model    string            `json:"model"`
	Prompt   string            `json:"prompt"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// CompletionResponse is the backend's answer to a CompletionRequest.
type CompletionResponse struct {
	Model   string `json:"model"`
	Content string `json:"content"`
	// TokensUsed is a backend-reported estimate; zero when unknown.
	TokensUsed int `json:"tokens_used,omitempty"`
}

// Provider is a model backend capable of serving completions.
type Provider interface {
	// Name returns the registry name of the provider
	Name() string
	// Complete performs a single completion call
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
	// Healthy reports whether the backend is reachable
	Healthy(ctx context.Context) error
}

// Service is a registry of named providers.
type Service struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewService creates an empty provider registry
func NewService() *Service {
	return &Service{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider to the registry, replacing any provider with the
// same name.
func (s *Service) Register(p Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers[p.Name()] = p
	log.Printf("[INFO] Registered provider: %s", p.Name())
}

// Get returns the provider registered under name
func (s *Service) Get(name string) (Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}
	return p, nil
}

// List returns the names of all registered providers
func (s *Service) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	return names
}

// HealthCheckAll probes every registered provider and returns the per-name
// results. A nil entry means the provider is healthy.
func (s *Service) HealthCheckAll(ctx context.Context) map[string]error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results := make(map[string]error, len(s.providers))
	for name, p := range s.providers {
		results[name] = p.Healthy(ctx)
	}
	return results
}
