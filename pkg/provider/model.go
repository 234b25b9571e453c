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

package provider

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
)

// ErrModelNotFound is returned when a model id has no registered spec.
var ErrModelNotFound = errors.New("model not found")

// ModelSpec describes a model the runtime can route completions to.
type ModelSpec struct {
	// ID is the model identifier callers use.
	ID string `json:"id"`
	// Provider is the registry name of the backend serving this model.
	Provider string `json:"provider"`
	// MaxTokens caps completion size; zero means the provider default.
	MaxTokens int `json:"max_tokens,omitempty"`
}

// ModelService maps model identifiers to providers and routes completion
// calls accordingly.
type ModelService struct {
	mu        sync.RWMutex
	models    map[string]ModelSpec
	providers *Service
}

// NewModelService creates a model router backed by the given provider
// registry
func NewModelService(providers *Service) *ModelService {
	return &ModelService{
		models:    make(map[string]ModelSpec),
		providers: providers,
	}
}

// RegisterModel adds or replaces a model spec
func (ms *ModelService) RegisterModel(spec ModelSpec) error {
	if spec.ID == "" {
		return fmt.Errorf("model id cannot be empty")
	}
	if _, err := ms.providers.Get(spec.Provider); err != nil {
		return fmt.Errorf("model %s references unknown provider %s: %w", spec.ID, spec.Provider, err)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.models[spec.ID] = spec
	log.Printf("[INFO] Registered model: %s -> provider: %s", spec.ID, spec.Provider)
	return nil
}

// Lookup returns the spec for a model id
func (ms *ModelService) Lookup(id string) (ModelSpec, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	spec, ok := ms.models[id]
	if !ok {
		return ModelSpec{}, fmt.Errorf("%w: %s", ErrModelNotFound, id)
	}
	return spec, nil
}

// List returns all registered model ids
func (ms *ModelService) List() []string {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	ids := make([]string, 0, len(ms.models))
	for id := range ms.models {
		ids = append(ids, id)
	}
	return ids
}

// Complete routes the request to the provider that serves req.Model.
func (ms *ModelService) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	spec, err := ms.Lookup(req.Model)
	if err != nil {
		return CompletionResponse{}, err
	}

	p, err := ms.providers.Get(spec.Provider)
	if err != nil {
		return CompletionResponse{}, err
	}

	resp, err := p.Complete(ctx, req)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("provider %s failed for model %s: %w", spec.Provider, req.Model, err)
	}
	return resp, nil
}
