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

package policy

import (
	"fmt"
	"log"
	"sync"
)

// MemoryAuthorizer keeps principals and model grants in memory. It is the
// default authorizer and is populated from configuration at startup.
type MemoryAuthorizer struct {
	mu         sync.RWMutex
	principals map[string]*Principal
	// aliases maps a model alias to the model id it resolves to.
	aliases map[string]string
	name    string
	enabled bool
}

// NewMemoryAuthorizer creates a new in-memory authorizer
func NewMemoryAuthorizer() *MemoryAuthorizer {
	return &MemoryAuthorizer{
		principals: make(map[string]*Principal),
		aliases:    make(map[string]string),
		name:       "memory",
		enabled:    true,
	}
}

// Name returns the name of this authorizer
func (m *MemoryAuthorizer) Name() string {
	return m.name
}

// Enabled returns whether this authorizer is enabled
func (m *MemoryAuthorizer) Enabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

// SetEnabled enables or disables this authorizer
func (m *MemoryAuthorizer) SetEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = enabled
}

// AddPrincipal adds a principal with the specified secret and hash algorithm.
// The models list restricts which models the principal may use; empty grants
// all models.
func (m *MemoryAuthorizer) AddPrincipal(name, secret string, algorithm HashAlgorithm, models ...string) error {
	if name == "" {
		return fmt.Errorf("principal name cannot be empty")
	}

	// SHA256 salts with the principal name; bcrypt carries its own salt.
	salt := ""
	if algorithm == HashSHA256 {
		salt = name
	}

	hash, err := hashSecret(secret, salt, algorithm)
	if err != nil {
		return fmt.Errorf("failed to hash secret for principal %s: %w", name, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.principals[name] = &Principal{
		Name:       name,
		SecretHash: hash,
		Algorithm:  algorithm,
		Salt:       salt,
		Enabled:    true,
		Models:     append([]string(nil), models...),
	}

	log.Printf("[INFO] Added principal: %s with algorithm: %s", name, algorithm)
	return nil
}

// RemovePrincipal removes a principal
func (m *MemoryAuthorizer) RemovePrincipal(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.principals[name]; !exists {
		return fmt.Errorf("principal %s not found", name)
	}

	delete(m.principals, name)
	log.Printf("[INFO] Removed principal: %s", name)
	return nil
}

// SetPrincipalEnabled enables or disables a principal
func (m *MemoryAuthorizer) SetPrincipalEnabled(name string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, exists := m.principals[name]
	if !exists {
		return fmt.Errorf("principal %s not found", name)
	}

	p.Enabled = enabled
	log.Printf("[INFO] Principal %s enabled status changed to: %v", name, enabled)
	return nil
}

// GetPrincipal returns a copy of the principal without the secret hash
func (m *MemoryAuthorizer) GetPrincipal(name string) (*Principal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, exists := m.principals[name]
	if !exists {
		return nil, fmt.Errorf("principal %s not found", name)
	}

	cp := *p
	cp.SecretHash = ""
	cp.Models = append([]string(nil), p.Models...)
	return &cp, nil
}

// ListPrincipals returns the names of all principals
func (m *MemoryAuthorizer) ListPrincipals() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.principals))
	for name := range m.principals {
		names = append(names, name)
	}
	return names
}

// SetModelAlias registers an alias that resolves to the given model id
func (m *MemoryAuthorizer) SetModelAlias(alias, model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aliases[alias] = model
	log.Printf("[INFO] Model alias registered: %s -> %s", alias, model)
}

// Count returns the number of principals
func (m *MemoryAuthorizer) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.principals)
}

// Clear removes all principals and aliases
func (m *MemoryAuthorizer) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.principals = make(map[string]*Principal)
	m.aliases = make(map[string]string)
	log.Printf("[INFO] Cleared all principals")
}

// Authorize evaluates the request against the in-memory principals.
// Unknown principals are ignored so a later authorizer in the chain can
// still claim them.
func (m *MemoryAuthorizer) Authorize(req Request) (Result, Decision) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if req.Principal == "" {
		log.Printf("[DEBUG] Empty principal, ignoring")
		return Ignore, Decision{}
	}

	p, exists := m.principals[req.Principal]
	if !exists {
		log.Printf("[DEBUG] Principal %s not found in memory authorizer", req.Principal)
		return Ignore, Decision{}
	}

	if !p.Enabled {
		log.Printf("[WARN] Principal %s is disabled", req.Principal)
		return Deny, Decision{Reason: "principal disabled"}
	}

	if !verifySecret(req.Secret, p.SecretHash, p.Salt, p.Algorithm) {
		log.Printf("[WARN] Invalid secret for principal: %s", req.Principal)
		return Deny, Decision{Reason: "invalid secret"}
	}

	model := req.Model
	if resolved, ok := m.aliases[model]; ok {
		model = resolved
	}

	if !m.modelGranted(p, model) {
		log.Printf("[WARN] Principal %s is not granted model: %s", req.Principal, model)
		return Deny, Decision{Reason: fmt.Sprintf("model %s not granted", model)}
	}

	return Allow, Decision{Allowed: true, EffectiveModel: model, Reason: "granted"}
}

// modelGranted reports whether the resolved model is in the principal's
// grant list. Callers must hold at least a read lock.
func (m *MemoryAuthorizer) modelGranted(p *Principal, model string) bool {
	if len(p.Models) == 0 {
		return true
	}
	for _, granted := range p.Models {
		if granted == model {
			return true
		}
	}
	return false
}
