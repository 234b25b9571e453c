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

// Package policy decides whether a principal may drive an agent against a
// given model. Authorizers are stacked in a chain; each one can allow, deny,
// ignore, or error out, and the chain resolves the final decision. Secrets
// are verified with configurable hashing including plain text, SHA256, and
// bcrypt.
package policy

import (
	"crypto/sha256"
	"fmt"
	"log"

	"golang.org/x/crypto/bcrypt"
)

// HashAlgorithm defines the secret hashing algorithm type
type HashAlgorithm string

const (
	// HashPlain represents plain text secrets (not recommended for production)
	HashPlain HashAlgorithm = "plain"
	// HashSHA256 represents SHA256 hashed secrets
	HashSHA256 HashAlgorithm = "sha256"
	// HashBcrypt represents bcrypt hashed secrets (recommended)
	HashBcrypt HashAlgorithm = "bcrypt"
)

// Principal represents a caller credential entry
type Principal struct {
	Name       string        `json:"name"`
	SecretHash string        `json:"secret_hash"`
	Algorithm  HashAlgorithm `json:"algorithm"`
	Salt       string        `json:"salt,omitempty"`
	Enabled    bool          `json:"enabled"`
	// Models the principal may use. Empty means every model is allowed.
	Models []string `json:"models,omitempty"`
}

// Result represents the outcome of a policy check
type Result int

const (
	// Allow indicates the request is permitted
	Allow Result = iota
	// Deny indicates the request is rejected
	Deny
	// Error indicates an error occurred while evaluating the request
	Error
	// Ignore indicates the authorizer has no opinion and should be skipped
	Ignore
)

// String returns the string representation of Result
func (r Result) String() string {
	switch r {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	case Error:
		return "error"
	case Ignore:
		return "ignore"
	default:
		return "unknown"
	}
}

// Request carries everything an authorizer needs to evaluate a caller.
type Request struct {
	Principal string
	Secret    string
	// Model is the model identifier the caller wants to use. May be an
	// alias; the effective name is resolved into Decision.EffectiveModel.
	Model string
}

// Decision is the resolved outcome of a policy check.
type Decision struct {
	Allowed bool
	// EffectiveModel is the model the caller should actually be routed to
	// after alias resolution. Empty when the request was denied.
	EffectiveModel string
	Reason         string
}

// Authorizer defines the interface for policy providers
type Authorizer interface {
	// Authorize evaluates the request and returns a result plus, when the
	// result is Allow, the resolved decision.
	Authorize(req Request) (Result, Decision)
	// Name returns the name of the authorizer
	Name() string
	// Enabled returns whether the authorizer is enabled
	Enabled() bool
}

// Chain manages a stack of authorizers evaluated in order
type Chain struct {
	authorizers []Authorizer
	enabled     bool
}

// NewChain creates a new policy chain
func NewChain() *Chain {
	return &Chain{
		authorizers: make([]Authorizer, 0),
		enabled:     true,
	}
}

// AddAuthorizer adds an authorizer to the chain
func (c *Chain) AddAuthorizer(a Authorizer) {
	c.authorizers = append(c.authorizers, a)
}

// Authorize processes the request through the chain:
// - If any authorizer returns Allow, the request is permitted
// - If any authorizer returns Deny, the request is rejected
// - If all authorizers return Ignore, the request is rejected
// - If any authorizer returns Error, log the error and continue
func (c *Chain) Authorize(req Request) Decision {
	if !c.enabled {
		return Decision{Allowed: true, EffectiveModel: req.Model, Reason: "policy disabled"}
	}

	if len(c.authorizers) == 0 {
		log.Printf("[WARN] No authorizers configured, allowing request")
		return Decision{Allowed: true, EffectiveModel: req.Model, Reason: "no authorizers configured"}
	}

	log.Printf("[DEBUG] Starting policy chain for principal: %s model: %s", req.Principal, req.Model)

	for i, a := range c.authorizers {
		if !a.Enabled() {
			log.Printf("[DEBUG] Authorizer %d (%s) is disabled, skipping", i+1, a.Name())
			continue
		}

		result, decision := a.Authorize(req)
		log.Printf("[DEBUG] Authorizer %s returned: %s for principal: %s", a.Name(), result.String(), req.Principal)

		switch result {
		case Allow:
			log.Printf("[INFO] Request allowed for principal: %s via %s (model: %s)", req.Principal, a.Name(), decision.EffectiveModel)
			return decision
		case Deny:
			log.Printf("[WARN] Request denied for principal: %s via %s: %s", req.Principal, a.Name(), decision.Reason)
			if decision.Reason == "" {
				decision.Reason = fmt.Sprintf("denied by %s", a.Name())
			}
			decision.Allowed = false
			decision.EffectiveModel = ""
			return decision
		case Error:
			log.Printf("[ERROR] Policy error for principal: %s via %s", req.Principal, a.Name())
			continue
		case Ignore:
			continue
		}
	}

	log.Printf("[WARN] All authorizers skipped/ignored for principal: %s, denying request", req.Principal)
	return Decision{Reason: "no authorizer matched"}
}

// SetEnabled enables or disables the policy chain
func (c *Chain) SetEnabled(enabled bool) {
	c.enabled = enabled
}

// IsEnabled returns whether the policy chain is enabled
func (c *Chain) IsEnabled() bool {
	return c.enabled
}

// Clear removes all authorizers from the chain
func (c *Chain) Clear() {
	c.authorizers = c.authorizers[:0]
}

// Count returns the number of authorizers in the chain
func (c *Chain) Count() int {
	return len(c.authorizers)
}

// hashSecret creates a hash of the secret using the specified algorithm
func hashSecret(secret, salt string, algorithm HashAlgorithm) (string, error) {
	switch algorithm {
	case HashPlain:
		return secret, nil
	case HashSHA256:
		hasher := sha256.New()
		hasher.Write([]byte(salt + secret))
		return fmt.Sprintf("%x", hasher.Sum(nil)), nil
	case HashBcrypt:
		hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
		if err != nil {
			return "", err
		}
		return string(hash), nil
	default:
		return "", fmt.Errorf("unsupported hash algorithm: %s", algorithm)
	}
}

// verifySecret verifies a secret against a hash using the specified algorithm
func verifySecret(secret, hash, salt string, algorithm HashAlgorithm) bool {
	switch algorithm {
	case HashPlain:
		return secret == hash
	case HashSHA256:
		expected, err := hashSecret(secret, salt, HashSHA256)
		if err != nil {
			return false
		}
		return expected == hash
	case HashBcrypt:
		err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
		return err == nil
	default:
		return false
	}
}
