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

// Package config provides configuration management for agenthub-go,
// including runtime tuning, the model table, principal policy entries,
// and connector settings.
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/turtacn/agenthub-go/pkg/policy"
	"gopkg.in/yaml.v2"
)

// PrincipalConfig represents a policy principal entry
type PrincipalConfig struct {
	Name      string   `yaml:"name" json:"name"`
	Secret    string   `yaml:"secret" json:"secret"`
	Algorithm string   `yaml:"algorithm" json:"algorithm"`
	Enabled   bool     `yaml:"enabled" json:"enabled"`
	Models    []string `yaml:"models,omitempty" json:"models,omitempty"`
}

// PolicyConfig represents the policy configuration
type PolicyConfig struct {
	Enabled    bool              `yaml:"enabled" json:"enabled"`
	Principals []PrincipalConfig `yaml:"principals" json:"principals"`
	// Aliases maps caller-facing model names to registered model ids.
	Aliases map[string]string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
}

// ModelConfig represents one routable model entry
type ModelConfig struct {
	ID        string `yaml:"id" json:"id"`
	Provider  string `yaml:"provider" json:"provider"`
	MaxTokens int    `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
}

// MailboxConfig tunes per-agent mailbox behavior
type MailboxConfig struct {
	Capacity             int  `yaml:"capacity" json:"capacity"`
	PriorityLaneCapacity int  `yaml:"priority_lane_capacity" json:"priority_lane_capacity"`
	EnablePrioritization bool `yaml:"enable_prioritization" json:"enable_prioritization"`
}

// ConnectorConfig represents an output event connector entry
type ConnectorConfig struct {
	Name    string `yaml:"name" json:"name"`
	Type    string `yaml:"type" json:"type"`
	Enabled bool   `yaml:"enabled" json:"enabled"`
	// DSN is the postgres connection string for the audit sink.
	DSN string `yaml:"dsn,omitempty" json:"dsn,omitempty"`
	// BrokerURL and TopicPrefix configure the MQTT bridge.
	BrokerURL   string `yaml:"broker_url,omitempty" json:"broker_url,omitempty"`
	TopicPrefix string `yaml:"topic_prefix,omitempty" json:"topic_prefix,omitempty"`
}

// RuntimeConfig represents the overall runtime configuration
type RuntimeConfig struct {
	NodeID      string            `yaml:"node_id" json:"node_id"`
	AdminPort   string            `yaml:"admin_port" json:"admin_port"`
	MetricsPort string            `yaml:"metrics_port" json:"metrics_port"`
	HubBuffer   int               `yaml:"hub_buffer" json:"hub_buffer"`
	Mailbox     MailboxConfig     `yaml:"mailbox" json:"mailbox"`
	Models      []ModelConfig     `yaml:"models" json:"models"`
	Policy      PolicyConfig      `yaml:"policy" json:"policy"`
	Connectors  []ConnectorConfig `yaml:"connectors,omitempty" json:"connectors,omitempty"`
}

// Config holds the complete configuration
type Config struct {
	Runtime RuntimeConfig `yaml:"runtime" json:"runtime"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Runtime: RuntimeConfig{
			NodeID:      "agenthub-go-node",
			AdminPort:   ":8080",
			MetricsPort: ":8082",
			HubBuffer:   16,
			Mailbox: MailboxConfig{
				Capacity:             64,
				PriorityLaneCapacity: 16,
				EnablePrioritization: true,
			},
			Models: []ModelConfig{
				{
					ID:       "local-echo",
					Provider: "local-echo",
				},
			},
			Policy: PolicyConfig{
				Enabled: true,
				Principals: []PrincipalConfig{
					{
						Name:      "admin",
						Secret:    "admin123",
						Algorithm: "bcrypt",
						Enabled:   true,
					},
					{
						Name:      "service",
						Secret:    "service123",
						Algorithm: "sha256",
						Enabled:   true,
						Models:    []string{"local-echo"},
					},
					{
						Name:      "test",
						Secret:    "test",
						Algorithm: "plain",
						Enabled:   true,
					},
				},
				Aliases: map[string]string{
					"default": "local-echo",
				},
			},
		},
	}
}

// LoadConfig loads configuration from a file
func LoadConfig(configPath string) (*Config, error) {
	// If no config file specified, return default config
	if configPath == "" {
		log.Println("[INFO] No config file specified, using default configuration")
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	config := &Config{}
	ext := strings.ToLower(filepath.Ext(configPath))

	switch ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	case ".json":
		err = json.Unmarshal(data, config)
	default:
		return nil, fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml, .json)", ext)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log.Printf("[INFO] Configuration loaded from %s", configPath)
	return config, nil
}

// SaveConfig saves configuration to a file
func SaveConfig(config *Config, configPath string) error {
	var data []byte
	var err error

	ext := strings.ToLower(filepath.Ext(configPath))
	switch ext {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(config)
	case ".json":
		data, err = json.MarshalIndent(config, "", "  ")
	default:
		return fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml, .json)", ext)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	err = os.WriteFile(configPath, data, 0644)
	if err != nil {
		return fmt.Errorf("failed to write config file %s: %w", configPath, err)
	}

	log.Printf("[INFO] Configuration saved to %s", configPath)
	return nil
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if config.Runtime.NodeID == "" {
		return fmt.Errorf("node_id cannot be empty")
	}

	if config.Runtime.Mailbox.Capacity < 0 {
		return fmt.Errorf("mailbox capacity cannot be negative")
	}

	if config.Runtime.HubBuffer < 0 {
		return fmt.Errorf("hub_buffer cannot be negative")
	}

	modelIDs := make(map[string]bool)
	for i, model := range config.Runtime.Models {
		if model.ID == "" {
			return fmt.Errorf("model %d: id cannot be empty", i)
		}
		if modelIDs[model.ID] {
			return fmt.Errorf("duplicate model id: %s", model.ID)
		}
		modelIDs[model.ID] = true

		if model.Provider == "" {
			return fmt.Errorf("model %s: provider cannot be empty", model.ID)
		}
	}

	names := make(map[string]bool)
	for i, p := range config.Runtime.Policy.Principals {
		if p.Name == "" {
			return fmt.Errorf("principal %d: name cannot be empty", i)
		}

		if names[p.Name] {
			return fmt.Errorf("duplicate principal: %s", p.Name)
		}
		names[p.Name] = true

		if p.Secret == "" {
			return fmt.Errorf("principal %s: secret cannot be empty", p.Name)
		}

		switch p.Algorithm {
		case "plain", "sha256", "bcrypt":
			// Valid algorithms
		default:
			return fmt.Errorf("principal %s: unsupported algorithm: %s (supported: plain, sha256, bcrypt)", p.Name, p.Algorithm)
		}
	}

	for i, conn := range config.Runtime.Connectors {
		if conn.Name == "" {
			return fmt.Errorf("connector %d: name cannot be empty", i)
		}
		switch conn.Type {
		case "postgres", "mqtt":
			// Valid connector types
		default:
			return fmt.Errorf("connector %s: unsupported type: %s (supported: postgres, mqtt)", conn.Name, conn.Type)
		}
	}

	return nil
}

// ConfigurePolicy configures the policy chain from the config
func (c *Config) ConfigurePolicy(chain *policy.Chain) error {
	// Clear existing authorizers
	chain.Clear()

	if !c.Runtime.Policy.Enabled {
		chain.SetEnabled(false)
		log.Println("[INFO] Policy disabled by configuration")
		return nil
	}

	chain.SetEnabled(true)

	memAuth := policy.NewMemoryAuthorizer()

	for _, pc := range c.Runtime.Policy.Principals {
		algorithm := policy.HashAlgorithm(pc.Algorithm)
		err := memAuth.AddPrincipal(pc.Name, pc.Secret, algorithm, pc.Models...)
		if err != nil {
			return fmt.Errorf("failed to add principal %s: %w", pc.Name, err)
		}

		err = memAuth.SetPrincipalEnabled(pc.Name, pc.Enabled)
		if err != nil {
			return fmt.Errorf("failed to set principal %s enabled status: %w", pc.Name, err)
		}

		log.Printf("[INFO] Configured principal: %s (algorithm: %s, enabled: %t)",
			pc.Name, pc.Algorithm, pc.Enabled)
	}

	for alias, model := range c.Runtime.Policy.Aliases {
		memAuth.SetModelAlias(alias, model)
	}

	chain.AddAuthorizer(memAuth)
	log.Printf("[INFO] Policy configured with %d principals", len(c.Runtime.Policy.Principals))

	return nil
}

// AddPrincipal adds a new principal to the configuration
func (c *Config) AddPrincipal(name, secret, algorithm string, enabled bool, models ...string) error {
	for _, p := range c.Runtime.Policy.Principals {
		if p.Name == name {
			return fmt.Errorf("principal %s already exists", name)
		}
	}

	switch algorithm {
	case "plain", "sha256", "bcrypt":
		// Valid algorithms
	default:
		return fmt.Errorf("unsupported algorithm: %s (supported: plain, sha256, bcrypt)", algorithm)
	}

	c.Runtime.Policy.Principals = append(c.Runtime.Policy.Principals, PrincipalConfig{
		Name:      name,
		Secret:    secret,
		Algorithm: algorithm,
		Enabled:   enabled,
		Models:    models,
	})
	log.Printf("[INFO] Added principal to configuration: %s", name)
	return nil
}

// RemovePrincipal removes a principal from the configuration
func (c *Config) RemovePrincipal(name string) error {
	for i, p := range c.Runtime.Policy.Principals {
		if p.Name == name {
			c.Runtime.Policy.Principals = append(c.Runtime.Policy.Principals[:i], c.Runtime.Policy.Principals[i+1:]...)
			log.Printf("[INFO] Removed principal from configuration: %s", name)
			return nil
		}
	}

	return fmt.Errorf("principal %s not found", name)
}

// ListPrincipals returns all principals in the configuration
func (c *Config) ListPrincipals() []PrincipalConfig {
	return c.Runtime.Policy.Principals
}
