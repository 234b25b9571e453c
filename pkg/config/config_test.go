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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/agenthub-go/pkg/policy"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "agenthub-go-node", cfg.Runtime.NodeID)
	assert.Equal(t, 64, cfg.Runtime.Mailbox.Capacity)
	assert.True(t, cfg.Runtime.Mailbox.EnablePrioritization)
	assert.True(t, cfg.Runtime.Policy.Enabled)
	assert.NotEmpty(t, cfg.Runtime.Models)
	require.NoError(t, validateConfig(cfg))
}

func TestLoadConfigEmptyPathReturnsDefault(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigYAMLRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runtime.yaml")

	cfg := DefaultConfig()
	cfg.Runtime.NodeID = "node-1"
	cfg.Runtime.Mailbox.Capacity = 128
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "node-1", loaded.Runtime.NodeID)
	assert.Equal(t, 128, loaded.Runtime.Mailbox.Capacity)
}

func TestLoadConfigJSONRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runtime.json")

	cfg := DefaultConfig()
	cfg.Runtime.HubBuffer = 32
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 32, loaded.Runtime.HubBuffer)
}

func TestLoadConfigUnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runtime.toml")
	require.NoError(t, os.WriteFile(path, []byte("node_id = \"x\""), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/runtime.yaml")
	assert.Error(t, err)
}

func TestValidateConfigRejectsBadEntries(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty node id", func(c *Config) { c.Runtime.NodeID = "" }},
		{"negative mailbox capacity", func(c *Config) { c.Runtime.Mailbox.Capacity = -1 }},
		{"negative hub buffer", func(c *Config) { c.Runtime.HubBuffer = -1 }},
		{"empty model id", func(c *Config) { c.Runtime.Models[0].ID = "" }},
		{"empty model provider", func(c *Config) { c.Runtime.Models[0].Provider = "" }},
		{"duplicate model", func(c *Config) {
			c.Runtime.Models = append(c.Runtime.Models, c.Runtime.Models[0])
		}},
		{"empty principal name", func(c *Config) { c.Runtime.Policy.Principals[0].Name = "" }},
		{"empty principal secret", func(c *Config) { c.Runtime.Policy.Principals[0].Secret = "" }},
		{"bad algorithm", func(c *Config) { c.Runtime.Policy.Principals[0].Algorithm = "md5" }},
		{"duplicate principal", func(c *Config) {
			c.Runtime.Policy.Principals = append(c.Runtime.Policy.Principals, c.Runtime.Policy.Principals[0])
		}},
		{"bad connector type", func(c *Config) {
			c.Runtime.Connectors = []ConnectorConfig{{Name: "x", Type: "kafka"}}
		}},
		{"empty connector name", func(c *Config) {
			c.Runtime.Connectors = []ConnectorConfig{{Type: "mqtt"}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, validateConfig(cfg))
		})
	}
}

func TestConfigurePolicy(t *testing.T) {
	cfg := DefaultConfig()
	chain := policy.NewChain()
	require.NoError(t, cfg.ConfigurePolicy(chain))
	assert.True(t, chain.IsEnabled())
	assert.Equal(t, 1, chain.Count())

	decision := chain.Authorize(policy.Request{Principal: "test", Secret: "test", Model: "local-echo"})
	assert.True(t, decision.Allowed)

	decision = chain.Authorize(policy.Request{Principal: "test", Secret: "wrong", Model: "local-echo"})
	assert.False(t, decision.Allowed)

	// aliases from configuration resolve before grant checks
	decision = chain.Authorize(policy.Request{Principal: "service", Secret: "service123", Model: "default"})
	assert.True(t, decision.Allowed)
	assert.Equal(t, "local-echo", decision.EffectiveModel)
}

func TestConfigurePolicyDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Runtime.Policy.Enabled = false

	chain := policy.NewChain()
	require.NoError(t, cfg.ConfigurePolicy(chain))
	assert.False(t, chain.IsEnabled())

	decision := chain.Authorize(policy.Request{Principal: "anyone", Model: "m"})
	assert.True(t, decision.Allowed)
}

func TestPrincipalManagement(t *testing.T) {
	cfg := DefaultConfig()
	before := len(cfg.ListPrincipals())

	require.NoError(t, cfg.AddPrincipal("newuser", "pw", "plain", true, "local-echo"))
	assert.Error(t, cfg.AddPrincipal("newuser", "pw", "plain", true), "duplicate should fail")
	assert.Error(t, cfg.AddPrincipal("other", "pw", "md5", true), "bad algorithm should fail")
	assert.Len(t, cfg.ListPrincipals(), before+1)

	require.NoError(t, cfg.RemovePrincipal("newuser"))
	assert.Error(t, cfg.RemovePrincipal("newuser"))
	assert.Len(t, cfg.ListPrincipals(), before)
}
