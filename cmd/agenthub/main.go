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

// package main is the entrypoint for the agenthub-go runtime.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/turtacn/agenthub-go/pkg/activity"
	"github.com/turtacn/agenthub-go/pkg/admin"
	"github.com/turtacn/agenthub-go/pkg/config"
	"github.com/turtacn/agenthub-go/pkg/connector"
	"github.com/turtacn/agenthub-go/pkg/metrics"
	"github.com/turtacn/agenthub-go/pkg/policy"
	"github.com/turtacn/agenthub-go/pkg/provider"
	"github.com/turtacn/agenthub-go/pkg/registry"
)

// sessionState is the state carried by agents created through the admin API.
// Each processed prompt advances the session by one turn.
type sessionState struct {
	Model      string `json:"model"`
	Turns      int    `json:"turns"`
	LastPrompt string `json:"last_prompt,omitempty"`
	LastReply  string `json:"last_reply,omitempty"`
}

func main() {
	configPath := flag.String("config", "", "path to a yaml or json config file")
	flag.Parse()

	log.Println("Starting agenthub-go runtime...")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.Printf("Node ID: %s", cfg.Runtime.NodeID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Collaborator services ---
	providers := provider.NewService()
	providers.Register(provider.NewEchoProvider("local-echo"))

	models := provider.NewModelService(providers)
	for _, mc := range cfg.Runtime.Models {
		if err := models.RegisterModel(provider.ModelSpec{
			ID:        mc.ID,
			Provider:  mc.Provider,
			MaxTokens: mc.MaxTokens,
		}); err != nil {
			log.Fatalf("Failed to register model %s: %v", mc.ID, err)
		}
	}

	chain := policy.NewChain()
	if err := cfg.ConfigurePolicy(chain); err != nil {
		log.Fatalf("Failed to configure policy: %v", err)
	}

	// --- Registry ---
	reg := registry.New[sessionState](registry.Options{
		MailboxCapacity:      cfg.Runtime.Mailbox.Capacity,
		PriorityLaneCapacity: cfg.Runtime.Mailbox.PriorityLaneCapacity,
		EnablePrioritization: cfg.Runtime.Mailbox.EnablePrioritization,
		HubBuffer:            cfg.Runtime.HubBuffer,
	}, models, providers, chain)
	defer reg.Close()

	// --- Connectors ---
	dispatcher := connector.NewDispatcher(0)
	for _, cc := range cfg.Runtime.Connectors {
		if !cc.Enabled {
			continue
		}
		sink, err := buildSink(cc)
		if err != nil {
			log.Printf("[WARN] Skipping connector %s: %v", cc.Name, err)
			continue
		}
		dispatcher.AddSink(sink)
	}
	if dispatcher.SinkCount() > 0 {
		reg.SetForward(dispatcher.Enqueue)
		dispatcher.Start(ctx)
		defer dispatcher.Close()
	}

	// --- Metrics server ---
	go metrics.Serve(cfg.Runtime.MetricsPort)

	// --- Admin API server ---
	rt := &runtime{cfg: cfg, reg: reg, models: models, providers: providers, chain: chain}
	go func() {
		if err := admin.Serve(cfg.Runtime.AdminPort, rt); err != nil {
			log.Fatalf("Admin API server failed: %v", err)
		}
	}()

	// --- Wait for shutdown signal ---
	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)
	<-shutdownChan

	log.Println("Shutdown signal received. Shutting down...")
}

// buildSink constructs a connector sink from its config entry.
func buildSink(cc config.ConnectorConfig) (connector.Sink, error) {
	switch cc.Type {
	case "postgres":
		return connector.NewPostgresSink(cc.Name, cc.DSN)
	case "mqtt":
		return connector.NewMQTTSink(cc.Name, cc.BrokerURL, cc.TopicPrefix)
	default:
		return nil, fmt.Errorf("unknown connector type: %s", cc.Type)
	}
}

// runtime adapts the generic registry to the admin API surface.
type runtime struct {
	cfg       *config.Config
	reg       *registry.Registry[sessionState]
	models    *provider.ModelService
	providers *provider.Service
	chain     *policy.Chain
}

func (rt *runtime) ListAgents() []string {
	return rt.reg.List()
}

func (rt *runtime) GetAgentInfo(id string) (*admin.AgentInfo, error) {
	state, err := rt.reg.GetState(id)
	if err != nil {
		return nil, err
	}
	dropped, _ := rt.reg.Dropped(id)
	depth, _ := rt.reg.MailboxLen(id)
	return &admin.AgentInfo{
		ID:                      state.ID,
		Status:                  string(state.Status),
		State:                   state.State,
		LastUpdated:             state.LastUpdated,
		ProcessedCount:          state.Processing.ProcessedCount,
		FailureCount:            state.Processing.FailureCount,
		AverageProcessingTimeMs: state.Processing.AverageProcessingTimeMs,
		LastError:               state.Processing.LastError,
		MailboxDepth:            depth,
		DroppedActivities:       dropped,
	}, nil
}

// CreateAgent starts a session agent bound to the first configured model.
func (rt *runtime) CreateAgent(id string) error {
	model := "local-echo"
	if len(rt.cfg.Runtime.Models) > 0 {
		model = rt.cfg.Runtime.Models[0].ID
	}
	initial := sessionState{Model: model}
	_, err := rt.reg.Create(context.Background(), id, initial, rt.sessionTransition)
	return err
}

// sessionTransition routes command payloads through the model service and
// records the reply on the session. When the activity carries an auth
// context in its metadata, the policy chain is consulted before the model
// call; a denial fails the activity without advancing the session.
func (rt *runtime) sessionTransition(ctx context.Context, state sessionState, act activity.Activity) (sessionState, error) {
	prompt, ok := act.Payload.(string)
	if !ok {
		return state, fmt.Errorf("unsupported payload type %T", act.Payload)
	}

	model := state.Model
	if principal, ok := act.Metadata["principal"]; ok && rt.chain.IsEnabled() {
		decision := rt.chain.Authorize(policy.Request{
			Principal: principal,
			Secret:    act.Metadata["secret"],
			Model:     model,
		})
		if !decision.Allowed {
			return state, fmt.Errorf("policy denied for principal %s: %s", principal, decision.Reason)
		}
		model = decision.EffectiveModel
	}

	resp, err := rt.models.Complete(ctx, provider.CompletionRequest{
		Model:  model,
		Prompt: prompt,
	})
	if err != nil {
		return state, err
	}

	state.Turns++
	state.LastPrompt = prompt
	state.LastReply = resp.Content
	return state, nil
}

func (rt *runtime) TerminateAgent(id string) error {
	return rt.reg.Terminate(id)
}

func (rt *runtime) SendActivity(id, kind string, payload interface{}, priority *int, metadata map[string]string) (string, error) {
	act := activity.New(id, activity.Kind(kind), payload)
	if priority != nil {
		act = act.WithPriority(*priority)
	}
	for k, v := range metadata {
		act = act.WithMetadata(k, v)
	}
	if err := rt.reg.Send(id, act); err != nil {
		return "", err
	}
	return act.ID, nil
}

func (rt *runtime) ListModels() []string {
	return rt.models.List()
}

func (rt *runtime) ListProviders() []string {
	return rt.providers.List()
}

func (rt *runtime) NodeID() string {
	return rt.cfg.Runtime.NodeID
}
