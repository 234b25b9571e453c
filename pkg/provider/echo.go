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
	"fmt"
	"strings"
)

// EchoProvider is a deterministic local backend used for development and
// tests. It echoes the prompt back and never touches the network.
type EchoProvider struct {
	name string
}

// NewEchoProvider creates an echo backend registered under the given name
func NewEchoProvider(name string) *EchoProvider {
	if name == "" {
		name = "local-echo"
	}
	return &EchoProvider{name: name}
}

// Name returns the registry name of the provider
func (e *EchoProvider) Name() string {
	return e.name
}

// Complete returns the prompt prefixed with "echo: ". The token count is the
// whitespace-separated word count of the prompt, which keeps outputs stable
// across runs.
func (e *EchoProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	select {
	case <-ctx.Done():
		return CompletionResponse{}, ctx.Err()
	default:
	}

	return CompletionResponse{
		Model:      req.Model,
		Content:    fmt.Sprintf("echo: %s", req.Prompt),
		TokensUsed: len(strings.Fields(req.Prompt)),
	}, nil
}

// Healthy always succeeds; the echo backend has no external dependency.
func (e *EchoProvider) Healthy(ctx context.Context) error {
	return nil
}
