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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceRegisterAndGet(t *testing.T) {
	s := NewService()
	s.Register(NewEchoProvider("local-echo"))

	p, err := s.Get("local-echo")
	require.NoError(t, err)
	assert.Equal(t, "local-echo", p.Name())

	_, err = s.Get("missing")
	assert.ErrorIs(t, err, ErrProviderNotFound)

	assert.ElementsMatch(t, []string{"local-echo"}, s.List())
}

func TestServiceHealthCheckAll(t *testing.T) {
	s := NewService()
	s.Register(NewEchoProvider("a"))
	s.Register(NewEchoProvider("b"))

	results := s.HealthCheckAll(context.Background())
	require.Len(t, results, 2)
	assert.NoError(t, results["a"])
	assert.NoError(t, results["b"])
}

func TestEchoProviderDeterministic(t *testing.T) {
	e := NewEchoProvider("")
	assert.Equal(t, "local-echo", e.Name())

	resp, err := e.Complete(context.Background(), CompletionRequest{
		Model:  "local-echo",
		Prompt: "hello actor world",
	})
	require.NoError(t, err)
	assert.Equal(t, "echo: hello actor world", resp.Content)
	assert.Equal(t, 3, resp.TokensUsed)

	again, err := e.Complete(context.Background(), CompletionRequest{
		Model:  "local-echo",
		Prompt: "hello actor world",
	})
	require.NoError(t, err)
	assert.Equal(t, resp, again)
}

func TestEchoProviderCancelledContext(t *testing.T) {
	e := NewEchoProvider("local-echo")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Complete(ctx, CompletionRequest{Model: "local-echo", Prompt: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestModelServiceRouting(t *testing.T) {
	s := NewService()
	s.Register(NewEchoProvider("local-echo"))
	ms := NewModelService(s)

	require.NoError(t, ms.RegisterModel(ModelSpec{ID: "echo-1", Provider: "local-echo"}))

	spec, err := ms.Lookup("echo-1")
	require.NoError(t, err)
	assert.Equal(t, "local-echo", spec.Provider)

	resp, err := ms.Complete(context.Background(), CompletionRequest{Model: "echo-1", Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", resp.Content)

	assert.ElementsMatch(t, []string{"echo-1"}, ms.List())
}

func TestModelServiceUnknownModel(t *testing.T) {
	ms := NewModelService(NewService())

	_, err := ms.Lookup("ghost")
	assert.ErrorIs(t, err, ErrModelNotFound)

	_, err = ms.Complete(context.Background(), CompletionRequest{Model: "ghost"})
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestModelServiceRejectsUnknownProvider(t *testing.T) {
	ms := NewModelService(NewService())
	err := ms.RegisterModel(ModelSpec{ID: "m1", Provider: "nope"})
	assert.ErrorIs(t, err, ErrProviderNotFound)

	err = ms.RegisterModel(ModelSpec{ID: "", Provider: "nope"})
	assert.Error(t, err)
}

// failingProvider always errors, for exercising routing error paths.
type failingProvider struct{}

func (failingProvider) Name() string { return "failing" }
func (failingProvider) Complete(context.Context, CompletionRequest) (CompletionResponse, error) {
	return CompletionResponse{}, errors.New("backend down")
}
func (failingProvider) Healthy(context.Context) error { return errors.New("backend down") }

func TestModelServiceProviderFailure(t *testing.T) {
	s := NewService()
	s.Register(failingProvider{})
	ms := NewModelService(s)
	require.NoError(t, ms.RegisterModel(ModelSpec{ID: "m1", Provider: "failing"}))

	_, err := ms.Complete(context.Background(), CompletionRequest{Model: "m1", Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend down")
}
