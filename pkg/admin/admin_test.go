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

package admin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRuntime is an in-memory RuntimeInterface for handler tests.
type mockRuntime struct {
	agents     map[string]*AgentInfo
	sent       []SendActivityRequest
	sentTarget string
}

func newMockRuntime() *mockRuntime {
	return &mockRuntime{agents: map[string]*AgentInfo{}}
}

func (m *mockRuntime) ListAgents() []string {
	ids := make([]string, 0, len(m.agents))
	for id := range m.agents {
		ids = append(ids, id)
	}
	return ids
}

func (m *mockRuntime) GetAgentInfo(id string) (*AgentInfo, error) {
	info, ok := m.agents[id]
	if !ok {
		return nil, fmt.Errorf("agent not found: %s", id)
	}
	return info, nil
}

func (m *mockRuntime) CreateAgent(id string) error {
	if _, ok := m.agents[id]; ok {
		return fmt.Errorf("agent already exists: %s", id)
	}
	m.agents[id] = &AgentInfo{ID: id, Status: "idle"}
	return nil
}

func (m *mockRuntime) TerminateAgent(id string) error {
	if _, ok := m.agents[id]; !ok {
		return fmt.Errorf("agent not found: %s", id)
	}
	delete(m.agents, id)
	return nil
}

func (m *mockRuntime) SendActivity(id, kind string, payload interface{}, priority *int, metadata map[string]string) (string, error) {
	if _, ok := m.agents[id]; !ok {
		return "", fmt.Errorf("agent not found: %s", id)
	}
	m.sentTarget = id
	m.sent = append(m.sent, SendActivityRequest{Kind: kind, Payload: payload, Priority: priority, Metadata: metadata})
	return "activity-123", nil
}

func (m *mockRuntime) ListModels() []string    { return []string{"local-echo"} }
func (m *mockRuntime) ListProviders() []string { return []string{"local-echo"} }
func (m *mockRuntime) NodeID() string          { return "test-node" }

func newTestServer(t *testing.T) (*mockRuntime, *httptest.Server) {
	t.Helper()
	rt := newMockRuntime()
	mux := http.NewServeMux()
	NewAPIServer(rt).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return rt, srv
}

func decodeResponse(t *testing.T, resp *http.Response) APIResponse {
	t.Helper()
	defer resp.Body.Close()
	var out APIResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestCreateAndListAgents(t *testing.T) {
	_, srv := newTestServer(t)

	body := bytes.NewBufferString(`{"id":"agent-1"}`)
	resp, err := http.Post(srv.URL+"/api/v1/agents", "application/json", body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/api/v1/agents")
	require.NoError(t, err)
	out := decodeResponse(t, resp)
	data := out.Data.(map[string]interface{})
	assert.Equal(t, float64(1), data["total"])
}

func TestCreateAgentConflict(t *testing.T) {
	rt, srv := newTestServer(t)
	require.NoError(t, rt.CreateAgent("agent-1"))

	resp, err := http.Post(srv.URL+"/api/v1/agents", "application/json",
		bytes.NewBufferString(`{"id":"agent-1"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCreateAgentMissingID(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/agents", "application/json",
		bytes.NewBufferString(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetAgentInfo(t *testing.T) {
	rt, srv := newTestServer(t)
	require.NoError(t, rt.CreateAgent("agent-1"))
	rt.agents["agent-1"].MailboxDepth = 3
	rt.agents["agent-1"].DroppedActivities = 2

	resp, err := http.Get(srv.URL + "/api/v1/agents/agent-1")
	require.NoError(t, err)
	out := decodeResponse(t, resp)
	assert.Equal(t, http.StatusOK, out.Code)
	data, ok := out.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(3), data["mailbox_depth"])
	assert.Equal(t, float64(2), data["dropped_activities"])

	resp, err = http.Get(srv.URL + "/api/v1/agents/ghost")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTerminateAgent(t *testing.T) {
	rt, srv := newTestServer(t)
	require.NoError(t, rt.CreateAgent("agent-1"))

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/agents/agent-1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, rt.agents)

	// second delete is not found
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSendActivity(t *testing.T) {
	rt, srv := newTestServer(t)
	require.NoError(t, rt.CreateAgent("agent-1"))

	body := bytes.NewBufferString(`{"kind":"command","payload":"increment","priority":1,"metadata":{"principal":"test","secret":"test"}}`)
	resp, err := http.Post(srv.URL+"/api/v1/agents/agent-1/activities", "application/json", body)
	require.NoError(t, err)
	out := decodeResponse(t, resp)
	assert.Equal(t, http.StatusAccepted, out.Code)

	require.Len(t, rt.sent, 1)
	assert.Equal(t, "agent-1", rt.sentTarget)
	assert.Equal(t, "command", rt.sent[0].Kind)
	require.NotNil(t, rt.sent[0].Priority)
	assert.Equal(t, 1, *rt.sent[0].Priority)
	assert.Equal(t, "test", rt.sent[0].Metadata["principal"])
}

func TestSendActivityValidation(t *testing.T) {
	rt, srv := newTestServer(t)
	require.NoError(t, rt.CreateAgent("agent-1"))

	// missing kind
	resp, err := http.Post(srv.URL+"/api/v1/agents/agent-1/activities", "application/json",
		bytes.NewBufferString(`{"payload":"x"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// unknown agent
	resp, err = http.Post(srv.URL+"/api/v1/agents/ghost/activities", "application/json",
		bytes.NewBufferString(`{"kind":"command"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestModelsAndProviders(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/models")
	require.NoError(t, err)
	out := decodeResponse(t, resp)
	assert.Equal(t, http.StatusOK, out.Code)

	resp, err = http.Get(srv.URL + "/api/v1/providers")
	require.NoError(t, err)
	out = decodeResponse(t, resp)
	assert.Equal(t, http.StatusOK, out.Code)
}

func TestStatusAndHealth(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/status")
	require.NoError(t, err)
	out := decodeResponse(t, resp)
	data := out.Data.(map[string]interface{})
	assert.Equal(t, "test-node", data["node_id"])

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMethodNotAllowed(t *testing.T) {
	_, srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/v1/agents", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestPagination(t *testing.T) {
	rt, srv := newTestServer(t)
	for i := 0; i < 25; i++ {
		require.NoError(t, rt.CreateAgent(fmt.Sprintf("agent-%02d", i)))
	}

	resp, err := http.Get(srv.URL + "/api/v1/agents?page=2&limit=10")
	require.NoError(t, err)
	out := decodeResponse(t, resp)
	data := out.Data.(map[string]interface{})
	assert.Equal(t, float64(25), data["total"])
	assert.Len(t, data["agents"].([]interface{}), 10)
}
