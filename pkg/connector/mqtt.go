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

package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/turtacn/agenthub-go/pkg/activity"
)

const mqttConnectTimeout = 5 * time.Second

// MQTTSink publishes every output event to an MQTT broker under
// <prefix>/<agent_id>/<kind>, so external consumers can subscribe with
// topic filters like <prefix>/+/completion.
type MQTTSink struct {
	name        string
	topicPrefix string
	client      mqtt.Client
}

// NewMQTTSink connects to the broker at brokerURL and returns a sink
// publishing under topicPrefix.
func NewMQTTSink(name, brokerURL, topicPrefix string) (*MQTTSink, error) {
	if topicPrefix == "" {
		topicPrefix = "agenthub/events"
	}

	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(fmt.Sprintf("agenthub-sink-%s", name)).
		SetConnectTimeout(mqttConnectTimeout).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("timed out connecting to mqtt broker %s", brokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to mqtt broker %s: %w", brokerURL, err)
	}

	log.Printf("[INFO] MQTT sink %s connected to %s", name, brokerURL)
	return &MQTTSink{name: name, topicPrefix: topicPrefix, client: client}, nil
}

// Name returns the configured name of the sink
func (m *MQTTSink) Name() string {
	return m.name
}

// Deliver publishes one event at QoS 1.
func (m *MQTTSink) Deliver(ctx context.Context, evt activity.OutputEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	topic := fmt.Sprintf("%s/%s/%s", m.topicPrefix, evt.AgentID, evt.Kind)
	token := m.client.Publish(topic, 1, false, data)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
		return token.Error()
	}
}

// Close disconnects from the broker
func (m *MQTTSink) Close() error {
	m.client.Disconnect(250)
	return nil
}
