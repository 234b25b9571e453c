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
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	_ "github.com/lib/pq"

	"github.com/turtacn/agenthub-go/pkg/activity"
)

// auditTableDDL creates the audit table on first use.
const auditTableDDL = `
CREATE TABLE IF NOT EXISTS agent_events (
	id         BIGSERIAL PRIMARY KEY,
	agent_id   TEXT NOT NULL,
	kind       TEXT NOT NULL,
	payload    JSONB,
	created_at TIMESTAMPTZ NOT NULL
)`

const auditInsert = `INSERT INTO agent_events (agent_id, kind, payload, created_at) VALUES ($1, $2, $3, $4)`

// PostgresSink writes every output event into a postgres audit table.
type PostgresSink struct {
	name string
	db   *sql.DB
}

// NewPostgresSink opens a connection pool against dsn and ensures the audit
// table exists.
func NewPostgresSink(name, dsn string) (*PostgresSink, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	if _, err := db.Exec(auditTableDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create audit table: %w", err)
	}

	log.Printf("[INFO] Postgres audit sink %s connected", name)
	return &PostgresSink{name: name, db: db}, nil
}

// Name returns the configured name of the sink
func (p *PostgresSink) Name() string {
	return p.name
}

// Deliver inserts one event into the audit table.
func (p *PostgresSink) Deliver(ctx context.Context, evt activity.OutputEvent) error {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	_, err = p.db.ExecContext(ctx, auditInsert, evt.AgentID, string(evt.Kind), payload, evt.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert audit row: %w", err)
	}
	return nil
}

// Close closes the connection pool
func (p *PostgresSink) Close() error {
	return p.db.Close()
}
