package models

import "time"

type AuditLog struct {
	ID         string         `json:"id"`
	EntityType string         `json:"entity_type"` // escrow | transaction | dispute | reconciliation
	EntityID   *string        `json:"entity_id"`
	Action     string         `json:"action"`
	Actor      *string        `json:"actor,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}
