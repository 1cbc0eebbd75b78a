package model

import (
	"encoding/json"
	"time"
)

type AuditOp string

const (
	AuditOpInsert AuditOp = "INSERT"
	AuditOpUpdate AuditOp = "UPDATE"
	AuditOpDelete AuditOp = "DELETE"
)

// AuditEntry is append-only: rows are never updated or deleted by the
// system itself.
type AuditEntry struct {
	ID        string          `json:"id"`
	TableName string          `json:"table_name"`
	Op        AuditOp         `json:"op"`
	RowID     string          `json:"row_id"`
	Detail    json.RawMessage `json:"detail"`
	ChangedAt time.Time       `json:"changed_at"`
}
