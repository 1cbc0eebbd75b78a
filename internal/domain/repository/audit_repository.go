package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"cptracker/internal/domain/model"
)

type AuditRepository interface {
	// Append writes one audit row. The audit trail is append-only; there are
	// deliberately no update or delete methods.
	Append(ctx context.Context, entry *model.AuditEntry) error
	List(ctx context.Context, limit int) ([]model.AuditEntry, error)
}

type pgAuditRepository struct {
	db *sql.DB
}

func NewPgAuditRepository(db *sql.DB) AuditRepository {
	return &pgAuditRepository{db: db}
}

func (r *pgAuditRepository) Append(ctx context.Context, entry *model.AuditEntry) error {
	detail := entry.Detail
	if len(detail) == 0 {
		detail = json.RawMessage("{}")
	}
	query := `INSERT INTO audit_log (id, table_name, op, row_id, detail, changed_at)
	          VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.TableName, entry.Op, entry.RowID, string(detail), entry.ChangedAt,
	)
	if err != nil {
		return fmt.Errorf("pgAuditRepository.Append: %w", err)
	}
	return nil
}

func (r *pgAuditRepository) List(ctx context.Context, limit int) ([]model.AuditEntry, error) {
	query := `SELECT id, table_name, op, row_id, detail, changed_at
	          FROM audit_log ORDER BY changed_at DESC LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("pgAuditRepository.List: %w", err)
	}
	defer rows.Close()

	entries := []model.AuditEntry{}
	for rows.Next() {
		var e model.AuditEntry
		var detail string
		if err := rows.Scan(&e.ID, &e.TableName, &e.Op, &e.RowID, &detail, &e.ChangedAt); err != nil {
			return nil, fmt.Errorf("pgAuditRepository.List scan: %w", err)
		}
		e.Detail = json.RawMessage(detail)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgAuditRepository.List rows.Err: %w", err)
	}
	return entries, nil
}
