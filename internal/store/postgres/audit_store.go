package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditStore appends operational events (archives, backfills) to audit_log.
type AuditStore struct {
	pool *pgxpool.Pool
}

func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

// Log appends one entry. Empty details are stored as SQL NULL.
func (s *AuditStore) Log(ctx context.Context, event string, details map[string]any) error {
	if event == "" {
		return errors.New("postgres: audit event name is empty")
	}

	var payload []byte
	if len(details) > 0 {
		var err error
		if payload, err = json.Marshal(details); err != nil {
			return fmt.Errorf("postgres: audit %s details: %w", event, err)
		}
	}

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO audit_log (event, detail) VALUES ($1, $2)`,
		event, payload,
	); err != nil {
		return fmt.Errorf("postgres: audit %s: %w", event, err)
	}
	return nil
}
