package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"labdesk/internal/port"
)

type ledgerStore struct {
	db *sqlx.DB
}

// NewLedgerStore creates a PostgreSQL-backed LedgerStore over the
// ledger_entries table.
func NewLedgerStore(db *sqlx.DB) port.LedgerStore {
	return &ledgerStore{db: db}
}

func (s *ledgerStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.GetContext(ctx, &value, "SELECT value FROM ledger_entries WHERE key = $1", key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("ledgerStore.Get: %w", err)
	}
	return value, true, nil
}

func (s *ledgerStore) Set(ctx context.Context, key string, value []byte) error {
	query := `INSERT INTO ledger_entries (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`

	_, err := s.db.ExecContext(ctx, query, key, string(value), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("ledgerStore.Set: %w", err)
	}
	return nil
}

// Update locks the row for key with SELECT ... FOR UPDATE so concurrent
// writers, in this process or another replica, apply their changes one after
// the other. A missing row is created empty first so there is a row to lock.
func (s *ledgerStore) Update(ctx context.Context, key string, fn port.UpdateFunc) (err error) {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("ledgerStore.Update: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_entries (key, value, updated_at) VALUES ($1, 'null'::jsonb, $2)
		 ON CONFLICT (key) DO NOTHING`, key, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("ledgerStore.Update: seeding %s: %w", key, err)
	}
	created, _ := res.RowsAffected()

	var current []byte
	if err = tx.GetContext(ctx, &current,
		"SELECT value FROM ledger_entries WHERE key = $1 FOR UPDATE", key); err != nil {
		return fmt.Errorf("ledgerStore.Update: locking %s: %w", key, err)
	}
	found := created == 0 && string(current) != "null"
	if !found {
		current = nil
	}

	next, err := fn(current, found)
	if err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx,
		"UPDATE ledger_entries SET value = $2, updated_at = $3 WHERE key = $1",
		key, string(next), time.Now().UTC()); err != nil {
		return fmt.Errorf("ledgerStore.Update: writing %s: %w", key, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("ledgerStore.Update: commit: %w", err)
	}
	return nil
}

func (s *ledgerStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := s.db.SelectContext(ctx, &keys,
		"SELECT key FROM ledger_entries WHERE key LIKE $1 ESCAPE '\\' ORDER BY key", escapeLike(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("ledgerStore.Keys: %w", err)
	}
	return keys, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
