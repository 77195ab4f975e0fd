package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Meta write path. Values live in the shared meta_values table as plain
// strings; a (record, key) pair may hold any number of distinct values.
// The query engine never writes here - it only compiles EXISTS filters
// against the table - so all mutation goes through these methods.

// SetMeta replaces every value stored under (recordID, key) with a single
// value. The replace runs in one transaction.
func (s *Store) SetMeta(ctx context.Context, recordID, key, value string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin meta set: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM meta_values WHERE record_id = ? AND meta_key = ?`,
		recordID, key); err != nil {
		return fmt.Errorf("clear meta %q: %w", key, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO meta_values (record_id, meta_key, meta_value) VALUES (?, ?, ?)`,
		recordID, key, value); err != nil {
		return fmt.Errorf("set meta %q: %w", key, err)
	}

	return tx.Commit()
}

// AddMeta appends a value under (recordID, key) without touching existing
// values. Adding a value that is already present is a no-op.
func (s *Store) AddMeta(ctx context.Context, recordID, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO meta_values (record_id, meta_key, meta_value) VALUES (?, ?, ?)`,
		recordID, key, value)
	if err != nil {
		return fmt.Errorf("add meta %q: %w", key, err)
	}
	return nil
}

// GetMeta returns every value stored under (recordID, key), in insertion
// order. A missing key yields an empty slice, not an error.
func (s *Store) GetMeta(ctx context.Context, recordID, key string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT meta_value FROM meta_values WHERE record_id = ? AND meta_key = ? ORDER BY rowid`,
		recordID, key)
	if err != nil {
		return nil, fmt.Errorf("get meta %q: %w", key, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan meta %q: %w", key, err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get meta %q: %w", key, err)
	}
	return values, nil
}

// MetaKeys returns the distinct keys present for a record, sorted.
func (s *Store) MetaKeys(ctx context.Context, recordID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT meta_key FROM meta_values WHERE record_id = ? ORDER BY meta_key`,
		recordID)
	if err != nil {
		return nil, fmt.Errorf("list meta keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan meta key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list meta keys: %w", err)
	}
	return keys, nil
}

// DeleteMeta removes values under (recordID, key). With a non-empty value
// only that value is removed; with an empty value the whole key goes.
// Returns the number of rows removed.
func (s *Store) DeleteMeta(ctx context.Context, recordID, key, value string) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if value == "" {
		res, err = s.db.ExecContext(ctx,
			`DELETE FROM meta_values WHERE record_id = ? AND meta_key = ?`,
			recordID, key)
	} else {
		res, err = s.db.ExecContext(ctx,
			`DELETE FROM meta_values WHERE record_id = ? AND meta_key = ? AND meta_value = ?`,
			recordID, key, value)
	}
	if err != nil {
		return 0, fmt.Errorf("delete meta %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete meta %q: %w", key, err)
	}
	return n, nil
}

// DeleteRecordMeta removes every meta value belonging to a record. Called
// by collection delete paths so metadata never outlives its record.
func (s *Store) DeleteRecordMeta(ctx context.Context, recordID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM meta_values WHERE record_id = ?`, recordID)
	if err != nil {
		return fmt.Errorf("delete record meta: %w", err)
	}
	return nil
}

// CopyMeta duplicates every meta value from one record to another,
// skipping values the target already has. Used by record clone flows.
func (s *Store) CopyMeta(ctx context.Context, fromID, toID string) error {
	_, err := s.db.ExecContext(ctx, strings.TrimSpace(`
INSERT OR IGNORE INTO meta_values (record_id, meta_key, meta_value)
SELECT ?, meta_key, meta_value FROM meta_values WHERE record_id = ?`),
		toID, fromID)
	if err != nil {
		return fmt.Errorf("copy meta: %w", err)
	}
	return nil
}
