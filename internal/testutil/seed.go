package testutil

import (
	"context"
	"testing"

	"github.com/roach88/quarry/internal/store"
)

// NewSeededStore opens an in-memory store, creates the fixture collection
// tables and loads the canonical dataset. The dataset is small enough to
// assert exact results against:
//
//	users:  1 alice (us), 2 bob (de), 3 carol (NULL country)
//	orders: 1 paid/10 by alice, 2 paid/20 by bob, 3 due/5 by alice
//	items:  two lines on order 1, one line each on orders 2 and 3,
//	        plus item 5 referencing a nonexistent order (visible only
//	        through LEFT joins)
//
// Orders 1 and 2 carry meta values (priority, tag); order 3 has none.
func NewSeededStore(tb testing.TB) *store.Store {
	tb.Helper()

	s, err := store.OpenMemory()
	if err != nil {
		tb.Fatalf("open memory store: %v", err)
	}
	tb.Cleanup(func() { s.Close() })

	ctx := context.Background()
	stmts := []string{
		`CREATE TABLE users (
			id      INTEGER PRIMARY KEY,
			email   TEXT NOT NULL,
			name    TEXT NOT NULL,
			country TEXT
		)`,
		`CREATE TABLE orders (
			id         INTEGER PRIMARY KEY,
			user_id    INTEGER NOT NULL,
			status     TEXT NOT NULL,
			amount     REAL NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE order_items (
			id       INTEGER PRIMARY KEY,
			order_id INTEGER NOT NULL,
			sku      TEXT NOT NULL,
			qty      INTEGER NOT NULL,
			price    REAL NOT NULL
		)`,

		`INSERT INTO users (id, email, name, country) VALUES
			(1, 'alice@example.com', 'Alice', 'us'),
			(2, 'bob@example.com',   'Bob',   'de'),
			(3, 'carol@example.com', 'Carol', NULL)`,
		`INSERT INTO orders (id, user_id, status, amount, created_at) VALUES
			(1, 1, 'paid', 10.0, '2024-01-15 09:30:00'),
			(2, 2, 'paid', 20.0, '2024-02-01 14:00:00'),
			(3, 1, 'due',   5.0, '2024-02-20 08:15:00')`,
		`INSERT INTO order_items (id, order_id, sku, qty, price) VALUES
			(1, 1, 'widget', 2, 3.0),
			(2, 1, 'gadget', 1, 4.0),
			(3, 2, 'widget', 5, 4.0),
			(4, 3, 'cable',  1, 5.0),
			(5, 99, 'ghost', 1, 9.0)`,
	}
	for _, stmt := range stmts {
		if _, err := s.Exec(ctx, stmt); err != nil {
			tb.Fatalf("seed statement failed: %v\n%s", err, stmt)
		}
	}

	meta := []struct{ record, key, value string }{
		{"1", "priority", "high"},
		{"1", "tag", "gift"},
		{"1", "tag", "rush"},
		{"2", "priority", "low"},
	}
	for _, m := range meta {
		if err := s.AddMeta(ctx, m.record, m.key, m.value); err != nil {
			tb.Fatalf("seed meta failed: %v", err)
		}
	}

	return s
}
