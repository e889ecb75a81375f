package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE snapshot (id TEXT PRIMARY KEY, play_count INTEGER)`)
	if err != nil {
		db.Close()
		t.Fatalf("failed to create table: %v", err)
	}

	return db
}

func countRows(t *testing.T, db *sql.DB) int {
	t.Helper()
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM snapshot`).Scan(&count); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	return count
}

func TestWithTx_Commit(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	err := WithTx(context.Background(), db, func(tx *sql.Tx) error {
		for _, id := range []string{"a", "b", "c"} {
			if _, err := tx.Exec(`INSERT INTO snapshot (id, play_count) VALUES (?, 1)`, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithTx failed: %v", err)
	}

	if got := countRows(t, db); got != 3 {
		t.Errorf("count = %d, want 3", got)
	}
}

func TestWithTx_RollbackOnError(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	abort := errors.New("abort")
	err := WithTx(context.Background(), db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO snapshot (id, play_count) VALUES ('a', 1)`); err != nil {
			return err
		}
		return abort
	})
	if !errors.Is(err, abort) {
		t.Fatalf("WithTx should return the error: got %v, want %v", err, abort)
	}

	if got := countRows(t, db); got != 0 {
		t.Errorf("count = %d, want 0 (rolled back)", got)
	}
}

func TestWithTx_CancelledContext(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := WithTx(ctx, db, func(*sql.Tx) error {
		called = true
		return nil
	})
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if called {
		t.Error("fn should not run when the transaction cannot begin")
	}
}

func TestUnixOrNull(t *testing.T) {
	if n := UnixOrNull(time.Time{}); n.Valid {
		t.Errorf("zero time should be NULL, got %+v", n)
	}

	ts := time.Unix(1700000000, 0)
	n := UnixOrNull(ts)
	if !n.Valid || n.Int64 != 1700000000 {
		t.Errorf("UnixOrNull = %+v, want 1700000000", n)
	}
	if got := NullUnixTime(n); !got.Equal(ts) {
		t.Errorf("NullUnixTime = %v, want %v", got, ts)
	}
}

func TestNullUnixTime_Invalid(t *testing.T) {
	if got := NullUnixTime(sql.NullInt64{Int64: 5}); !got.IsZero() {
		t.Errorf("NullUnixTime = %v, want zero", got)
	}
}

func TestNullStringValue(t *testing.T) {
	if got := NullStringValue(sql.NullString{String: "x", Valid: true}); got != "x" {
		t.Errorf("got %q, want x", got)
	}
	if got := NullStringValue(sql.NullString{String: "x"}); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}
