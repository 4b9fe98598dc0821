// Package journal persists ledger receipts in SQLite so asynchronous registration
// outcomes survive restarts and can be re-queried by id.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ruteri/subaccount-factory/interfaces"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// Store is a SQLite backed interfaces.ReceiptStore.
type Store struct {
	db *sql.DB
}

// Open opens (and creates if missing) the journal database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying journal schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveReceipt inserts a receipt or updates its mutable fields.
func (s *Store) SaveReceipt(ctx context.Context, r *interfaces.Receipt) error {
	logs, err := json.Marshal(r.Logs)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO receipts (id, parent_id, kind, predecessor, receiver, method, status, error, result, logs, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			error = excluded.error,
			result = excluded.result,
			logs = excluded.logs,
			updated_at = excluded.updated_at`,
		r.ID, r.ParentID, string(r.Kind), string(r.Predecessor), string(r.Receiver), r.Method,
		string(r.Status), r.Error, []byte(r.Result), string(logs),
		r.CreatedAt.UnixNano(), r.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("saving receipt %s: %w", r.ID, err)
	}
	return nil
}

const selectReceipt = `
	SELECT id, parent_id, kind, predecessor, receiver, method, status, error, result, logs, created_at, updated_at
	FROM receipts`

// Receipt returns the receipt with the given id.
func (s *Store) Receipt(ctx context.Context, id string) (*interfaces.Receipt, error) {
	row := s.db.QueryRowContext(ctx, selectReceipt+` WHERE id = ?`, id)
	r, err := scanReceipt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, interfaces.ErrReceiptNotFound
	}
	return r, err
}

// ChildReceipts returns the receipts spawned by parentID in creation order.
func (s *Store) ChildReceipts(ctx context.Context, parentID string) ([]*interfaces.Receipt, error) {
	rows, err := s.db.QueryContext(ctx, selectReceipt+` WHERE parent_id = ? ORDER BY created_at, rowid`, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*interfaces.Receipt
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row scanner) (*interfaces.Receipt, error) {
	var (
		r                    interfaces.Receipt
		kind, status         string
		predecessor, recv    string
		result               []byte
		logs                 string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&r.ID, &r.ParentID, &kind, &predecessor, &recv, &r.Method, &status, &r.Error, &result, &logs, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	r.Kind = interfaces.ReceiptKind(kind)
	r.Status = interfaces.ReceiptStatus(status)
	r.Predecessor = interfaces.AccountID(predecessor)
	r.Receiver = interfaces.AccountID(recv)
	if len(result) > 0 {
		r.Result = json.RawMessage(result)
	}
	if err := json.Unmarshal([]byte(logs), &r.Logs); err != nil {
		return nil, fmt.Errorf("decoding logs of receipt %s: %w", r.ID, err)
	}

	r.CreatedAt = time.Unix(0, createdAt).UTC()
	r.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &r, nil
}
