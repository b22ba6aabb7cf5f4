package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/flowedit/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// DB returns the underlying *sql.DB.
func (s *LibSQLStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// Vacuum runs VACUUM on the database.
func (s *LibSQLStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// --- Flows ---

// SaveFlow inserts or replaces a flow draft and appends it to the flow's
// revision history. A flow without an id is assigned a new one.
func (s *LibSQLStore) SaveFlow(ctx context.Context, flow schema.FlowAPI) (*FlowRecord, error) {
	if strings.TrimSpace(flow.Name) == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "flow name is required")
	}
	if flow.ID == "" {
		flow.ID = uuid.New().String()
	}

	doc, err := json.Marshal(flow)
	if err != nil {
		return nil, fmt.Errorf("marshal flow document: %w", err)
	}
	tags := flow.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin save flow: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO flows (id, name, description, version, tags, document, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name=excluded.name, description=excluded.description,
		 version=excluded.version, tags=excluded.tags, document=excluded.document, updated_at=excluded.updated_at`,
		flow.ID, flow.Name, nullStr(flow.Description), nullStr(flow.Version),
		string(tagsJSON), string(doc), now, now,
	)
	if err != nil {
		return nil, storeError("save flow", flow.ID, err)
	}
	if _, err := appendRevision(ctx, tx, flow.ID, doc, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, storeError("commit flow", flow.ID, err)
	}

	return s.GetFlow(ctx, flow.ID)
}

const flowColumns = `f.id, f.document, f.created_at, f.updated_at,
	(SELECT COALESCE(MAX(r.sequence), 0) FROM flow_revisions r WHERE r.flow_id = f.id)`

// GetFlow returns the latest saved document of a flow.
func (s *LibSQLStore) GetFlow(ctx context.Context, id string) (*FlowRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+flowColumns+` FROM flows f WHERE f.id = ?`, id)
	rec, err := scanFlow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storeNotFound("flow", id)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListFlows returns saved flows ordered by name.
func (s *LibSQLStore) ListFlows(ctx context.Context, filter FlowFilter) ([]*FlowRecord, error) {
	var where []string
	var args []any

	if filter.Name != "" {
		where = append(where, "f.name LIKE ?")
		args = append(args, "%"+filter.Name+"%")
	}
	if filter.Tag != "" {
		where = append(where, "EXISTS (SELECT 1 FROM json_each(f.tags) WHERE json_each.value = ?)")
		args = append(args, filter.Tag)
	}

	query := "SELECT " + flowColumns + " FROM flows f"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY f.name, f.id"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeError("list flows", "", err)
	}
	defer rows.Close()

	flows := []*FlowRecord{}
	for rows.Next() {
		rec, err := scanFlow(rows)
		if err != nil {
			return nil, err
		}
		flows = append(flows, rec)
	}
	return flows, rows.Err()
}

// DeleteFlow removes a flow and its revision history.
func (s *LibSQLStore) DeleteFlow(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete flow: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM flow_revisions WHERE flow_id = ?`, id); err != nil {
		return storeError("delete revisions", id, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM flows WHERE id = ?`, id)
	if err != nil {
		return storeError("delete flow", id, err)
	}
	if err := checkRowsAffected(res, "flow", id); err != nil {
		return err
	}
	return tx.Commit()
}

// --- Helpers ---

type scanner interface {
	Scan(dest ...any) error
}

func scanFlow(row scanner) (*FlowRecord, error) {
	rec := &FlowRecord{}
	var doc string
	if err := row.Scan(&rec.ID, &doc, &rec.CreatedAt, &rec.UpdatedAt, &rec.Revision); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(doc), &rec.Document); err != nil {
		return nil, fmt.Errorf("unmarshal flow %s: %w", rec.ID, err)
	}
	return rec, nil
}

func storeNotFound(resource, id string) *schema.Error {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func storeError(op, id string, err error) *schema.Error {
	msg := op
	if id != "" {
		msg = fmt.Sprintf("%s %q", op, id)
	}
	return schema.NewError(schema.ErrCodeStore, msg).WithCause(err)
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
