package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rendis/flowedit/pkg/schema"
)

// appendRevision records doc as the next revision of flowID inside tx and
// returns its sequence. Sequences start at 1 and have no gaps.
func appendRevision(ctx context.Context, tx *sql.Tx, flowID string, doc []byte, at time.Time) (int64, error) {
	var seq int64
	err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM flow_revisions WHERE flow_id = ?`, flowID,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("get next revision: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO flow_revisions (flow_id, sequence, document, saved_at) VALUES (?, ?, ?, ?)`,
		flowID, seq, string(doc), at,
	)
	if err != nil {
		return 0, storeError("insert revision", flowID, err)
	}
	return seq, nil
}

// ListRevisions returns every revision of a flow, oldest first.
// Returns an error if sequence gaps are detected.
func (s *LibSQLStore) ListRevisions(ctx context.Context, flowID string) ([]*Revision, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, flow_id, sequence, document, saved_at FROM flow_revisions
		 WHERE flow_id = ? ORDER BY sequence ASC`, flowID)
	if err != nil {
		return nil, storeError("list revisions", flowID, err)
	}
	defer rows.Close()

	revisions := []*Revision{}
	for rows.Next() {
		rev, err := scanRevision(rows)
		if err != nil {
			return nil, err
		}
		revisions = append(revisions, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, rev := range revisions {
		expected := int64(i + 1)
		if rev.Sequence != expected {
			return nil, schema.NewErrorf(schema.ErrCodeStore,
				"revision gap in flow %s: expected %d, got %d", flowID, expected, rev.Sequence)
		}
	}
	return revisions, nil
}

// GetRevision returns one revision of a flow.
func (s *LibSQLStore) GetRevision(ctx context.Context, flowID string, sequence int64) (*Revision, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, flow_id, sequence, document, saved_at FROM flow_revisions
		 WHERE flow_id = ? AND sequence = ?`, flowID, sequence)
	rev, err := scanRevision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storeNotFound("revision", fmt.Sprintf("%s@%d", flowID, sequence))
	}
	return rev, err
}

// RestoreRevision saves an earlier revision as the latest document. The
// history is kept; the restored document becomes a new revision.
func (s *LibSQLStore) RestoreRevision(ctx context.Context, flowID string, sequence int64) (*FlowRecord, error) {
	rev, err := s.GetRevision(ctx, flowID, sequence)
	if err != nil {
		return nil, err
	}
	return s.SaveFlow(ctx, rev.Document)
}

func scanRevision(row scanner) (*Revision, error) {
	rev := &Revision{}
	var doc string
	if err := row.Scan(&rev.ID, &rev.FlowID, &rev.Sequence, &doc, &rev.SavedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(doc), &rev.Document); err != nil {
		return nil, fmt.Errorf("unmarshal revision %d: %w", rev.ID, err)
	}
	return rev, nil
}
