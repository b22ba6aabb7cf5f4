package store

import (
	"context"

	"github.com/rendis/flowedit/pkg/schema"
)

// Store defines the persistence layer contract for flow drafts.
// All implementations must be safe for concurrent use.
type Store interface {
	// Flows
	SaveFlow(ctx context.Context, flow schema.FlowAPI) (*FlowRecord, error)
	GetFlow(ctx context.Context, id string) (*FlowRecord, error)
	ListFlows(ctx context.Context, filter FlowFilter) ([]*FlowRecord, error)
	DeleteFlow(ctx context.Context, id string) error

	// Revisions (append-only)
	ListRevisions(ctx context.Context, flowID string) ([]*Revision, error)
	GetRevision(ctx context.Context, flowID string, sequence int64) (*Revision, error)
	RestoreRevision(ctx context.Context, flowID string, sequence int64) (*FlowRecord, error)

	// Maintenance
	Migrate(ctx context.Context) error
	Vacuum(ctx context.Context) error

	// Lifecycle
	Close() error
}
