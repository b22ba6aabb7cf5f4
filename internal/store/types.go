package store

import (
	"time"

	"github.com/rendis/flowedit/pkg/schema"
)

// FlowRecord is the persisted representation of a flow draft.
type FlowRecord struct {
	ID        string         `json:"id"`
	Document  schema.FlowAPI `json:"document"`
	Revision  int64          `json:"revision"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// FlowFilter narrows ListFlows results.
type FlowFilter struct {
	Name   string // substring match on the flow name
	Tag    string // flows carrying this tag
	Limit  int
	Offset int
}

// Revision is one saved version of a flow document.
type Revision struct {
	ID       int64          `json:"id"`
	FlowID   string         `json:"flow_id"`
	Sequence int64          `json:"sequence"`
	Document schema.FlowAPI `json:"document"`
	SavedAt  time.Time      `json:"saved_at"`
}
