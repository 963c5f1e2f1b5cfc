package resource

import (
	"github.com/gbl08ma/sqalx"
	"github.com/yarf-framework/yarf"

	"github.com/traindw/ingestor/dataobjects"
	"github.com/traindw/ingestor/ingestor"
)

// Meta composites resource
type Meta struct {
	resource
	orchestrator *ingestor.Orchestrator
}

// apiMeta contains information about this API endpoint
type apiMeta struct {
	// Whether this API is still supported
	Supported bool `msgpack:"supported" json:"supported"`

	// Whether this endpoint is up
	Up bool `msgpack:"up" json:"up"`

	// Total number of movement facts in the warehouse
	MovementCount int64 `msgpack:"movementCount" json:"movementCount"`

	// ID of the most recently finished ingestion run, if any
	LastRunID string `msgpack:"lastRunId" json:"lastRunId"`
}

// WithNode associates a sqalx Node with this resource
func (r *Meta) WithNode(node sqalx.Node) *Meta {
	r.node = node
	return r
}

// WithOrchestrator associates an Orchestrator with this resource
func (r *Meta) WithOrchestrator(orchestrator *ingestor.Orchestrator) *Meta {
	r.orchestrator = orchestrator
	return r
}

// Get serves HTTP GET requests on this resource
func (r *Meta) Get(c *yarf.Context) error {
	tx, err := r.Beginx()
	if err != nil {
		return err
	}
	defer tx.Commit() // read-only tx

	count, err := dataobjects.CountTrainMovements(tx)
	if err != nil {
		return err
	}

	meta := apiMeta{
		Supported:     true,
		Up:            true,
		MovementCount: count,
	}
	if report := r.orchestrator.LastReport(); report != nil {
		meta.LastRunID = report.ID
	}

	RenderData(c, meta)
	return nil
}
