package resource

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/yarf-framework/yarf"

	"github.com/traindw/ingestor/ingestor"
)

// Ingest composites resource. It triggers ingestion runs on demand, outside
// the regular schedule.
type Ingest struct {
	resource
	orchestrator *ingestor.Orchestrator
}

type apiIngestAccepted struct {
	RunID      string              `msgpack:"runId" json:"runId"`
	Categories []ingestor.Category `msgpack:"categories" json:"categories"`
}

// WithOrchestrator associates an Orchestrator with this resource
func (r *Ingest) WithOrchestrator(orchestrator *ingestor.Orchestrator) *Ingest {
	r.orchestrator = orchestrator
	return r
}

// Post serves HTTP POST requests on this resource. The optional categories
// query parameter narrows the run to a comma-separated subset of categories.
// The run itself happens in the background; its report becomes available on
// the report resource once it finishes.
func (r *Ingest) Post(c *yarf.Context) error {
	categories := ingestor.AllCategories
	if param := c.Request.URL.Query().Get("categories"); param != "" {
		categories = nil
		for _, name := range strings.Split(param, ",") {
			categories = append(categories, ingestor.Category(strings.TrimSpace(name)))
		}
	}

	report, err := r.orchestrator.StartRun(context.Background(), categories)
	if errors.Is(err, ingestor.ErrRunInProgress) {
		return &yarf.CustomError{
			HTTPCode:  http.StatusConflict,
			ErrorMsg:  "An ingestion run is already in progress",
			ErrorBody: err.Error(),
		}
	}
	if err != nil {
		return &yarf.CustomError{
			HTTPCode:  http.StatusBadRequest,
			ErrorMsg:  "Cannot start ingestion run",
			ErrorBody: err.Error(),
		}
	}

	c.Response.WriteHeader(http.StatusAccepted)
	RenderData(c, apiIngestAccepted{
		RunID:      report.ID,
		Categories: categories,
	})
	return nil
}
