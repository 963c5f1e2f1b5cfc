package resource

import (
	"net/http"

	"github.com/yarf-framework/yarf"

	"github.com/traindw/ingestor/ingestor"
)

// Report composites resource. It exposes the report of the most recently
// finished ingestion run.
type Report struct {
	resource
	orchestrator *ingestor.Orchestrator
}

// WithOrchestrator associates an Orchestrator with this resource
func (r *Report) WithOrchestrator(orchestrator *ingestor.Orchestrator) *Report {
	r.orchestrator = orchestrator
	return r
}

// Get serves HTTP GET requests on this resource. With a category route
// parameter, only that category's slice of the report is returned.
func (r *Report) Get(c *yarf.Context) error {
	report := r.orchestrator.LastReport()
	if report == nil {
		return &yarf.CustomError{
			HTTPCode: http.StatusNotFound,
			ErrorMsg: "No ingestion run has finished yet",
		}
	}

	if category := c.Param("category"); category != "" {
		categoryReport, ok := report.Categories[ingestor.Category(category)]
		if !ok {
			return &yarf.CustomError{
				HTTPCode: http.StatusNotFound,
				ErrorMsg: "The last run did not cover this category",
			}
		}
		RenderData(c, categoryReport)
		return nil
	}

	RenderData(c, report)
	return nil
}
