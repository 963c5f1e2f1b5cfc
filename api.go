package main

import (
	"github.com/yarf-framework/yarf"

	"github.com/traindw/ingestor/resource"
)

// telemetryMiddleware counts served API requests
type telemetryMiddleware struct {
	yarf.Middleware
}

// PreDispatch runs before every request is dispatched to its resource
func (m *telemetryMiddleware) PreDispatch(c *yarf.Context) error {
	select {
	case APIrequestTelemetry <- nil:
	default:
	}
	return nil
}

// APIserver runs the API server
func APIserver() {
	y := yarf.New()
	y.Insert(new(telemetryMiddleware))

	v1 := yarf.RouteGroup("/v1")

	v1.Add("/meta", new(resource.Meta).WithNode(rootSqalxNode).WithOrchestrator(orchestrator))

	v1.Add("/ingest", new(resource.Ingest).WithOrchestrator(orchestrator))
	v1.Add("/reports/latest", new(resource.Report).WithOrchestrator(orchestrator))
	v1.Add("/reports/latest/:category", new(resource.Report).WithOrchestrator(orchestrator))

	v1.Add("/trains", new(resource.Train).WithNode(rootSqalxNode))
	v1.Add("/trains/:id", new(resource.Train).WithNode(rootSqalxNode))
	v1.Add("/trains/:id/movements", new(resource.Movement).WithNode(rootSqalxNode))
	v1.Add("/movements", new(resource.Movement).WithNode(rootSqalxNode))

	v1.Add("/disturbances", new(resource.Disturbance).WithNode(rootSqalxNode))

	y.AddGroup(v1)

	y.Logger = webLog
	y.Start(":12000")
}
