package ingestor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traindw/ingestor/irail"
)

// fakeAPI is a canned SourceAdapter. Endpoints can be failed by name; the
// error queue drains one error per call, the way memStore does it.
type fakeAPI struct {
	mu           sync.Mutex
	block        chan struct{}
	stations     []irail.StationRecord
	liveboard    map[string][]irail.MovementRecord
	connections  map[string][]irail.MovementRecord
	disturbances []irail.DisturbanceRecord
	compositions map[string]*irail.CompositionRecord
	failures     map[string][]error
}

func newFakeAPI() *fakeAPI {
	scheduledDeparture := time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC)
	return &fakeAPI{
		stations: []irail.StationRecord{
			{ID: "BE.NMBS.008812005", Name: "Brussels-North"},
			{ID: "BE.NMBS.008821006", Name: "Antwerpen-Centraal"},
		},
		liveboard: map[string][]irail.MovementRecord{
			"BE.NMBS.008812005": {
				{
					VehicleName:        "BE.NMBS.IC3033",
					VehicleShortName:   "IC3033",
					DepartureStation:   irail.StationRecord{ID: "BE.NMBS.008812005", Name: "Brussels-North"},
					ArrivalStation:     irail.StationRecord{ID: "BE.NMBS.008821006", Name: "Antwerpen-Centraal"},
					ScheduledDeparture: scheduledDeparture,
					DelaySeconds:       300,
					Platform:           "4",
				},
			},
		},
		connections: map[string][]irail.MovementRecord{},
		disturbances: []irail.DisturbanceRecord{
			{ID: "1", Title: "Signal failure", Time: time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)},
		},
		compositions: map[string]*irail.CompositionRecord{
			"IC3033": {
				VehicleName: "BE.NMBS.IC3033",
				Segments: []irail.CompositionSegment{
					{
						Origin:      irail.StationRecord{ID: "BE.NMBS.008812005"},
						Destination: irail.StationRecord{ID: "BE.NMBS.008821006"},
						Units:       []irail.CompositionUnitRecord{{ParentType: "AM96", SeatsSecondClass: 66}},
					},
				},
			},
		},
		failures: map[string][]error{},
	}
}

func (a *fakeAPI) failWith(endpoint string, errs ...error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures[endpoint] = append(a.failures[endpoint], errs...)
}

func (a *fakeAPI) popFailure(endpoint string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	queue := a.failures[endpoint]
	if len(queue) == 0 {
		return nil
	}
	a.failures[endpoint] = queue[1:]
	return queue[0]
}

func (a *fakeAPI) Stations(ctx context.Context) ([]irail.StationRecord, error) {
	if err := a.popFailure("stations"); err != nil {
		return nil, err
	}
	return a.stations, nil
}

func (a *fakeAPI) Liveboard(ctx context.Context, stationID string) ([]irail.MovementRecord, error) {
	if err := a.popFailure("liveboard"); err != nil {
		return nil, err
	}
	return a.liveboard[stationID], nil
}

func (a *fakeAPI) Connections(ctx context.Context, fromID string, toID string) ([]irail.MovementRecord, error) {
	if err := a.popFailure("connections"); err != nil {
		return nil, err
	}
	return a.connections[fromID+"|"+toID], nil
}

func (a *fakeAPI) Disturbances(ctx context.Context) ([]irail.DisturbanceRecord, error) {
	if a.block != nil {
		<-a.block
	}
	if err := a.popFailure("disturbances"); err != nil {
		return nil, err
	}
	return a.disturbances, nil
}

func (a *fakeAPI) Composition(ctx context.Context, vehicleName string) (*irail.CompositionRecord, error) {
	if err := a.popFailure("composition"); err != nil {
		return nil, err
	}
	composition, ok := a.compositions[vehicleName]
	if !ok {
		return nil, &irail.FetchError{Endpoint: "composition", StatusCode: 404, Transient: false, Err: errors.New("Not Found")}
	}
	return composition, nil
}

func newTestOrchestrator(api SourceAdapter, store Store) *Orchestrator {
	return &Orchestrator{
		API:               api,
		Store:             store,
		Resolver:          NewResolver(store),
		Normalizer:        &Normalizer{},
		Executor:          newTestExecutor(store),
		LiveboardStations: []string{"BE.NMBS.008812005"},
		FetchBackoff:      fastBackoff(),
	}
}

func TestRunIngestionFullRun(t *testing.T) {
	store := newMemStore()
	o := newTestOrchestrator(newFakeAPI(), store)

	report, err := o.RunIngestion(context.Background(), []Category{CategoryDepartures, CategoryDisturbances})
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.NotEmpty(t, report.ID)

	departures := report.Categories[CategoryDepartures]
	assert.Equal(t, StateDone, departures.State)
	assert.Equal(t, 1, departures.Fetched)
	assert.Equal(t, 1, departures.Normalized)
	assert.Equal(t, 1, departures.Inserted)
	assert.Zero(t, departures.Failed)

	disturbances := report.Categories[CategoryDisturbances]
	assert.Equal(t, StateDone, disturbances.State)
	assert.Equal(t, 1, disturbances.Inserted)

	assert.Equal(t, 1, store.movementCount())
	assert.Equal(t, 1, store.disturbanceCount())
	// the station preload registered stations no movement references
	assert.Len(t, store.stations, 2)

	mean, ok := report.MeanDelayMinutes()
	require.True(t, ok)
	assert.Equal(t, 5.0, mean)

	assert.Same(t, report, o.LastReport())
}

func TestRunIngestionCategoryFailsIndependently(t *testing.T) {
	api := newFakeAPI()
	down := &irail.FetchError{Endpoint: "disturbances", StatusCode: 503, Transient: false, Err: errors.New("Service Unavailable")}
	api.failWith("disturbances", down)

	store := newMemStore()
	o := newTestOrchestrator(api, store)

	report, err := o.RunIngestion(context.Background(), []Category{CategoryDepartures, CategoryDisturbances})
	require.NoError(t, err)

	assert.Equal(t, StateDone, report.Categories[CategoryDepartures].State)
	assert.Equal(t, StateFailed, report.Categories[CategoryDisturbances].State)
	assert.False(t, report.Failed())
	assert.Equal(t, 1, store.movementCount())
	assert.Zero(t, store.disturbanceCount())
}

func TestRunIngestionIdempotent(t *testing.T) {
	store := newMemStore()
	o := newTestOrchestrator(newFakeAPI(), store)

	_, err := o.RunIngestion(context.Background(), []Category{CategoryDepartures, CategoryDisturbances})
	require.NoError(t, err)

	report, err := o.RunIngestion(context.Background(), []Category{CategoryDepartures, CategoryDisturbances})
	require.NoError(t, err)

	departures := report.Categories[CategoryDepartures]
	assert.Zero(t, departures.Inserted)
	assert.Equal(t, 1, departures.Updated)
	assert.Equal(t, 1, report.Categories[CategoryDisturbances].Skipped)
	assert.Equal(t, 1, store.movementCount())
	assert.Equal(t, 1, store.disturbanceCount())
}

func TestRunIngestionAllCategoriesDown(t *testing.T) {
	api := newFakeAPI()
	down := &irail.FetchError{Endpoint: "any", StatusCode: 503, Transient: false, Err: errors.New("Service Unavailable")}
	// stations failing only degrades the preload; liveboard decides the category
	api.failWith("stations", down)
	api.failWith("liveboard", down)
	api.failWith("disturbances", down)

	o := newTestOrchestrator(api, newMemStore())
	report, err := o.RunIngestion(context.Background(), []Category{CategoryDepartures, CategoryDisturbances})
	assert.ErrorIs(t, err, ErrNoCategorySucceeded)
	require.NotNil(t, report)
	assert.True(t, report.Failed())
}

func TestRunIngestionTransientFetchRetries(t *testing.T) {
	api := newFakeAPI()
	api.failWith("liveboard", &irail.FetchError{Endpoint: "liveboard", StatusCode: 500, Transient: true, Err: errors.New("Internal Server Error")})

	store := newMemStore()
	o := newTestOrchestrator(api, store)

	report, err := o.RunIngestion(context.Background(), []Category{CategoryDepartures})
	require.NoError(t, err)
	assert.Equal(t, StateDone, report.Categories[CategoryDepartures].State)
	assert.Equal(t, 1, store.movementCount())
}

func TestRunIngestionCompositionUsesKnownTrains(t *testing.T) {
	store := newMemStore()
	o := newTestOrchestrator(newFakeAPI(), store)

	// first run registers IC3033 in the Train dimension
	_, err := o.RunIngestion(context.Background(), []Category{CategoryDepartures})
	require.NoError(t, err)

	report, err := o.RunIngestion(context.Background(), []Category{CategoryComposition})
	require.NoError(t, err)

	composition := report.Categories[CategoryComposition]
	assert.Equal(t, StateDone, composition.State)
	assert.Equal(t, 1, composition.Inserted)
	assert.Len(t, store.compositions, 1)
}

func TestStartRunRefusesOverlappingRuns(t *testing.T) {
	api := newFakeAPI()
	api.block = make(chan struct{})

	o := newTestOrchestrator(api, newMemStore())
	report, err := o.StartRun(context.Background(), []Category{CategoryDisturbances})
	require.NoError(t, err)
	assert.NotEmpty(t, report.ID)

	_, err = o.StartRun(context.Background(), []Category{CategoryDepartures})
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(api.block)
	require.Eventually(t, func() bool { return o.LastReport() != nil }, time.Second, 5*time.Millisecond)
	assert.Same(t, report, o.LastReport())
}

func TestRunIngestionRejectsUnknownCategory(t *testing.T) {
	o := newTestOrchestrator(newFakeAPI(), newMemStore())
	_, err := o.RunIngestion(context.Background(), []Category{"weather"})
	assert.Error(t, err)
}
