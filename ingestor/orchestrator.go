package ingestor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/hako/durafmt"
	altmath "github.com/pkg/math"
	funk "github.com/thoas/go-funk"

	"github.com/traindw/ingestor/irail"
)

// ErrRunInProgress is returned when an ingestion run is requested while
// another one is still going
var ErrRunInProgress = errors.New("RunIngestion: a run is already in progress")

// ErrNoCategorySucceeded is returned when every requested category failed
var ErrNoCategorySucceeded = errors.New("RunIngestion: no category succeeded")

// DefaultConcurrency bounds parallel upstream fetches when none is
// configured
const DefaultConcurrency = 4

// maxCompositionVehicles caps how many known trains get their composition
// refreshed per run, to keep runs bounded as the Train dimension grows
const maxCompositionVehicles = 32

// SourceAdapter is the upstream the Orchestrator ingests from
type SourceAdapter interface {
	Stations(ctx context.Context) ([]irail.StationRecord, error)
	Liveboard(ctx context.Context, stationID string) ([]irail.MovementRecord, error)
	Connections(ctx context.Context, fromID string, toID string) ([]irail.MovementRecord, error)
	Disturbances(ctx context.Context) ([]irail.DisturbanceRecord, error)
	Composition(ctx context.Context, vehicleName string) (*irail.CompositionRecord, error)
}

var _ SourceAdapter = (*irail.Client)(nil)

// Orchestrator drives ingestion runs: it fetches the configured categories
// concurrently, normalizes and resolves the records, and hands the resulting
// fact rows to the Executor. Categories fail independently; a run only fails
// as a whole when every category does.
type Orchestrator struct {
	API        SourceAdapter
	Store      Store
	Resolver   *Resolver
	Normalizer *Normalizer
	Executor   *Executor
	Log        *log.Logger

	// LiveboardStations are the station IDs polled for departures
	LiveboardStations []string
	// Routes are the (from, to) station ID pairs polled for connections
	Routes [][2]string

	Concurrency  int
	FetchTimeout time.Duration
	RunTimeout   time.Duration
	FetchBackoff BackoffPolicy

	// OnReport, when set, receives the report of every finished run
	OnReport func(*RunReport)

	mu         sync.Mutex
	running    bool
	lastReport *RunReport
}

// LastReport returns the report of the most recently finished run, or nil
// when no run has finished yet
func (o *Orchestrator) LastReport() *RunReport {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastReport
}

func (o *Orchestrator) logf(format string, args ...interface{}) {
	if o.Log != nil {
		o.Log.Printf(format, args...)
	}
}

// RunIngestion performs one ingestion run over the given categories, or over
// all categories when none are given. It returns the run report; the error
// is non-nil only when the run could not produce anything at all.
func (o *Orchestrator) RunIngestion(ctx context.Context, categories []Category) (*RunReport, error) {
	report, err := o.beginRun(categories)
	if err != nil {
		return nil, err
	}
	return report, o.executeRun(ctx, report)
}

// StartRun begins an ingestion run in the background and returns its report
// immediately, before the run finishes. The report fills in as the run
// progresses and is the one LastReport returns once the run is over.
func (o *Orchestrator) StartRun(ctx context.Context, categories []Category) (*RunReport, error) {
	report, err := o.beginRun(categories)
	if err != nil {
		return nil, err
	}
	go o.executeRun(ctx, report)
	return report, nil
}

// beginRun validates the category list and claims the single run slot
func (o *Orchestrator) beginRun(categories []Category) (*RunReport, error) {
	if len(categories) == 0 {
		categories = AllCategories
	}
	for _, category := range categories {
		if !funk.Contains(AllCategories, category) {
			return nil, fmt.Errorf("beginRun: unknown category %q", category)
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return nil, ErrRunInProgress
	}
	o.running = true
	return newRunReport(categories), nil
}

func (o *Orchestrator) executeRun(ctx context.Context, report *RunReport) error {
	if o.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.RunTimeout)
		defer cancel()
	}

	o.logf("run %s starting (%d categories)", report.ID, len(report.Categories))

	concurrency := o.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	sem := make(chan struct{}, concurrency)

	var wg sync.WaitGroup
	for category, cr := range report.Categories {
		wg.Add(1)
		go func(category Category, cr *CategoryReport) {
			defer wg.Done()
			o.runCategory(ctx, category, cr, sem)
		}(category, cr)
	}
	wg.Wait()

	report.finish()
	o.mu.Lock()
	o.running = false
	o.lastReport = report
	o.mu.Unlock()

	if mean, ok := report.MeanDelayMinutes(); ok {
		o.logf("run %s observed a mean departure delay of %.1f minutes", report.ID, mean)
	}
	o.logf("run %s finished in %s", report.ID, durafmt.Parse(report.Duration().Truncate(time.Millisecond)))

	if o.OnReport != nil {
		o.OnReport(report)
	}
	if report.Failed() {
		return ErrNoCategorySucceeded
	}
	return nil
}

func (o *Orchestrator) runCategory(ctx context.Context, category Category, cr *CategoryReport, sem chan struct{}) {
	rows, err := o.fetchAndNormalize(ctx, category, cr, sem)
	if err != nil {
		cr.fail(err)
		o.logf("category %s failed: %s", category, err)
		return
	}

	cr.State = StateResolving
	resolved := make([]FactRow, 0, len(rows))
	for _, row := range rows {
		if err := row.Resolve(o.Resolver); err != nil {
			cr.Rejected++
			cr.addError(err)
			continue
		}
		resolved = append(resolved, row)
	}

	cr.State = StateUpserting
	applyReport := o.Executor.Apply(ctx, resolved)
	cr.Inserted = applyReport.Inserted
	cr.Updated = applyReport.Updated
	cr.Skipped = applyReport.Skipped
	cr.Failed = applyReport.Failed
	for _, err := range applyReport.Errors {
		cr.addError(err)
	}
	cr.State = StateDone
}

// fetchAndNormalize covers the Fetching and Normalizing states of one
// category. It returns an error only when nothing could be fetched at all;
// individual fetch and validation failures are recorded in the report and
// the category carries on with what it has.
func (o *Orchestrator) fetchAndNormalize(ctx context.Context, category Category, cr *CategoryReport, sem chan struct{}) ([]FactRow, error) {
	cr.State = StateFetching

	switch category {
	case CategoryDepartures:
		return o.fetchDepartures(ctx, cr, sem)
	case CategoryConnections:
		return o.fetchConnections(ctx, cr, sem)
	case CategoryDisturbances:
		return o.fetchDisturbances(ctx, cr)
	case CategoryComposition:
		return o.fetchCompositions(ctx, cr, sem)
	}
	return nil, fmt.Errorf("fetchAndNormalize: unknown category %q", category)
}

func (o *Orchestrator) fetchDepartures(ctx context.Context, cr *CategoryReport, sem chan struct{}) ([]FactRow, error) {
	// preload the station list so the Station dimension carries names and
	// coordinates even for stations no movement references yet
	var stations []irail.StationRecord
	err := o.fetch(ctx, sem, func(ctx context.Context) error {
		var err error
		stations, err = o.API.Stations(ctx)
		return err
	})
	if err != nil {
		cr.addError(err)
	}
	for _, station := range stations {
		if _, err := o.Resolver.Station(station); err != nil {
			cr.addError(err)
		}
	}

	records, fetched, err := o.fetchMovements(ctx, sem, len(o.LiveboardStations), func(ctx context.Context, i int) ([]irail.MovementRecord, error) {
		return o.API.Liveboard(ctx, o.LiveboardStations[i])
	}, cr)
	if fetched == 0 && len(o.LiveboardStations) > 0 {
		return nil, err
	}
	return o.normalizeMovements(records, CategoryDepartures, cr), nil
}

func (o *Orchestrator) fetchConnections(ctx context.Context, cr *CategoryReport, sem chan struct{}) ([]FactRow, error) {
	records, fetched, err := o.fetchMovements(ctx, sem, len(o.Routes), func(ctx context.Context, i int) ([]irail.MovementRecord, error) {
		return o.API.Connections(ctx, o.Routes[i][0], o.Routes[i][1])
	}, cr)
	if fetched == 0 && len(o.Routes) > 0 {
		return nil, err
	}
	return o.normalizeMovements(records, CategoryConnections, cr), nil
}

// fetchMovements runs n movement fetches in parallel under the fetch
// semaphore. It returns the collected records, the number of fetches that
// succeeded, and the last fetch error.
func (o *Orchestrator) fetchMovements(ctx context.Context, sem chan struct{}, n int,
	fetchOne func(ctx context.Context, i int) ([]irail.MovementRecord, error), cr *CategoryReport) ([]irail.MovementRecord, int, error) {
	var mu sync.Mutex
	var records []irail.MovementRecord
	var lastErr error
	fetched := 0

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var result []irail.MovementRecord
			err := o.fetch(ctx, sem, func(ctx context.Context) error {
				var err error
				result, err = fetchOne(ctx, i)
				return err
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				lastErr = err
				cr.addError(err)
				return
			}
			fetched++
			records = append(records, result...)
		}(i)
	}
	wg.Wait()
	return records, fetched, lastErr
}

func (o *Orchestrator) normalizeMovements(records []irail.MovementRecord, category Category, cr *CategoryReport) []FactRow {
	cr.Fetched = len(records)
	cr.State = StateNormalizing

	var rows []FactRow
	for _, record := range records {
		recordRows, err := o.Normalizer.NormalizeMovement(record, category)
		if err != nil {
			cr.Rejected++
			cr.addError(err)
			continue
		}
		cr.Normalized++
		for _, row := range recordRows {
			if movement, ok := row.(*MovementRow); ok && movement.DelayMinutes != nil {
				cr.addDelaySample(*movement.DelayMinutes)
			}
		}
		rows = append(rows, recordRows...)
	}
	return rows
}

func (o *Orchestrator) fetchDisturbances(ctx context.Context, cr *CategoryReport) ([]FactRow, error) {
	var records []irail.DisturbanceRecord
	err := o.fetchBackoff().Retry(ctx, func() error {
		fetchCtx, cancel := o.fetchContext(ctx)
		defer cancel()
		var err error
		records, err = o.API.Disturbances(fetchCtx)
		return err
	})
	if err != nil {
		return nil, err
	}

	cr.Fetched = len(records)
	cr.State = StateNormalizing
	var rows []FactRow
	for _, record := range records {
		row, err := o.Normalizer.NormalizeDisturbance(record)
		if err != nil {
			cr.Rejected++
			cr.addError(err)
			continue
		}
		cr.Normalized++
		rows = append(rows, row)
	}
	return rows, nil
}

func (o *Orchestrator) fetchCompositions(ctx context.Context, cr *CategoryReport, sem chan struct{}) ([]FactRow, error) {
	trains, err := o.Store.ListTrains()
	if err != nil {
		return nil, err
	}
	if len(trains) == 0 {
		// nothing to refresh before the first movement is ingested
		return nil, nil
	}
	trains = trains[:altmath.Min(len(trains), maxCompositionVehicles)]

	var mu sync.Mutex
	var records []*irail.CompositionRecord
	var lastErr error
	fetched := 0

	var wg sync.WaitGroup
	for _, train := range trains {
		wg.Add(1)
		go func(vehicleName string) {
			defer wg.Done()
			var result *irail.CompositionRecord
			err := o.fetch(ctx, sem, func(ctx context.Context) error {
				var err error
				result, err = o.API.Composition(ctx, vehicleName)
				return err
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				lastErr = err
				cr.addError(err)
				return
			}
			fetched++
			records = append(records, result)
		}(train.ID)
	}
	wg.Wait()

	if fetched == 0 {
		return nil, lastErr
	}

	cr.Fetched = len(records)
	cr.State = StateNormalizing
	var rows []FactRow
	for _, record := range records {
		recordRows, errs := o.Normalizer.NormalizeComposition(*record)
		for _, err := range errs {
			cr.Rejected++
			cr.addError(err)
		}
		cr.Normalized += len(recordRows)
		rows = append(rows, recordRows...)
	}
	return rows, nil
}

// fetch runs one upstream call under the fetch semaphore, with the
// per-fetch timeout and the fetch backoff policy applied
func (o *Orchestrator) fetch(ctx context.Context, sem chan struct{}, op func(ctx context.Context) error) error {
	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-sem }()

	return o.fetchBackoff().Retry(ctx, func() error {
		fetchCtx, cancel := o.fetchContext(ctx)
		defer cancel()
		return op(fetchCtx)
	})
}

func (o *Orchestrator) fetchBackoff() BackoffPolicy {
	if o.FetchBackoff.MaxAttempts > 0 {
		return o.FetchBackoff
	}
	return DefaultBackoff
}

func (o *Orchestrator) fetchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.FetchTimeout > 0 {
		return context.WithTimeout(ctx, o.FetchTimeout)
	}
	return context.WithCancel(ctx)
}
