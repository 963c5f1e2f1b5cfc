package ingestor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traindw/ingestor/irail"
)

func resolvedMovement(t *testing.T, r *Resolver, shortName string, minute int) *MovementRow {
	t.Helper()
	row := &MovementRow{
		Vehicle:            irail.VehicleInfo{ShortName: shortName, Number: shortName[2:], Type: "IC"},
		Departure:          irail.StationRecord{ID: "BE.NMBS.008812005", Name: "Brussels-North"},
		Arrival:            irail.StationRecord{ID: "BE.NMBS.008821006", Name: "Antwerpen-Centraal"},
		ScheduledDeparture: time.Date(2026, 8, 29, 10, minute, 0, 0, time.UTC),
	}
	require.NoError(t, row.Resolve(r))
	return row
}

func resolvedDisturbance(t *testing.T, title string) *DisturbanceRow {
	t.Helper()
	return &DisturbanceRow{
		Title: title,
		Time:  time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC),
	}
}

func newTestExecutor(store Store) *Executor {
	return &Executor{Store: store, Backoff: fastBackoff()}
}

func TestExecutorCountsInsertsUpdatesAndSkips(t *testing.T) {
	store := newMemStore()
	r := NewResolver(store)
	e := newTestExecutor(store)

	rows := []FactRow{
		resolvedMovement(t, r, "IC3033", 30),
		resolvedMovement(t, r, "IC3034", 45),
		resolvedDisturbance(t, "Signal failure"),
	}

	report := e.Apply(context.Background(), rows)
	assert.Equal(t, 3, report.Inserted)
	assert.Zero(t, report.Updated)
	assert.Zero(t, report.Failed)

	// same facts again: movements update in place, the disturbance
	// deduplicates away
	report = e.Apply(context.Background(), rows)
	assert.Zero(t, report.Inserted)
	assert.Equal(t, 2, report.Updated)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 2, store.movementCount())
	assert.Equal(t, 1, store.disturbanceCount())
}

func TestExecutorRetriesTransientBatchFailure(t *testing.T) {
	store := newMemStore()
	r := NewResolver(store)
	rows := []FactRow{resolvedMovement(t, r, "IC3033", 30)}

	store.failWith("commit", &StoreError{Op: "commit", Transient: true, Err: errors.New("serialization failure")})

	e := newTestExecutor(store)
	report := e.Apply(context.Background(), rows)
	assert.Equal(t, 1, report.Inserted)
	assert.Zero(t, report.Failed)
	assert.Equal(t, 1, store.movementCount())
}

func TestExecutorDoesNotRetryPermanentFailure(t *testing.T) {
	store := newMemStore()
	r := NewResolver(store)
	rows := []FactRow{resolvedMovement(t, r, "IC3033", 30)}

	permanent := &StoreError{Op: "upsert movement", Transient: false, Err: errors.New("value too long")}
	// a second injected failure would only be hit by a retry
	store.failWith("upsert movement", permanent, permanent)

	e := newTestExecutor(store)
	report := e.Apply(context.Background(), rows)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Errors, 1)
	assert.Zero(t, store.movementCount())

	// the second injected failure must still be queued
	assert.Len(t, store.failures["upsert movement"], 1)
}

func TestExecutorFailingBatchDoesNotAffectOthers(t *testing.T) {
	store := newMemStore()
	r := NewResolver(store)
	rows := []FactRow{
		resolvedMovement(t, r, "IC3033", 30),
		resolvedMovement(t, r, "IC3034", 45),
	}

	store.failWith("upsert movement", &StoreError{Op: "upsert movement", Transient: false, Err: errors.New("bad row")})

	e := newTestExecutor(store)
	e.BatchSize = 1
	report := e.Apply(context.Background(), rows)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 1, store.movementCount())
}

func TestExecutorGroupsKindsSeparately(t *testing.T) {
	store := newMemStore()
	r := NewResolver(store)
	rows := []FactRow{
		resolvedDisturbance(t, "Works between Leuven and Liège"),
		resolvedMovement(t, r, "IC3033", 30),
	}

	// failing the movement batch must leave the disturbance batch alone
	store.failWith("upsert movement", &StoreError{Op: "upsert movement", Transient: false, Err: errors.New("bad row")})

	e := newTestExecutor(store)
	report := e.Apply(context.Background(), rows)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 1, store.disturbanceCount())
	assert.Zero(t, store.movementCount())
}
