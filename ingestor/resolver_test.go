package ingestor

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traindw/ingestor/irail"
)

func TestResolverCreatesDimensionOnFirstSighting(t *testing.T) {
	store := newMemStore()
	r := NewResolver(store)

	train, err := r.Train(irail.VehicleInfo{ShortName: "IC3033", Number: "3033", Type: "IC", Operator: "NMBS"})
	require.NoError(t, err)
	assert.NotZero(t, train.TrainID)
	assert.Equal(t, "IC3033", train.ID)

	station, err := r.Station(irail.StationRecord{ID: "BE.NMBS.008812005", Name: "Brussels-North"})
	require.NoError(t, err)
	assert.NotZero(t, station.StationID)

	dateID, err := r.Date(time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(20260829103000), dateID)
}

func TestResolverReturnsSameSurrogateForSameKey(t *testing.T) {
	store := newMemStore()
	r := NewResolver(store)

	first, err := r.Train(irail.VehicleInfo{ShortName: "IC3033"})
	require.NoError(t, err)
	second, err := r.Train(irail.VehicleInfo{ShortName: "IC3033"})
	require.NoError(t, err)
	assert.Equal(t, first.TrainID, second.TrainID)

	// a fresh resolver with an empty cache still lands on the same row
	other := NewResolver(store)
	third, err := other.Train(irail.VehicleInfo{ShortName: "IC3033"})
	require.NoError(t, err)
	assert.Equal(t, first.TrainID, third.TrainID)
}

func TestResolverConcurrentSameKey(t *testing.T) {
	store := newMemStore()

	const goroutines = 16
	ids := make([]int64, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// separate resolvers so the cache cannot mask store races
			r := NewResolver(store)
			station, err := r.Station(irail.StationRecord{ID: "BE.NMBS.008821006", Name: "Antwerpen-Centraal"})
			if err == nil {
				ids[i] = station.StationID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < goroutines; i++ {
		assert.Equal(t, ids[0], ids[i])
	}
	assert.Len(t, store.stations, 1)
}

func TestResolverRejectsEmptyNaturalKeys(t *testing.T) {
	r := NewResolver(newMemStore())

	var resErr *ResolutionError
	_, err := r.Train(irail.VehicleInfo{})
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, "train", resErr.Kind)

	_, err = r.Station(irail.StationRecord{Name: "nameless"})
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, "station", resErr.Kind)

	_, err = r.Date(time.Time{})
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, "date", resErr.Kind)
}

func TestResolverDoesNotCacheFailedUpserts(t *testing.T) {
	store := newMemStore()
	store.failWith("upsert train", &StoreError{Op: "upsert train", Transient: true, Err: assert.AnError})
	r := NewResolver(store)

	_, err := r.Train(irail.VehicleInfo{ShortName: "IC3033"})
	require.Error(t, err)

	// the failure is gone now; a retry must hit the store, not a cache entry
	train, err := r.Train(irail.VehicleInfo{ShortName: "IC3033"})
	require.NoError(t, err)
	assert.NotZero(t, train.TrainID)
}
