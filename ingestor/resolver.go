package ingestor

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/traindw/ingestor/dataobjects"
	"github.com/traindw/ingestor/irail"
)

// Resolver maps natural keys to dimension rows, creating rows on first
// sighting. Each resolution commits its own short transaction, so every
// surrogate key handed out is durable before any dependent fact commits.
// The conflict-aware upserts in the data layer make concurrent resolution
// of the same new key converge on a single row.
type Resolver struct {
	store Store
	cache *cache.Cache
}

// NewResolver returns a Resolver over the given store
func NewResolver(store Store) *Resolver {
	return &Resolver{
		store: store,
		cache: cache.New(1*time.Hour, 10*time.Minute),
	}
}

func resolverCacheKey(kind string, naturalKey interface{}) string {
	return strings.Join([]string{"dim", kind, fmt.Sprint(naturalKey)}, "-")
}

// Train resolves a train dimension row from its vehicle info
func (r *Resolver) Train(vehicle irail.VehicleInfo) (*dataobjects.Train, error) {
	if vehicle.ShortName == "" {
		return nil, &ResolutionError{Kind: "train", Reason: "missing vehicle identifier"}
	}

	key := resolverCacheKey("train", vehicle.ShortName)
	if cached, ok := r.cache.Get(key); ok {
		return cached.(*dataobjects.Train), nil
	}

	train := &dataobjects.Train{
		ID:       vehicle.ShortName,
		Number:   vehicle.Number,
		Type:     vehicle.Type,
		Operator: vehicle.Operator,
	}
	if err := r.inTx(func(tx StoreTx) error { return tx.UpsertTrain(train) }); err != nil {
		return nil, err
	}
	r.cache.SetDefault(key, train)
	return train, nil
}

// Station resolves a station dimension row from an upstream station record
func (r *Resolver) Station(record irail.StationRecord) (*dataobjects.Station, error) {
	if record.ID == "" {
		return nil, &ResolutionError{Kind: "station", NaturalKey: record.Name, Reason: "missing station identifier"}
	}

	key := resolverCacheKey("station", record.ID)
	if cached, ok := r.cache.Get(key); ok {
		return cached.(*dataobjects.Station), nil
	}

	station := &dataobjects.Station{
		ID:           record.ID,
		Name:         record.Name,
		StandardName: record.StandardName,
		IRIURL:       record.URI,
	}
	if record.Latitude != nil {
		station.Latitude = sql.NullFloat64{Float64: *record.Latitude, Valid: true}
	}
	if record.Longitude != nil {
		station.Longitude = sql.NullFloat64{Float64: *record.Longitude, Valid: true}
	}
	if err := r.inTx(func(tx StoreTx) error { return tx.UpsertStation(station) }); err != nil {
		return nil, err
	}
	r.cache.SetDefault(key, station)
	return station, nil
}

// Date resolves the date dimension key for an instant. Date rows are only
// ever created, never updated.
func (r *Resolver) Date(t time.Time) (int64, error) {
	if t.IsZero() {
		return 0, &ResolutionError{Kind: "date", Reason: "zero timestamp"}
	}

	d := dataobjects.NewDateDimension(t)
	key := resolverCacheKey("date", d.DateID)
	if _, ok := r.cache.Get(key); ok {
		return d.DateID, nil
	}

	if err := r.inTx(func(tx StoreTx) error { return tx.EnsureDate(d) }); err != nil {
		return 0, err
	}
	r.cache.SetDefault(key, struct{}{})
	return d.DateID, nil
}

func (r *Resolver) inTx(op func(tx StoreTx) error) error {
	tx, err := r.store.Begin()
	if err != nil {
		return err
	}
	if err := op(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
