package ingestor

import (
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/traindw/ingestor/dataobjects"
	"github.com/traindw/ingestor/irail"
)

// Category is one independently ingested data category
type Category string

// The categories an ingestion run can cover
const (
	CategoryDepartures   Category = "departures"
	CategoryConnections  Category = "connections"
	CategoryDisturbances Category = "disturbances"
	CategoryComposition  Category = "composition"
)

// AllCategories lists every ingestable category
var AllCategories = []Category{
	CategoryDepartures,
	CategoryConnections,
	CategoryDisturbances,
	CategoryComposition,
}

// FactKind identifies a fact table
type FactKind string

// The fact kinds the Executor knows how to apply
const (
	KindMovement       FactKind = "movement"
	KindCompositionSet FactKind = "composition-set"
	KindFeedback       FactKind = "feedback"
	KindDisturbance    FactKind = "disturbance"
)

// ApplyDelta is the outcome of applying one fact row
type ApplyDelta struct {
	Inserted int
	Updated  int
	Skipped  int
}

func (d *ApplyDelta) add(other ApplyDelta) {
	d.Inserted += other.Inserted
	d.Updated += other.Updated
	d.Skipped += other.Skipped
}

// FactRow is a normalized fact pending resolution and upsert. Resolve binds
// every dimension reference to a durable surrogate key; Apply writes the
// fact within the Executor's transaction.
type FactRow interface {
	Kind() FactKind
	Resolve(r *Resolver) error
	Apply(tx StoreTx) (ApplyDelta, error)
}

// MovementRow is a pending TrainMovement fact
type MovementRow struct {
	Vehicle            irail.VehicleInfo
	Departure          irail.StationRecord
	Arrival            irail.StationRecord
	ScheduledDeparture time.Time
	ActualDeparture    *time.Time
	ScheduledArrival   *time.Time
	ActualArrival      *time.Time
	DelayMinutes       *int
	Platform           string

	movement *dataobjects.TrainMovement
}

// Kind implements FactRow
func (row *MovementRow) Kind() FactKind { return KindMovement }

// Resolve implements FactRow
func (row *MovementRow) Resolve(r *Resolver) error {
	train, err := r.Train(row.Vehicle)
	if err != nil {
		return err
	}
	departure, err := r.Station(row.Departure)
	if err != nil {
		return err
	}
	arrival, err := r.Station(row.Arrival)
	if err != nil {
		return err
	}
	departureDateID, err := r.Date(row.ScheduledDeparture)
	if err != nil {
		return err
	}

	movement := &dataobjects.TrainMovement{
		Train:              train,
		DepartureStation:   departure,
		ArrivalStation:     arrival,
		DepartureDateID:    departureDateID,
		ScheduledDeparture: row.ScheduledDeparture,
		Platform:           row.Platform,
	}
	if row.ScheduledArrival != nil {
		arrivalDateID, err := r.Date(*row.ScheduledArrival)
		if err != nil {
			return err
		}
		movement.ArrivalDateID = sql.NullInt64{Int64: arrivalDateID, Valid: true}
		movement.ScheduledArrival = pq.NullTime{Time: *row.ScheduledArrival, Valid: true}
	}
	if row.ActualDeparture != nil {
		movement.ActualDeparture = pq.NullTime{Time: *row.ActualDeparture, Valid: true}
	}
	if row.ActualArrival != nil {
		movement.ActualArrival = pq.NullTime{Time: *row.ActualArrival, Valid: true}
	}
	if row.DelayMinutes != nil {
		movement.DelayMinutes = sql.NullInt64{Int64: int64(*row.DelayMinutes), Valid: true}
	}
	row.movement = movement
	return nil
}

// Apply implements FactRow
func (row *MovementRow) Apply(tx StoreTx) (ApplyDelta, error) {
	inserted, err := tx.UpsertMovement(row.movement)
	if err != nil {
		return ApplyDelta{}, err
	}
	if inserted {
		return ApplyDelta{Inserted: 1}, nil
	}
	return ApplyDelta{Updated: 1}, nil
}

// CompositionSetRow is the pending unit set of one train over one segment.
// Applying it replaces whatever set was previously recorded for the segment.
type CompositionSetRow struct {
	Vehicle     irail.VehicleInfo
	Origin      irail.StationRecord
	Destination irail.StationRecord
	Units       []irail.CompositionUnitRecord

	train       *dataobjects.Train
	origin      *dataobjects.Station
	destination *dataobjects.Station
}

// Kind implements FactRow
func (row *CompositionSetRow) Kind() FactKind { return KindCompositionSet }

// Resolve implements FactRow
func (row *CompositionSetRow) Resolve(r *Resolver) error {
	var err error
	if row.train, err = r.Train(row.Vehicle); err != nil {
		return err
	}
	if row.origin, err = r.Station(row.Origin); err != nil {
		return err
	}
	if row.destination, err = r.Station(row.Destination); err != nil {
		return err
	}
	return nil
}

// Apply implements FactRow
func (row *CompositionSetRow) Apply(tx StoreTx) (ApplyDelta, error) {
	units := make([]*dataobjects.CompositionUnit, len(row.Units))
	for i, u := range row.Units {
		units[i] = &dataobjects.CompositionUnit{
			ParentType:                u.ParentType,
			SubType:                   u.SubType,
			Orientation:               u.Orientation,
			MaterialNumber:            u.MaterialNumber,
			TractionType:              u.TractionType,
			TractionPosition:          u.TractionPosition,
			SeatsFirstClass:           u.SeatsFirstClass,
			SeatsSecondClass:          u.SeatsSecondClass,
			StandingPlacesFirstClass:  u.StandingPlacesFirstClass,
			StandingPlacesSecondClass: u.StandingPlacesSecondClass,
			LengthInMeter:             u.LengthInMeter,
			HasToilets:                u.HasToilets,
			HasTables:                 u.HasTables,
			HasAirco:                  u.HasAirco,
			HasHeating:                u.HasHeating,
			HasBikeSection:            u.HasBikeSection,
			HasPrmSection:             u.HasPrmSection,
			CanPassToNextUnit:         u.CanPassToNextUnit,
		}
	}

	removed, err := tx.ReplaceCompositionUnits(row.train, row.origin, row.destination, units)
	if err != nil {
		return ApplyDelta{}, err
	}
	if removed > 0 {
		return ApplyDelta{Updated: len(units)}, nil
	}
	return ApplyDelta{Inserted: len(units)}, nil
}

// FeedbackRow is a pending occupancy observation. Feedback is append-only.
type FeedbackRow struct {
	ConnectionURL string
	StationURL    string
	VehicleURL    string
	Occupancy     string
	Time          time.Time
}

// Kind implements FactRow
func (row *FeedbackRow) Kind() FactKind { return KindFeedback }

// Resolve implements FactRow. Feedback references dimensions by URL only, so
// there is nothing to resolve.
func (row *FeedbackRow) Resolve(r *Resolver) error { return nil }

// Apply implements FactRow
func (row *FeedbackRow) Apply(tx StoreTx) (ApplyDelta, error) {
	err := tx.InsertFeedback(&dataobjects.Feedback{
		ConnectionURL: row.ConnectionURL,
		StationURL:    row.StationURL,
		VehicleURL:    row.VehicleURL,
		Occupancy:     row.Occupancy,
		Time:          row.Time,
	})
	if err != nil {
		return ApplyDelta{}, err
	}
	return ApplyDelta{Inserted: 1}, nil
}

// DisturbanceRow is a pending incident log entry, deduplicated on
// (Title, Time)
type DisturbanceRow struct {
	ExternalID  string
	Title       string
	Description string
	Type        string
	Link        string
	Attachment  string
	Time        time.Time
}

// Kind implements FactRow
func (row *DisturbanceRow) Kind() FactKind { return KindDisturbance }

// Resolve implements FactRow. Disturbances reference no dimensions.
func (row *DisturbanceRow) Resolve(r *Resolver) error { return nil }

// Apply implements FactRow
func (row *DisturbanceRow) Apply(tx StoreTx) (ApplyDelta, error) {
	inserted, err := tx.InsertDisturbance(&dataobjects.Disturbance{
		ExternalID:  row.ExternalID,
		Title:       row.Title,
		Description: row.Description,
		Type:        row.Type,
		Link:        row.Link,
		Attachment:  row.Attachment,
		Time:        row.Time,
	})
	if err != nil {
		return ApplyDelta{}, err
	}
	if inserted {
		return ApplyDelta{Inserted: 1}, nil
	}
	return ApplyDelta{Skipped: 1}, nil
}
