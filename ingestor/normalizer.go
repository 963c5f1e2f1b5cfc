package ingestor

import (
	"time"

	"github.com/traindw/ingestor/irail"
)

// Normalizer turns raw upstream records into pending fact rows. It validates
// each record individually and computes derived fields; it touches no shared
// state, so normalization can run on any worker.
type Normalizer struct {
	// Now stamps append-only observations; defaults to time.Now
	Now func() time.Time
}

func (n *Normalizer) now() time.Time {
	if n.Now != nil {
		return n.Now()
	}
	return time.Now()
}

// NormalizeMovement turns one movement record into a pending movement fact
// plus, when the record carries a crowding report, a feedback fact
func (n *Normalizer) NormalizeMovement(record irail.MovementRecord, category Category) ([]FactRow, error) {
	if record.DepartureStation.ID == "" {
		return nil, &ValidationError{Category: category, Field: "DepartureStationID", Reason: "missing"}
	}
	if record.ArrivalStation.ID == "" {
		return nil, &ValidationError{Category: category, Field: "ArrivalStationID", Reason: "missing"}
	}
	if record.ScheduledDeparture.IsZero() {
		return nil, &ValidationError{Category: category, Field: "ScheduledDeparture", Reason: "missing"}
	}
	vehicle, err := irail.ParseVehicleName(record.VehicleName)
	if err != nil {
		return nil, &ValidationError{Category: category, Field: "Vehicle", Reason: err.Error()}
	}

	row := &MovementRow{
		Vehicle:            vehicle,
		Departure:          record.DepartureStation,
		Arrival:            record.ArrivalStation,
		ScheduledDeparture: record.ScheduledDeparture,
		ScheduledArrival:   record.ScheduledArrival,
		Platform:           record.Platform,
	}

	// a canceled departure never happens, so it has no actual times and no
	// delay; otherwise the API reports the delay in seconds and the actual
	// time is derived from it
	if !record.Canceled {
		actual := record.ScheduledDeparture.Add(time.Duration(record.DelaySeconds) * time.Second)
		row.ActualDeparture = &actual
		minutes := record.DelaySeconds / 60
		row.DelayMinutes = &minutes

		if record.ScheduledArrival != nil {
			actualArrival := record.ScheduledArrival.Add(time.Duration(record.ArrivalDelaySeconds) * time.Second)
			row.ActualArrival = &actualArrival
		}
	}

	rows := []FactRow{row}
	if record.OccupancyTerm != "" && record.ConnectionURL != "" {
		rows = append(rows, &FeedbackRow{
			ConnectionURL: record.ConnectionURL,
			StationURL:    record.DepartureStation.URI,
			VehicleURL:    record.VehicleURI,
			Occupancy:     record.OccupancyTerm,
			Time:          n.now(),
		})
	}
	return rows, nil
}

// NormalizeDisturbance turns one disturbance record into a pending fact
func (n *Normalizer) NormalizeDisturbance(record irail.DisturbanceRecord) (FactRow, error) {
	if record.Title == "" {
		return nil, &ValidationError{Category: CategoryDisturbances, Field: "Title", Reason: "missing"}
	}
	if record.Time.IsZero() {
		return nil, &ValidationError{Category: CategoryDisturbances, Field: "Timestamp", Reason: "missing"}
	}
	return &DisturbanceRow{
		ExternalID:  record.ID,
		Title:       record.Title,
		Description: record.Description,
		Type:        record.Type,
		Link:        record.Link,
		Attachment:  record.Attachment,
		Time:        record.Time,
	}, nil
}

// NormalizeComposition expands a composition record into one pending unit-set
// fact per segment. Malformed segments are rejected individually.
func (n *Normalizer) NormalizeComposition(record irail.CompositionRecord) ([]FactRow, []error) {
	vehicle, err := irail.ParseVehicleName(record.VehicleName)
	if err != nil {
		return nil, []error{&ValidationError{Category: CategoryComposition, Field: "Vehicle", Reason: err.Error()}}
	}

	var rows []FactRow
	var errs []error
	for _, segment := range record.Segments {
		if segment.Origin.ID == "" || segment.Destination.ID == "" {
			errs = append(errs, &ValidationError{Category: CategoryComposition, Field: "Segment", Reason: "missing endpoint station identifier"})
			continue
		}
		if len(segment.Units) == 0 {
			errs = append(errs, &ValidationError{Category: CategoryComposition, Field: "Units", Reason: "empty unit list"})
			continue
		}
		rows = append(rows, &CompositionSetRow{
			Vehicle:     vehicle,
			Origin:      segment.Origin,
			Destination: segment.Destination,
			Units:       segment.Units,
		})
	}
	return rows, errs
}
