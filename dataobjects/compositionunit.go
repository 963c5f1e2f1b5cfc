package dataobjects

import (
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/gbl08ma/sqalx"
)

// CompositionUnit is a fact row describing one physical unit (carriage or
// motor unit) of a composed train over a segment. Units have no identity of
// their own beyond (train, segment, sequence); re-ingesting a composition
// replaces the whole unit set for that segment.
type CompositionUnit struct {
	UnitID                    int64
	Train                     *Train
	SegmentOrigin             *Station
	SegmentDestination        *Station
	Sequence                  int
	ParentType                string
	SubType                   string
	Orientation               string
	MaterialNumber            string
	TractionType              string
	TractionPosition          int
	SeatsFirstClass           int
	SeatsSecondClass          int
	StandingPlacesFirstClass  int
	StandingPlacesSecondClass int
	LengthInMeter             int
	HasToilets                bool
	HasTables                 bool
	HasAirco                  bool
	HasHeating                bool
	HasBikeSection            bool
	HasPrmSection             bool
	CanPassToNextUnit         bool
}

// GetCompositionUnitsForSegment returns the units registered for a train
// over a segment, in sequence order
func GetCompositionUnitsForSegment(node sqalx.Node, train *Train, origin, destination *Station) ([]*CompositionUnit, error) {
	units := []*CompositionUnit{}

	tx, err := node.Beginx()
	if err != nil {
		return units, err
	}
	defer tx.Commit() // read-only tx

	rows, err := sdb.Select("unit_id", "unit_sequence", "parent_type", "sub_type",
		"orientation", "material_number", "traction_type", "traction_position",
		"seats_first_class", "seats_second_class", "standing_places_first_class",
		"standing_places_second_class", "length_in_meter", "has_toilets",
		"has_tables", "has_airco", "has_heating", "has_bike_section",
		"has_prm_section", "can_pass_to_next_unit").
		From("train_composition_unit").
		Where(sq.Eq{
			"train_id":               train.TrainID,
			"segment_origin_id":      origin.StationID,
			"segment_destination_id": destination.StationID,
		}).
		OrderBy("unit_sequence ASC").
		RunWith(tx).Query()
	if err != nil {
		return units, fmt.Errorf("GetCompositionUnitsForSegment: %s", err)
	}
	defer rows.Close()

	for rows.Next() {
		unit := CompositionUnit{
			Train:              train,
			SegmentOrigin:      origin,
			SegmentDestination: destination,
		}
		var parentType, subType, orientation, materialNumber, tractionType sql.NullString
		err := rows.Scan(
			&unit.UnitID,
			&unit.Sequence,
			&parentType,
			&subType,
			&orientation,
			&materialNumber,
			&tractionType,
			&unit.TractionPosition,
			&unit.SeatsFirstClass,
			&unit.SeatsSecondClass,
			&unit.StandingPlacesFirstClass,
			&unit.StandingPlacesSecondClass,
			&unit.LengthInMeter,
			&unit.HasToilets,
			&unit.HasTables,
			&unit.HasAirco,
			&unit.HasHeating,
			&unit.HasBikeSection,
			&unit.HasPrmSection,
			&unit.CanPassToNextUnit)
		if err != nil {
			return units, fmt.Errorf("GetCompositionUnitsForSegment: %s", err)
		}
		unit.ParentType = parentType.String
		unit.SubType = subType.String
		unit.Orientation = orientation.String
		unit.MaterialNumber = materialNumber.String
		unit.TractionType = tractionType.String
		units = append(units, &unit)
	}
	if err := rows.Err(); err != nil {
		return units, fmt.Errorf("GetCompositionUnitsForSegment: %s", err)
	}
	return units, nil
}

// ReplaceCompositionUnits swaps the unit set registered for a train over a
// segment with the given one, in a single transaction. Returns how many rows
// the previous set had.
func ReplaceCompositionUnits(node sqalx.Node, train *Train, origin, destination *Station, units []*CompositionUnit) (int64, error) {
	if train == nil || origin == nil || destination == nil {
		return 0, errors.New("ReplaceCompositionUnits: unresolved dimension reference")
	}

	tx, err := node.Beginx()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	result, err := sdb.Delete("train_composition_unit").
		Where(sq.Eq{
			"train_id":               train.TrainID,
			"segment_origin_id":      origin.StationID,
			"segment_destination_id": destination.StationID,
		}).
		RunWith(tx).Exec()
	if err != nil {
		return 0, fmt.Errorf("ReplaceCompositionUnits: %s", err)
	}
	removed, _ := result.RowsAffected()

	for i, unit := range units {
		unit.Train = train
		unit.SegmentOrigin = origin
		unit.SegmentDestination = destination
		unit.Sequence = i

		err = sdb.Insert("train_composition_unit").
			Columns("train_id", "segment_origin_id", "segment_destination_id",
				"unit_sequence", "parent_type", "sub_type", "orientation",
				"material_number", "traction_type", "traction_position",
				"seats_first_class", "seats_second_class",
				"standing_places_first_class", "standing_places_second_class",
				"length_in_meter", "has_toilets", "has_tables", "has_airco",
				"has_heating", "has_bike_section", "has_prm_section",
				"can_pass_to_next_unit").
			Values(train.TrainID, origin.StationID, destination.StationID,
				unit.Sequence,
				sql.NullString{String: unit.ParentType, Valid: unit.ParentType != ""},
				sql.NullString{String: unit.SubType, Valid: unit.SubType != ""},
				sql.NullString{String: unit.Orientation, Valid: unit.Orientation != ""},
				sql.NullString{String: unit.MaterialNumber, Valid: unit.MaterialNumber != ""},
				sql.NullString{String: unit.TractionType, Valid: unit.TractionType != ""},
				unit.TractionPosition, unit.SeatsFirstClass, unit.SeatsSecondClass,
				unit.StandingPlacesFirstClass, unit.StandingPlacesSecondClass,
				unit.LengthInMeter, unit.HasToilets, unit.HasTables, unit.HasAirco,
				unit.HasHeating, unit.HasBikeSection, unit.HasPrmSection,
				unit.CanPassToNextUnit).
			Suffix("RETURNING unit_id").
			RunWith(tx).QueryRow().Scan(&unit.UnitID)
		if err != nil {
			return 0, fmt.Errorf("ReplaceCompositionUnits: %s", err)
		}
	}
	return removed, tx.Commit()
}
