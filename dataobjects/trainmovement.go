package dataobjects

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/gbl08ma/sqalx"
	"github.com/lib/pq"
)

// TrainMovement is a fact row recording one observed departure (and, when
// known, its arrival). A movement is uniquely identified by
// (Train, DepartureStation, ScheduledDeparture): re-ingesting the same
// movement updates actual times and delay instead of duplicating the row.
type TrainMovement struct {
	MovementID         int64
	Train              *Train
	DepartureStation   *Station
	ArrivalStation     *Station
	DepartureDateID    int64
	ArrivalDateID      sql.NullInt64
	ScheduledDeparture time.Time
	ActualDeparture    pq.NullTime
	ScheduledArrival   pq.NullTime
	ActualArrival      pq.NullTime
	DelayMinutes       sql.NullInt64
	Platform           string
}

// GetTrainMovements returns a slice with all registered movements
func GetTrainMovements(node sqalx.Node) ([]*TrainMovement, error) {
	return getTrainMovementsWithSelect(node, sdb.Select())
}

// GetTrainMovementsForTrain returns the movements recorded for a train
func GetTrainMovementsForTrain(node sqalx.Node, train *Train) ([]*TrainMovement, error) {
	s := sdb.Select().
		Where(sq.Eq{"train_id": train.TrainID}).
		OrderBy("scheduled_departure ASC")
	return getTrainMovementsWithSelect(node, s)
}

func getTrainMovementsWithSelect(node sqalx.Node, sbuilder sq.SelectBuilder) ([]*TrainMovement, error) {
	movements := []*TrainMovement{}

	tx, err := node.Beginx()
	if err != nil {
		return movements, err
	}
	defer tx.Commit() // read-only tx

	rows, err := sbuilder.Columns("movement_id", "train_id", "departure_station_id",
		"arrival_station_id", "departure_date_id", "arrival_date_id",
		"scheduled_departure", "actual_departure", "scheduled_arrival",
		"actual_arrival", "delay_minutes", "platform").
		From("train_movement").
		RunWith(tx).Query()
	if err != nil {
		return movements, fmt.Errorf("getTrainMovementsWithSelect: %s", err)
	}

	trainIDs := []int64{}
	depIDs := []int64{}
	arrIDs := []sql.NullInt64{}
	for rows.Next() {
		var movement TrainMovement
		var trainID, depStationID int64
		var arrStationID sql.NullInt64
		var platform sql.NullString
		err := rows.Scan(
			&movement.MovementID,
			&trainID,
			&depStationID,
			&arrStationID,
			&movement.DepartureDateID,
			&movement.ArrivalDateID,
			&movement.ScheduledDeparture,
			&movement.ActualDeparture,
			&movement.ScheduledArrival,
			&movement.ActualArrival,
			&movement.DelayMinutes,
			&platform)
		if err != nil {
			rows.Close()
			return movements, fmt.Errorf("getTrainMovementsWithSelect: %s", err)
		}
		movement.Platform = platform.String
		movements = append(movements, &movement)
		trainIDs = append(trainIDs, trainID)
		depIDs = append(depIDs, depStationID)
		arrIDs = append(arrIDs, arrStationID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return movements, fmt.Errorf("getTrainMovementsWithSelect: %s", err)
	}
	rows.Close()

	for i := range movements {
		movements[i].Train, err = GetTrainByKey(tx, trainIDs[i])
		if err != nil {
			return movements, fmt.Errorf("getTrainMovementsWithSelect: %s", err)
		}
		movements[i].DepartureStation, err = GetStationByKey(tx, depIDs[i])
		if err != nil {
			return movements, fmt.Errorf("getTrainMovementsWithSelect: %s", err)
		}
		if arrIDs[i].Valid {
			movements[i].ArrivalStation, err = GetStationByKey(tx, arrIDs[i].Int64)
			if err != nil {
				return movements, fmt.Errorf("getTrainMovementsWithSelect: %s", err)
			}
		}
	}
	return movements, nil
}

// CountTrainMovements returns the total number of movement fact rows
func CountTrainMovements(node sqalx.Node) (int64, error) {
	tx, err := node.Beginx()
	if err != nil {
		return 0, err
	}
	defer tx.Commit() // read-only tx

	var count int64
	err = sdb.Select("COUNT(*)").
		From("train_movement").
		RunWith(tx).QueryRow().Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("CountTrainMovements: %s", err)
	}
	return count, nil
}

// Upsert adds the movement, or updates the actual times, delay and platform
// of the existing row with the same (train, departure station, scheduled
// departure). Returns whether a new row was created.
func (movement *TrainMovement) Upsert(node sqalx.Node) (bool, error) {
	if movement.Train == nil || movement.DepartureStation == nil {
		return false, errors.New("AddTrainMovement: unresolved dimension reference")
	}

	tx, err := node.Beginx()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var arrStationID sql.NullInt64
	if movement.ArrivalStation != nil {
		arrStationID = sql.NullInt64{Int64: movement.ArrivalStation.StationID, Valid: true}
	}
	platform := sql.NullString{String: movement.Platform, Valid: movement.Platform != ""}

	var inserted bool
	// xmax = 0 holds only for rows created by this statement, which tells
	// apart an insert from a conflict-update
	err = sdb.Insert("train_movement").
		Columns("train_id", "departure_station_id", "arrival_station_id",
			"departure_date_id", "arrival_date_id", "scheduled_departure",
			"actual_departure", "scheduled_arrival", "actual_arrival",
			"delay_minutes", "platform").
		Values(movement.Train.TrainID, movement.DepartureStation.StationID, arrStationID,
			movement.DepartureDateID, movement.ArrivalDateID, movement.ScheduledDeparture,
			movement.ActualDeparture, movement.ScheduledArrival, movement.ActualArrival,
			movement.DelayMinutes, platform).
		Suffix("ON CONFLICT (train_id, departure_station_id, scheduled_departure) "+
			"DO UPDATE SET arrival_station_id = ?, arrival_date_id = ?, actual_departure = ?, "+
			"scheduled_arrival = ?, actual_arrival = ?, delay_minutes = ?, platform = ? "+
			"RETURNING movement_id, (xmax = 0)",
			arrStationID, movement.ArrivalDateID, movement.ActualDeparture,
			movement.ScheduledArrival, movement.ActualArrival, movement.DelayMinutes, platform).
		RunWith(tx).QueryRow().Scan(&movement.MovementID, &inserted)
	if err != nil {
		return false, errors.New("AddTrainMovement: " + err.Error())
	}
	return inserted, tx.Commit()
}
