package dataobjects

import (
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/gbl08ma/sqalx"
)

// Train is a row of the Train dimension. ID is the natural key (the iRail
// vehicle shortname, e.g. "IC3033"); TrainID is the surrogate key assigned
// by the store on first sighting.
type Train struct {
	TrainID  int64
	ID       string
	Number   string
	Type     string
	Operator string
}

// GetTrains returns a slice with all registered trains
func GetTrains(node sqalx.Node) ([]*Train, error) {
	return getTrainsWithSelect(node, sdb.Select())
}

func getTrainsWithSelect(node sqalx.Node, sbuilder sq.SelectBuilder) ([]*Train, error) {
	trains := []*Train{}

	tx, err := node.Beginx()
	if err != nil {
		return trains, err
	}
	defer tx.Commit() // read-only tx

	rows, err := sbuilder.Columns("train_id", "id", "train_number", "train_type", "operator").
		From("train").
		RunWith(tx).Query()
	if err != nil {
		return trains, fmt.Errorf("getTrainsWithSelect: %s", err)
	}
	defer rows.Close()

	for rows.Next() {
		var train Train
		var trainType sql.NullString
		err := rows.Scan(
			&train.TrainID,
			&train.ID,
			&train.Number,
			&trainType,
			&train.Operator)
		if err != nil {
			return trains, fmt.Errorf("getTrainsWithSelect: %s", err)
		}
		train.Type = trainType.String
		trains = append(trains, &train)
	}
	if err := rows.Err(); err != nil {
		return trains, fmt.Errorf("getTrainsWithSelect: %s", err)
	}
	return trains, nil
}

// GetTrain returns the Train with the given natural key
func GetTrain(node sqalx.Node, id string) (*Train, error) {
	s := sdb.Select().
		Where(sq.Eq{"id": id})
	trains, err := getTrainsWithSelect(node, s)
	if err != nil {
		return nil, err
	}
	if len(trains) == 0 {
		return nil, errors.New("Train not found")
	}
	return trains[0], nil
}

// GetTrainByKey returns the Train with the given surrogate key
func GetTrainByKey(node sqalx.Node, trainID int64) (*Train, error) {
	s := sdb.Select().
		Where(sq.Eq{"train_id": trainID})
	trains, err := getTrainsWithSelect(node, s)
	if err != nil {
		return nil, err
	}
	if len(trains) == 0 {
		return nil, errors.New("Train not found")
	}
	return trains[0], nil
}

// Upsert adds the train if its natural key was never seen before, or updates
// the row's attributes otherwise. Either way the surrogate key is written
// back to train.TrainID. The conflict-aware insert makes concurrent upserts
// of the same natural key yield a single row.
func (train *Train) Upsert(node sqalx.Node) error {
	tx, err := node.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	trainType := sql.NullString{String: train.Type, Valid: train.Type != ""}

	err = sdb.Insert("train").
		Columns("id", "train_number", "train_type", "operator").
		Values(train.ID, train.Number, trainType, train.Operator).
		Suffix("ON CONFLICT (id) DO UPDATE SET train_number = ?, train_type = ?, operator = ? RETURNING train_id",
			train.Number, trainType, train.Operator).
		RunWith(tx).QueryRow().Scan(&train.TrainID)
	if err != nil {
		return errors.New("AddTrain: " + err.Error())
	}
	return tx.Commit()
}

// Delete deletes the train
func (train *Train) Delete(node sqalx.Node) error {
	tx, err := node.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = sdb.Delete("train").
		Where(sq.Eq{"train_id": train.TrainID}).RunWith(tx).Exec()
	if err != nil {
		return fmt.Errorf("RemoveTrain: %s", err)
	}
	return tx.Commit()
}
