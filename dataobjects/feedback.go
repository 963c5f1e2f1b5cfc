package dataobjects

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/gbl08ma/sqalx"
)

// Feedback is an append-only crowding observation reported for a connection.
// Every fetch is a new observation; there is no deduplication.
type Feedback struct {
	FeedbackID    int64
	ConnectionURL string
	StationURL    string
	VehicleURL    string
	Occupancy     string
	Time          time.Time
}

// GetFeedbacks returns a slice with all registered feedback
func GetFeedbacks(node sqalx.Node) ([]*Feedback, error) {
	return getFeedbacksWithSelect(node, sdb.Select())
}

func getFeedbacksWithSelect(node sqalx.Node, sbuilder sq.SelectBuilder) ([]*Feedback, error) {
	feedbacks := []*Feedback{}

	tx, err := node.Beginx()
	if err != nil {
		return feedbacks, err
	}
	defer tx.Commit() // read-only tx

	rows, err := sbuilder.Columns("feedback_id", "connection_url", "station_url",
		"vehicle_url", "occupancy", "feedback_time").
		From("train_feedback").
		RunWith(tx).Query()
	if err != nil {
		return feedbacks, fmt.Errorf("getFeedbacksWithSelect: %s", err)
	}
	defer rows.Close()

	for rows.Next() {
		var feedback Feedback
		var stationURL, vehicleURL sql.NullString
		err := rows.Scan(
			&feedback.FeedbackID,
			&feedback.ConnectionURL,
			&stationURL,
			&vehicleURL,
			&feedback.Occupancy,
			&feedback.Time)
		if err != nil {
			return feedbacks, fmt.Errorf("getFeedbacksWithSelect: %s", err)
		}
		feedback.StationURL = stationURL.String
		feedback.VehicleURL = vehicleURL.String
		feedbacks = append(feedbacks, &feedback)
	}
	if err := rows.Err(); err != nil {
		return feedbacks, fmt.Errorf("getFeedbacksWithSelect: %s", err)
	}
	return feedbacks, nil
}

// Insert adds the feedback observation
func (feedback *Feedback) Insert(node sqalx.Node) error {
	tx, err := node.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = sdb.Insert("train_feedback").
		Columns("connection_url", "station_url", "vehicle_url", "occupancy", "feedback_time").
		Values(feedback.ConnectionURL,
			sql.NullString{String: feedback.StationURL, Valid: feedback.StationURL != ""},
			sql.NullString{String: feedback.VehicleURL, Valid: feedback.VehicleURL != ""},
			feedback.Occupancy, feedback.Time).
		Suffix("RETURNING feedback_id").
		RunWith(tx).QueryRow().Scan(&feedback.FeedbackID)
	if err != nil {
		return errors.New("AddFeedback: " + err.Error())
	}
	return tx.Commit()
}
