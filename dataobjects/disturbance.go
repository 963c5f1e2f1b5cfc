package dataobjects

import (
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/gbl08ma/sqalx"
)

// Disturbance is an append-only operational incident log entry. Repeated
// polls return the same incidents over and over; (Title, Time) deduplicates
// them so an incident is logged once.
type Disturbance struct {
	DisturbanceID int64
	ExternalID    string
	Title         string
	Description   string
	Type          string
	Time          time.Time
	Link          string
	Attachment    string
}

// GetDisturbances returns a slice with all registered disturbances
func GetDisturbances(node sqalx.Node) ([]*Disturbance, error) {
	s := sdb.Select().
		OrderBy("timestamp ASC")
	return getDisturbancesWithSelect(node, s)
}

// GetDisturbancesBetween returns the disturbances reported in the specified interval
func GetDisturbancesBetween(node sqalx.Node, start time.Time, end time.Time) ([]*Disturbance, error) {
	s := sdb.Select().
		Where(sq.Expr("timestamp BETWEEN ? AND ?", start, end)).
		OrderBy("timestamp ASC")
	return getDisturbancesWithSelect(node, s)
}

func getDisturbancesWithSelect(node sqalx.Node, sbuilder sq.SelectBuilder) ([]*Disturbance, error) {
	disturbances := []*Disturbance{}

	tx, err := node.Beginx()
	if err != nil {
		return disturbances, err
	}
	defer tx.Commit() // read-only tx

	rows, err := sbuilder.Columns("disturbance_id", "external_id", "title",
		"description", "type", "timestamp", "link", "attachment").
		From("disturbance").
		RunWith(tx).Query()
	if err != nil {
		return disturbances, fmt.Errorf("getDisturbancesWithSelect: %s", err)
	}
	defer rows.Close()

	for rows.Next() {
		var disturbance Disturbance
		var externalID, description, dtype, link, attachment sql.NullString
		err := rows.Scan(
			&disturbance.DisturbanceID,
			&externalID,
			&disturbance.Title,
			&description,
			&dtype,
			&disturbance.Time,
			&link,
			&attachment)
		if err != nil {
			return disturbances, fmt.Errorf("getDisturbancesWithSelect: %s", err)
		}
		disturbance.ExternalID = externalID.String
		disturbance.Description = description.String
		disturbance.Type = dtype.String
		disturbance.Link = link.String
		disturbance.Attachment = attachment.String
		disturbances = append(disturbances, &disturbance)
	}
	if err := rows.Err(); err != nil {
		return disturbances, fmt.Errorf("getDisturbancesWithSelect: %s", err)
	}
	return disturbances, nil
}

// Insert adds the disturbance unless one with the same title and timestamp
// was already logged. Returns whether a new row was created.
func (disturbance *Disturbance) Insert(node sqalx.Node) (bool, error) {
	tx, err := node.Beginx()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	err = sdb.Insert("disturbance").
		Columns("external_id", "title", "description", "type", "timestamp", "link", "attachment").
		Values(sql.NullString{String: disturbance.ExternalID, Valid: disturbance.ExternalID != ""},
			disturbance.Title,
			sql.NullString{String: disturbance.Description, Valid: disturbance.Description != ""},
			sql.NullString{String: disturbance.Type, Valid: disturbance.Type != ""},
			disturbance.Time,
			sql.NullString{String: disturbance.Link, Valid: disturbance.Link != ""},
			sql.NullString{String: disturbance.Attachment, Valid: disturbance.Attachment != ""}).
		Suffix("ON CONFLICT (title, timestamp) DO NOTHING RETURNING disturbance_id").
		RunWith(tx).QueryRow().Scan(&disturbance.DisturbanceID)
	if err == sql.ErrNoRows {
		// conflict, incident already logged
		return false, tx.Commit()
	}
	if err != nil {
		return false, fmt.Errorf("AddDisturbance: %s", err)
	}
	return true, tx.Commit()
}
