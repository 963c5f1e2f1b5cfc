package dataobjects

import (
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/gbl08ma/sqalx"
)

// Station is a row of the Station dimension. ID is the natural key (the
// iRail station identifier, e.g. "BE.NMBS.008821006").
type Station struct {
	StationID    int64
	ID           string
	Name         string
	StandardName string
	Latitude     sql.NullFloat64
	Longitude    sql.NullFloat64
	IRIURL       string
}

// GetStations returns a slice with all registered stations
func GetStations(node sqalx.Node) ([]*Station, error) {
	return getStationsWithSelect(node, sdb.Select())
}

func getStationsWithSelect(node sqalx.Node, sbuilder sq.SelectBuilder) ([]*Station, error) {
	stations := []*Station{}

	tx, err := node.Beginx()
	if err != nil {
		return stations, err
	}
	defer tx.Commit() // read-only tx

	rows, err := sbuilder.Columns("station_id", "id", "name", "standard_name",
		"latitude", "longitude", "iri_url").
		From("station").
		RunWith(tx).Query()
	if err != nil {
		return stations, fmt.Errorf("getStationsWithSelect: %s", err)
	}
	defer rows.Close()

	for rows.Next() {
		var station Station
		var standardName, iriURL sql.NullString
		err := rows.Scan(
			&station.StationID,
			&station.ID,
			&station.Name,
			&standardName,
			&station.Latitude,
			&station.Longitude,
			&iriURL)
		if err != nil {
			return stations, fmt.Errorf("getStationsWithSelect: %s", err)
		}
		station.StandardName = standardName.String
		station.IRIURL = iriURL.String
		stations = append(stations, &station)
	}
	if err := rows.Err(); err != nil {
		return stations, fmt.Errorf("getStationsWithSelect: %s", err)
	}
	return stations, nil
}

// GetStation returns the Station with the given natural key
func GetStation(node sqalx.Node, id string) (*Station, error) {
	s := sdb.Select().
		Where(sq.Eq{"id": id})
	stations, err := getStationsWithSelect(node, s)
	if err != nil {
		return nil, err
	}
	if len(stations) == 0 {
		return nil, errors.New("Station not found")
	}
	return stations[0], nil
}

// GetStationByKey returns the Station with the given surrogate key
func GetStationByKey(node sqalx.Node, stationID int64) (*Station, error) {
	s := sdb.Select().
		Where(sq.Eq{"station_id": stationID})
	stations, err := getStationsWithSelect(node, s)
	if err != nil {
		return nil, err
	}
	if len(stations) == 0 {
		return nil, errors.New("Station not found")
	}
	return stations[0], nil
}

// Upsert adds the station if its natural key was never seen before, or
// refreshes name and coordinates otherwise. The surrogate key is written back
// to station.StationID and never changes once assigned.
func (station *Station) Upsert(node sqalx.Node) error {
	tx, err := node.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	standardName := sql.NullString{String: station.StandardName, Valid: station.StandardName != ""}
	iriURL := sql.NullString{String: station.IRIURL, Valid: station.IRIURL != ""}

	err = sdb.Insert("station").
		Columns("id", "name", "standard_name", "latitude", "longitude", "iri_url").
		Values(station.ID, station.Name, standardName, station.Latitude, station.Longitude, iriURL).
		Suffix("ON CONFLICT (id) DO UPDATE SET name = ?, standard_name = ?, latitude = ?, longitude = ?, iri_url = ? RETURNING station_id",
			station.Name, standardName, station.Latitude, station.Longitude, iriURL).
		RunWith(tx).QueryRow().Scan(&station.StationID)
	if err != nil {
		return errors.New("AddStation: " + err.Error())
	}
	return tx.Commit()
}

// Delete deletes the station
func (station *Station) Delete(node sqalx.Node) error {
	tx, err := node.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = sdb.Delete("station").
		Where(sq.Eq{"station_id": station.StationID}).RunWith(tx).Exec()
	if err != nil {
		return fmt.Errorf("RemoveStation: %s", err)
	}
	return tx.Commit()
}
