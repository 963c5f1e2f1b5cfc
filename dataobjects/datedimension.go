package dataobjects

import (
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/gbl08ma/sqalx"
	"github.com/rickb777/date"
)

// DateDimension is a row of the date dimension. One row exists per distinct
// instant (truncated to the second) referenced by any fact. The key is
// deterministic, so resolution never needs a round trip to learn it.
type DateDimension struct {
	DateID   int64
	FullDate date.Date
	Year     int
	Month    int
	Day      int
	Hour     int
	Minute   int
	Second   int
}

// DateIDFor returns the deterministic key (YYYYMMDDHHMMSS) for an instant.
func DateIDFor(t time.Time) int64 {
	return int64(t.Year())*10000000000 +
		int64(t.Month())*100000000 +
		int64(t.Day())*1000000 +
		int64(t.Hour())*10000 +
		int64(t.Minute())*100 +
		int64(t.Second())
}

// NewDateDimension builds the dimension row for an instant
func NewDateDimension(t time.Time) *DateDimension {
	return &DateDimension{
		DateID:   DateIDFor(t),
		FullDate: date.NewAt(t),
		Year:     t.Year(),
		Month:    int(t.Month()),
		Day:      t.Day(),
		Hour:     t.Hour(),
		Minute:   t.Minute(),
		Second:   t.Second(),
	}
}

// GetDateDimension returns the DateDimension with the given key
func GetDateDimension(node sqalx.Node, dateID int64) (*DateDimension, error) {
	s := sdb.Select().
		Where(sq.Eq{"date_id": dateID})
	dates, err := getDateDimensionsWithSelect(node, s)
	if err != nil {
		return nil, err
	}
	if len(dates) == 0 {
		return nil, errors.New("DateDimension not found")
	}
	return dates[0], nil
}

func getDateDimensionsWithSelect(node sqalx.Node, sbuilder sq.SelectBuilder) ([]*DateDimension, error) {
	dates := []*DateDimension{}

	tx, err := node.Beginx()
	if err != nil {
		return dates, err
	}
	defer tx.Commit() // read-only tx

	rows, err := sbuilder.Columns("date_id", "full_date", "year", "month", "day",
		"hour", "minute", "second").
		From("date_dimension").
		RunWith(tx).Query()
	if err != nil {
		return dates, fmt.Errorf("getDateDimensionsWithSelect: %s", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d DateDimension
		err := rows.Scan(
			&d.DateID,
			&d.FullDate,
			&d.Year,
			&d.Month,
			&d.Day,
			&d.Hour,
			&d.Minute,
			&d.Second)
		if err != nil {
			return dates, fmt.Errorf("getDateDimensionsWithSelect: %s", err)
		}
		dates = append(dates, &d)
	}
	if err := rows.Err(); err != nil {
		return dates, fmt.Errorf("getDateDimensionsWithSelect: %s", err)
	}
	return dates, nil
}

// Ensure adds the date row if missing. Existing rows are never updated; the
// calendar decomposition of an instant cannot drift.
func (d *DateDimension) Ensure(node sqalx.Node) error {
	tx, err := node.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = sdb.Insert("date_dimension").
		Columns("date_id", "full_date", "year", "month", "day", "hour", "minute", "second").
		Values(d.DateID, d.FullDate, d.Year, d.Month, d.Day, d.Hour, d.Minute, d.Second).
		Suffix("ON CONFLICT (date_id) DO NOTHING").
		RunWith(tx).Exec()
	if err != nil {
		return errors.New("AddDateDimension: " + err.Error())
	}
	return tx.Commit()
}
