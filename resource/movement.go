package resource

import (
	"time"

	"github.com/gbl08ma/sqalx"
	"github.com/yarf-framework/yarf"

	"github.com/traindw/ingestor/dataobjects"
)

// Movement composites resource
type Movement struct {
	resource
}

type apiMovement struct {
	TrainID            string     `msgpack:"train" json:"train"`
	DepartureStationID string     `msgpack:"departureStation" json:"departureStation"`
	ArrivalStationID   string     `msgpack:"arrivalStation" json:"arrivalStation"`
	ScheduledDeparture time.Time  `msgpack:"scheduledDeparture" json:"scheduledDeparture"`
	ActualDeparture    *time.Time `msgpack:"actualDeparture" json:"actualDeparture"`
	ScheduledArrival   *time.Time `msgpack:"scheduledArrival" json:"scheduledArrival"`
	ActualArrival      *time.Time `msgpack:"actualArrival" json:"actualArrival"`
	DelayMinutes       *int64     `msgpack:"delayMinutes" json:"delayMinutes"`
	Platform           string     `msgpack:"platform" json:"platform"`
}

// WithNode associates a sqalx Node with this resource
func (r *Movement) WithNode(node sqalx.Node) *Movement {
	r.node = node
	return r
}

// Get serves HTTP GET requests on this resource
func (r *Movement) Get(c *yarf.Context) error {
	tx, err := r.Beginx()
	if err != nil {
		return err
	}
	defer tx.Commit() // read-only tx

	var movements []*dataobjects.TrainMovement
	if trainID := c.Param("id"); trainID != "" {
		train, err := dataobjects.GetTrain(tx, trainID)
		if err != nil {
			return err
		}
		movements, err = dataobjects.GetTrainMovementsForTrain(tx, train)
		if err != nil {
			return err
		}
	} else {
		movements, err = dataobjects.GetTrainMovements(tx)
		if err != nil {
			return err
		}
	}

	apiMovements := make([]apiMovement, len(movements))
	for i, movement := range movements {
		m := apiMovement{
			TrainID:            movement.Train.ID,
			DepartureStationID: movement.DepartureStation.ID,
			ArrivalStationID:   movement.ArrivalStation.ID,
			ScheduledDeparture: movement.ScheduledDeparture,
			Platform:           movement.Platform,
		}
		if movement.ActualDeparture.Valid {
			t := movement.ActualDeparture.Time
			m.ActualDeparture = &t
		}
		if movement.ScheduledArrival.Valid {
			t := movement.ScheduledArrival.Time
			m.ScheduledArrival = &t
		}
		if movement.ActualArrival.Valid {
			t := movement.ActualArrival.Time
			m.ActualArrival = &t
		}
		if movement.DelayMinutes.Valid {
			d := movement.DelayMinutes.Int64
			m.DelayMinutes = &d
		}
		apiMovements[i] = m
	}

	RenderData(c, apiMovements)
	return nil
}
