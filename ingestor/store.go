package ingestor

import (
	"github.com/gbl08ma/sqalx"

	"github.com/traindw/ingestor/dataobjects"
)

// Store is the warehouse the pipeline writes to. It is injected into the
// Resolver and the Executor; nothing in this package holds a global
// connection.
type Store interface {
	Begin() (StoreTx, error)
	ListTrains() ([]*dataobjects.Train, error)
}

// StoreTx is a transaction against the store. Dimension upserts write the
// assigned surrogate key back into the passed object.
type StoreTx interface {
	UpsertTrain(train *dataobjects.Train) error
	UpsertStation(station *dataobjects.Station) error
	EnsureDate(d *dataobjects.DateDimension) error
	UpsertMovement(movement *dataobjects.TrainMovement) (inserted bool, err error)
	ReplaceCompositionUnits(train *dataobjects.Train, origin, destination *dataobjects.Station,
		units []*dataobjects.CompositionUnit) (removed int64, err error)
	InsertFeedback(feedback *dataobjects.Feedback) error
	InsertDisturbance(disturbance *dataobjects.Disturbance) (inserted bool, err error)
	Commit() error
	Rollback() error
}

// SQLStore backs Store with PostgreSQL through a sqalx node
type SQLStore struct {
	node sqalx.Node
}

// NewSQLStore returns a SQLStore on the given node
func NewSQLStore(node sqalx.Node) *SQLStore {
	return &SQLStore{node: node}
}

// Begin starts a transaction
func (s *SQLStore) Begin() (StoreTx, error) {
	tx, err := s.node.Beginx()
	if err != nil {
		return nil, storeError("begin", err)
	}
	return &sqlStoreTx{tx: tx}, nil
}

// ListTrains returns all trains registered in the Train dimension
func (s *SQLStore) ListTrains() ([]*dataobjects.Train, error) {
	trains, err := dataobjects.GetTrains(s.node)
	if err != nil {
		return nil, storeError("list trains", err)
	}
	return trains, nil
}

type sqlStoreTx struct {
	tx sqalx.Node
}

func (t *sqlStoreTx) UpsertTrain(train *dataobjects.Train) error {
	return storeError("upsert train", train.Upsert(t.tx))
}

func (t *sqlStoreTx) UpsertStation(station *dataobjects.Station) error {
	return storeError("upsert station", station.Upsert(t.tx))
}

func (t *sqlStoreTx) EnsureDate(d *dataobjects.DateDimension) error {
	return storeError("ensure date", d.Ensure(t.tx))
}

func (t *sqlStoreTx) UpsertMovement(movement *dataobjects.TrainMovement) (bool, error) {
	inserted, err := movement.Upsert(t.tx)
	return inserted, storeError("upsert movement", err)
}

func (t *sqlStoreTx) ReplaceCompositionUnits(train *dataobjects.Train, origin, destination *dataobjects.Station,
	units []*dataobjects.CompositionUnit) (int64, error) {
	removed, err := dataobjects.ReplaceCompositionUnits(t.tx, train, origin, destination, units)
	return removed, storeError("replace composition units", err)
}

func (t *sqlStoreTx) InsertFeedback(feedback *dataobjects.Feedback) error {
	return storeError("insert feedback", feedback.Insert(t.tx))
}

func (t *sqlStoreTx) InsertDisturbance(disturbance *dataobjects.Disturbance) (bool, error) {
	inserted, err := disturbance.Insert(t.tx)
	return inserted, storeError("insert disturbance", err)
}

func (t *sqlStoreTx) Commit() error {
	return storeError("commit", t.tx.Commit())
}

func (t *sqlStoreTx) Rollback() error {
	return t.tx.Rollback()
}
