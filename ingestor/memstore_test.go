package ingestor

import (
	"fmt"
	"sync"
	"time"

	"github.com/traindw/ingestor/dataobjects"
)

// memStore is an in-memory Store with the same upsert and dedup semantics
// as the SQL one. Dimension upserts take effect immediately, the way the
// Resolver commits them; fact writes stage until Commit so a rolled back
// batch leaves no trace. Errors can be injected per operation to simulate
// store failures.
type memStore struct {
	mu sync.Mutex

	nextTrainID    int64
	nextStationID  int64
	nextMovementID int64

	trains       map[string]*dataobjects.Train
	stations     map[string]*dataobjects.Station
	dates        map[int64]*dataobjects.DateDimension
	movements    map[string]*dataobjects.TrainMovement
	compositions map[string][]*dataobjects.CompositionUnit
	feedbacks    []*dataobjects.Feedback
	disturbances map[string]*dataobjects.Disturbance

	// failures maps an operation name to a queue of errors returned by
	// successive calls; once drained the operation succeeds again
	failures map[string][]error
	beginErr error
}

func newMemStore() *memStore {
	return &memStore{
		trains:       make(map[string]*dataobjects.Train),
		stations:     make(map[string]*dataobjects.Station),
		dates:        make(map[int64]*dataobjects.DateDimension),
		movements:    make(map[string]*dataobjects.TrainMovement),
		compositions: make(map[string][]*dataobjects.CompositionUnit),
		disturbances: make(map[string]*dataobjects.Disturbance),
		failures:     make(map[string][]error),
	}
}

func (s *memStore) failWith(op string, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], errs...)
}

func (s *memStore) popFailure(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	queue := s.failures[op]
	if len(queue) == 0 {
		return nil
	}
	s.failures[op] = queue[1:]
	return queue[0]
}

func (s *memStore) Begin() (StoreTx, error) {
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	return &memTx{s: s}, nil
}

func (s *memStore) ListTrains() ([]*dataobjects.Train, error) {
	if err := s.popFailure("list trains"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	trains := make([]*dataobjects.Train, 0, len(s.trains))
	for _, train := range s.trains {
		copied := *train
		trains = append(trains, &copied)
	}
	return trains, nil
}

func (s *memStore) movementCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.movements)
}

func (s *memStore) disturbanceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.disturbances)
}

func movementKey(m *dataobjects.TrainMovement) string {
	return fmt.Sprintf("%s|%s|%d", m.Train.ID, m.DepartureStation.ID, m.ScheduledDeparture.Unix())
}

func segmentKey(train *dataobjects.Train, origin, destination *dataobjects.Station) string {
	return fmt.Sprintf("%s|%s|%s", train.ID, origin.ID, destination.ID)
}

func disturbanceKey(title string, t time.Time) string {
	return fmt.Sprintf("%s|%d", title, t.Unix())
}

type memTx struct {
	s      *memStore
	staged []func()
}

func (t *memTx) UpsertTrain(train *dataobjects.Train) error {
	if err := t.s.popFailure("upsert train"); err != nil {
		return err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if existing, ok := t.s.trains[train.ID]; ok {
		train.TrainID = existing.TrainID
		existing.Number = train.Number
		existing.Type = train.Type
		existing.Operator = train.Operator
		return nil
	}
	t.s.nextTrainID++
	train.TrainID = t.s.nextTrainID
	copied := *train
	t.s.trains[train.ID] = &copied
	return nil
}

func (t *memTx) UpsertStation(station *dataobjects.Station) error {
	if err := t.s.popFailure("upsert station"); err != nil {
		return err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if existing, ok := t.s.stations[station.ID]; ok {
		station.StationID = existing.StationID
		existing.Name = station.Name
		existing.StandardName = station.StandardName
		return nil
	}
	t.s.nextStationID++
	station.StationID = t.s.nextStationID
	copied := *station
	t.s.stations[station.ID] = &copied
	return nil
}

func (t *memTx) EnsureDate(d *dataobjects.DateDimension) error {
	if err := t.s.popFailure("ensure date"); err != nil {
		return err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if _, ok := t.s.dates[d.DateID]; !ok {
		copied := *d
		t.s.dates[d.DateID] = &copied
	}
	return nil
}

func (t *memTx) UpsertMovement(m *dataobjects.TrainMovement) (bool, error) {
	if err := t.s.popFailure("upsert movement"); err != nil {
		return false, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	key := movementKey(m)
	_, exists := t.s.movements[key]
	t.staged = append(t.staged, func() {
		if existing, ok := t.s.movements[key]; ok {
			m.MovementID = existing.MovementID
		} else {
			t.s.nextMovementID++
			m.MovementID = t.s.nextMovementID
		}
		copied := *m
		t.s.movements[key] = &copied
	})
	return !exists, nil
}

func (t *memTx) ReplaceCompositionUnits(train *dataobjects.Train, origin, destination *dataobjects.Station,
	units []*dataobjects.CompositionUnit) (int64, error) {
	if err := t.s.popFailure("replace composition units"); err != nil {
		return 0, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	key := segmentKey(train, origin, destination)
	removed := int64(len(t.s.compositions[key]))
	t.staged = append(t.staged, func() {
		replacement := make([]*dataobjects.CompositionUnit, len(units))
		for i, unit := range units {
			unit.Sequence = i
			copied := *unit
			replacement[i] = &copied
		}
		t.s.compositions[key] = replacement
	})
	return removed, nil
}

func (t *memTx) InsertFeedback(feedback *dataobjects.Feedback) error {
	if err := t.s.popFailure("insert feedback"); err != nil {
		return err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.staged = append(t.staged, func() {
		copied := *feedback
		t.s.feedbacks = append(t.s.feedbacks, &copied)
	})
	return nil
}

func (t *memTx) InsertDisturbance(disturbance *dataobjects.Disturbance) (bool, error) {
	if err := t.s.popFailure("insert disturbance"); err != nil {
		return false, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	key := disturbanceKey(disturbance.Title, disturbance.Time)
	if _, exists := t.s.disturbances[key]; exists {
		return false, nil
	}
	copied := *disturbance
	t.s.disturbances[key] = &copied
	return true, nil
}

func (t *memTx) Commit() error {
	if err := t.s.popFailure("commit"); err != nil {
		return err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for _, apply := range t.staged {
		apply()
	}
	t.staged = nil
	return nil
}

func (t *memTx) Rollback() error {
	t.staged = nil
	return nil
}
