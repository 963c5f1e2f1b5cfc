package ingestor

import (
	"time"

	"github.com/SaidinWoT/timespan"
	uuid "github.com/satori/go.uuid"
)

// MaxReportErrors caps how many errors a category report keeps for
// diagnostics; further errors are only counted
const MaxReportErrors = 16

// State is the position of a category in the ingestion pipeline
type State string

// The states a category moves through during a run
const (
	StateFetching    State = "Fetching"
	StateNormalizing State = "Normalizing"
	StateResolving   State = "Resolving"
	StateUpserting   State = "Upserting"
	StateDone        State = "Done"
	StateFailed      State = "Failed"
)

// ReportError is one error kept in a run summary
type ReportError struct {
	Kind    string `msgpack:"kind" json:"kind"`
	Message string `msgpack:"message" json:"message"`
}

// CategoryReport summarizes one category of an ingestion run
type CategoryReport struct {
	Category   Category      `msgpack:"category" json:"category"`
	State      State         `msgpack:"state" json:"state"`
	Fetched    int           `msgpack:"fetched" json:"fetched"`
	Normalized int           `msgpack:"normalized" json:"normalized"`
	Rejected   int           `msgpack:"rejected" json:"rejected"`
	Inserted   int           `msgpack:"inserted" json:"inserted"`
	Updated    int           `msgpack:"updated" json:"updated"`
	Skipped    int           `msgpack:"skipped" json:"skipped"`
	Failed     int           `msgpack:"failed" json:"failed"`
	ErrorCount int           `msgpack:"errorCount" json:"errorCount"`
	Errors     []ReportError `msgpack:"errors" json:"errors"`

	delaySum   int
	delayCount int
}

func (cr *CategoryReport) addError(err error) {
	cr.ErrorCount++
	if len(cr.Errors) < MaxReportErrors {
		cr.Errors = append(cr.Errors, ReportError{Kind: errorKind(err), Message: err.Error()})
	}
}

func (cr *CategoryReport) addDelaySample(minutes int) {
	cr.delaySum += minutes
	cr.delayCount++
}

func (cr *CategoryReport) fail(err error) {
	cr.State = StateFailed
	cr.addError(err)
}

// RunReport is the aggregated summary of one ingestion run
type RunReport struct {
	ID         string                       `msgpack:"id" json:"id"`
	StartTime  time.Time                    `msgpack:"startTime" json:"startTime"`
	EndTime    time.Time                    `msgpack:"endTime" json:"endTime"`
	Categories map[Category]*CategoryReport `msgpack:"categories" json:"categories"`
}

func newRunReport(categories []Category) *RunReport {
	id, err := uuid.NewV4()
	report := &RunReport{
		StartTime:  time.Now(),
		Categories: make(map[Category]*CategoryReport),
	}
	if err == nil {
		report.ID = id.String()
	}
	for _, category := range categories {
		report.Categories[category] = &CategoryReport{
			Category: category,
			State:    StateFetching,
		}
	}
	return report
}

func (r *RunReport) finish() {
	r.EndTime = time.Now()
}

// Duration returns how long the run took
func (r *RunReport) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// Span returns the wall-clock window the run covered
func (r *RunReport) Span() timespan.Span {
	return timespan.New(r.StartTime, r.Duration())
}

// Overlaps tells whether this run's window overlaps another run's
func (r *RunReport) Overlaps(other *RunReport) bool {
	if other == nil {
		return false
	}
	return r.Span().Overlaps(other.Span())
}

// Failed tells whether the run failed as a whole, which only happens when
// every category failed
func (r *RunReport) Failed() bool {
	for _, cr := range r.Categories {
		if cr.State != StateFailed {
			return false
		}
	}
	return len(r.Categories) > 0
}

// MeanDelayMinutes returns the mean departure delay observed across the
// run's movement facts, and whether any delay sample was recorded
func (r *RunReport) MeanDelayMinutes() (float64, bool) {
	sum, count := 0, 0
	for _, cr := range r.Categories {
		sum += cr.delaySum
		count += cr.delayCount
	}
	if count == 0 {
		return 0, false
	}
	return float64(sum) / float64(count), true
}
