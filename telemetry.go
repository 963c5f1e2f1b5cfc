package main

import (
	"time"

	movingaverage "github.com/RobinUS2/golang-moving-average"
	statsd "gopkg.in/alexcesaro/statsd.v2"

	"github.com/traindw/ingestor/ingestor"
)

// APIrequestTelemetry is a channel where something should be sent whenever an API
// request is served
var APIrequestTelemetry = make(chan interface{}, 10)

// reportTelemetry receives the report of every finished ingestion run
var reportTelemetry = make(chan *ingestor.RunReport, 10)

// StatsSender is meant to be called as a goroutine that handles sending telemetry
// to a statsd (or compatible) server
func StatsSender() {
	statsdAddress, present := secrets.Get("statsdAddress")
	statsdPrefix, present2 := secrets.Get("statsdPrefix")
	if !present || !present2 {
		return
	}

	c, err := statsd.New(statsd.Address(statsdAddress), statsd.Prefix(statsdPrefix))
	if err != nil {
		// If nothing is listening on the target port, an error is returned and
		// the returned client does nothing but is still usable. So we can
		// just log the error and go on.
		mainLog.Println(err)
	}
	defer c.Close()

	delayAverage := movingaverage.New(20)

	for {
		select {
		case report := <-reportTelemetry:
			inserted, updated, skipped, failed, rejected := 0, 0, 0, 0, 0
			for _, cr := range report.Categories {
				inserted += cr.Inserted
				updated += cr.Updated
				skipped += cr.Skipped
				failed += cr.Failed
				rejected += cr.Rejected
			}
			c.Gauge("ingest_inserted", inserted)
			c.Gauge("ingest_updated", updated)
			c.Gauge("ingest_skipped", skipped)
			c.Gauge("ingest_failed", failed)
			c.Gauge("ingest_rejected", rejected)
			c.Gauge("ingest_run_duration_ms", int(report.Duration()/time.Millisecond))

			if mean, ok := report.MeanDelayMinutes(); ok {
				delayAverage.Add(mean)
				c.Gauge("mean_departure_delay_minutes", delayAverage.Avg())
			}
		case <-APIrequestTelemetry:
			c.Increment("apicalls")
		}
	}
}
