// +build release

package main

import "time"

const (
	DEBUG                   = false
	UpstreamTimezone        = "Europe/Brussels"
	SecretsPath             = "secrets.json"
	MaxDBconnectionPoolSize = 30
	IngestInterval          = 5 * time.Minute
)
