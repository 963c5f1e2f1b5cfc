// +build !release

package main

import "time"

const (
	DEBUG                   = true
	UpstreamTimezone        = "Europe/Brussels"
	SecretsPath             = "secrets-debug.json"
	MaxDBconnectionPoolSize = 30
	IngestInterval          = 2 * time.Minute
)
