package models

import "time"

// EventQuery filters and pages the persisted scaling-event history.
// Zero values mean "no constraint"; Limit falls back to a store default.
type EventQuery struct {
	Service string
	Since   time.Time
	Until   time.Time
	Limit   int
	Offset  int
}
