package ui

import "sync/atomic"

// Stats aggregates one download run for the closing summary.
type Stats struct {
	TotalUnits   atomic.Int64
	SkippedUnits atomic.Int64
	TotalPages   atomic.Int64
	FailedPages  atomic.Int64
	TotalBytes   atomic.Int64
}
