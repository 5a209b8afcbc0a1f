// Package work provides the data-parallel primitives every batch pass runs
// on: a bounded parallel map with per-element failure isolation, and a
// chunked reduce that merges partial results with an associative combine.
//
// Logging: batch start/finish and per-element failures are logged via
// internal/logging so a batch can be followed after the fact.
package work

import (
	"fmt"
	"runtime"
	"time"

	"github.com/abelbrown/moodcheck/internal/logging"
)

// Type categorizes a batch for logging.
type Type string

const (
	TypeExtract   Type = "extract"   // Raw record validation
	TypeHash      Type = "hash"      // Token filtering + feature hashing
	TypeClassify  Type = "classify"  // External prediction calls
	TypeCorrect   Type = "correct"   // Raw vs normalized prediction calls
	TypeAggregate Type = "aggregate" // Tally reduction
)

// Stats summarizes one batch.
type Stats struct {
	Type      Type
	Total     int
	Completed int
	Failed    int
	Workers   int
	Duration  time.Duration
}

// String returns a summary string for stats.
func (s Stats) String() string {
	return fmt.Sprintf("%s: %d/%d done, %d failed, %d workers, %s",
		s.Type, s.Completed, s.Total, s.Failed, s.Workers, s.Duration.Round(time.Millisecond))
}

// Workers normalizes a configured worker count.
// If n <= 0, uses runtime.NumCPU().
func Workers(n int) int {
	if n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

// logStats logs a finished batch.
func logStats(s Stats) {
	if s.Failed > 0 {
		logging.Warn("Batch finished with failures",
			"type", s.Type,
			"total", s.Total,
			"completed", s.Completed,
			"failed", s.Failed,
			"duration", s.Duration)
		return
	}
	logging.Info("Batch finished",
		"type", s.Type,
		"total", s.Total,
		"duration", s.Duration)
}
