// Package otel records pipeline events as JSONL so a batch run can be
// inspected after the fact.
//
// Events are typed structs serialized one per line. The Logger writes
// events asynchronously via a buffered channel and background drain goroutine.
package otel

import (
	"encoding/json"
	"time"
)

// Level defines event severity for filtering.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// EventKind identifies the category of an event.
// Dot-delimited: "<stage>.<action>".
type EventKind string

const (
	// Build events
	KindBuildStart      EventKind = "build.start"
	KindBuildComplete   EventKind = "build.complete"
	KindRecordMalformed EventKind = "record.malformed"

	// Evaluation events
	KindClassifyError      EventKind = "classify.error"
	KindNormalizeError     EventKind = "normalize.error"
	KindEvalComplete       EventKind = "eval.complete"
	KindCorrectionComplete EventKind = "correction.complete"
	KindAggregateComplete  EventKind = "aggregate.complete"
	KindAggregateAbort     EventKind = "aggregate.abort"
	KindPassCancelled      EventKind = "pass.cancelled"

	// Sink events
	KindSinkError EventKind = "sink.error"

	// System events
	KindStartup  EventKind = "sys.startup"
	KindShutdown EventKind = "sys.shutdown"
)

// Event is the universal observability record. Every field except Kind and
// Time is optional. Serialized as a single JSONL line.
type Event struct {
	Time    time.Time      `json:"t"`
	Level   Level          `json:"level,omitempty"`
	Kind    EventKind      `json:"kind"`
	Comp    string         `json:"comp,omitempty"` // component: "dataset", "eval", "main"
	RunID   string         `json:"run_id,omitempty"`
	Model   string         `json:"model,omitempty"`
	Dur     time.Duration  `json:"-"`                // not serialized directly
	DurMs   float64        `json:"dur_ms,omitempty"` // computed from Dur at marshal time
	Count   int            `json:"count,omitempty"`
	Dropped int            `json:"dropped,omitempty"`
	Index   *int           `json:"index,omitempty"` // record position within the batch
	Err     string         `json:"err,omitempty"`
	Msg     string         `json:"msg,omitempty"`
	Extra   map[string]any `json:"extra,omitempty"`
}

// MarshalJSON implements json.Marshaler, converting Dur to DurMs.
func (e Event) MarshalJSON() ([]byte, error) {
	type Alias Event
	a := struct {
		Alias
	}{Alias: Alias(e)}
	if e.Dur > 0 {
		a.DurMs = float64(e.Dur) / float64(time.Millisecond)
	}
	return json.Marshal(a)
}

// At returns a pointer to i, for Event.Index.
func At(i int) *int {
	return &i
}
