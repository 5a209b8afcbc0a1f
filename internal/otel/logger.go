package otel

// Goroutine safety:
// The drain goroutine is the sole reader of l.ch and the sole writer to l.w.
// Emit may be called from any number of workers.

import (
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// writerChanSize is the capacity of the async write channel.
const writerChanSize = 4096

// Logger serializes events as JSONL via an async background writer.
// A nil *Logger is valid and discards everything, so components can take
// one as an optional dependency.
type Logger struct {
	runID     string
	ch        chan []byte
	w         io.Writer
	dropped   atomic.Uint64 // events dropped due to full channel, encode failure, or write error
	closed    atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

// NewLogger creates a Logger writing JSONL to w asynchronously. Every event
// is stamped with runID. Call Close() to flush and stop.
func NewLogger(w io.Writer, runID string) *Logger {
	l := &Logger{
		runID: runID,
		ch:    make(chan []byte, writerChanSize),
		w:     w,
		done:  make(chan struct{}),
	}
	go l.drain()
	return l
}

// drain is the background goroutine that reads from ch and writes to w.
func (l *Logger) drain() {
	defer close(l.done)
	for data := range l.ch {
		if _, err := l.w.Write(data); err != nil {
			l.dropped.Add(1)
		}
	}
}

// Emit queues an event. Sets Time (if zero) and RunID. Non-blocking: if
// the channel is full or the logger is closed, the event is dropped and
// the drop counter is incremented.
func (l *Logger) Emit(e Event) {
	if l == nil {
		return
	}
	defer func() {
		// Close() may race between the closed check and the send.
		if recover() != nil {
			l.dropped.Add(1)
		}
	}()

	if l.closed.Load() {
		l.dropped.Add(1)
		return
	}

	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	e.RunID = l.runID

	data, err := json.Marshal(e)
	if err != nil {
		l.dropped.Add(1)
		return
	}
	data = append(data, '\n')

	select {
	case l.ch <- data:
	default:
		l.dropped.Add(1)
	}
}

// Info emits an info-level event.
func (l *Logger) Info(kind EventKind, comp string, msg string) {
	l.Emit(Event{Level: LevelInfo, Kind: kind, Comp: comp, Msg: msg})
}

// Warn emits a warn-level event.
func (l *Logger) Warn(kind EventKind, comp string, msg string) {
	l.Emit(Event{Level: LevelWarn, Kind: kind, Comp: comp, Msg: msg})
}

// Error emits an error-level event. Nil err is safe (logged as empty string).
func (l *Logger) Error(kind EventKind, comp string, err error) {
	errStr := ""
	if err != nil {
		errStr = err.Error()
	}
	l.Emit(Event{Level: LevelError, Kind: kind, Comp: comp, Err: errStr})
}

// RunID returns the identifier stamped on every event.
func (l *Logger) RunID() string {
	if l == nil {
		return ""
	}
	return l.runID
}

// Dropped returns the number of events dropped since creation.
func (l *Logger) Dropped() uint64 {
	if l == nil {
		return 0
	}
	return l.dropped.Load()
}

// Close stops accepting events, flushes the queue and waits for the drain
// goroutine. Safe to call more than once.
func (l *Logger) Close() {
	if l == nil {
		return
	}
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		close(l.ch)
	})
	<-l.done
}
