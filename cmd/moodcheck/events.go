package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// eventRecord mirrors otel.Event for JSON decoding. Decoding from JSONL
// keeps old logs readable after the event schema changes.
type eventRecord struct {
	Time    time.Time      `json:"t"`
	Level   string         `json:"level"`
	Kind    string         `json:"kind"`
	Comp    string         `json:"comp"`
	RunID   string         `json:"run_id"`
	Model   string         `json:"model"`
	DurMs   float64        `json:"dur_ms"`
	Count   int            `json:"count"`
	Dropped int            `json:"dropped"`
	Index   *int           `json:"index"`
	Err     string         `json:"err"`
	Msg     string         `json:"msg"`
	Extra   map[string]any `json:"extra"`
}

type eventFilter struct {
	kind  string // prefix
	level string // minimum
	comp  string
	run   string // prefix
}

func (f eventFilter) match(ev eventRecord) bool {
	if f.kind != "" && !strings.HasPrefix(ev.Kind, f.kind) {
		return false
	}
	if f.level != "" && levelRank(ev.Level) < levelRank(f.level) {
		return false
	}
	if f.comp != "" && ev.Comp != f.comp {
		return false
	}
	if f.run != "" && !strings.HasPrefix(ev.RunID, f.run) {
		return false
	}
	return true
}

// levelRank returns a numeric rank for filtering (higher = more severe).
func levelRank(level string) int {
	switch level {
	case "info":
		return 1
	case "warn":
		return 2
	case "error":
		return 3
	default:
		return 0
	}
}

var (
	eventsTail   int
	eventsFollow bool
	eventsFilter eventFilter
	eventsJSON   bool
)

func newEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show the pipeline event log",
		Args:  cobra.NoArgs,
		RunE:  runEventsCmd,
	}
	cmd.Flags().IntVar(&eventsTail, "tail", 50, "number of recent events to show")
	cmd.Flags().BoolVarP(&eventsFollow, "follow", "f", false, "keep printing new events")
	cmd.Flags().StringVar(&eventsFilter.kind, "kind", "", "filter by event kind prefix (e.g. 'classify')")
	cmd.Flags().StringVar(&eventsFilter.level, "level", "", "minimum level: debug, info, warn, error")
	cmd.Flags().StringVar(&eventsFilter.comp, "comp", "", "filter by component name")
	cmd.Flags().StringVar(&eventsFilter.run, "run", "", "filter by run ID prefix")
	cmd.Flags().BoolVar(&eventsJSON, "json", false, "output raw JSON lines")
	return cmd
}

func runEventsCmd(cmd *cobra.Command, _ []string) error {
	path := current.cfg.Data.EventLog
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("event log not found at %s: %w", path, err)
	}
	defer f.Close()

	out := cmd.OutOrStdout()
	for _, l := range readTailLines(f, eventsTail, eventsFilter.match) {
		fmt.Fprintln(out, formatEvent(l.ev, l.raw, eventsJSON))
	}
	if !eventsFollow {
		return nil
	}

	ctx := cmd.Context()
	reader := bufio.NewReader(f)
	for {
		line, err := reader.ReadBytes('\n')
		if err == io.EOF {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}
		if err != nil {
			return err
		}
		line = trimLine(line)
		var ev eventRecord
		if len(line) == 0 || json.Unmarshal(line, &ev) != nil {
			continue
		}
		if eventsFilter.match(ev) {
			fmt.Fprintln(out, formatEvent(ev, line, eventsJSON))
		}
	}
}

func formatEvent(ev eventRecord, raw []byte, rawJSON bool) string {
	if rawJSON {
		return string(raw)
	}
	lvl := strings.ToUpper(ev.Level)
	if lvl == "" {
		lvl = "?"
	}
	parts := []string{fmt.Sprintf("%s %-5s [%-7s] %-20s", ev.Time.Format("15:04:05.000"), lvl, ev.Comp, ev.Kind)}

	if ev.Msg != "" {
		parts = append(parts, ev.Msg)
	}
	if ev.Model != "" {
		parts = append(parts, "model="+ev.Model)
	}
	if ev.DurMs > 0 {
		parts = append(parts, fmt.Sprintf("(%.*fms)", durPrecision(ev.DurMs), ev.DurMs))
	}
	if ev.Count > 0 {
		parts = append(parts, fmt.Sprintf("n=%d", ev.Count))
	}
	if ev.Dropped > 0 {
		parts = append(parts, fmt.Sprintf("dropped=%d", ev.Dropped))
	}
	if ev.Index != nil {
		parts = append(parts, fmt.Sprintf("at=%d", *ev.Index))
	}
	if ev.Err != "" {
		parts = append(parts, "err="+ev.Err)
	}
	return strings.Join(parts, " ")
}

type parsedLine struct {
	ev  eventRecord
	raw []byte
}

// readTailLines returns the last n lines of r matching the filter.
func readTailLines(r io.Reader, n int, match func(eventRecord) bool) []parsedLine {
	if n <= 0 {
		return nil
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)

	ring := make([]parsedLine, 0, n)
	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var ev eventRecord
		if json.Unmarshal(raw, &ev) != nil || !match(ev) {
			continue
		}
		rawCopy := make([]byte, len(raw))
		copy(rawCopy, raw)

		if len(ring) < n {
			ring = append(ring, parsedLine{ev: ev, raw: rawCopy})
		} else {
			copy(ring, ring[1:])
			ring[n-1] = parsedLine{ev: ev, raw: rawCopy}
		}
	}
	return ring
}

func trimLine(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}

func durPrecision(ms float64) int {
	if ms >= 100 {
		return 0
	}
	if ms >= 1 {
		return 1
	}
	return 2
}
