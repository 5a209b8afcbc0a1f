package accuracy

import (
	"errors"
	"fmt"
	"math"

	"github.com/abelbrown/moodcheck/internal/model"
)

// Summary is what a run reports: the tally plus how many validation
// records never made it into it.
type Summary struct {
	Model     string
	Tally     Tally
	Evaluated int // records counted in Tally
	Dropped   int // records excluded after a failed external call
	Failed    int // records counted as incorrect after a failed external call
	Malformed int // input records skipped before the split; set by the caller
}

// NewSummary builds a Summary for one evaluation pass.
func NewSummary(modelID string, t Tally, dropped, failed int) Summary {
	return Summary{
		Model:     modelID,
		Tally:     t,
		Evaluated: t.Total(),
		Dropped:   dropped,
		Failed:    failed,
	}
}

// Attempted is the number of validation records the pass started with.
func (s Summary) Attempted() int {
	return s.Evaluated + s.Dropped
}

// FormatRatio renders a ratio as a percentage, or "undefined" for NaN.
func FormatRatio(v float64) string {
	if math.IsNaN(v) {
		return "undefined"
	}
	return fmt.Sprintf("%.2f%%", v*100)
}

// CorrectionSummary compares raw and normalized predictions over the same
// records.
type CorrectionSummary struct {
	Model     string
	Before    Tally
	After     Tally
	Changed   int
	Fixed     int
	Regressed int
	Dropped   int
	Failed    int
	Malformed int
}

// SummarizeCorrections tallies the raw and normalized predictions of a
// correction run. An unknown label aborts the pass.
func SummarizeCorrections(modelID string, records []model.CorrectionComparisonRecord, dropped, failed int) (CorrectionSummary, error) {
	cs := CorrectionSummary{Model: modelID, Dropped: dropped, Failed: failed}
	for i, r := range records {
		var err error
		if cs.Before, err = cs.Before.Add(r.Actual, r.Before); err != nil {
			return CorrectionSummary{}, withPosition(err, i)
		}
		if cs.After, err = cs.After.Add(r.Actual, r.After); err != nil {
			return CorrectionSummary{}, withPosition(err, i)
		}
		if r.Changed() {
			cs.Changed++
		}
		if r.Fixed() {
			cs.Fixed++
		}
		if r.Regressed() {
			cs.Regressed++
		}
	}
	return cs, nil
}

func withPosition(err error, pos int) error {
	var ule *UnknownLabelError
	if errors.As(err, &ule) {
		ule.Position = pos
	}
	return err
}
