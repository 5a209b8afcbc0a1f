// Package dataset turns raw source records into hashed training and
// validation sets.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abelbrown/moodcheck/internal/features"
	"github.com/abelbrown/moodcheck/internal/filter"
	"github.com/abelbrown/moodcheck/internal/logging"
	"github.com/abelbrown/moodcheck/internal/model"
	"github.com/abelbrown/moodcheck/internal/otel"
	"github.com/abelbrown/moodcheck/internal/split"
	"github.com/abelbrown/moodcheck/internal/work"
)

// MalformedPolicy decides what happens to a record missing its label or text.
type MalformedPolicy string

const (
	MalformedDrop MalformedPolicy = "drop" // skip the record, count it in Sets.Dropped
	MalformedFail MalformedPolicy = "fail" // abort the build with the first MissingFieldError
)

// ParseMalformedPolicy parses a policy name. Empty means MalformedDrop.
func ParseMalformedPolicy(s string) (MalformedPolicy, error) {
	switch MalformedPolicy(s) {
	case "", MalformedDrop:
		return MalformedDrop, nil
	case MalformedFail:
		return MalformedFail, nil
	}
	return "", fmt.Errorf("dataset: unknown malformed policy %q", s)
}

// Options configures a Builder.
type Options struct {
	Malformed MalformedPolicy
	Workers   int
	Events    *otel.Logger
}

// Sample pairs the extracted text with its hashed example.
type Sample struct {
	Text    model.LabeledText
	Example model.LabeledExample
}

// Sets is the output of a build.
type Sets struct {
	Training   []Sample
	Validation []Sample
	Dropped    int // malformed records skipped under MalformedDrop
}

// Texts returns the labeled texts of samples, in order.
func Texts(samples []Sample) []model.LabeledText {
	out := make([]model.LabeledText, len(samples))
	for i, s := range samples {
		out[i] = s.Text
	}
	return out
}

// Builder composes extraction, filtering, hashing and splitting.
type Builder struct {
	opts     Options
	filter   filter.Filter
	hasher   *features.Hasher
	splitter *split.Splitter
}

// NewBuilder wires the stages together. A nil filter uses filter.Default();
// a nil splitter uses split.DefaultRatios unseeded. The splitter must
// produce exactly two buckets: training then validation.
func NewBuilder(opts Options, f filter.Filter, h *features.Hasher, s *split.Splitter) (*Builder, error) {
	if h == nil {
		return nil, errors.New("dataset: hasher is required")
	}
	if f == nil {
		f = filter.Default()
	}
	if s == nil {
		var err error
		if s, err = split.New(split.DefaultRatios); err != nil {
			return nil, err
		}
	}
	if s.Buckets() != 2 {
		return nil, fmt.Errorf("dataset: splitter has %d buckets, need 2", s.Buckets())
	}
	if opts.Malformed == "" {
		opts.Malformed = MalformedDrop
	}
	return &Builder{opts: opts, filter: f, hasher: h, splitter: s}, nil
}

type indexed struct {
	pos int
	rec model.RawRecord
}

// Build extracts every record, hashes its tokens and splits the result.
// Under MalformedFail the first malformed record, by position, aborts the
// build with a *model.MissingFieldError. A cancelled ctx aborts the build.
func (b *Builder) Build(ctx context.Context, raw []model.RawRecord) (Sets, error) {
	start := time.Now()
	b.opts.Events.Emit(otel.Event{
		Level: otel.LevelInfo,
		Kind:  otel.KindBuildStart,
		Comp:  "dataset",
		Count: len(raw),
	})

	in := make([]indexed, len(raw))
	for i, r := range raw {
		in[i] = indexed{pos: i, rec: r}
	}
	extracted, _ := work.Map(ctx, work.TypeExtract, in, b.opts.Workers,
		func(_ context.Context, it indexed) (model.LabeledText, error) {
			return model.ExtractLabeledText(it.pos, it.rec)
		})
	if err := ctx.Err(); err != nil {
		return Sets{}, fmt.Errorf("dataset: build cancelled: %w", err)
	}

	var sets Sets
	texts := make([]model.LabeledText, 0, len(raw))
	for i, r := range extracted {
		if r.Err == nil {
			texts = append(texts, r.Value)
			continue
		}
		b.opts.Events.Emit(otel.Event{
			Level: otel.LevelWarn,
			Kind:  otel.KindRecordMalformed,
			Comp:  "dataset",
			Index: otel.At(i),
			Err:   r.Err.Error(),
		})
		if b.opts.Malformed == MalformedFail {
			logging.Error("Malformed record", "index", i, "error", r.Err)
			return Sets{}, r.Err
		}
		logging.Debug("Dropping malformed record", "index", i, "error", r.Err)
		sets.Dropped++
	}

	hashed, _ := work.Map(ctx, work.TypeHash, texts, b.opts.Workers,
		func(_ context.Context, t model.LabeledText) (Sample, error) {
			return Sample{
				Text: t,
				Example: model.LabeledExample{
					Label:    t.Label.Numeric(),
					Features: b.hasher.Transform(b.filter.Tokens(t.Text)),
				},
			}, nil
		})
	if err := ctx.Err(); err != nil {
		return Sets{}, fmt.Errorf("dataset: build cancelled: %w", err)
	}
	samples := make([]Sample, len(hashed))
	for i, r := range hashed {
		samples[i] = r.Value
	}

	parts := split.Split(b.splitter, samples, func(s Sample) string { return s.Text.Key() })
	sets.Training, sets.Validation = parts[0], parts[1]

	b.opts.Events.Emit(otel.Event{
		Level:   otel.LevelInfo,
		Kind:    otel.KindBuildComplete,
		Comp:    "dataset",
		Count:   len(samples),
		Dropped: sets.Dropped,
		Dur:     time.Since(start),
		Extra: map[string]any{
			"training":   len(sets.Training),
			"validation": len(sets.Validation),
		},
	})
	logging.Info("Dataset built",
		"records", len(raw),
		"training", len(sets.Training),
		"validation", len(sets.Validation),
		"dropped", sets.Dropped,
		"dimension", b.hasher.Dimension())
	return sets, nil
}
