package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/abelbrown/moodcheck/internal/classify"
	"github.com/abelbrown/moodcheck/internal/dataset"
	"github.com/abelbrown/moodcheck/internal/eval"
	"github.com/abelbrown/moodcheck/internal/features"
	"github.com/abelbrown/moodcheck/internal/filter"
	"github.com/abelbrown/moodcheck/internal/logging"
	"github.com/abelbrown/moodcheck/internal/report"
	"github.com/abelbrown/moodcheck/internal/source"
	"github.com/abelbrown/moodcheck/internal/split"
	"github.com/abelbrown/moodcheck/internal/store"
)

// buildSets loads the configured input and runs the dataset builder.
func (a *app) buildSets(ctx context.Context) (dataset.Sets, *features.Hasher, error) {
	if a.cfg.Data.Input == "" {
		return dataset.Sets{}, nil, errors.New("no input: pass --input or set data.input")
	}
	raw, err := source.Load(a.cfg.Data.Input)
	if err != nil {
		return dataset.Sets{}, nil, err
	}

	hasher, err := features.NewHasher(a.cfg.Features.Dimension, nil)
	if err != nil {
		return dataset.Sets{}, nil, err
	}
	var opts []split.Option
	if a.cfg.Split.Seed != nil {
		opts = append(opts, split.WithSeed(*a.cfg.Split.Seed))
	}
	splitter, err := split.New(a.cfg.Split.Ratios, opts...)
	if err != nil {
		return dataset.Sets{}, nil, err
	}
	policy, err := dataset.ParseMalformedPolicy(a.cfg.Eval.Malformed)
	if err != nil {
		return dataset.Sets{}, nil, err
	}

	b, err := dataset.NewBuilder(dataset.Options{
		Malformed: policy,
		Workers:   a.cfg.Eval.Workers,
		Events:    a.events,
	}, filter.Default(), hasher, splitter)
	if err != nil {
		return dataset.Sets{}, nil, err
	}
	sets, err := b.Build(ctx, raw)
	return sets, hasher, err
}

// evaluator wires the HTTP classifier into an Evaluator.
func (a *app) evaluator() (*eval.Evaluator, error) {
	policy, err := eval.ParseFailurePolicy(a.cfg.Eval.FailurePolicy)
	if err != nil {
		return nil, err
	}
	c := a.cfg.Classifier
	client := classify.NewHTTPClient(c.Endpoint, c.Timeout(), c.RPS)
	if !client.Available() {
		logging.Warn("Classifier health check failed", "endpoint", c.Endpoint)
	}
	return eval.NewEvaluator(client, eval.Options{
		ModelID: c.Model,
		Workers: a.cfg.Eval.Workers,
		Policy:  policy,
		Events:  a.events,
	}), nil
}

// sinks returns the configured report sinks and a cleanup func.
func (a *app) sinks(useStore bool, jsonlPath string) (report.Sink, func(), error) {
	var multi report.Multi
	var closers []func()
	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}

	if useStore && a.cfg.Data.Store != "" {
		st, err := a.openStore()
		if err != nil {
			return nil, cleanup, err
		}
		closers = append(closers, func() { st.Close() })
		multi = append(multi, &report.StoreSink{Store: st})
	}
	if jsonlPath != "" {
		f, err := os.Create(jsonlPath)
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		closers = append(closers, func() { f.Close() })
		multi = append(multi, report.NewJSONLSink(f))
	}
	return multi, cleanup, nil
}

func (a *app) openStore() (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(a.cfg.Data.Store), 0755); err != nil {
		return nil, err
	}
	st, err := store.Open(a.cfg.Data.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	return st, nil
}
