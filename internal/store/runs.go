package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/abelbrown/moodcheck/internal/accuracy"
	"github.com/abelbrown/moodcheck/internal/model"
	"github.com/google/uuid"
)

// Run kinds.
const (
	KindEvaluate   = "evaluate"
	KindCorrection = "correction"
)

// Tally phases. An evaluate run stores PhaseResult; a correction run stores
// PhaseBefore and PhaseAfter.
const (
	PhaseResult = "result"
	PhaseBefore = "before"
	PhaseAfter  = "after"
)

var (
	// ErrRunNotFound is returned when a run ID is unknown.
	ErrRunNotFound = errors.New("store: run not found")

	// ErrAmbiguousRun is returned when a run ID prefix matches more than
	// one run.
	ErrAmbiguousRun = errors.New("store: run id prefix is ambiguous")
)

// Run is one persisted evaluation pass.
type Run struct {
	ID        string
	Kind      string
	Model     string
	CreatedAt time.Time
	Dropped   int
	Failed    int
	Malformed int
}

// RunSummary is a Run with its headline tally (result, or after for
// correction runs).
type RunSummary struct {
	Run
	Tally accuracy.Tally
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// SaveEvaluationRun stores an evaluate run, its result tally and its
// records in one transaction. Nothing is kept if any part fails.
// CreatedAt defaults to now.
func (s *Store) SaveEvaluationRun(r Run, t accuracy.Tally, recs []model.EvaluatedRecord) error {
	r.Kind = KindEvaluate
	return s.withTx(func(tx *sql.Tx) error {
		if err := insertRun(tx, r); err != nil {
			return err
		}
		if err := insertTally(tx, r.ID, PhaseResult, t); err != nil {
			return err
		}
		return insertEvaluations(tx, r.ID, recs)
	})
}

// SaveCorrectionRun stores a correction run, its before and after tallies
// and its comparison records in one transaction.
func (s *Store) SaveCorrectionRun(r Run, before, after accuracy.Tally, recs []model.CorrectionComparisonRecord) error {
	r.Kind = KindCorrection
	return s.withTx(func(tx *sql.Tx) error {
		if err := insertRun(tx, r); err != nil {
			return err
		}
		if err := insertTally(tx, r.ID, PhaseBefore, before); err != nil {
			return err
		}
		if err := insertTally(tx, r.ID, PhaseAfter, after); err != nil {
			return err
		}
		return insertCorrections(tx, r.ID, recs)
	})
}

func (s *Store) withTx(fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func insertRun(tx *sql.Tx, r Run) error {
	if r.ID == "" {
		return errors.New("store: run id is empty")
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	_, err := tx.Exec(`
		INSERT INTO runs (id, kind, model, created_at, dropped, failed, malformed)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Kind, r.Model, r.CreatedAt, r.Dropped, r.Failed, r.Malformed)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func insertTally(tx *sql.Tx, runID, phase string, t accuracy.Tally) error {
	_, err := tx.Exec(`
		INSERT INTO tallies (run_id, phase, happy_correct, happy_total, sad_correct, sad_total)
		VALUES (?, ?, ?, ?, ?, ?)
	`, runID, phase, t.HappyCorrect, t.HappyTotal, t.SadCorrect, t.SadTotal)
	if err != nil {
		return fmt.Errorf("save %s tally: %w", phase, err)
	}
	return nil
}

func insertEvaluations(tx *sql.Tx, runID string, recs []model.EvaluatedRecord) error {
	stmt, err := tx.Prepare(`
		INSERT INTO evaluations (run_id, position, actual, predicted, text, failed)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, r := range recs {
		if _, err := stmt.Exec(runID, i, string(r.Actual), string(r.Predicted), r.Text, r.Failed); err != nil {
			return fmt.Errorf("insert evaluation %d: %w", i, err)
		}
	}
	return nil
}

func insertCorrections(tx *sql.Tx, runID string, recs []model.CorrectionComparisonRecord) error {
	stmt, err := tx.Prepare(`
		INSERT INTO corrections (run_id, position, actual, before_label, after_label, before_text, after_text, failed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, r := range recs {
		_, err := stmt.Exec(runID, i, string(r.Actual), string(r.Before), string(r.After),
			r.BeforeText, r.AfterText, r.Failed)
		if err != nil {
			return fmt.Errorf("insert correction %d: %w", i, err)
		}
	}
	return nil
}

// Tally loads the tally stored for a run phase.
func (s *Store) Tally(runID, phase string) (accuracy.Tally, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var t accuracy.Tally
	err := s.db.QueryRow(`
		SELECT happy_correct, happy_total, sad_correct, sad_total
		FROM tallies WHERE run_id = ? AND phase = ?
	`, runID, phase).Scan(&t.HappyCorrect, &t.HappyTotal, &t.SadCorrect, &t.SadTotal)
	if errors.Is(err, sql.ErrNoRows) {
		return accuracy.Tally{}, ErrRunNotFound
	}
	if err != nil {
		return accuracy.Tally{}, fmt.Errorf("load tally: %w", err)
	}
	return t, nil
}

// Evaluations loads the evaluated records of a run in stored order.
func (s *Store) Evaluations(runID string) ([]model.EvaluatedRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT actual, predicted, text, failed
		FROM evaluations WHERE run_id = ? ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query evaluations: %w", err)
	}
	defer rows.Close()

	var out []model.EvaluatedRecord
	for rows.Next() {
		var r model.EvaluatedRecord
		var actual, predicted string
		if err := rows.Scan(&actual, &predicted, &r.Text, &r.Failed); err != nil {
			return nil, fmt.Errorf("scan evaluation: %w", err)
		}
		r.Actual, r.Predicted = model.Label(actual), model.Label(predicted)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Corrections loads the comparison records of a run in stored order.
func (s *Store) Corrections(runID string) ([]model.CorrectionComparisonRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT actual, before_label, after_label, before_text, after_text, failed
		FROM corrections WHERE run_id = ? ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query corrections: %w", err)
	}
	defer rows.Close()

	var out []model.CorrectionComparisonRecord
	for rows.Next() {
		var r model.CorrectionComparisonRecord
		var actual, before, after string
		if err := rows.Scan(&actual, &before, &after, &r.BeforeText, &r.AfterText, &r.Failed); err != nil {
			return nil, fmt.Errorf("scan correction: %w", err)
		}
		r.Actual, r.Before, r.After = model.Label(actual), model.Label(before), model.Label(after)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListRuns returns the most recent runs first, each with its headline
// tally. Runs without a stored tally carry a zero tally.
func (s *Store) ListRuns(limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT r.id, r.kind, r.model, r.created_at, r.dropped, r.failed, r.malformed,
			COALESCE(t.happy_correct, 0), COALESCE(t.happy_total, 0),
			COALESCE(t.sad_correct, 0), COALESCE(t.sad_total, 0)
		FROM runs r
		LEFT JOIN tallies t ON t.run_id = r.id
			AND t.phase = CASE r.kind WHEN ? THEN ? ELSE ? END
		ORDER BY r.created_at DESC
		LIMIT ?
	`, KindCorrection, PhaseAfter, PhaseResult, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var rs RunSummary
		if err := rows.Scan(&rs.ID, &rs.Kind, &rs.Model, &rs.CreatedAt, &rs.Dropped, &rs.Failed, &rs.Malformed,
			&rs.Tally.HappyCorrect, &rs.Tally.HappyTotal, &rs.Tally.SadCorrect, &rs.Tally.SadTotal); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, rs)
	}
	return out, rows.Err()
}

// GetRun loads a single run.
func (s *Store) GetRun(id string) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var r Run
	err := s.db.QueryRow(`
		SELECT id, kind, model, created_at, dropped, failed, malformed FROM runs WHERE id = ?
	`, id).Scan(&r.ID, &r.Kind, &r.Model, &r.CreatedAt, &r.Dropped, &r.Failed, &r.Malformed)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("load run: %w", err)
	}
	return r, nil
}

// FindRun loads the run with the given ID, or failing that the single run
// whose ID starts with it.
func (s *Store) FindRun(prefix string) (Run, error) {
	r, err := s.GetRun(prefix)
	if !errors.Is(err, ErrRunNotFound) || prefix == "" {
		return r, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, kind, model, created_at, dropped, failed, malformed
		FROM runs WHERE substr(id, 1, ?) = ? LIMIT 2
	`, len(prefix), prefix)
	if err != nil {
		return Run{}, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var found []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Kind, &r.Model, &r.CreatedAt, &r.Dropped, &r.Failed, &r.Malformed); err != nil {
			return Run{}, fmt.Errorf("scan run: %w", err)
		}
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		return Run{}, err
	}
	switch len(found) {
	case 0:
		return Run{}, ErrRunNotFound
	case 1:
		return found[0], nil
	default:
		return Run{}, fmt.Errorf("%w: %s", ErrAmbiguousRun, prefix)
	}
}
