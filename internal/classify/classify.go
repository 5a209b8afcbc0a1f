// Package classify is the client side of the external sentiment classifier.
// The classifier itself lives in another service; this package only asks it
// for predictions and maps its failures onto the error taxonomy the
// evaluation passes understand.
package classify

import (
	"context"
	"errors"

	"github.com/abelbrown/moodcheck/internal/model"
)

var (
	// ErrServiceUnavailable reports a classifier that refused, errored or
	// could not be reached.
	ErrServiceUnavailable = errors.New("classify: service unavailable")

	// ErrTimeout reports a classify call that hit its deadline.
	ErrTimeout = errors.New("classify: timeout")
)

// Classifier predicts a label for text using the named model.
// Implementations must be safe for concurrent use. A prediction outside
// {HAPPY, SAD} is returned without error; aggregation rejects it.
type Classifier interface {
	Classify(ctx context.Context, modelID, text string) (model.Label, error)
}

// Func adapts a plain function to Classifier.
type Func func(ctx context.Context, modelID, text string) (model.Label, error)

// Classify calls f.
func (f Func) Classify(ctx context.Context, modelID, text string) (model.Label, error) {
	return f(ctx, modelID, text)
}

// IsTransient reports whether err is one of the failures the evaluation
// passes drop instead of aborting on.
func IsTransient(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) || errors.Is(err, ErrTimeout)
}
