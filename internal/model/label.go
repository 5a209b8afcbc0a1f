// Package model provides the record types shared by the feature pipeline
// and the evaluation passes.
package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Label is a binary sentiment class. The zero value is not a valid label.
type Label string

const (
	LabelHappy Label = "HAPPY"
	LabelSad   Label = "SAD"
)

// Valid reports whether l is HAPPY or SAD.
func (l Label) Valid() bool {
	return l == LabelHappy || l == LabelSad
}

// Numeric returns the training value of the label: 1 for HAPPY, 0 for SAD.
// Invalid labels return -1.
func (l Label) Numeric() float64 {
	switch l {
	case LabelHappy:
		return 1
	case LabelSad:
		return 0
	default:
		return -1
	}
}

// Opposite returns the other class. Invalid labels are returned unchanged.
func (l Label) Opposite() Label {
	switch l {
	case LabelHappy:
		return LabelSad
	case LabelSad:
		return LabelHappy
	default:
		return l
	}
}

func (l Label) String() string {
	if l == "" {
		return "<none>"
	}
	return string(l)
}

// LabelFromNumeric maps a source label value (1 = HAPPY, 0 = SAD).
func LabelFromNumeric(v float64) (Label, error) {
	switch v {
	case 1:
		return LabelHappy, nil
	case 0:
		return LabelSad, nil
	default:
		return "", fmt.Errorf("label value %v is not 0 or 1", v)
	}
}

// ParseLabel accepts "HAPPY"/"SAD" in any case, or "1"/"0"/"1.0"/"0.0".
func ParseLabel(s string) (Label, error) {
	s = strings.TrimSpace(s)
	switch strings.ToUpper(s) {
	case "HAPPY":
		return LabelHappy, nil
	case "SAD":
		return LabelSad, nil
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return LabelFromNumeric(v)
	}
	return "", fmt.Errorf("unrecognized label %q", s)
}
