package ml

import "github.com/pkg/errors"

var (
	ErrInsufficientData = errors.New("insufficient training data")
	ErrUnknownLabel     = errors.New("unknown label")
	ErrUnknownIndex     = errors.New("unknown class index")
	ErrEmptyColumnSpace = errors.New("empty feature column space")
	ErrMissingValue     = errors.New("missing numeric value")
	ErrUnknownCategory  = errors.New("unknown category")
	ErrNotFitted        = errors.New("model not trained")
)
