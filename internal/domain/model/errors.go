package model

import (
	"errors"
	"fmt"
)

var (
	ErrNoData     = errors.New("no gaze data")
	ErrNoFeatures = errors.New("no features")
)

// NoDataError means the store holds no gaze rows for the key.
type NoDataError struct {
	Key SessionKey
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf("no data found for %s", e.Key)
}

func (e *NoDataError) Is(target error) bool { return target == ErrNoData }

// NoFeaturesError means the gaze aggregate could not be merged with
// demographics into a complete feature vector.
type NoFeaturesError struct {
	Key    SessionKey
	Reason string
	Err    error
}

func (e *NoFeaturesError) Error() string {
	msg := fmt.Sprintf("no features available for %s: %s", e.Key, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *NoFeaturesError) Unwrap() error { return e.Err }

func (e *NoFeaturesError) Is(target error) bool { return target == ErrNoFeatures }

// PredictionError wraps a failure of the scoring call.
type PredictionError struct {
	Key SessionKey
	Err error
}

func (e *PredictionError) Error() string {
	return fmt.Sprintf("prediction failed for %s: %v", e.Key, e.Err)
}

func (e *PredictionError) Unwrap() error { return e.Err }

// ReportingError wraps a failure to forward a result downstream.
type ReportingError struct {
	Key SessionKey
	Err error
}

func (e *ReportingError) Error() string {
	return fmt.Sprintf("reporting failed for %s: %v", e.Key, e.Err)
}

func (e *ReportingError) Unwrap() error { return e.Err }
