package model

// Status tags how a pipeline stage produced its value.
type Status string

const (
	// StatusSuccess means the value is the real result of the stage.
	StatusSuccess Status = "success"
	// StatusDegraded means an upstream failed and the value is a sentinel.
	StatusDegraded Status = "degraded"
	// StatusFailure means data access failed and the value is empty.
	StatusFailure Status = "failure"
)

// Outcome carries the always-usable value of a stage together with how it was produced.
// Err is set for degraded and failed outcomes.
type Outcome[T any] struct {
	Value  T
	Status Status
	Err    error
}

// NewSuccess returns a successful outcome.
func NewSuccess[T any](value T) Outcome[T] {
	return Outcome[T]{Value: value, Status: StatusSuccess}
}

// NewDegraded returns an outcome whose value is a fallback for a failed upstream.
func NewDegraded[T any](fallback T, err error) Outcome[T] {
	return Outcome[T]{Value: fallback, Status: StatusDegraded, Err: err}
}

// NewFailure returns an outcome with an empty value after a data-access failure.
func NewFailure[T any](empty T, err error) Outcome[T] {
	return Outcome[T]{Value: empty, Status: StatusFailure, Err: err}
}

// IsSuccess reports whether the stage succeeded.
func (o Outcome[T]) IsSuccess() bool {
	return o.Status == StatusSuccess
}
