// Package outcome holds the tagged result returned at every consumed-service boundary, so callers
// can tell "nothing to do" apart from "the call failed".
package outcome

import "fmt"

type Status int

const (
	Ok Status = iota + 1
	Empty
	Failed
)

func (s Status) String() string {
	switch s {
	case Ok:
		return "ok"
	case Empty:
		return "empty"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// MarshalText lets a Status appear in JSON reports as its name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result carries rows on success, nothing when empty and the cause when failed.
type Result[T any] struct {
	Status Status
	Rows   []T
	Err    error
}

// Success returns Ok for a non-empty rows slice and Empty otherwise.
func Success[T any](rows []T) Result[T] {
	if len(rows) == 0 {
		return Result[T]{Status: Empty}
	}
	return Result[T]{Status: Ok, Rows: rows}
}

// Failure wraps the soft failure err.
func Failure[T any](err error) Result[T] {
	return Result[T]{Status: Failed, Err: err}
}

func (r Result[T]) IsOk() bool     { return r.Status == Ok }
func (r Result[T]) IsEmpty() bool  { return r.Status == Empty }
func (r Result[T]) IsFailed() bool { return r.Status == Failed }

// Len is the number of rows carried, zero unless Ok.
func (r Result[T]) Len() int { return len(r.Rows) }

func (r Result[T]) String() string {
	switch r.Status {
	case Ok:
		return fmt.Sprintf("ok(%d rows)", len(r.Rows))
	case Failed:
		return fmt.Sprintf("failed(%v)", r.Err)
	}
	return r.Status.String()
}
