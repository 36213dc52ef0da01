package entities

import "fmt"

// PageNotReadyError reports that script execution against the page failed
// outright (disconnected, navigating). Not retried internally.
type PageNotReadyError struct {
	Cause error
}

func (e *PageNotReadyError) Error() string {
	return fmt.Sprintf("page not ready: %v", e.Cause)
}

func (e *PageNotReadyError) Unwrap() error {
	return e.Cause
}

// ElementStaleError reports that an element handle from a prior annotation
// pass no longer corresponds to a live node.
type ElementStaleError struct {
	Index int
	Cause error
}

func (e *ElementStaleError) Error() string {
	return fmt.Sprintf("element %d is stale: %v", e.Index, e.Cause)
}

func (e *ElementStaleError) Unwrap() error {
	return e.Cause
}

// IndexOutOfRangeError reports a requested element index not present in the
// last annotation pass. The request has no side effect.
type IndexOutOfRangeError struct {
	Index int
	Count int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("element index %d out of range (have %d elements)", e.Index, e.Count)
}

// InteractionError reports a failed interaction with the page that is neither
// a stale handle nor an index miss.
type InteractionError struct {
	Op    string
	Cause error
}

func (e *InteractionError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Cause)
}

func (e *InteractionError) Unwrap() error {
	return e.Cause
}
