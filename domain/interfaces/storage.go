package interfaces

import "webagent/domain/entities"

// Storage persists agent run traces.
type Storage interface {
	// SaveRun appends one run record
	SaveRun(run entities.RunRecord) error

	// LoadRuns loads all persisted run records
	LoadRuns() ([]entities.RunRecord, error)
}
