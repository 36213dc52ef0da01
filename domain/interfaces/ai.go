package interfaces

import (
	"context"

	"webagent/domain/entities"
)

// AI decides the next tool call from the annotated page state.
type AI interface {
	// DecideNextAction returns the model's decision for the current
	// iteration given the task, the observation and the decision history
	DecideNextAction(ctx context.Context, task string, obs entities.Observation, history []entities.Decision) (entities.Decision, error)
}
