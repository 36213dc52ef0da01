package interfaces

import "webagent/domain/entities"

// Security assesses whether a click the model chose needs confirmation.
type Security interface {
	// ShouldConfirmClick reports whether clicking the element needs
	// explicit confirmation before execution
	ShouldConfirmClick(rec entities.ElementRecord) bool

	// RiskLevel returns "low", "medium" or "high" for the element
	RiskLevel(rec entities.ElementRecord) string
}
