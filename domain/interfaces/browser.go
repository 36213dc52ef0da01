package interfaces

import (
	"context"

	"webagent/domain/entities"
)

// Browser is the page automation layer the decision loop drives. All methods
// are serialized by the caller; Observe and ClearMarkers must never run
// concurrently for the same page.
type Browser interface {
	// Navigate navigates the page to a URL
	Navigate(ctx context.Context, url string) error

	// Observe runs one annotation pass: discovers interactive elements,
	// draws numbered markers over them and returns the annotation with
	// its element handles and formatted description
	Observe(ctx context.Context, mode entities.ColorMode) (*entities.Annotation, error)

	// Screenshot captures the full page, markers included if present
	Screenshot(ctx context.Context) ([]byte, error)

	// ClearMarkers removes the markers of a previous Observe call;
	// idempotent per annotation
	ClearMarkers(ctx context.Context, annotation *entities.Annotation) error

	// CurrentURL returns the current page URL
	CurrentURL() string

	// Title returns the current page title
	Title() string

	// SaveState persists cookies and storage for the next session
	SaveState() error

	// Close closes the browser and saves state
	Close() error
}
