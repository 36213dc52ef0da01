package entities

import "context"

// ColorMode selects how marker colors are assigned during an annotation pass.
type ColorMode int

const (
	// ColorFixed draws every marker with the same fixed color.
	ColorFixed ColorMode = iota
	// ColorRandom draws each marker with an independently chosen color.
	ColorRandom
)

func (m ColorMode) String() string {
	if m == ColorRandom {
		return "random"
	}
	return "fixed"
}

// ElementRecord describes one interactive element discovered during an
// annotation pass. Index is zero-based and assigned in DOM traversal order;
// it is stable for the lifetime of the pass.
type ElementRecord struct {
	Index     int    `json:"index"`
	TagName   string `json:"tag_name"`
	InputType string `json:"input_type,omitempty"`
	AriaLabel string `json:"aria_label,omitempty"`
	Text      string `json:"text,omitempty"`
}

// MarkerHandle is a live reference to one overlay rectangle drawn on the page.
type MarkerHandle interface {
	// Remove detaches the marker node from the page. An already-detached
	// node is not an error; Remove reports whether the node was removed.
	Remove(ctx context.Context) (bool, error)
	// Release frees the underlying page handle.
	Release() error
}

// ElementNode is a live reference to one discovered page element.
type ElementNode interface {
	// Click clicks the element in the page.
	Click(ctx context.Context) error
	// Release frees the underlying page handle.
	Release() error
}

// Annotation is the result of one annotation pass over a page.
//
// Markers, Elements and Records always have equal length and share index
// correspondence. FormattedText references a filtered subset of those
// indices, so indices in the text may be non-contiguous but always refer
// back into Elements.
type Annotation struct {
	Records       []ElementRecord
	FormattedText string
	Markers       []MarkerHandle
	Elements      []ElementNode

	cleared  bool
	released bool
}

// Cleared reports whether the annotation's markers were already removed.
func (a *Annotation) Cleared() bool {
	return a.cleared
}

// MarkCleared flags the annotation after its markers were removed, making a
// repeated cleanup a no-op.
func (a *Annotation) MarkCleared() {
	a.cleared = true
}

// ReleaseElements frees the element handles of the pass. Handles live for one
// iteration only; the caller releases them once the pass's click window is
// over. Repeated calls are a no-op.
func (a *Annotation) ReleaseElements() {
	if a == nil || a.released {
		return
	}
	a.released = true
	for _, el := range a.Elements {
		el.Release()
	}
}

// Record returns the record at index, if it exists.
func (a *Annotation) Record(index int) (ElementRecord, bool) {
	if index < 0 || index >= len(a.Records) {
		return ElementRecord{}, false
	}
	return a.Records[index], true
}

// Observation is what the decision loop hands to the model for one iteration:
// the annotated page state captured between drawing and removing markers.
type Observation struct {
	URL         string
	Title       string
	ElementText string
	Screenshot  []byte
}
