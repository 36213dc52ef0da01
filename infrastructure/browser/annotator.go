package browser

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"webagent/domain/entities"

	"github.com/playwright-community/playwright-go"
	"github.com/sirupsen/logrus"
)

// Annotator draws numbered markers over the interactive elements of a live
// page and produces the element description the decision loop feeds to the
// model. It holds no state between passes: the markers of a pass are returned
// inside the Annotation and the caller threads them back into ClearMarkers.
type Annotator struct {
	logger *logrus.Logger
}

// NewAnnotator - creates a new annotator
func NewAnnotator(logger *logrus.Logger) *Annotator {
	return &Annotator{logger: logger}
}

// colorFunction maps a color mode to the in-page color function name.
func colorFunction(mode entities.ColorMode) string {
	if mode == entities.ColorRandom {
		return "getRandomColor"
	}
	return "getFixedColor"
}

// pageEvaluator is the slice of the page API an annotation pass needs.
type pageEvaluator interface {
	EvaluateHandle(expression string, arg ...interface{}) (playwright.JSHandle, error)
	Evaluate(expression string, arg ...interface{}) (interface{}, error)
}

// Annotate runs one annotation pass against the page. On failure no partial
// marker set is left behind: the script removes its own overlays if it throws
// mid-walk, and a failure after the script returned removes the drawn
// overlays before the error propagates. The caller must re-verify page
// readiness and retry.
func (a *Annotator) Annotate(ctx context.Context, page pageEvaluator, mode entities.ColorMode) (*entities.Annotation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	script := strings.Replace(labelScriptTemplate, "COLOR_FUNCTION", colorFunction(mode), 1)

	result, err := page.EvaluateHandle(script)
	if err != nil {
		return nil, &entities.PageNotReadyError{Cause: err}
	}
	defer result.Dispose()

	count, err := intProperty(result, "count")
	if err != nil {
		a.removeStaleOverlays(page)
		return nil, &entities.PageNotReadyError{Cause: err}
	}

	records, err := a.decodeRecords(result, count)
	if err != nil {
		a.removeStaleOverlays(page)
		return nil, &entities.PageNotReadyError{Cause: err}
	}

	rectsHandle, err := result.GetProperty("rects")
	if err != nil {
		a.removeStaleOverlays(page)
		return nil, &entities.PageNotReadyError{Cause: err}
	}
	elementsHandle, err := result.GetProperty("elements")
	if err != nil {
		rectsHandle.Dispose()
		a.removeStaleOverlays(page)
		return nil, &entities.PageNotReadyError{Cause: err}
	}
	defer rectsHandle.Dispose()
	defer elementsHandle.Dispose()

	markers := make([]entities.MarkerHandle, 0, count)
	elements := make([]entities.ElementNode, 0, count)
	for i := 0; i < count; i++ {
		rect, err := rectsHandle.GetProperty(strconv.Itoa(i))
		if err != nil {
			a.failPass(page, markers, elements)
			return nil, &entities.PageNotReadyError{Cause: err}
		}
		markers = append(markers, &markerHandle{handle: rect})

		elem, err := elementsHandle.GetProperty(strconv.Itoa(i))
		if err != nil {
			a.failPass(page, markers, elements)
			return nil, &entities.PageNotReadyError{Cause: err}
		}
		node := elem.AsElement()
		if node == nil {
			a.failPass(page, markers, elements)
			return nil, &entities.InteractionError{
				Op:    "annotate",
				Cause: fmt.Errorf("result %d is not an element node", i),
			}
		}
		elements = append(elements, &elementNode{handle: node, index: i})
	}

	a.logger.WithFields(logrus.Fields{
		"elements": count,
		"color":    mode.String(),
	}).Debug("annotation pass complete")

	return &entities.Annotation{
		Records:       records,
		FormattedText: formatRecords(records),
		Markers:       markers,
		Elements:      elements,
	}, nil
}

// ClearMarkers removes every marker of a previous Annotate call. Removal is
// best effort per node: an already-detached marker is skipped and the rest of
// the batch still runs. Calling it again for the same annotation is a no-op.
func (a *Annotator) ClearMarkers(ctx context.Context, annotation *entities.Annotation) error {
	if annotation == nil || annotation.Cleared() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	removed := 0
	for i, marker := range annotation.Markers {
		ok, err := marker.Remove(ctx)
		if err != nil {
			a.logger.WithField("marker", i).WithError(err).Warn("marker removal failed")
		}
		if ok {
			removed++
		}
		if err := marker.Release(); err != nil {
			a.logger.WithField("marker", i).WithError(err).Debug("marker handle release failed")
		}
	}

	annotation.MarkCleared()
	a.logger.WithFields(logrus.Fields{
		"removed": removed,
		"total":   len(annotation.Markers),
	}).Debug("markers cleared")
	return nil
}

// decodeRecords reads the serializable metadata of the pass in one round trip.
func (a *Annotator) decodeRecords(result playwright.JSHandle, count int) ([]entities.ElementRecord, error) {
	metaHandle, err := result.GetProperty("meta")
	if err != nil {
		return nil, err
	}
	defer metaHandle.Dispose()

	metaValue, err := metaHandle.JSONValue()
	if err != nil {
		return nil, err
	}
	items, ok := metaValue.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected metadata shape %T", metaValue)
	}
	if len(items) != count {
		return nil, fmt.Errorf("metadata count %d does not match element count %d", len(items), count)
	}

	records := make([]entities.ElementRecord, 0, count)
	for i, item := range items {
		fields, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("unexpected metadata item shape %T", item)
		}
		records = append(records, entities.ElementRecord{
			Index:     i,
			TagName:   getString(fields, "tagName"),
			InputType: getString(fields, "type"),
			AriaLabel: getString(fields, "ariaLabel"),
			Text:      getString(fields, "text"),
		})
	}
	return records, nil
}

// failPass abandons a pass that failed mid-decode: the overlays already on
// the page are removed and the collected handles freed.
func (a *Annotator) failPass(page pageEvaluator, markers []entities.MarkerHandle, elements []entities.ElementNode) {
	a.removeStaleOverlays(page)
	for _, m := range markers {
		m.Release()
	}
	for _, e := range elements {
		e.Release()
	}
}

// removeStaleOverlays sweeps every tagged overlay off the page.
func (a *Annotator) removeStaleOverlays(page pageEvaluator) {
	if _, err := page.Evaluate(clearOverlaysScript); err != nil {
		a.logger.WithError(err).Warn("failed to remove stale overlays")
	}
}

// intProperty reads one integer property off a handle.
func intProperty(handle playwright.JSHandle, name string) (int, error) {
	prop, err := handle.GetProperty(name)
	if err != nil {
		return 0, err
	}
	defer prop.Dispose()

	value, err := prop.JSONValue()
	if err != nil {
		return 0, err
	}
	switch v := value.(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("property %s is %T, not a number", name, value)
	}
}

// markerHandle wraps the page handle of one overlay rectangle.
type markerHandle struct {
	handle playwright.JSHandle
}

func (m *markerHandle) Remove(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	value, err := m.handle.Evaluate(removeMarkerScript)
	if err != nil {
		return false, err
	}
	removed, _ := value.(bool)
	return removed, nil
}

func (m *markerHandle) Release() error {
	return m.handle.Dispose()
}

// elementNode wraps the page handle of one discovered element.
type elementNode struct {
	handle playwright.ElementHandle
	index  int
}

func (e *elementNode) Release() error {
	return e.handle.Dispose()
}

func (e *elementNode) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := e.handle.Click(playwright.ElementHandleClickOptions{
		Timeout: playwright.Float(5000),
	})
	if err == nil {
		return nil
	}
	if isDetachedError(err) {
		return &entities.ElementStaleError{Index: e.index, Cause: err}
	}
	return &entities.InteractionError{Op: fmt.Sprintf("click element %d", e.index), Cause: err}
}

// isDetachedError recognizes the driver's dead-node failures.
func isDetachedError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "detached") ||
		strings.Contains(msg, "not attached") ||
		strings.Contains(msg, "no node found")
}
