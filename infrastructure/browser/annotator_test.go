package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"testing"

	"webagent/domain/entities"

	"github.com/playwright-community/playwright-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type fakeMarker struct {
	removeCalls int
	removeErr   error
	detached    bool
	released    bool
}

func (m *fakeMarker) Remove(ctx context.Context) (bool, error) {
	m.removeCalls++
	if m.removeErr != nil {
		return false, m.removeErr
	}
	return !m.detached, nil
}

func (m *fakeMarker) Release() error {
	m.released = true
	return nil
}

// fakePage satisfies the evaluator seam of Annotate and records every plain
// Evaluate call, so tests can assert the stale-overlay sweep ran.
type fakePage struct {
	result    playwright.JSHandle
	resultErr error
	evals     []string
}

func (p *fakePage) EvaluateHandle(expression string, arg ...interface{}) (playwright.JSHandle, error) {
	if p.resultErr != nil {
		return nil, p.resultErr
	}
	return p.result, nil
}

func (p *fakePage) Evaluate(expression string, arg ...interface{}) (interface{}, error) {
	p.evals = append(p.evals, expression)
	return 0, nil
}

func (p *fakePage) sweptOverlays() bool {
	for _, expr := range p.evals {
		if strings.Contains(expr, "data-agent-marker") {
			return true
		}
	}
	return false
}

// fakeJSHandle overrides only the JSHandle methods Annotate touches.
type fakeJSHandle struct {
	playwright.JSHandle
	props    map[string]playwright.JSHandle
	propErr  map[string]error
	value    interface{}
	valueErr error
	element  playwright.ElementHandle
	disposed bool
}

func (h *fakeJSHandle) GetProperty(name string) (playwright.JSHandle, error) {
	if err := h.propErr[name]; err != nil {
		return nil, err
	}
	prop, ok := h.props[name]
	if !ok {
		return nil, fmt.Errorf("no property %q", name)
	}
	return prop, nil
}

func (h *fakeJSHandle) JSONValue() (interface{}, error) {
	return h.value, h.valueErr
}

func (h *fakeJSHandle) Dispose() error {
	h.disposed = true
	return nil
}

func (h *fakeJSHandle) AsElement() playwright.ElementHandle {
	return h.element
}

type fakePageElement struct {
	playwright.ElementHandle
}

// scriptResult shapes a fake annotation script result: count, metadata, and
// per-index rect and element handles.
func scriptResult(meta []interface{}, elementCount int) *fakeJSHandle {
	rects := make(map[string]playwright.JSHandle)
	elements := make(map[string]playwright.JSHandle)
	for i := 0; i < elementCount; i++ {
		rects[strconv.Itoa(i)] = &fakeJSHandle{}
		elements[strconv.Itoa(i)] = &fakeJSHandle{element: &fakePageElement{}}
	}
	return &fakeJSHandle{props: map[string]playwright.JSHandle{
		"count":    &fakeJSHandle{value: float64(elementCount)},
		"meta":     &fakeJSHandle{value: meta},
		"rects":    &fakeJSHandle{props: rects},
		"elements": &fakeJSHandle{props: elements},
	}}
}

func TestAnnotateBuildsMatchedSlices(t *testing.T) {
	a := NewAnnotator(testLogger())
	meta := []interface{}{
		map[string]interface{}{"tagName": "button", "type": "submit", "ariaLabel": "Send", "text": "Send"},
		map[string]interface{}{"tagName": "a", "text": "Home"},
	}
	page := &fakePage{result: scriptResult(meta, 2)}

	annotation, err := a.Annotate(context.Background(), page, entities.ColorFixed)
	require.NoError(t, err)

	assert.Len(t, annotation.Markers, 2)
	assert.Len(t, annotation.Elements, 2)
	assert.Len(t, annotation.Records, 2)
	assert.Equal(t, "button", annotation.Records[0].TagName)
	assert.Equal(t, "submit", annotation.Records[0].InputType)
	assert.Equal(t, 1, annotation.Records[1].Index)
	assert.Equal(t, "[0]: <button> \"Send\";\t[1]: \"Home\";", annotation.FormattedText)
	assert.False(t, page.sweptOverlays())
}

// A failure after the script has drawn must sweep the overlays off the page,
// otherwise a retry would draw a second numbering over the stale one.
func TestAnnotateMetadataMismatchSweepsOverlays(t *testing.T) {
	a := NewAnnotator(testLogger())
	meta := []interface{}{
		map[string]interface{}{"tagName": "a", "text": "Home"},
	}
	result := scriptResult(meta, 2)
	page := &fakePage{result: result}

	_, err := a.Annotate(context.Background(), page, entities.ColorFixed)

	var notReady *entities.PageNotReadyError
	require.ErrorAs(t, err, &notReady)
	assert.True(t, page.sweptOverlays())
	assert.True(t, result.disposed)
}

func TestAnnotateRectsPropertyFailureSweepsOverlays(t *testing.T) {
	a := NewAnnotator(testLogger())
	result := scriptResult([]interface{}{}, 0)
	result.propErr = map[string]error{"rects": errors.New("execution context destroyed")}
	page := &fakePage{result: result}

	_, err := a.Annotate(context.Background(), page, entities.ColorFixed)

	var notReady *entities.PageNotReadyError
	require.ErrorAs(t, err, &notReady)
	assert.True(t, page.sweptOverlays())
}

func TestAnnotateNonElementResultSweepsAndReleases(t *testing.T) {
	a := NewAnnotator(testLogger())
	meta := []interface{}{
		map[string]interface{}{"tagName": "a", "text": "Home"},
	}
	result := scriptResult(meta, 1)
	rect := result.props["rects"].(*fakeJSHandle).props["0"].(*fakeJSHandle)
	result.props["elements"].(*fakeJSHandle).props["0"] = &fakeJSHandle{element: nil}
	page := &fakePage{result: result}

	_, err := a.Annotate(context.Background(), page, entities.ColorFixed)

	var ierr *entities.InteractionError
	require.ErrorAs(t, err, &ierr)
	assert.True(t, page.sweptOverlays())
	assert.True(t, rect.disposed)
}

func TestAnnotateScriptFailureDoesNotSweep(t *testing.T) {
	a := NewAnnotator(testLogger())
	page := &fakePage{resultErr: errors.New("target closed")}

	_, err := a.Annotate(context.Background(), page, entities.ColorFixed)

	var notReady *entities.PageNotReadyError
	require.ErrorAs(t, err, &notReady)
	// The script cleans its own overlays when it throws mid-walk.
	assert.False(t, page.sweptOverlays())
}

func TestColorFunction(t *testing.T) {
	assert.Equal(t, "getFixedColor", colorFunction(entities.ColorFixed))
	assert.Equal(t, "getRandomColor", colorFunction(entities.ColorRandom))
}

func TestLabelScriptSubstitution(t *testing.T) {
	require.Equal(t, 1, strings.Count(labelScriptTemplate, "COLOR_FUNCTION"))

	fixed := strings.Replace(labelScriptTemplate, "COLOR_FUNCTION", colorFunction(entities.ColorFixed), 1)
	assert.Contains(t, fixed, "const pickColor = getFixedColor;")
	assert.NotContains(t, fixed, "COLOR_FUNCTION")

	random := strings.Replace(labelScriptTemplate, "COLOR_FUNCTION", colorFunction(entities.ColorRandom), 1)
	assert.Contains(t, random, "const pickColor = getRandomColor;")
}

func TestClearMarkersRemovesAll(t *testing.T) {
	a := NewAnnotator(testLogger())
	markers := []*fakeMarker{{}, {}, {}}

	annotation := &entities.Annotation{}
	for _, m := range markers {
		annotation.Markers = append(annotation.Markers, m)
	}

	err := a.ClearMarkers(context.Background(), annotation)
	require.NoError(t, err)
	assert.True(t, annotation.Cleared())
	for _, m := range markers {
		assert.Equal(t, 1, m.removeCalls)
		assert.True(t, m.released)
	}
}

func TestClearMarkersIdempotent(t *testing.T) {
	a := NewAnnotator(testLogger())
	marker := &fakeMarker{}
	annotation := &entities.Annotation{Markers: []entities.MarkerHandle{marker}}

	require.NoError(t, a.ClearMarkers(context.Background(), annotation))
	require.NoError(t, a.ClearMarkers(context.Background(), annotation))

	assert.Equal(t, 1, marker.removeCalls)
}

func TestClearMarkersNilAnnotation(t *testing.T) {
	a := NewAnnotator(testLogger())
	assert.NoError(t, a.ClearMarkers(context.Background(), nil))
}

// One dead marker must not stop the rest of the batch from being removed.
func TestClearMarkersSkipAndContinue(t *testing.T) {
	a := NewAnnotator(testLogger())
	first := &fakeMarker{removeErr: fmt.Errorf("execution context destroyed")}
	second := &fakeMarker{detached: true}
	third := &fakeMarker{}
	annotation := &entities.Annotation{
		Markers: []entities.MarkerHandle{first, second, third},
	}

	err := a.ClearMarkers(context.Background(), annotation)
	require.NoError(t, err)
	assert.Equal(t, 1, third.removeCalls)
	assert.True(t, first.released)
	assert.True(t, second.released)
	assert.True(t, third.released)
	assert.True(t, annotation.Cleared())
}

func TestClearMarkersCanceledContext(t *testing.T) {
	a := NewAnnotator(testLogger())
	marker := &fakeMarker{}
	annotation := &entities.Annotation{Markers: []entities.MarkerHandle{marker}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := a.ClearMarkers(ctx, annotation)
	require.Error(t, err)
	assert.Equal(t, 0, marker.removeCalls)
	assert.False(t, annotation.Cleared())
}

func TestIsDetachedError(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"Element is not attached to the DOM", true},
		{"node is detached from document", true},
		{"Protocol error (DOM.describeNode): No node found for given id", true},
		{"timeout 5000ms exceeded", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, isDetachedError(errors.New(tt.msg)), tt.msg)
	}
}

func TestAnnotationRecordLookup(t *testing.T) {
	annotation := &entities.Annotation{
		Records: []entities.ElementRecord{
			{Index: 0, TagName: "a", Text: "Home"},
			{Index: 1, TagName: "button", Text: "Send"},
		},
	}

	rec, ok := annotation.Record(1)
	require.True(t, ok)
	assert.Equal(t, "button", rec.TagName)

	_, ok = annotation.Record(2)
	assert.False(t, ok)
	_, ok = annotation.Record(-1)
	assert.False(t, ok)
}
