package browser

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"webagent/domain/entities"
)

const maxLabelTextLength = 200

var textInputTypes = map[string]bool{
	"text":     true,
	"search":   true,
	"password": true,
	"email":    true,
	"tel":      true,
}

var buttonTypes = map[string]bool{
	"submit": true,
	"button": true,
}

var controlTags = map[string]bool{
	"button":   true,
	"input":    true,
	"textarea": true,
}

// formatLine applies the inclusion filter to one record and returns its
// formatted description line. Included reports whether the record appears in
// the description at all; elements filtered out still keep their marker and
// handle.
func formatLine(rec entities.ElementRecord) (line string, included bool) {
	tag := strings.ToLower(rec.TagName)

	if rec.Text == "" {
		// Empty-text elements are only worth describing when they are
		// fillable or pressable controls. Non-control elements are
		// dropped here even when they carry an aria-label.
		isTextInput := tag == "input" && textInputTypes[rec.InputType]
		isButton := tag == "button" && buttonTypes[rec.InputType]
		if !isTextInput && tag != "textarea" && !isButton {
			return "", false
		}
		label := rec.AriaLabel
		return fmt.Sprintf("[%d]: <%s> %q;", rec.Index, tag, label), true
	}

	if utf8.RuneCountInString(rec.Text) >= maxLabelTextLength {
		return "", false
	}
	// Inline image markup dressed up as text is useless to the model.
	if strings.Contains(rec.Text, "<img") && strings.Contains(rec.Text, "src=") {
		return "", false
	}

	withAria := rec.AriaLabel != "" && rec.AriaLabel != rec.Text
	if controlTags[tag] {
		if withAria {
			return fmt.Sprintf("[%d]: <%s> %q, %q;", rec.Index, tag, rec.Text, rec.AriaLabel), true
		}
		return fmt.Sprintf("[%d]: <%s> %q;", rec.Index, tag, rec.Text), true
	}
	if withAria {
		return fmt.Sprintf("[%d]: %q, %q;", rec.Index, rec.Text, rec.AriaLabel), true
	}
	return fmt.Sprintf("[%d]: %q;", rec.Index, rec.Text), true
}

// formatRecords builds the tab-joined element description for one annotation
// pass.
func formatRecords(records []entities.ElementRecord) string {
	lines := make([]string, 0, len(records))
	for _, rec := range records {
		if line, ok := formatLine(rec); ok {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\t")
}
