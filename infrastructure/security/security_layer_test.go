package security

import (
	"io"
	"testing"

	"webagent/domain/entities"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func testLayer() *SecurityLayer {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewSecurityLayer(logger)
}

func TestRiskLevel(t *testing.T) {
	s := testLayer()

	tests := []struct {
		name string
		rec  entities.ElementRecord
		want string
	}{
		{"plain link", entities.ElementRecord{TagName: "a", Text: "About us"}, "low"},
		{"delete button", entities.ElementRecord{TagName: "button", Text: "Delete account"}, "high"},
		{"destructive aria-label", entities.ElementRecord{TagName: "button", AriaLabel: "Remove item"}, "high"},
		{"checkout button", entities.ElementRecord{TagName: "button", Text: "Checkout"}, "high"},
		{"submit button", entities.ElementRecord{TagName: "button", InputType: "submit", Text: "Search"}, "medium"},
		{"plain button", entities.ElementRecord{TagName: "button", Text: "Next page"}, "low"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.RiskLevel(tt.rec))
		})
	}
}

func TestShouldConfirmClick(t *testing.T) {
	s := testLayer()

	assert.True(t, s.ShouldConfirmClick(entities.ElementRecord{Text: "Pay now"}))
	assert.False(t, s.ShouldConfirmClick(entities.ElementRecord{Text: "Read more"}))
	// Medium risk runs without confirmation.
	assert.False(t, s.ShouldConfirmClick(entities.ElementRecord{TagName: "button", InputType: "submit"}))
}
