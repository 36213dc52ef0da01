package security

import (
	"strings"

	"webagent/domain/entities"
	"webagent/domain/interfaces"

	"github.com/sirupsen/logrus"
)

type SecurityLayer struct {
	logger *logrus.Logger
}

func NewSecurityLayer(logger *logrus.Logger) *SecurityLayer {
	return &SecurityLayer{
		logger: logger,
	}
}

var destructiveKeywords = []string{
	"delete", "remove", "удалить", "удаление",
	"cancel", "отменить", "отмена",
	"clear", "очистить",
	"reset", "сброс",
}

var paymentKeywords = []string{
	"pay", "purchase", "buy now", "checkout", "order now",
	"оплатить", "купить", "заказать",
}

// ShouldConfirmClick - reports whether the click target needs confirmation
func (s *SecurityLayer) ShouldConfirmClick(rec entities.ElementRecord) bool {
	return s.RiskLevel(rec) == "high"
}

// RiskLevel - classifies the click target by its visible label
func (s *SecurityLayer) RiskLevel(rec entities.ElementRecord) string {
	label := strings.ToLower(rec.Text + " " + rec.AriaLabel)

	for _, keyword := range paymentKeywords {
		if strings.Contains(label, keyword) {
			return "high"
		}
	}
	for _, keyword := range destructiveKeywords {
		if strings.Contains(label, keyword) {
			return "high"
		}
	}

	// Submitting forms can have side effects beyond the current page.
	if rec.TagName == "button" && rec.InputType == "submit" {
		return "medium"
	}

	return "low"
}

// Ensure SecurityLayer implements the Security interface
var _ interfaces.Security = (*SecurityLayer)(nil)
