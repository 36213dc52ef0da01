package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"webagent/application/tools"
	"webagent/domain/entities"
	"webagent/domain/interfaces"

	"github.com/sirupsen/logrus"
)

// ExhaustedMessage is reported when the iteration budget runs out without a
// final answer.
const ExhaustedMessage = "Unable to find a final answer within the maximum number of iterations."

// Config controls one agent instance.
type Config struct {
	MaxIterations int
	ColorMode     entities.ColorMode
	AllowedTools  []string
	AppName       string
	UserID        string

	// ConfirmFunc is asked before executing a click the security layer
	// flagged. A nil ConfirmFunc denies flagged clicks.
	ConfirmFunc func(prompt string) bool
}

// DefaultConfig - returns default agent configuration
func DefaultConfig() Config {
	return Config{
		MaxIterations: 10,
		ColorMode:     entities.ColorFixed,
		AppName:       "webagent",
		UserID:        "default_user",
	}
}

type Agent struct {
	ai       interfaces.AI
	browser  interfaces.Browser
	security interfaces.Security
	storage  interfaces.Storage
	registry *tools.Registry
	logger   *logrus.Logger
	cfg      Config
	history  []entities.Decision
}

// NewAgent - creates new agent instance
func NewAgent(ai interfaces.AI, browser interfaces.Browser, security interfaces.Security, storage interfaces.Storage, registry *tools.Registry, logger *logrus.Logger, cfg Config) *Agent {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultConfig().MaxIterations
	}
	if cfg.AppName == "" {
		cfg.AppName = DefaultConfig().AppName
	}
	if cfg.UserID == "" {
		cfg.UserID = DefaultConfig().UserID
	}
	return &Agent{
		ai:       ai,
		browser:  browser,
		security: security,
		storage:  storage,
		registry: registry.Allowed(cfg.AllowedTools),
		logger:   logger,
		cfg:      cfg,
		history:  make([]entities.Decision, 0),
	}
}

// Run executes the decision loop for one task until the model answers or the
// iteration budget is exhausted.
func (a *Agent) Run(ctx context.Context, task string) (string, error) {
	session := entities.NewSession(a.cfg.AppName, a.cfg.UserID)
	a.history = make([]entities.Decision, 0)
	startedAt := time.Now()

	a.logger.WithFields(logrus.Fields{
		"session": session.ID,
		"task":    task,
	}).Info("agent run started")

	state := &tools.State{}
	defer func() {
		state.Annotation.ReleaseElements()
	}()

	for iteration := 0; iteration < a.cfg.MaxIterations; iteration++ {
		select {
		case <-ctx.Done():
			a.saveRun(session, task, "", false, startedAt)
			return "", fmt.Errorf("task canceled: %w", ctx.Err())
		default:
		}

		annotation, err := a.browser.Observe(ctx, a.cfg.ColorMode)
		if err != nil {
			a.saveRun(session, task, "", false, startedAt)
			return "", fmt.Errorf("failed to observe page: %w", err)
		}

		// Capture the annotated state before the markers come off.
		screenshot, err := a.browser.Screenshot(ctx)
		if err != nil {
			a.logger.WithError(err).Warn("screenshot failed, continuing without image")
			screenshot = nil
		}

		if err := a.browser.ClearMarkers(ctx, annotation); err != nil {
			a.logger.WithError(err).Warn("failed to clear markers")
		}

		obs := entities.Observation{
			URL:         a.browser.CurrentURL(),
			Title:       a.browser.Title(),
			ElementText: annotation.FormattedText,
			Screenshot:  screenshot,
		}

		// The previous pass's click window is over; free its handles.
		state.Annotation.ReleaseElements()
		state.Annotation = annotation

		decision, err := a.ai.DecideNextAction(ctx, task, obs, a.history)
		if err != nil {
			a.saveRun(session, task, "", false, startedAt)
			return "", fmt.Errorf("failed to decide next action: %w", err)
		}

		if decision.Tool == "" {
			a.logger.WithField("reasoning", decision.Reasoning).Info("model produced no action")
			a.history = append(a.history, decision)
			continue
		}

		a.logger.WithFields(logrus.Fields{
			"iteration": iteration + 1,
			"tool":      decision.Tool,
		}).Info("executing decision")

		if denied := a.deniedByGuard(decision, annotation); denied != "" {
			decision.Error = denied
			a.history = append(a.history, decision)
			continue
		}

		if _, err := a.registry.Dispatch(ctx, state, decision); err != nil {
			a.logger.WithError(err).Warn("tool execution failed")
			decision.Error = err.Error()
			a.history = append(a.history, decision)

			var oor *entities.IndexOutOfRangeError
			var stale *entities.ElementStaleError
			switch {
			case errors.As(err, &oor), errors.As(err, &stale):
				// The model acted on an outdated view; the next
				// observation corrects it.
			case ctx.Err() != nil:
				a.saveRun(session, task, "", false, startedAt)
				return "", fmt.Errorf("task canceled: %w", ctx.Err())
			}
			continue
		}

		a.history = append(a.history, decision)

		if state.Answered {
			a.logger.WithField("session", session.ID).Info("final answer recorded")
			if err := a.browser.SaveState(); err != nil {
				a.logger.WithError(err).Warn("failed to save browser state")
			}
			a.saveRun(session, task, state.FinalAnswer, true, startedAt)
			return state.FinalAnswer, nil
		}
	}

	a.saveRun(session, task, "", false, startedAt)
	return ExhaustedMessage, nil
}

// deniedByGuard consults the security layer for click decisions and returns a
// denial message when the click may not proceed.
func (a *Agent) deniedByGuard(decision entities.Decision, annotation *entities.Annotation) string {
	if decision.Tool != tools.ToolClickWebElement {
		return ""
	}

	num, ok := decisionIndex(decision)
	if !ok {
		return ""
	}
	rec, ok := annotation.Record(num)
	if !ok {
		return ""
	}
	if !a.security.ShouldConfirmClick(rec) {
		return ""
	}

	prompt := fmt.Sprintf("Element %d (%s %q) looks %s risk. Click it?", rec.Index, rec.TagName, rec.Text, a.security.RiskLevel(rec))
	if a.cfg.ConfirmFunc != nil && a.cfg.ConfirmFunc(prompt) {
		return ""
	}
	a.logger.WithField("element", rec.Index).Warn("risky click denied")
	return fmt.Sprintf("click on element %d denied by security policy", rec.Index)
}

func decisionIndex(decision entities.Decision) (int, bool) {
	v, ok := decision.Arguments["web_element_num"]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func (a *Agent) saveRun(session entities.Session, task, answer string, completed bool, startedAt time.Time) {
	if a.storage == nil {
		return
	}
	record := entities.RunRecord{
		SessionID:   session.ID,
		Task:        task,
		Decisions:   a.history,
		FinalAnswer: answer,
		Completed:   completed,
		StartedAt:   startedAt,
		FinishedAt:  time.Now(),
	}
	if err := a.storage.SaveRun(record); err != nil {
		a.logger.WithError(err).Warn("failed to persist run record")
	}
}

// GetHistory - returns decision history of the last run
func (a *Agent) GetHistory() []entities.Decision {
	return a.history
}
