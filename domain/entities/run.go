package entities

import (
	"time"

	"github.com/google/uuid"
)

// Session identifies one agent run.
type Session struct {
	ID      string `json:"id"`
	AppName string `json:"app_name"`
	UserID  string `json:"user_id"`
}

// NewSession creates a session with a fresh identifier.
func NewSession(appName, userID string) Session {
	return Session{
		ID:      uuid.NewString(),
		AppName: appName,
		UserID:  userID,
	}
}

// RunRecord is the persisted trace of one agent run.
type RunRecord struct {
	SessionID   string     `json:"session_id"`
	Task        string     `json:"task"`
	Decisions   []Decision `json:"decisions,omitempty"`
	FinalAnswer string     `json:"final_answer,omitempty"`
	Completed   bool       `json:"completed"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  time.Time  `json:"finished_at"`
}
