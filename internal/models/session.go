package models

import (
	"fmt"
	"time"
)

// Session ties a prompt to its parsed intent, executed plan and the
// playlist snapshots produced over its lifetime. Mutations load the
// session's intent so refinement and backfill stay consistent with the
// original request.
type Session struct {
	ID        string
	Sequence  int
	Prompt    string
	Intent    Intent
	Plan      ExecutionPlan
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// NewSession constructs a session for a prompt. ID and Sequence are
// assigned by the repository on create.
func NewSession(prompt string, in Intent, plan ExecutionPlan) *Session {
	now := time.Now()
	return &Session{
		Prompt:    prompt,
		Intent:    in,
		Plan:      plan,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks the session is persistable.
func (s *Session) Validate() error {
	if s.Prompt == "" {
		return fmt.Errorf("session prompt must not be empty")
	}
	return s.Intent.Validate()
}
