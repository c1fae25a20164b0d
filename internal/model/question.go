package model

import (
	"time"

	"github.com/google/uuid"
)

// Question statuses.
const (
	StatusPending  = "pending"
	StatusAnswered = "answered"
)

// Question represents a submitted question in the system.
type Question struct {
	ID           uuid.UUID `json:"id"`            // unique identifier for the question
	Category     string    `json:"category"`      // topic tag, e.g. "prayer", "fasting"
	QuestionText string    `json:"question_text"` // user-authored text
	Status       string    `json:"status"`        // current state, e.g. "pending", "answered"
	CreatedAt    time.Time `json:"created_at"`    // timestamp when the question was created
	UpdatedAt    time.Time `json:"updated_at"`    // timestamp when the question was last updated
}
