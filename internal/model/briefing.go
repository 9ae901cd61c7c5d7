package model

import "time"

// Briefing is a generated narrative summarizing an account's recent activity.
type Briefing struct {
	ID            string    `json:"id"`
	AccountID     string    `json:"account_id"`
	Date          time.Time `json:"date"`
	Headline      string    `json:"headline"`
	Summary       string    `json:"summary"`
	Signals       []string  `json:"signals"`
	DocumentCount int       `json:"document_count"`
	Model         string    `json:"model"`
	CreatedAt     time.Time `json:"created_at"`
}
