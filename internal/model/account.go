package model

import "time"

// Account is a tracked organization (a health system). Accounts are created
// out-of-band and are read-only to the ingestion pipeline.
type Account struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	Location  string    `json:"location,omitempty"`
	Website   string    `json:"website,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Seed is a crawl entry point owned by exactly one account.
type Seed struct {
	ID            string     `json:"id"`
	AccountID     string     `json:"account_id"`
	URL           string     `json:"url"`
	Active        bool       `json:"active"`
	Priority      int        `json:"priority,omitempty"`
	Label         string     `json:"label,omitempty"`
	LastCrawledAt *time.Time `json:"last_crawled_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}
