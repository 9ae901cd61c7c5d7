package model

// CrawledPage represents a page returned by the crawl service.
type CrawledPage struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	Markdown   string `json:"markdown"`
	StatusCode int    `json:"status_code"`
}

// CrawlResult holds the outcome of crawling one seed. An unsuccessful or
// empty result is a normal outcome, not an error.
type CrawlResult struct {
	Success bool          `json:"success"`
	Pages   []CrawledPage `json:"pages"`
	Source  string        `json:"source"` // "firecrawl" or "jina"
}

// TokenUsage tracks LLM token consumption across a pass.
type TokenUsage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	Cost         float64 `json:"cost"`
}

// Add accumulates other into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.Cost += other.Cost
}
