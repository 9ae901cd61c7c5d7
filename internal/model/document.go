package model

import "time"

// SourceKind identifies where a document came from.
type SourceKind string

const (
	SourceWebsite SourceKind = "website"
	SourceNews    SourceKind = "news"
)

// Valid reports whether k is a known source kind.
func (k SourceKind) Valid() bool {
	return k == SourceWebsite || k == SourceNews
}

// Document is a unit of crawled or externally-sourced content. A nil
// AccountID marks the document as unattributed (pending classification).
//
// No two documents in the same account scope share a fingerprint; all
// unattributed documents form one scope of their own.
type Document struct {
	ID          string     `json:"id"`
	AccountID   *string    `json:"account_id,omitempty"`
	SourceURL   string     `json:"source_url"`
	SourceKind  SourceKind `json:"source_kind"`
	Title       string     `json:"title"`
	RawText     string     `json:"raw_text"`
	Fingerprint string     `json:"fingerprint"`
	CrawledAt   time.Time  `json:"crawled_at"`
	Processed   bool       `json:"processed"`
}

// Attributed reports whether the document has an owning account.
func (d *Document) Attributed() bool {
	return d.AccountID != nil && *d.AccountID != ""
}

// EmbeddingText is the text submitted to the embedding service: the title
// followed by the raw text, truncated to maxChars when maxChars > 0.
func (d *Document) EmbeddingText(maxChars int) string {
	text := d.RawText
	if d.Title != "" {
		text = d.Title + "\n\n" + d.RawText
	}
	if maxChars > 0 && len(text) > maxChars {
		text = TruncateUTF8(text, maxChars)
	}
	return text
}

// DocumentEmbedding is the write-once vector derived from a document.
type DocumentEmbedding struct {
	DocumentID string    `json:"document_id"`
	Vector     []float32 `json:"vector"`
	Model      string    `json:"model"`
	CreatedAt  time.Time `json:"created_at"`
}

// TruncateUTF8 cuts s to at most n bytes without splitting a rune. A
// non-positive n leaves s unchanged.
func TruncateUTF8(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
