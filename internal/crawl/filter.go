package crawl

import (
	"net/url"
	"path"
	"strings"

	"github.com/sells-group/account-intel/internal/model"
)

// BlockKind names the anti-bot wall a page was served instead of content.
type BlockKind string

const (
	BlockNone      BlockKind = ""
	BlockChallenge BlockKind = "challenge"
	BlockCaptcha   BlockKind = "captcha"
	BlockJSShell   BlockKind = "js_shell"
)

// blockScanLimit bounds block detection to short pages. Real articles that
// mention captchas or Cloudflare are long enough to pass.
const blockScanLimit = 3000

// defaultExcludePaths skip pages that never carry account signals.
var defaultExcludePaths = []string{
	"/careers/*",
	"/jobs/*",
	"/login*",
	"/cart/*",
	"/privacy*",
	"/terms*",
	"/*.pdf",
}

// DetectBlock reports whether converted page content is a bot challenge,
// captcha or empty JavaScript shell.
func DetectBlock(content string) BlockKind {
	if len(content) > blockScanLimit {
		return BlockNone
	}
	lower := strings.ToLower(content)

	if strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "cf-browser-verification") ||
		strings.Contains(lower, "cloudflare") && strings.Contains(lower, "challenge") {
		return BlockChallenge
	}
	if strings.Contains(lower, "captcha") {
		return BlockCaptcha
	}
	if strings.Contains(lower, "enable javascript") || strings.Contains(lower, "requires javascript") {
		return BlockJSShell
	}
	return BlockNone
}

// PageFilter drops crawled pages by path and by block detection.
type PageFilter struct {
	patterns []string
}

// NewPageFilter creates a filter from glob patterns such as "/careers/*" or
// "/*.pdf". No patterns means the defaults.
func NewPageFilter(patterns []string) *PageFilter {
	if len(patterns) == 0 {
		patterns = defaultExcludePaths
	}
	lowered := make([]string, len(patterns))
	for i, p := range patterns {
		lowered[i] = strings.ToLower(p)
	}
	return &PageFilter{patterns: lowered}
}

// Excluded reports whether rawURL matches an exclude pattern. Unparseable
// URLs are excluded.
func (f *PageFilter) Excluded(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	p := strings.ToLower(u.Path)
	for _, pattern := range f.patterns {
		if matchSegmented(pattern, p) {
			return true
		}
	}
	return false
}

// Keep reports whether page should become a document. The seed page is
// never excluded by path.
func (f *PageFilter) Keep(page model.CrawledPage, seedURL string) (bool, string) {
	if page.URL != seedURL && f.Excluded(page.URL) {
		return false, "excluded_path"
	}
	if kind := DetectBlock(page.Markdown); kind != BlockNone {
		return false, string(kind)
	}
	return true, ""
}

// matchSegmented is path.Match plus prefix matching for "/dir/*" patterns,
// so "/careers/*" also matches "/careers/a/b".
func matchSegmented(pattern, urlPath string) bool {
	if ok, _ := path.Match(pattern, urlPath); ok {
		return true
	}
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if urlPath == prefix || strings.HasPrefix(urlPath, prefix+"/") {
			return true
		}
	}
	return false
}
