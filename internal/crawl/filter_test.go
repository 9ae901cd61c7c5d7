package crawl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/account-intel/internal/model"
)

func TestPageFilter_Excluded(t *testing.T) {
	t.Parallel()
	f := NewPageFilter([]string{"/careers/*", "/*.pdf", "/Login*"})

	tests := []struct {
		name     string
		url      string
		excluded bool
	}{
		{"careers job", "https://acme.org/careers/nurse", true},
		{"careers root", "https://acme.org/careers", true},
		{"careers deep", "https://acme.org/careers/2026/denver/rn", true},
		{"root pdf", "https://acme.org/annual-report.pdf", true},
		{"login case", "https://acme.org/LOGIN", true},
		{"news", "https://acme.org/news/expansion", false},
		{"about", "https://acme.org/about", false},
		{"nested pdf", "https://acme.org/docs/report.pdf", false},
		{"invalid", "://nope", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.excluded, f.Excluded(tt.url))
		})
	}
}

func TestPageFilter_Defaults(t *testing.T) {
	f := NewPageFilter(nil)
	assert.True(t, f.Excluded("https://acme.org/privacy-policy"))
	assert.True(t, f.Excluded("https://acme.org/jobs/123"))
	assert.False(t, f.Excluded("https://acme.org/blog/new-campus"))
	assert.False(t, f.Excluded("https://acme.org/press/release"))
}

func TestPageFilter_Keep(t *testing.T) {
	f := NewPageFilter([]string{"/careers/*"})
	seed := "https://acme.org/careers/news"

	ok, _ := f.Keep(model.CrawledPage{URL: seed, Markdown: "Hiring update"}, seed)
	assert.True(t, ok, "seed page is never path-excluded")

	ok, reason := f.Keep(model.CrawledPage{URL: "https://acme.org/careers/rn", Markdown: "RN role"}, seed)
	assert.False(t, ok)
	assert.Equal(t, "excluded_path", reason)

	ok, reason = f.Keep(model.CrawledPage{URL: "https://acme.org/about", Markdown: "Checking your browser before accessing acme.org"}, seed)
	assert.False(t, ok)
	assert.Equal(t, string(BlockChallenge), reason)
}

func TestDetectBlock(t *testing.T) {
	assert.Equal(t, BlockChallenge, DetectBlock("Just a moment... Cloudflare challenge"))
	assert.Equal(t, BlockCaptcha, DetectBlock("Please complete the reCAPTCHA to continue"))
	assert.Equal(t, BlockJSShell, DetectBlock("You need to enable JavaScript to run this app."))
	assert.Equal(t, BlockNone, DetectBlock("Acme Health opens a new cardiac wing in Denver."))

	long := strings.Repeat("Acme expands services. ", 200) + "captcha"
	assert.Equal(t, BlockNone, DetectBlock(long))
}
