package anthropic

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// DecodeJSON extracts the first JSON object from a model reply and decodes
// it into out. Markdown code fences and surrounding prose are ignored.
func DecodeJSON(text string, out any) error {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return eris.Errorf("anthropic: no JSON object in reply %q", abbreviate(text, 80))
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), out); err != nil {
		return eris.Wrap(err, "anthropic: decode JSON reply")
	}
	return nil
}

func abbreviate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
