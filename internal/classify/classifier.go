// Package classify attributes unowned news documents to tracked accounts.
package classify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/account-intel/internal/config"
	"github.com/sells-group/account-intel/internal/model"
	"github.com/sells-group/account-intel/internal/store"
	"github.com/sells-group/account-intel/pkg/anthropic"
)

var (
	// ErrStoreRead means the candidate or account set could not be read.
	ErrStoreRead = eris.New("classify: store read failed")
	// ErrServiceMisconfigured means no completion client was supplied.
	ErrServiceMisconfigured = eris.New("classify: completion service not configured")
)

// NoMatch is the slug the model returns when no account fits.
const NoMatch = "none"

const systemPromptHeader = `You attribute news articles to the health system they are about.
Choose exactly one slug from the account list below, or "none" if the article is not primarily about any of them.
Respond with only a JSON object: {"slug": "<slug or none>"}

Accounts:
`

const userPrompt = `Title: %s
URL: %s

Article:
%s`

// Result reports one classification pass.
type Result struct {
	Candidates int              `json:"candidates"`
	Classified int              `json:"classified"`
	Unmatched  int              `json:"unmatched"`
	Duplicates int              `json:"duplicates"`
	Failed     int              `json:"failed"`
	Usage      model.TokenUsage `json:"usage"`
}

// Metrics flattens the result for run logs.
func (r *Result) Metrics() map[string]int {
	if r == nil {
		return nil
	}
	return map[string]int{
		"candidates": r.Candidates,
		"classified": r.Classified,
		"unmatched":  r.Unmatched,
		"duplicates": r.Duplicates,
		"failed":     r.Failed,
	}
}

// Classifier visits each unattributed, processed news document once per
// pass and asks the completion service which account it belongs to. Every
// visit is stamped so documents that stay unattributed rotate behind fresh
// ones on later passes.
type Classifier struct {
	store store.Store
	llm   anthropic.Client
	model string
	cfg   config.ClassifyConfig
	now   func() time.Time
}

// New creates a Classifier using the given completion model.
func New(st store.Store, llm anthropic.Client, model string, cfg config.ClassifyConfig) *Classifier {
	return &Classifier{store: st, llm: llm, model: model, cfg: cfg, now: time.Now}
}

type reply struct {
	Slug string `json:"slug"`
}

// ClassifyPending runs one pass over the pending news documents.
func (c *Classifier) ClassifyPending(ctx context.Context) (*Result, error) {
	if c.llm == nil {
		return nil, ErrServiceMisconfigured
	}

	docs, err := c.store.ListUnattributedNews(ctx, c.cfg.Limit)
	if err != nil {
		return nil, eris.Wrapf(ErrStoreRead, "list candidates: %v", err)
	}
	res := &Result{Candidates: len(docs)}
	if len(docs) == 0 {
		zap.L().Info("classify: no pending news documents")
		return res, nil
	}

	accounts, err := c.store.ListAccounts(ctx)
	if err != nil {
		return nil, eris.Wrapf(ErrStoreRead, "list accounts: %v", err)
	}
	if len(accounts) == 0 {
		zap.L().Warn("classify: no accounts to attribute to", zap.Int("candidates", len(docs)))
		res.Unmatched = len(docs)
		return res, nil
	}
	system := anthropic.CachedSystem(buildRoster(accounts))

	for i := range docs {
		if err := ctx.Err(); err != nil {
			return res, eris.Wrap(err, "classify: canceled")
		}
		c.classifyOne(ctx, system, &docs[i], res)
	}

	zap.L().Info("classify: pass complete",
		zap.Int("candidates", res.Candidates),
		zap.Int("classified", res.Classified),
		zap.Int("unmatched", res.Unmatched),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("failed", res.Failed),
		zap.Float64("cost_usd", res.Usage.Cost),
	)
	return res, nil
}

func (c *Classifier) classifyOne(ctx context.Context, system []anthropic.SystemBlock, doc *model.Document, res *Result) {
	log := zap.L().With(zap.String("document_id", doc.ID))
	if !c.attribute(ctx, log, system, doc, res) {
		return
	}
	if err := c.store.MarkClassifyAttempted(ctx, doc.ID, c.now()); err != nil {
		log.Warn("classify: mark attempted failed", zap.Error(err))
	}
}

// attribute classifies doc and reports whether it is still pending.
func (c *Classifier) attribute(ctx context.Context, log *zap.Logger, system []anthropic.SystemBlock, doc *model.Document, res *Result) bool {
	temp := 0.0
	resp, err := c.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       c.model,
		MaxTokens:   64,
		System:      system,
		Temperature: &temp,
		Messages: []anthropic.Message{{
			Role:    "user",
			Content: fmt.Sprintf(userPrompt, doc.Title, doc.SourceURL, model.TruncateUTF8(doc.RawText, c.cfg.MaxTextChars)),
		}},
	})
	if err != nil {
		res.Failed++
		log.Warn("classify: completion failed", zap.Error(err))
		return true
	}
	resp.Usage.LogCost(c.model, "classify")
	res.Usage.Add(model.TokenUsage{
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
		Cost:         resp.Usage.EstimateCost(c.model),
	})

	var out reply
	if err := anthropic.DecodeJSON(resp.Text(), &out); err != nil {
		res.Failed++
		log.Warn("classify: unparseable reply", zap.Error(err))
		return true
	}
	slug := strings.ToLower(strings.TrimSpace(out.Slug))
	if slug == "" || slug == NoMatch {
		res.Unmatched++
		return true
	}

	account, err := c.store.GetAccountBySlug(ctx, slug)
	if err != nil {
		res.Failed++
		log.Warn("classify: account lookup failed", zap.String("slug", slug), zap.Error(err))
		return true
	}
	if account == nil {
		res.Unmatched++
		log.Info("classify: model returned unknown slug", zap.String("slug", slug))
		return true
	}

	// The same story may already be stored under the account from an
	// earlier fetch; the unattributed copy is then redundant.
	existing, err := c.store.FindDocumentByFingerprint(ctx, &account.ID, doc.Fingerprint)
	if err != nil {
		res.Failed++
		log.Warn("classify: duplicate lookup failed", zap.Error(err))
		return true
	}
	if existing == nil {
		err = c.store.UpdateDocumentOwner(ctx, doc.ID, account.ID)
	}
	switch {
	case existing != nil || errors.Is(err, store.ErrDuplicateFingerprint):
		return c.dropDuplicate(ctx, log, doc, slug, res)
	case errors.Is(err, store.ErrAlreadyAttributed):
		res.Unmatched++
		log.Info("classify: document attributed elsewhere, skipping")
		return false
	case err != nil:
		res.Failed++
		log.Warn("classify: update owner failed", zap.Error(err))
		return true
	default:
		res.Classified++
		log.Debug("classify: attributed", zap.String("account", slug))
		return false
	}
}

func (c *Classifier) dropDuplicate(ctx context.Context, log *zap.Logger, doc *model.Document, slug string, res *Result) bool {
	if err := c.store.DeleteDocument(ctx, doc.ID); err != nil {
		res.Failed++
		log.Warn("classify: drop duplicate failed", zap.String("account", slug), zap.Error(err))
		return true
	}
	res.Duplicates++
	log.Info("classify: dropped duplicate of attributed document", zap.String("account", slug))
	return false
}

func buildRoster(accounts []model.Account) string {
	var b strings.Builder
	b.WriteString(systemPromptHeader)
	for _, a := range accounts {
		fmt.Fprintf(&b, "- %s: %s", a.Slug, a.Name)
		if a.Location != "" {
			fmt.Fprintf(&b, " (%s)", a.Location)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
