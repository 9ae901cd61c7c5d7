// Package accounts loads tracked accounts and their crawl seeds from a YAML
// roster. It is the only writer of accounts and seeds.
package accounts

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/account-intel/internal/model"
	"github.com/sells-group/account-intel/internal/store"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// File is the roster document.
type File struct {
	Accounts []Entry `yaml:"accounts"`
}

// Entry is one account in the roster.
type Entry struct {
	Slug     string      `yaml:"slug"`
	Name     string      `yaml:"name"`
	Location string      `yaml:"location"`
	Website  string      `yaml:"website"`
	Seeds    []SeedEntry `yaml:"seeds"`
}

// SeedEntry is one crawl entry point. Active defaults to true.
type SeedEntry struct {
	URL      string `yaml:"url"`
	Active   *bool  `yaml:"active"`
	Priority int    `yaml:"priority"`
	Label    string `yaml:"label"`
}

// ImportResult counts what an import wrote.
type ImportResult struct {
	Accounts int `json:"accounts"`
	Seeds    int `json:"seeds"`
}

// LoadFile reads and validates a roster file.
func LoadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "accounts: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return Parse(f)
}

// Parse decodes and validates a roster.
func Parse(r io.Reader) (*File, error) {
	var file File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && err != io.EOF {
		return nil, eris.Wrap(err, "accounts: parse roster")
	}
	if err := file.Validate(); err != nil {
		return nil, err
	}
	return &file, nil
}

// Validate checks slugs, names and seed URLs.
func (f *File) Validate() error {
	var errs []string
	seen := make(map[string]bool)
	for i, e := range f.Accounts {
		switch {
		case !slugPattern.MatchString(e.Slug):
			errs = append(errs, fmt.Sprintf("account %d: invalid slug %q", i, e.Slug))
		case seen[e.Slug]:
			errs = append(errs, fmt.Sprintf("account %d: duplicate slug %q", i, e.Slug))
		}
		seen[e.Slug] = true
		if strings.TrimSpace(e.Name) == "" {
			errs = append(errs, fmt.Sprintf("account %q: name is required", e.Slug))
		}
		for _, s := range e.Seeds {
			u, err := url.Parse(s.URL)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				errs = append(errs, fmt.Sprintf("account %q: invalid seed url %q", e.Slug, s.URL))
			}
		}
	}
	if len(errs) > 0 {
		return eris.Errorf("accounts: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Import upserts every account by slug and every seed by (account, url).
// Documents are never touched.
func Import(ctx context.Context, st store.Store, file *File) (*ImportResult, error) {
	res := &ImportResult{}
	for _, e := range file.Accounts {
		a := &model.Account{
			Slug:     e.Slug,
			Name:     strings.TrimSpace(e.Name),
			Location: e.Location,
			Website:  e.Website,
		}
		if err := st.UpsertAccount(ctx, a); err != nil {
			return res, eris.Wrapf(err, "accounts: upsert %s", e.Slug)
		}
		res.Accounts++

		for _, s := range e.Seeds {
			active := true
			if s.Active != nil {
				active = *s.Active
			}
			if err := st.UpsertSeed(ctx, &model.Seed{
				AccountID: a.ID,
				URL:       s.URL,
				Active:    active,
				Priority:  s.Priority,
				Label:     s.Label,
			}); err != nil {
				return res, eris.Wrapf(err, "accounts: upsert seed %s for %s", s.URL, e.Slug)
			}
			res.Seeds++
		}
	}
	zap.L().Info("accounts: import complete", zap.Int("accounts", res.Accounts), zap.Int("seeds", res.Seeds))
	return res, nil
}
