package classify

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/account-intel/internal/model"
	"github.com/sells-group/account-intel/internal/store"
	"github.com/sells-group/account-intel/pkg/anthropic"
)

type mockAnthropic struct {
	mock.Mock
}

func (m *mockAnthropic) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func textReply(s string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: s}},
		Usage:   anthropic.TokenUsage{InputTokens: 400, OutputTokens: 8},
	}
}

// brokenStore fails candidate enumeration.
type brokenStore struct {
	store.Store
	err error
}

func (b *brokenStore) ListUnattributedNews(context.Context, int) ([]model.Document, error) {
	return nil, b.err
}

// blindStore never finds documents by fingerprint.
type blindStore struct {
	store.Store
}

func (b *blindStore) FindDocumentByFingerprint(context.Context, *string, string) (*model.Document, error) {
	return nil, nil
}
