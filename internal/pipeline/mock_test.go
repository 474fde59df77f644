package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/labelsense/labelsense/pkg/anthropic"
)

// --- Oracle Mock ---

type mockOracle struct {
	mock.Mock
}

func (m *mockOracle) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

// oracleText wraps a raw completion string in a response shape.
func oracleText(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}
}

// --- Evidence Mock ---

type mockEvidence struct {
	mock.Mock
}

func (m *mockEvidence) Retrieve(ctx context.Context, terms []string, k int) (string, bool) {
	args := m.Called(ctx, terms, k)
	return args.String(0), args.Bool(1)
}
