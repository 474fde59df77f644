package main

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/labelsense/labelsense/internal/model"
	"github.com/labelsense/labelsense/internal/store"
)

// mockStore is a testify mock over store.Store.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) SaveAnalysis(ctx context.Context, scan model.Scan, result *model.AnalysisResult) (*model.ScanDetail, error) {
	args := m.Called(ctx, scan, result)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ScanDetail), args.Error(1)
}

func (m *mockStore) GetScan(ctx context.Context, scanID string) (*model.ScanDetail, error) {
	args := m.Called(ctx, scanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ScanDetail), args.Error(1)
}

func (m *mockStore) ListScans(ctx context.Context, filter store.ScanFilter) ([]model.Scan, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Scan), args.Error(1)
}

func (m *mockStore) DeleteScan(ctx context.Context, scanID string) error {
	return m.Called(ctx, scanID).Error(0)
}

func (m *mockStore) GetHealthProfile(ctx context.Context, userID string) (*model.HealthProfile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.HealthProfile), args.Error(1)
}

func (m *mockStore) UpsertHealthProfile(ctx context.Context, userID string, profile model.HealthProfile) error {
	return m.Called(ctx, userID, profile).Error(0)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}

// mockAnalyzer stands in for the pipeline behind the HTTP layer.
type mockAnalyzer struct {
	mock.Mock
}

func (m *mockAnalyzer) Analyze(ctx context.Context, rawText string, profile model.HealthProfile, language string) (*model.AnalysisResult, error) {
	args := m.Called(ctx, rawText, profile, language)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AnalysisResult), args.Error(1)
}
