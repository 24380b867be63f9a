package collector

import (
	"context"
	"sync"

	"github.com/opensheets/companion/internal/model"
	"github.com/opensheets/companion/internal/service"
)

// MockCollector implements service.Collector for testing. Each call can be
// scripted by setting the corresponding function field; unset fields
// succeed with zero-value responses.
type MockCollector struct {
	HealthFunc       func(ctx context.Context) (*service.HealthInfo, error)
	VerifyTokenFunc  func(ctx context.Context, accessToken string) (*service.TokenInfo, error)
	RefreshTokenFunc func(ctx context.Context, refreshToken string) (*service.TokenPair, error)
	SubmitFunc       func(ctx context.Context, accessToken string, record model.NotificationRecord) error
	SubmitBatchFunc  func(ctx context.Context, accessToken string, records []model.NotificationRecord) ([]service.BatchItemResult, error)

	mu              sync.Mutex
	submitCalls     [][]model.NotificationRecord
	refreshCalls    int
	submittedTokens []string
}

// Health implements service.Collector.
func (m *MockCollector) Health(ctx context.Context) (*service.HealthInfo, error) {
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return &service.HealthInfo{Status: "ok", Name: "mock"}, nil
}

// VerifyToken implements service.Collector.
func (m *MockCollector) VerifyToken(ctx context.Context, accessToken string) (*service.TokenInfo, error) {
	if m.VerifyTokenFunc != nil {
		return m.VerifyTokenFunc(ctx, accessToken)
	}
	return &service.TokenInfo{TokenID: "mock-token"}, nil
}

// RefreshToken implements service.Collector.
func (m *MockCollector) RefreshToken(ctx context.Context, refreshToken string) (*service.TokenPair, error) {
	m.mu.Lock()
	m.refreshCalls++
	m.mu.Unlock()

	if m.RefreshTokenFunc != nil {
		return m.RefreshTokenFunc(ctx, refreshToken)
	}
	return &service.TokenPair{AccessToken: "refreshed-access", RefreshToken: refreshToken}, nil
}

// Submit implements service.Collector.
func (m *MockCollector) Submit(ctx context.Context, accessToken string, record model.NotificationRecord) error {
	m.recordCall(accessToken, []model.NotificationRecord{record})

	if m.SubmitFunc != nil {
		return m.SubmitFunc(ctx, accessToken, record)
	}
	return nil
}

// SubmitBatch implements service.Collector.
func (m *MockCollector) SubmitBatch(ctx context.Context, accessToken string, records []model.NotificationRecord) ([]service.BatchItemResult, error) {
	m.recordCall(accessToken, records)

	if m.SubmitBatchFunc != nil {
		return m.SubmitBatchFunc(ctx, accessToken, records)
	}

	results := make([]service.BatchItemResult, 0, len(records))
	for _, record := range records {
		results = append(results, service.BatchItemResult{NotificationID: record.ID, OK: true})
	}
	return results, nil
}

func (m *MockCollector) recordCall(accessToken string, records []model.NotificationRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitCalls = append(m.submitCalls, records)
	m.submittedTokens = append(m.submittedTokens, accessToken)
}

// SubmitCalls returns the record batches passed to Submit/SubmitBatch.
func (m *MockCollector) SubmitCalls() [][]model.NotificationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([][]model.NotificationRecord, len(m.submitCalls))
	copy(calls, m.submitCalls)
	return calls
}

// SubmittedTokens returns the bearer tokens used per submit call.
func (m *MockCollector) SubmittedTokens() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	tokens := make([]string, len(m.submittedTokens))
	copy(tokens, m.submittedTokens)
	return tokens
}

// RefreshCalls returns how many refresh exchanges were attempted.
func (m *MockCollector) RefreshCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshCalls
}
