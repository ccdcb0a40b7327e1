package testing

import (
	"context"
	"sync"

	"github.com/receivia/arclear/internal/backend"
)

// MockBackend is a scriptable implementation of backend.Backend for
// pipeline tests. Every operation can be given a canned result or
// error, and calls are counted so tests can assert retry behavior.
type MockBackend struct {
	mu sync.Mutex

	LedgerExport string
	LedgerErr    error
	// LedgerErrOnce is returned on the first export call only; the
	// second call succeeds. Used to exercise the single-retry rule.
	LedgerErrOnce error

	CaseExport string
	CaseErr    error

	LoadErr    error
	PostNumber int64
	PostErr    error

	CloseCaseErr         error
	CloseNotificationErr error

	LedgerCalls       int
	CaseCalls         int
	LoadCalls         int
	PostCalls         int
	ClosedCases       []int64
	ClosedNotifs      []int64
	CaseStatusTexts   map[int64]string
	CaseRootCauses    map[int64]string
	LoadedHeadOffices []int64
}

// NewMockBackend creates a mock backend with empty defaults.
func NewMockBackend() *MockBackend {
	return &MockBackend{
		CaseStatusTexts: make(map[int64]string),
		CaseRootCauses:  make(map[int64]string),
	}
}

func (m *MockBackend) ExportLedgerItems(_ context.Context, _ backend.EntityRef) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LedgerCalls++
	if m.LedgerErrOnce != nil && m.LedgerCalls == 1 {
		return "", m.LedgerErrOnce
	}
	if m.LedgerErr != nil {
		return "", m.LedgerErr
	}
	return m.LedgerExport, nil
}

func (m *MockBackend) ExportCaseRecords(_ context.Context, _ backend.EntityRef, _ []int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CaseCalls++
	if m.CaseErr != nil {
		return "", m.CaseErr
	}
	return m.CaseExport, nil
}

func (m *MockBackend) LoadAccountItems(_ context.Context, headOffice int64, _ []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LoadCalls++
	m.LoadedHeadOffices = append(m.LoadedHeadOffices, headOffice)
	return m.LoadErr
}

func (m *MockBackend) PostClearing(_ context.Context, _ backend.ClearingRequest) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PostCalls++
	if m.PostErr != nil {
		return 0, m.PostErr
	}
	return m.PostNumber, nil
}

func (m *MockBackend) CloseCase(_ context.Context, caseID int64, statusText, rootCause string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CloseCaseErr != nil {
		return m.CloseCaseErr
	}
	m.ClosedCases = append(m.ClosedCases, caseID)
	m.CaseStatusTexts[caseID] = statusText
	m.CaseRootCauses[caseID] = rootCause
	return nil
}

func (m *MockBackend) CloseNotification(_ context.Context, notification int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CloseNotificationErr != nil {
		return m.CloseNotificationErr
	}
	m.ClosedNotifs = append(m.ClosedNotifs, notification)
	return nil
}

func (m *MockBackend) Close() error {
	return nil
}
