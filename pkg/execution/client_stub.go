package execution

import (
	"context"
	"slices"
	"sync"

	"github.com/anef/pdfcp/pkg/comparative"
)

// ClientStub serves executed lines, realisations and alerts from memory, keyed by programme id.
type ClientStub struct {
	mu           sync.RWMutex
	executed     map[string][]comparative.ExecutedLine
	realisations map[string][]comparative.ExecutedLine
	alerts       map[string][]comparative.Alert
	calls        int
	ExecutedErr  error
	AlertsErr    error
}

func NewClientStub() *ClientStub {
	return &ClientStub{
		executed:     make(map[string][]comparative.ExecutedLine),
		realisations: make(map[string][]comparative.ExecutedLine),
		alerts:       make(map[string][]comparative.Alert),
	}
}

func (s *ClientStub) SetExecuted(programId string, lines ...comparative.ExecutedLine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executed[programId] = lines
}

func (s *ClientStub) SetRealisations(programId string, lines ...comparative.ExecutedLine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.realisations[programId] = lines
}

func (s *ClientStub) SetAlerts(programId string, alerts ...comparative.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[programId] = alerts
}

// Calls returns how many times ListExecutedLines was called.
func (s *ClientStub) Calls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls
}

func (s *ClientStub) ListExecutedLines(ctx context.Context, programId string) ([]comparative.ExecutedLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.ExecutedErr != nil {
		return nil, s.ExecutedErr
	}
	return slices.Clone(s.executed[programId]), nil
}

func (s *ClientStub) ListRealisations(ctx context.Context, programId string) ([]comparative.ExecutedLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ExecutedErr != nil {
		return nil, s.ExecutedErr
	}
	return slices.Clone(s.realisations[programId]), nil
}

func (s *ClientStub) ListAlerts(ctx context.Context, programId string) ([]comparative.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.AlertsErr != nil {
		return nil, s.AlertsErr
	}
	return slices.Clone(s.alerts[programId]), nil
}
