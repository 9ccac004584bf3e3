package memory

import (
	"context"
	"fmt"
	"sync"

	ports "tuition/internal/sheets"
)

// Sink keeps every written report in process.
type Sink struct {
	mu      sync.Mutex
	reports []ports.Report
}

var (
	_ ports.ReportWriter = (*Sink)(nil)
	_ ports.ReportReader = (*Sink)(nil)
)

func New() *Sink {
	return &Sink{}
}

// WriteReport stores the report and returns a synthetic reference.
func (s *Sink) WriteReport(_ context.Context, r ports.Report) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
	return fmt.Sprintf("mem:%d", len(s.reports)), nil
}

func (s *Sink) LastReport(_ context.Context) (ports.Report, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.reports) == 0 {
		return ports.Report{}, false, nil
	}
	return s.reports[len(s.reports)-1], true, nil
}

// Count reports how many reports were written.
func (s *Sink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reports)
}
