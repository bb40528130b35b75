package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Check probes one dependency.
type Check func(ctx context.Context) error

// Report is the payload served by the health endpoint.
type Report struct {
	OK        bool              `json:"ok"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Service encapsulates health-related checks.
type Service struct {
	mu      sync.RWMutex
	names   []string
	checks  map[string]Check
	timeout time.Duration
}

// NewService constructs a new health service.
func NewService() *Service {
	return &Service{checks: map[string]Check{}, timeout: 2 * time.Second}
}

// Add registers a named check. A later Add with the same name replaces it.
func (s *Service) Add(name string, check Check) {
	if check == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.checks[name]; !ok {
		s.names = append(s.names, name)
		sort.Strings(s.names)
	}
	s.checks[name] = check
}

// Status runs every check and reports "ok" or the error text per check.
func (s *Service) Status(ctx context.Context) Report {
	s.mu.RLock()
	names := append([]string(nil), s.names...)
	checks := make(map[string]Check, len(s.checks))
	for k, v := range s.checks {
		checks[k] = v
	}
	s.mu.RUnlock()

	report := Report{OK: true, Timestamp: time.Now().UTC()}
	if len(names) == 0 {
		return report
	}
	report.Checks = make(map[string]string, len(names))
	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, s.timeout)
		err := checks[name](checkCtx)
		cancel()
		if err != nil {
			report.OK = false
			report.Checks[name] = err.Error()
			continue
		}
		report.Checks[name] = "ok"
	}
	return report
}
