// Package health reports liveness and readiness of the quiz backend.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status represents the health status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

const checkTimeout = 5 * time.Second

// CheckResult represents the result of a health check
type CheckResult struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Duration  time.Duration `json:"duration_ms"`
	Timestamp time.Time     `json:"timestamp"`
}

// HealthResponse represents the overall health response
type HealthResponse struct {
	Status    Status    `json:"status"`
	Version   string    `json:"version,omitempty"`
	Uptime    string    `json:"uptime,omitempty"`
	Sessions  int       `json:"sessions"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse represents the readiness response
type ReadyResponse struct {
	Ready     bool                   `json:"ready"`
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

// Checker defines a health check function
type Checker func(ctx context.Context) CheckResult

// Pinger is anything that can verify its backing connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Service handles health checks
type Service struct {
	startTime time.Time
	version   string
	sessions  func() int
	checkers  map[string]Checker
	log       *zap.Logger
	mu        sync.RWMutex
}

// NewService creates a new health service. sessions reports the number of
// live quiz sessions and may be nil.
func NewService(version string, sessions func() int, log *zap.Logger) *Service {
	return &Service{
		startTime: time.Now(),
		version:   version,
		sessions:  sessions,
		checkers:  make(map[string]Checker),
		log:       log,
	}
}

// RegisterChecker registers a custom health checker
func (s *Service) RegisterChecker(name string, checker Checker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkers[name] = checker
	s.log.Info("Registered health checker", zap.String("name", name))
}

// RegisterPinger registers a checker that is unhealthy when p.Ping fails.
// Degraded is reported instead when critical is false.
func (s *Service) RegisterPinger(name string, p Pinger, critical bool) {
	s.RegisterChecker(name, PingChecker(name, p, critical, s.log))
}

// Health performs a basic liveness check
func (s *Service) Health(ctx context.Context) *HealthResponse {
	resp := &HealthResponse{
		Status:    StatusHealthy,
		Version:   s.version,
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Timestamp: time.Now(),
	}
	if s.sessions != nil {
		resp.Sessions = s.sessions()
	}
	return resp
}

// Ready performs a comprehensive readiness check
func (s *Service) Ready(ctx context.Context) *ReadyResponse {
	s.mu.RLock()
	checkers := make(map[string]Checker, len(s.checkers))
	for k, v := range s.checkers {
		checkers[k] = v
	}
	s.mu.RUnlock()

	results := make(map[string]CheckResult, len(checkers))
	var wg sync.WaitGroup
	var mu sync.Mutex

	for name, checker := range checkers {
		wg.Add(1)
		go func(name string, checker Checker) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()

			result := checker(checkCtx)

			mu.Lock()
			results[name] = result
			mu.Unlock()
		}(name, checker)
	}

	wg.Wait()

	overallStatus := StatusHealthy
	allReady := true

	for _, result := range results {
		if result.Status == StatusUnhealthy {
			overallStatus = StatusUnhealthy
			allReady = false
		} else if result.Status == StatusDegraded && overallStatus != StatusUnhealthy {
			overallStatus = StatusDegraded
		}
	}

	return &ReadyResponse{
		Ready:     allReady,
		Status:    overallStatus,
		Timestamp: time.Now(),
		Checks:    results,
	}
}

// PingChecker adapts a Pinger to a Checker.
func PingChecker(name string, p Pinger, critical bool, log *zap.Logger) Checker {
	return func(ctx context.Context) CheckResult {
		start := time.Now()
		result := CheckResult{
			Name:      name,
			Timestamp: start,
		}

		err := p.Ping(ctx)
		result.Duration = time.Since(start)

		if err != nil {
			result.Status = StatusDegraded
			if critical {
				result.Status = StatusUnhealthy
			}
			result.Message = fmt.Sprintf("ping failed: %v", err)
			log.Warn("Health check failed", zap.String("name", name), zap.Error(err))
		} else {
			result.Status = StatusHealthy
			result.Message = "connection ok"
		}
		return result
	}
}

// CountChecker is unhealthy while count returns zero, e.g. an empty word list.
func CountChecker(name string, count func() int) Checker {
	return func(ctx context.Context) CheckResult {
		n := count()
		result := CheckResult{
			Name:      name,
			Status:    StatusHealthy,
			Message:   fmt.Sprintf("%d loaded", n),
			Timestamp: time.Now(),
		}
		if n == 0 {
			result.Status = StatusUnhealthy
			result.Message = "nothing loaded"
		}
		return result
	}
}
