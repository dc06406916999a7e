package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"
)

const (
	maxHealthErrors = 10
	errorWindow     = 15 * time.Minute
)

type healthError struct {
	at  time.Time
	msg string
}

// HealthChecker tracks liveness of the analysis loop and the broker
type HealthChecker struct {
	mu         sync.RWMutex
	started    time.Time
	lastCycle  time.Time
	connected  bool
	emergency  bool
	staleAfter time.Duration
	errors     []healthError
	now        func() time.Time
}

// HealthStatus is the /health response body
type HealthStatus struct {
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	LastCycle     time.Time `json:"last_cycle"`
	IsConnected   bool      `json:"is_connected"`
	EmergencyStop bool      `json:"emergency_stop"`
	Uptime        string    `json:"uptime"`
	Errors        []string  `json:"errors,omitempty"`
}

// NewHealthChecker reports degraded when no analysis cycle completed within staleAfter.
func NewHealthChecker(staleAfter time.Duration) *HealthChecker {
	return &HealthChecker{
		started:    time.Now(),
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

func (h *HealthChecker) CycleCompleted() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastCycle = h.now()
}

func (h *HealthChecker) SetConnected(ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connected = ok
}

func (h *HealthChecker) SetEmergencyStop(active bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.emergency = active
}

// RecordError keeps the most recent errors for the health report.
func (h *HealthChecker) RecordError(err error) {
	if err == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = append(h.errors, healthError{at: h.now(), msg: err.Error()})
	if len(h.errors) > maxHealthErrors {
		h.errors = h.errors[len(h.errors)-maxHealthErrors:]
	}
}

// Status computes the current report and its HTTP status code
func (h *HealthChecker) Status() (HealthStatus, int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	now := h.now()
	var recent []string
	for _, e := range h.errors {
		if now.Sub(e.at) <= errorWindow {
			recent = append(recent, e.msg)
		}
	}

	st := HealthStatus{
		Status:        "healthy",
		Timestamp:     now,
		LastCycle:     h.lastCycle,
		IsConnected:   h.connected,
		EmergencyStop: h.emergency,
		Uptime:        now.Sub(h.started).Round(time.Second).String(),
		Errors:        recent,
	}
	code := http.StatusOK
	switch {
	case !h.connected:
		st.Status, code = "unhealthy", http.StatusInternalServerError
	case h.emergency, h.lastCycle.IsZero(), h.staleAfter > 0 && now.Sub(h.lastCycle) > h.staleAfter:
		st.Status, code = "degraded", http.StatusServiceUnavailable
	}
	return st, code
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	st, code := h.Status()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(st)
}

// Serve exposes /metrics and /health on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, health *HealthChecker) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler())
	mux.Handle("/health", health)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
