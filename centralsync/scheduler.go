package centralsync

import (
	"context"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// tickerScheduler runs one task on a fixed interval. Arm replaces any
// previously armed task.
type tickerScheduler struct {
	mu   sync.Mutex
	stop chan struct{}
}

func newTickerScheduler() *tickerScheduler {
	return &tickerScheduler{}
}

func (s *tickerScheduler) Arm(interval time.Duration, task func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		close(s.stop)
	}
	stop := make(chan struct{})
	s.stop = stop
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				task()
			case <-stop:
				return
			}
		}
	}()
}

func (s *tickerScheduler) Disarm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
}

// connectivityMonitor probes the central system's health endpoint in the
// background and caches the last result. Available never blocks.
type connectivityMonitor struct {
	healthURL string
	client    *http.Client
	interval  time.Duration
	online    atomic.Bool
	once      sync.Once
}

func newConnectivityMonitor() *connectivityMonitor {
	baseURL := os.Getenv("CENTRAL_API_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	m := &connectivityMonitor{
		healthURL: baseURL + "/healthz",
		client:    &http.Client{Timeout: 5 * time.Second},
		interval:  30 * time.Second,
	}
	m.online.Store(true)
	return m
}

func (m *connectivityMonitor) Start(ctx context.Context) {
	m.once.Do(func() {
		go func() {
			m.probe(ctx)
			ticker := time.NewTicker(m.interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					m.probe(ctx)
				case <-ctx.Done():
					return
				}
			}
		}()
	})
}

func (m *connectivityMonitor) probe(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.healthURL, nil)
	if err != nil {
		m.online.Store(false)
		return
	}
	resp, err := m.client.Do(req)
	if err != nil {
		m.online.Store(false)
		return
	}
	resp.Body.Close()
	m.online.Store(resp.StatusCode < 500)
}

func (m *connectivityMonitor) Available() bool {
	return m.online.Load()
}
