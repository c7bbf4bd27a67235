// Package heartbeat periodically probes the upstream data providers so
// the gateway can report whether lookups are likely to succeed.
package heartbeat

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"sync"
	"time"
)

const (
	defaultInterval = 5 * time.Minute
	probeTimeout    = 10 * time.Second
)

// Probe is one endpoint to watch.
type Probe struct {
	Name string
	URL  string
}

// ProviderProbes builds the standard probe set for the Open-Meteo
// endpoints: a tiny geocoding lookup and a one-field forecast.
func ProviderProbes(geocodingURL, forecastURL string) []Probe {
	return []Probe{
		{Name: "geocoding", URL: geocodingURL + "/v1/search?name=Berlin&count=1"},
		{Name: "forecast", URL: forecastURL + "/v1/forecast?latitude=52.52&longitude=13.41&daily=weathercode&timezone=auto"},
	}
}

// Status is the last probe outcome for one endpoint.
type Status struct {
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Healthy   bool      `json:"healthy"`
	LatencyMs int64     `json:"latencyMs"`
	CheckedAt time.Time `json:"checkedAt"`
	Error     string    `json:"error,omitempty"`
}

type Service struct {
	probes   []Probe
	interval time.Duration
	client   *http.Client
	cancel   context.CancelFunc

	mu       sync.RWMutex
	statuses map[string]Status
}

// New builds a probe service. interval <= 0 selects the default.
func New(probes []Probe, interval time.Duration) *Service {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		probes:   probes,
		interval: interval,
		client:   &http.Client{Timeout: probeTimeout},
		statuses: make(map[string]Status),
	}
}

// Start runs one probe round immediately, then keeps probing on the
// interval until ctx is done.
func (s *Service) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	s.checkAll(ctx)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.checkAll(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Printf("[heartbeat] probing %d endpoints every %s", len(s.probes), s.interval)
	return nil
}

func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Statuses returns the latest probe outcomes, sorted by name.
func (s *Service) Statuses() []Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Status, 0, len(s.statuses))
	for _, st := range s.statuses {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// CheckNow runs one probe round synchronously and returns the results.
func (s *Service) CheckNow(ctx context.Context) []Status {
	s.checkAll(ctx)
	return s.Statuses()
}

func (s *Service) checkAll(ctx context.Context) {
	for _, p := range s.probes {
		st := s.check(ctx, p)
		s.mu.Lock()
		s.statuses[p.Name] = st
		s.mu.Unlock()
		if !st.Healthy {
			log.Printf("[heartbeat] %s unhealthy: %s", p.Name, st.Error)
		}
	}
}

func (s *Service) check(ctx context.Context, p Probe) Status {
	st := Status{Name: p.Name, URL: p.URL, CheckedAt: time.Now()}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		st.Error = err.Error()
		return st
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	st.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		st.Error = err.Error()
		return st
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		st.Healthy = true
	} else {
		st.Error = fmt.Sprintf("status %d", resp.StatusCode)
	}
	return st
}
