package heartbeat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCheckNow(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer healthy.Close()
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer broken.Close()

	s := New([]Probe{
		{Name: "geocoding", URL: healthy.URL},
		{Name: "forecast", URL: broken.URL},
	}, time.Hour)

	statuses := s.CheckNow(context.Background())
	if len(statuses) != 2 {
		t.Fatalf("statuses = %d, want 2", len(statuses))
	}
	// Sorted by name: forecast first.
	if statuses[0].Name != "forecast" || statuses[1].Name != "geocoding" {
		t.Errorf("order = %s, %s", statuses[0].Name, statuses[1].Name)
	}
	if statuses[0].Healthy {
		t.Error("forecast probe should be unhealthy")
	}
	if statuses[0].Error != "status 502" {
		t.Errorf("forecast error = %q, want status 502", statuses[0].Error)
	}
	if !statuses[1].Healthy {
		t.Errorf("geocoding probe unhealthy: %s", statuses[1].Error)
	}
	if statuses[1].CheckedAt.IsZero() {
		t.Error("CheckedAt not set")
	}
}

func TestCheckNowUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	s := New([]Probe{{Name: "geocoding", URL: srv.URL}}, time.Hour)
	statuses := s.CheckNow(context.Background())
	if len(statuses) != 1 {
		t.Fatalf("statuses = %d, want 1", len(statuses))
	}
	if statuses[0].Healthy {
		t.Error("unreachable probe should be unhealthy")
	}
	if statuses[0].Error == "" {
		t.Error("expected a transport error")
	}
}

func TestStartProbesImmediately(t *testing.T) {
	hits := make(chan struct{}, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits <- struct{}{}
	}))
	defer srv.Close()

	s := New([]Probe{{Name: "geocoding", URL: srv.URL}}, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	select {
	case <-hits:
	case <-time.After(2 * time.Second):
		t.Fatal("no probe within 2s of Start")
	}

	statuses := s.Statuses()
	if len(statuses) != 1 || !statuses[0].Healthy {
		t.Errorf("statuses = %+v", statuses)
	}
}

func TestStatusesEmptyBeforeStart(t *testing.T) {
	s := New(ProviderProbes("http://geo.example", "http://fc.example"), 0)
	if got := s.Statuses(); len(got) != 0 {
		t.Errorf("statuses = %v, want none", got)
	}
}

func TestProviderProbes(t *testing.T) {
	probes := ProviderProbes("http://geo.example", "http://fc.example")
	if len(probes) != 2 {
		t.Fatalf("probes = %d, want 2", len(probes))
	}
	if probes[0].Name != "geocoding" || probes[1].Name != "forecast" {
		t.Errorf("names = %s, %s", probes[0].Name, probes[1].Name)
	}
	for _, p := range probes {
		if p.URL == "" {
			t.Errorf("%s: empty URL", p.Name)
		}
	}
}
