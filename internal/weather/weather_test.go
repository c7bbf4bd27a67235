package weather

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stellarlinkco/cityclock/internal/geo"
)

func geocodingStub(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("name") == "Atlantis" {
			w.Write([]byte(`{"results":[]}`))
			return
		}
		w.Write([]byte(`{"results":[{"name":"Warsaw","latitude":52.23,"longitude":21.01,"timezone":"Europe/Warsaw"}]}`))
	}))
}

func TestToday(t *testing.T) {
	geoSrv := geocodingStub(t)
	defer geoSrv.Close()

	var gotQuery url.Values
	fcSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/forecast" {
			t.Errorf("path = %q, want /v1/forecast", r.URL.Path)
		}
		gotQuery = r.URL.Query()
		w.Write([]byte(`{"daily":{"temperature_2m_max":[21.4],"temperature_2m_min":[12.9],"weathercode":[61],"windspeed_10m_max":[18.7]}}`))
	}))
	defer fcSrv.Close()

	c := NewClient(fcSrv.URL, geo.NewClient(geoSrv.URL))
	c.now = func() time.Time { return time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC) }

	rec, err := c.Today(context.Background(), "warsaw")
	if err != nil {
		t.Fatalf("Today failed: %v", err)
	}

	want := Record{
		City:           "Warsaw",
		Date:           "2025-06-10",
		TemperatureMax: 21.4,
		TemperatureMin: 12.9,
		WeatherCode:    61,
		WindSpeedMax:   18.7,
	}
	if rec != want {
		t.Errorf("record = %+v, want %+v", rec, want)
	}

	if got := gotQuery.Get("timezone"); got != "auto" {
		t.Errorf("timezone = %q, want auto", got)
	}
	if got := gotQuery.Get("daily"); got != "temperature_2m_max,temperature_2m_min,weathercode,windspeed_10m_max" {
		t.Errorf("daily = %q", got)
	}
	if got := gotQuery.Get("start_date"); got != "2025-06-10" {
		t.Errorf("start_date = %q, want 2025-06-10", got)
	}
	if gotQuery.Get("start_date") != gotQuery.Get("end_date") {
		t.Errorf("start_date %q != end_date %q", gotQuery.Get("start_date"), gotQuery.Get("end_date"))
	}
	if gotQuery.Get("latitude") == "" || gotQuery.Get("longitude") == "" {
		t.Error("expected latitude/longitude from the geocoder")
	}
}

func TestTodayCityNotFound(t *testing.T) {
	geoSrv := geocodingStub(t)
	defer geoSrv.Close()
	fcSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("forecast endpoint should not be reached for unknown cities")
	}))
	defer fcSrv.Close()

	c := NewClient(fcSrv.URL, geo.NewClient(geoSrv.URL))
	_, err := c.Today(context.Background(), "Atlantis")
	var notFound *geo.CityNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("error = %v, want CityNotFoundError", err)
	}
	if notFound.City != "Atlantis" {
		t.Errorf("City = %q, want Atlantis", notFound.City)
	}
}

func TestTodayForecastStatus(t *testing.T) {
	geoSrv := geocodingStub(t)
	defer geoSrv.Close()
	fcSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer fcSrv.Close()

	c := NewClient(fcSrv.URL, geo.NewClient(geoSrv.URL))
	_, err := c.Today(context.Background(), "Warsaw")
	var provErr *geo.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("error = %v, want ProviderError", err)
	}
	if provErr.Provider != "forecast" {
		t.Errorf("Provider = %q, want forecast", provErr.Provider)
	}
	if provErr.Status != http.StatusTooManyRequests {
		t.Errorf("Status = %d, want 429", provErr.Status)
	}
}

func TestTodayEmptyDaily(t *testing.T) {
	geoSrv := geocodingStub(t)
	defer geoSrv.Close()
	fcSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"daily":{"temperature_2m_max":[],"temperature_2m_min":[],"weathercode":[],"windspeed_10m_max":[]}}`))
	}))
	defer fcSrv.Close()

	c := NewClient(fcSrv.URL, geo.NewClient(geoSrv.URL))
	_, err := c.Today(context.Background(), "Warsaw")
	var provErr *geo.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("error = %v, want ProviderError", err)
	}
}
