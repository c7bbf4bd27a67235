// Package weather fetches today's forecast for a city from the
// Open-Meteo forecast API, geocoding the city first.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/stellarlinkco/cityclock/internal/geo"
)

const requestTimeout = 15 * time.Second

// Record is one day of weather for a city. City carries the geocoder's
// canonical name, not the caller's spelling. WeatherCode is a WMO
// interpretation code (0 clear, 61 rain, ...).
type Record struct {
	City           string  `json:"city"`
	Date           string  `json:"date"`
	TemperatureMax float64 `json:"temperature_max"`
	TemperatureMin float64 `json:"temperature_min"`
	WeatherCode    int     `json:"weather_code"`
	WindSpeedMax   float64 `json:"wind_speed_max"`
}

// Client queries an Open-Meteo compatible forecast endpoint.
type Client struct {
	baseURL    string
	geocoder   *geo.Client
	httpClient *http.Client
	now        func() time.Time
}

func NewClient(baseURL string, geocoder *geo.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		geocoder:   geocoder,
		httpClient: &http.Client{Timeout: requestTimeout},
		now:        time.Now,
	}
}

// Today returns today's forecast for city. "Today" is the process-local
// date; the forecast itself is day-granular so the zone gap only matters
// around midnight. Geocoding errors pass through unwrapped so callers can
// match CityNotFoundError.
func (c *Client) Today(ctx context.Context, city string) (Record, error) {
	place, err := c.geocoder.Locate(ctx, city)
	if err != nil {
		return Record{}, err
	}

	date := c.now().Format("2006-01-02")
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(place.Latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(place.Longitude, 'f', -1, 64))
	q.Set("daily", "temperature_2m_max,temperature_2m_min,weathercode,windspeed_10m_max")
	q.Set("timezone", "auto")
	q.Set("start_date", date)
	q.Set("end_date", date)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/forecast?"+q.Encode(), nil)
	if err != nil {
		return Record{}, fmt.Errorf("build forecast request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Record{}, &geo.ProviderError{Provider: "forecast", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Record{}, &geo.ProviderError{Provider: "forecast", Status: resp.StatusCode}
	}

	var payload struct {
		Daily struct {
			TemperatureMax []float64 `json:"temperature_2m_max"`
			TemperatureMin []float64 `json:"temperature_2m_min"`
			WeatherCode    []int     `json:"weathercode"`
			WindSpeedMax   []float64 `json:"windspeed_10m_max"`
		} `json:"daily"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Record{}, &geo.ProviderError{Provider: "forecast", Err: fmt.Errorf("decode response: %w", err)}
	}
	d := payload.Daily
	if len(d.TemperatureMax) == 0 || len(d.TemperatureMin) == 0 || len(d.WeatherCode) == 0 || len(d.WindSpeedMax) == 0 {
		return Record{}, &geo.ProviderError{Provider: "forecast", Err: fmt.Errorf("no daily data for %s on %s", place.Name, date)}
	}

	return Record{
		City:           place.Name,
		Date:           date,
		TemperatureMax: d.TemperatureMax[0],
		TemperatureMin: d.TemperatureMin[0],
		WeatherCode:    d.WeatherCode[0],
		WindSpeedMax:   d.WindSpeedMax[0],
	}, nil
}
