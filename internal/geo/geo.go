// Package geo resolves city names to coordinates and IANA timezones
// using the Open-Meteo geocoding API.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const requestTimeout = 15 * time.Second

// CityNotFoundError reports a city the geocoding provider has no match for.
type CityNotFoundError struct {
	City string
}

func (e *CityNotFoundError) Error() string {
	return "City not found: " + e.City
}

// ProviderError reports a failed upstream call (transport error, non-200
// status, or an undecodable body).
type ProviderError struct {
	Provider string // "geocoding" or "forecast"
	Status   int    // HTTP status, 0 when the request never completed
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s provider returned status %d", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s provider: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Place is a geocoded city: the provider's canonical name, coordinates
// and the IANA timezone identifier for that location.
type Place struct {
	Name      string
	Latitude  float64
	Longitude float64
	Timezone  string
}

// Client queries an Open-Meteo compatible geocoding endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	aliases    Aliases
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// SetAliases installs an alias table applied to every lookup.
func (c *Client) SetAliases(a Aliases) {
	c.aliases = a
}

// Locate geocodes a city name. The lookup takes the provider's best match;
// no match at all yields a CityNotFoundError carrying the caller's input.
func (c *Client) Locate(ctx context.Context, city string) (Place, error) {
	q := url.Values{}
	q.Set("name", c.aliases.Apply(city))
	q.Set("count", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/search?"+q.Encode(), nil)
	if err != nil {
		return Place{}, fmt.Errorf("build geocoding request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Place{}, &ProviderError{Provider: "geocoding", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Place{}, &ProviderError{Provider: "geocoding", Status: resp.StatusCode}
	}

	var payload struct {
		Results []struct {
			Name      string  `json:"name"`
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
			Timezone  string  `json:"timezone"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Place{}, &ProviderError{Provider: "geocoding", Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(payload.Results) == 0 {
		return Place{}, &CityNotFoundError{City: city}
	}

	r := payload.Results[0]
	return Place{Name: r.Name, Latitude: r.Latitude, Longitude: r.Longitude, Timezone: r.Timezone}, nil
}

// Resolve returns the IANA timezone identifier for a city.
func (c *Client) Resolve(ctx context.Context, city string) (string, error) {
	place, err := c.Locate(ctx, city)
	if err != nil {
		return "", err
	}
	return place.Timezone, nil
}
