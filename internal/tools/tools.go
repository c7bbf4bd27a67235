// Package tools implements the callable functions the agent loop and the
// HTTP surface expose: current time, time conversion and today's weather.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cexll/agentsdk-go/pkg/tool"

	"github.com/stellarlinkco/cityclock/internal/clock"
	"github.com/stellarlinkco/cityclock/internal/weather"
)

// Resolver resolves a city name to an IANA timezone identifier.
type Resolver interface {
	Resolve(ctx context.Context, city string) (string, error)
}

// Forecaster returns today's weather for a city.
type Forecaster interface {
	Today(ctx context.Context, city string) (weather.Record, error)
}

// Descriptor describes a callable function for the registry endpoint.
type Descriptor struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Schema      *tool.JSONSchema `json:"schema"`
}

// Describe builds the registry entry for a tool.
func Describe(t tool.Tool) Descriptor {
	return Descriptor{Name: t.Name(), Description: t.Description(), Schema: t.Schema()}
}

func stringParam(params map[string]interface{}, key string) (string, error) {
	v, ok := params[key].(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v, nil
}

// CurrentTime reports the current wall-clock time in a city.
type CurrentTime struct {
	resolver Resolver
	now      func() time.Time
}

func NewCurrentTime(r Resolver) *CurrentTime {
	return &CurrentTime{resolver: r, now: time.Now}
}

func (t *CurrentTime) Name() string { return "get_current_time" }

func (t *CurrentTime) Description() string { return "Get current time in the specified city." }

func (t *CurrentTime) Schema() *tool.JSONSchema {
	return &tool.JSONSchema{
		Type: "object",
		Properties: map[string]interface{}{
			"city_name": map[string]interface{}{
				"type":        "string",
				"description": "The name of the city (e.g., 'Warsaw', 'Tokyo', 'New York')",
			},
		},
		Required: []string{"city_name"},
	}
}

func (t *CurrentTime) Execute(ctx context.Context, params map[string]interface{}) (*tool.ToolResult, error) {
	city, err := stringParam(params, "city_name")
	if err != nil {
		return nil, err
	}
	tz, err := t.resolver.Resolve(ctx, city)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", tz, err)
	}
	out := fmt.Sprintf("The current time in %s is %s (timezone: %s)",
		city, t.now().In(loc).Format(clock.LayoutFull), tz)
	return &tool.ToolResult{Success: true, Output: out}, nil
}

// ConvertTime maps a wall-clock time in one city to another city.
type ConvertTime struct {
	resolver Resolver
	now      func() time.Time
}

func NewConvertTime(r Resolver) *ConvertTime {
	return &ConvertTime{resolver: r, now: time.Now}
}

func (t *ConvertTime) Name() string { return "convert_time" }

func (t *ConvertTime) Description() string { return "Convert time between two cities." }

func (t *ConvertTime) Schema() *tool.JSONSchema {
	return &tool.JSONSchema{
		Type: "object",
		Properties: map[string]interface{}{
			"source_city": map[string]interface{}{
				"type":        "string",
				"description": "The city of the original time (e.g., 'Warsaw')",
			},
			"target_city": map[string]interface{}{
				"type":        "string",
				"description": "The city to convert the time to (e.g., 'Tokyo')",
			},
			"time_str": map[string]interface{}{
				"type":        "string",
				"description": "The time to convert in HH:MM format (e.g., '15:00')",
			},
		},
		Required: []string{"source_city", "target_city", "time_str"},
	}
}

func (t *ConvertTime) Execute(ctx context.Context, params map[string]interface{}) (*tool.ToolResult, error) {
	sourceCity, err := stringParam(params, "source_city")
	if err != nil {
		return nil, err
	}
	targetCity, err := stringParam(params, "target_city")
	if err != nil {
		return nil, err
	}
	timeStr, err := stringParam(params, "time_str")
	if err != nil {
		return nil, err
	}

	srcTZ, err := t.resolver.Resolve(ctx, sourceCity)
	if err != nil {
		return nil, err
	}
	dstTZ, err := t.resolver.Resolve(ctx, targetCity)
	if err != nil {
		return nil, err
	}
	src, err := time.LoadLocation(srcTZ)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", srcTZ, err)
	}
	dst, err := time.LoadLocation(dstTZ)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", dstTZ, err)
	}

	conv, err := clock.Convert(timeStr, src, dst, t.now())
	if err != nil {
		return nil, err
	}
	out := fmt.Sprintf("%s in %s = %s in %s (currently %s in %s, %s in %s)",
		conv.SourceClock, sourceCity, conv.TargetClock, targetCity,
		conv.SourceNow, sourceCity, conv.TargetNow, targetCity)
	return &tool.ToolResult{Success: true, Output: out}, nil
}

// Weather reports today's forecast for a city as a JSON document.
type Weather struct {
	forecaster Forecaster
}

func NewWeather(f Forecaster) *Weather {
	return &Weather{forecaster: f}
}

func (t *Weather) Name() string { return "get_today_weather" }

func (t *Weather) Description() string {
	return "Get information about weather for a specific city for today."
}

func (t *Weather) Schema() *tool.JSONSchema {
	return &tool.JSONSchema{
		Type: "object",
		Properties: map[string]interface{}{
			"city_name": map[string]interface{}{
				"type":        "string",
				"description": "The name of the city (e.g., 'Warsaw', 'Tokyo', 'New York')",
			},
		},
		Required: []string{"city_name"},
	}
}

func (t *Weather) Execute(ctx context.Context, params map[string]interface{}) (*tool.ToolResult, error) {
	city, err := stringParam(params, "city_name")
	if err != nil {
		return nil, err
	}
	rec, err := t.forecaster.Today(ctx, city)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode weather record: %w", err)
	}
	return &tool.ToolResult{Success: true, Output: string(data), Data: rec}, nil
}
