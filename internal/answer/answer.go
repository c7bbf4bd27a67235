// Package answer drives the tool-calling agent loop and assembles the
// final reply deterministically from the loop's tool trace, so the model
// never gets the last word on facts the tools already produced.
package answer

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cexll/agentsdk-go/pkg/api"
	"github.com/cexll/agentsdk-go/pkg/model"
	"github.com/cexll/agentsdk-go/pkg/tool"
	"github.com/google/uuid"

	"github.com/stellarlinkco/cityclock/internal/clock"
	"github.com/stellarlinkco/cityclock/internal/config"
	"github.com/stellarlinkco/cityclock/internal/tools"
)

const systemPrompt = "You are a time assistant. IMPORTANT: When the user asks about time conversion " +
	"between cities, you MUST also call get_current_time for EACH city mentioned " +
	"and include the current time in your final answer alongside the conversion result."

// Runtime interface for the agent runtime (allows mocking in tests)
type Runtime interface {
	Run(ctx context.Context, req api.Request) (*api.Response, error)
	Close()
}

// runtimeAdapter wraps api.Runtime to implement Runtime interface
type runtimeAdapter struct {
	rt *api.Runtime
}

func (r *runtimeAdapter) Run(ctx context.Context, req api.Request) (*api.Response, error) {
	return r.rt.Run(ctx, req)
}

func (r *runtimeAdapter) Close() {
	r.rt.Close()
}

// RuntimeFactory creates a Runtime bound to the given custom tools.
type RuntimeFactory func(cfg *config.Config, sysPrompt string, custom []tool.Tool) (Runtime, error)

// DefaultRuntimeFactory builds a real agent runtime. Built-in tools are
// disabled: the loop sees exactly the tools passed in.
func DefaultRuntimeFactory(cfg *config.Config, sysPrompt string, custom []tool.Tool) (Runtime, error) {
	var provider api.ModelFactory
	switch cfg.Provider.Type {
	case "openai":
		provider = &model.OpenAIProvider{
			APIKey:    cfg.Provider.APIKey,
			BaseURL:   cfg.Provider.BaseURL,
			ModelName: cfg.Agent.Model,
			MaxTokens: cfg.Agent.MaxTokens,
		}
	default:
		provider = &model.AnthropicProvider{
			APIKey:    cfg.Provider.APIKey,
			BaseURL:   cfg.Provider.BaseURL,
			ModelName: cfg.Agent.Model,
			MaxTokens: cfg.Agent.MaxTokens,
		}
	}

	rt, err := api.New(context.Background(), api.Options{
		ProjectRoot:         cfg.Agent.Workspace,
		ModelFactory:        provider,
		SystemPrompt:        sysPrompt,
		MaxIterations:       cfg.Agent.MaxToolIterations,
		Timeout:             time.Duration(cfg.Agent.RequestTimeout) * time.Second,
		EnabledBuiltinTools: []string{},
		CustomTools:         custom,
	})
	if err != nil {
		return nil, fmt.Errorf("create runtime: %w", err)
	}
	return &runtimeAdapter{rt: rt}, nil
}

// LoopError reports a failed agent loop run. The whole request fails;
// no partial answer is produced.
type LoopError struct {
	Err error
}

func (e *LoopError) Error() string {
	return "agent loop: " + e.Err.Error()
}

func (e *LoopError) Unwrap() error { return e.Err }

// Resolver resolves a city name to an IANA timezone identifier.
type Resolver interface {
	Resolve(ctx context.Context, city string) (string, error)
}

// Options configures optional Assembler dependencies.
type Options struct {
	RuntimeFactory RuntimeFactory // nil = DefaultRuntimeFactory
}

// Assembler answers natural-language time queries. The model picks the
// tool calls; every reported fact is lifted verbatim from tool output.
type Assembler struct {
	cfg       *config.Config
	resolver  Resolver
	loopTools []tool.Tool
	factory   RuntimeFactory
	now       func() time.Time

	mu sync.Mutex
	rt Runtime // built on first use, reused for the process lifetime
}

// New builds an Assembler whose loop is bound to loopTools.
func New(cfg *config.Config, resolver Resolver, loopTools []tool.Tool) *Assembler {
	return NewWithOptions(cfg, resolver, loopTools, Options{})
}

func NewWithOptions(cfg *config.Config, resolver Resolver, loopTools []tool.Tool, opts Options) *Assembler {
	factory := opts.RuntimeFactory
	if factory == nil {
		factory = DefaultRuntimeFactory
	}
	return &Assembler{
		cfg:       cfg,
		resolver:  resolver,
		loopTools: loopTools,
		factory:   factory,
		now:       time.Now,
	}
}

func (a *Assembler) runtime() (Runtime, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.rt == nil {
		rt, err := a.factory(a.cfg, systemPrompt, a.loopTools)
		if err != nil {
			return nil, err
		}
		a.rt = rt
	}
	return a.rt, nil
}

// Close releases the underlying runtime, if one was ever built.
func (a *Assembler) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.rt != nil {
		a.rt.Close()
		a.rt = nil
	}
}

// Answer runs one query through the agent loop and assembles the reply
// from the trace: every tool output in call order, then a current-time
// line for each city the loop touched, joined with ". ". Only when the
// loop called no tools does the model's own closing message stand in.
// Each call is an independent session; nothing carries over.
func (a *Assembler) Answer(ctx context.Context, query string) (string, error) {
	rt, err := a.runtime()
	if err != nil {
		return "", &LoopError{Err: err}
	}

	resp, err := rt.Run(ctx, api.Request{
		Prompt:    query,
		SessionID: uuid.NewString(),
	})
	if err != nil {
		return "", &LoopError{Err: err}
	}

	var outputs []string
	cities := map[string]struct{}{}
	if resp != nil {
		outputs, cities = walkEvents(resp.HookEvents)
	}

	parts := outputs
	if len(parts) == 0 && resp != nil && resp.Result != nil {
		if final := strings.TrimSpace(resp.Result.Output); final != "" {
			parts = []string{final}
		}
	}

	for _, ct := range a.cityTimes(ctx, cities) {
		if ct.err != nil {
			log.Printf("[answer] current time for %s skipped: %v", ct.city, ct.err)
			continue
		}
		parts = append(parts, ct.fragment)
	}

	return strings.Join(parts, ". "), nil
}

// cityTime is the outcome of one best-effort current-time lookup.
type cityTime struct {
	city     string
	fragment string
	err      error
}

// cityTimes resolves every city in ascending name order. Lookup errors
// stay attached to their city; they never fail the request.
func (a *Assembler) cityTimes(ctx context.Context, cities map[string]struct{}) []cityTime {
	names := make([]string, 0, len(cities))
	for city := range cities {
		names = append(names, city)
	}
	sort.Strings(names)

	out := make([]cityTime, 0, len(names))
	for _, city := range names {
		out = append(out, a.lookupCityTime(ctx, city))
	}
	return out
}

func (a *Assembler) lookupCityTime(ctx context.Context, city string) cityTime {
	tz, err := a.resolver.Resolve(ctx, city)
	if err != nil {
		return cityTime{city: city, err: err}
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return cityTime{city: city, err: err}
	}
	return cityTime{
		city:     city,
		fragment: fmt.Sprintf("Current time in %s: %s", city, a.now().In(loc).Format(clock.LayoutClockZone)),
	}
}

// Describe returns the registry entry for the assembler itself.
func Describe() tools.Descriptor {
	return tools.Descriptor{
		Name:        "time_agent",
		Description: "Time agent that can get current time and convert time between cities.",
		Schema: &tool.JSONSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "A natural language time question, e.g. 'What time is it in Warsaw?'",
				},
			},
			Required: []string{"query"},
		},
	}
}
