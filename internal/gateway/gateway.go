package gateway

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cexll/agentsdk-go/pkg/tool"
	"github.com/stellarlinkco/cityclock/internal/answer"
	"github.com/stellarlinkco/cityclock/internal/bus"
	"github.com/stellarlinkco/cityclock/internal/channel"
	"github.com/stellarlinkco/cityclock/internal/config"
	"github.com/stellarlinkco/cityclock/internal/digest"
	"github.com/stellarlinkco/cityclock/internal/geo"
	"github.com/stellarlinkco/cityclock/internal/heartbeat"
	"github.com/stellarlinkco/cityclock/internal/tools"
	"github.com/stellarlinkco/cityclock/internal/weather"
)

// Answerer runs one query through the agent (allows mocking in tests)
type Answerer interface {
	Answer(ctx context.Context, query string) (string, error)
	Close()
}

// Options for creating a Gateway
type Options struct {
	Assembler      Answerer              // overrides the built assembler (tests)
	RuntimeFactory answer.RuntimeFactory // custom runtime for the built assembler
	SignalChan     chan os.Signal        // for testing signal handling
}

type Gateway struct {
	cfg        *config.Config
	bus        *bus.MessageBus
	asm        Answerer
	registry   []tools.Descriptor
	channels   *channel.ChannelManager
	digests    *digest.Service
	hb         *heartbeat.Service
	signalChan chan os.Signal // for testing
}

// New creates a Gateway with default options
func New(cfg *config.Config) (*Gateway, error) {
	return NewWithOptions(cfg, Options{})
}

// NewWithOptions creates a Gateway with custom options for testing
func NewWithOptions(cfg *config.Config, opts Options) (*Gateway, error) {
	g := &Gateway{cfg: cfg}

	// Message bus
	g.bus = bus.NewMessageBus(config.DefaultBufSize)

	// Geocoding client with the optional alias table
	geocoder := geo.NewClient(cfg.OpenMeteo.GeocodingURL)
	aliasPath := cfg.OpenMeteo.AliasFile
	if aliasPath == "" {
		aliasPath = filepath.Join(cfg.Agent.Workspace, "aliases.yaml")
	}
	if aliases, err := geo.LoadAliases(aliasPath); err != nil {
		log.Printf("[gateway] alias load warning: %v", err)
	} else {
		geocoder.SetAliases(aliases)
	}

	forecaster := weather.NewClient(cfg.OpenMeteo.ForecastURL, geocoder)

	currentTime := tools.NewCurrentTime(geocoder)
	convertTime := tools.NewConvertTime(geocoder)
	todayWeather := tools.NewWeather(forecaster)

	// The agent loop binds only the two time tools; weather is invoked
	// directly, not through the model.
	asm := opts.Assembler
	if asm == nil {
		asm = answer.NewWithOptions(cfg, geocoder, []tool.Tool{currentTime, convertTime}, answer.Options{
			RuntimeFactory: opts.RuntimeFactory,
		})
	}
	g.asm = asm

	g.registry = []tools.Descriptor{
		tools.Describe(currentTime),
		tools.Describe(convertTime),
		tools.Describe(todayWeather),
		answer.Describe(),
	}

	// Signal channel for testing
	g.signalChan = opts.SignalChan

	// Digests
	storePath := cfg.Digest.StorePath
	if storePath == "" {
		storePath = filepath.Join(config.ConfigDir(), "data", "digests", "jobs.json")
	}
	g.digests = digest.NewService(storePath)
	g.digests.OnJob = func(job digest.Job) (string, error) {
		result, err := g.asm.Answer(context.Background(), job.Payload.Query)
		if err != nil {
			return "", err
		}
		if job.Payload.Deliver && job.Payload.Channel != "" {
			g.bus.Outbound <- bus.OutboundMessage{
				Channel: job.Payload.Channel,
				ChatID:  job.Payload.To,
				Content: result,
			}
		}
		return result, nil
	}

	// Heartbeat probes against the data providers
	g.hb = heartbeat.New(
		heartbeat.ProviderProbes(cfg.OpenMeteo.GeocodingURL, cfg.OpenMeteo.ForecastURL),
		time.Duration(cfg.Heartbeat.Interval)*time.Second,
	)

	// Channels (with gateway config for WebUI port)
	chMgr, err := channel.NewChannelManagerWithGateway(cfg.Channels, cfg.Gateway, g.bus, channel.WebUIOptions{
		Functions: g.registry,
		Answer:    g.asm.Answer,
		Health:    g.hb.Statuses,
	})
	if err != nil {
		return nil, fmt.Errorf("create channel manager: %w", err)
	}
	g.channels = chMgr

	return g, nil
}

// Functions lists the callable surface the gateway exposes.
func (g *Gateway) Functions() []tools.Descriptor {
	return g.registry
}

func (g *Gateway) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go g.bus.DispatchOutbound(ctx)

	if err := g.channels.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}
	log.Printf("[gateway] channels started: %v", g.channels.EnabledChannels())

	if err := g.digests.Start(ctx); err != nil {
		log.Printf("[gateway] digest start warning: %v", err)
	}

	if err := g.hb.Start(ctx); err != nil {
		log.Printf("[gateway] heartbeat start warning: %v", err)
	}

	go g.processLoop(ctx)

	log.Printf("[gateway] running on %s:%d", g.cfg.Gateway.Host, g.cfg.Gateway.Port)

	// Use injected signal channel for testing, or create default
	sigCh := g.signalChan
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	}
	<-sigCh

	log.Printf("[gateway] shutting down...")
	return g.Shutdown()
}

func (g *Gateway) processLoop(ctx context.Context) {
	for {
		select {
		case msg := <-g.bus.Inbound:
			log.Printf("[gateway] inbound from %s/%s: %s", msg.Channel, msg.SenderID, truncate(msg.Content, 80))

			result, err := g.asm.Answer(ctx, msg.Content)
			if err != nil {
				log.Printf("[gateway] agent error: %v", err)
				result = "Sorry, I encountered an error processing your message."
			}

			if result != "" {
				g.bus.Outbound <- bus.OutboundMessage{
					Channel: msg.Channel,
					ChatID:  msg.ChatID,
					Content: result,
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

func (g *Gateway) Shutdown() error {
	g.digests.Stop()
	g.hb.Stop()
	_ = g.channels.StopAll()
	if g.asm != nil {
		g.asm.Close()
	}
	log.Printf("[gateway] shutdown complete")
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
