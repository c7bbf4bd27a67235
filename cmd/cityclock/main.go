package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	_ "time/tzdata" // bundled zone database for hosts without one

	"github.com/cexll/agentsdk-go/pkg/tool"
	"github.com/spf13/cobra"
	"github.com/stellarlinkco/cityclock/internal/answer"
	"github.com/stellarlinkco/cityclock/internal/config"
	"github.com/stellarlinkco/cityclock/internal/gateway"
	"github.com/stellarlinkco/cityclock/internal/geo"
	"github.com/stellarlinkco/cityclock/internal/heartbeat"
	"github.com/stellarlinkco/cityclock/internal/tools"
	"github.com/stellarlinkco/cityclock/internal/weather"
)

// Answerer runs one question through the assembled agent.
type Answerer interface {
	Answer(ctx context.Context, query string) (string, error)
	Close()
}

// AssemblerFactory builds the Answerer behind ask (allows mocking in tests).
type AssemblerFactory func(cfg *config.Config) (Answerer, error)

// DefaultAssemblerFactory wires the geocoder and the two time tools into
// the agent loop, the same assembly the gateway runs.
func DefaultAssemblerFactory(cfg *config.Config) (Answerer, error) {
	if cfg.Provider.APIKey == "" {
		return nil, fmt.Errorf("API key not set. Run 'cityclock onboard' or set CITYCLOCK_API_KEY / ANTHROPIC_API_KEY")
	}

	geocoder := buildGeocoder(cfg)
	loopTools := []tool.Tool{tools.NewCurrentTime(geocoder), tools.NewConvertTime(geocoder)}
	return answer.New(cfg, geocoder, loopTools), nil
}

// buildGeocoder constructs the geocoding client with the alias table
// installed. A broken alias file is reported and skipped, never fatal.
func buildGeocoder(cfg *config.Config) *geo.Client {
	geocoder := geo.NewClient(cfg.OpenMeteo.GeocodingURL)

	aliasPath := cfg.OpenMeteo.AliasFile
	if aliasPath == "" {
		aliasPath = filepath.Join(cfg.Agent.Workspace, "aliases.yaml")
	}
	if aliases, err := geo.LoadAliases(aliasPath); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	} else {
		geocoder.SetAliases(aliases)
	}
	return geocoder
}

var rootCmd = &cobra.Command{
	Use:   "cityclock",
	Short: "cityclock - city time and weather assistant",
}

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Ask a time question in single message or REPL mode",
	RunE:  runAsk,
}

var weatherCmd = &cobra.Command{
	Use:   "weather <city>",
	Short: "Print today's forecast for a city as JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runWeather,
}

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the full gateway (channels + digests + heartbeat)",
	RunE:  runGateway,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize config and workspace",
	RunE:  runOnboard,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cityclock status",
	RunE:  runStatus,
}

var messageFlag string
var probeFlag bool

func init() {
	askCmd.Flags().StringVarP(&messageFlag, "message", "m", "", "Single message to send")
	statusCmd.Flags().BoolVar(&probeFlag, "probe", false, "Probe the weather provider endpoints")
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(weatherCmd)
	rootCmd.AddCommand(gatewayCmd)
	rootCmd.AddCommand(onboardCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// AskOptions carries injectable dependencies for runAskWithOptions.
type AskOptions struct {
	AssemblerFactory AssemblerFactory
	Stdin            io.Reader
	Stdout           io.Writer
	Stderr           io.Writer
}

func runAsk(cmd *cobra.Command, args []string) error {
	return runAskWithOptions(AskOptions{})
}

func runAskWithOptions(opts AskOptions) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	factory := opts.AssemblerFactory
	if factory == nil {
		factory = DefaultAssemblerFactory
	}
	asm, err := factory(cfg)
	if err != nil {
		return err
	}
	defer asm.Close()

	stdin := opts.Stdin
	if stdin == nil {
		stdin = os.Stdin
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	ctx := context.Background()

	// Single message mode
	if messageFlag != "" {
		result, err := asm.Answer(ctx, messageFlag)
		if err != nil {
			return fmt.Errorf("agent error: %w", err)
		}
		if result != "" {
			fmt.Fprintln(stdout, result)
		}
		return nil
	}

	// REPL mode
	fmt.Fprintln(stdout, "cityclock ask (type 'exit' to quit)")
	scanner := bufio.NewScanner(stdin)
	for {
		fmt.Fprint(stdout, "\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}

		result, err := asm.Answer(ctx, input)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			continue
		}
		if result != "" {
			fmt.Fprintln(stdout, result)
		}
	}
	return nil
}

func runWeather(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	forecaster := weather.NewClient(cfg.OpenMeteo.ForecastURL, buildGeocoder(cfg))
	rec, err := forecaster.Today(context.Background(), strings.Join(args, " "))
	if err != nil {
		return err
	}

	data, _ := json.MarshalIndent(rec, "", "  ")
	fmt.Println(string(data))
	return nil
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.Provider.APIKey == "" {
		return fmt.Errorf("API key not set. Run 'cityclock onboard' or set CITYCLOCK_API_KEY / ANTHROPIC_API_KEY")
	}

	gw, err := gateway.New(cfg)
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}

	return gw.Run(context.Background())
}

func runOnboard(cmd *cobra.Command, args []string) error {
	cfgDir := config.ConfigDir()
	cfgPath := config.ConfigPath()

	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		cfg := config.DefaultConfig()
		data, _ := json.MarshalIndent(cfg, "", "  ")
		if err := os.WriteFile(cfgPath, data, 0644); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Printf("Created config: %s\n", cfgPath)
	} else {
		fmt.Printf("Config already exists: %s\n", cfgPath)
	}

	cfg, _ := config.LoadConfig()
	ws := cfg.Agent.Workspace
	if err := os.MkdirAll(ws, 0755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}

	writeIfNotExists(filepath.Join(ws, "aliases.yaml"), defaultAliasesYAML)

	fmt.Printf("Workspace ready: %s\n", ws)
	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Edit %s to set your API key\n", cfgPath)
	fmt.Println("  2. Or set CITYCLOCK_API_KEY environment variable")
	fmt.Println("  3. Run 'cityclock ask -m \"What time is it in Tokyo?\"' to test")

	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Config: error (%v)\n", err)
		return nil
	}

	fmt.Printf("Config: %s\n", config.ConfigPath())
	fmt.Printf("Workspace: %s\n", cfg.Agent.Workspace)
	fmt.Printf("Model: %s\n", cfg.Agent.Model)
	fmt.Printf("Provider: %s\n", providerDisplay(cfg.Provider.Type))
	if cfg.Provider.APIKey != "" && len(cfg.Provider.APIKey) > 8 {
		masked := cfg.Provider.APIKey[:4] + "..." + cfg.Provider.APIKey[len(cfg.Provider.APIKey)-4:]
		fmt.Printf("API Key: %s\n", masked)
	} else if cfg.Provider.APIKey != "" {
		fmt.Println("API Key: set")
	} else {
		fmt.Println("API Key: not set")
	}
	fmt.Printf("Telegram: enabled=%v\n", cfg.Channels.Telegram.Enabled)
	fmt.Printf("WebUI: enabled=%v\n", cfg.Channels.WebUI.Enabled)

	if _, err := os.Stat(cfg.Agent.Workspace); err != nil {
		fmt.Println("Workspace: not found (run 'cityclock onboard')")
	}

	if probeFlag {
		hb := heartbeat.New(heartbeat.ProviderProbes(cfg.OpenMeteo.GeocodingURL, cfg.OpenMeteo.ForecastURL), 0)
		for _, st := range hb.CheckNow(context.Background()) {
			if st.Healthy {
				fmt.Printf("Probe %s: ok (%dms)\n", st.Name, st.LatencyMs)
			} else {
				fmt.Printf("Probe %s: %s\n", st.Name, st.Error)
			}
		}
	}

	return nil
}

func providerDisplay(t string) string {
	if t == "" {
		return "anthropic (default)"
	}
	return t
}

func writeIfNotExists(path, content string) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		_ = os.WriteFile(path, []byte(content), 0644)
		fmt.Printf("  Created: %s\n", path)
	}
}

const defaultAliasesYAML = `# City aliases for time and weather lookups.
# Keys match case-insensitively; values go to the geocoder as written.
#
# nyc: New York
# sf: San Francisco
# bj: Beijing
`
