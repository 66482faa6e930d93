// Command fuxiquant — event-driven futures backtest engine and local-LLM
// tool-use agent.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/fuxihub/fuxiquant-go/api"
	"github.com/fuxihub/fuxiquant-go/internal/agentloop"
	"github.com/fuxihub/fuxiquant-go/internal/backtest"
	"github.com/fuxihub/fuxiquant-go/internal/candles/store"
	"github.com/fuxihub/fuxiquant-go/internal/chat"
	"github.com/fuxihub/fuxiquant-go/internal/config"
	"github.com/fuxihub/fuxiquant-go/internal/logging"
	"github.com/fuxihub/fuxiquant-go/internal/mcp"
	"github.com/fuxihub/fuxiquant-go/internal/script"
	"github.com/fuxihub/fuxiquant-go/internal/tool"
	"github.com/fuxihub/fuxiquant-go/internal/tool/builtin"
	"github.com/fuxihub/fuxiquant-go/pkg/models"
	"github.com/fuxihub/fuxiquant-go/pkg/xtime"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config, loaded in PersistentPreRunE.
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fuxiquant",
	Short: "fuxiquant — futures backtest engine and local-LLM tool-use agent",
	Long: `fuxiquant
An event-driven futures backtesting engine (per-minute candles, maker/taker
fee accounting, Lua-scriptable strategies) paired with a conversational
agent that drives a local GGUF chat model through a ChatML tool-use loop,
dispatching calls to built-in executors or child-process MCP servers.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			cfg.Log.Level = level
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(backtestCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)

	backtestCmd.AddCommand(backtestRunCmd)
	agentCmd.AddCommand(agentChatCmd)
	mcpCmd.AddCommand(mcpListToolsCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("fuxiquant %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Config Command ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			fmt.Printf("⚠ config invalid: %v\n", err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	},
}

// --- Backtest Command ---

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run or inspect backtests",
}

var backtestRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a backtest simulation against a Lua strategy",
	Long: `Run a backtest with a Lua strategy script against archived 1-minute
candles, per the active config's backtest section (codes, start/end,
cash, fee rates, data directory). Flags override the config file.

Example:
  fuxiquant backtest run --script strategies/sma_crossover.lua --codes BTCUSDT,ETHUSDT`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.New(cfg.Log.Level, true)

		scriptPath, _ := cmd.Flags().GetString("script")
		if scriptPath == "" {
			scriptPath = cfg.Script.File
		}
		codesFlag, _ := cmd.Flags().GetStringSlice("codes")
		codes := cfg.Backtest.Codes
		if len(codesFlag) > 0 {
			codes = codesFlag
		}
		if scriptPath == "" || len(codes) == 0 {
			return fmt.Errorf("backtest run: a --script path and at least one --codes entry are required")
		}

		session := xtime.NewSession("")
		start, err := session.ParseFlexible(cfg.Backtest.StartTime)
		if err != nil {
			return fmt.Errorf("backtest run: invalid backtest.start_time: %w", err)
		}
		end, err := session.ParseFlexible(cfg.Backtest.EndTime)
		if err != nil {
			return fmt.Errorf("backtest run: invalid backtest.end_time: %w", err)
		}

		cash, err := decimal.NewFromString(cfg.Backtest.Cash)
		if err != nil {
			return fmt.Errorf("backtest run: invalid backtest.cash: %w", err)
		}
		makerFee, err := decimal.NewFromString(cfg.Backtest.MakerFeeRate)
		if err != nil {
			return fmt.Errorf("backtest run: invalid backtest.maker_fee_rate: %w", err)
		}
		takerFee, err := decimal.NewFromString(cfg.Backtest.TakerFeeRate)
		if err != nil {
			return fmt.Errorf("backtest run: invalid backtest.taker_fee_rate: %w", err)
		}
		slippage, err := decimal.NewFromString(cfg.Backtest.Slippage)
		if err != nil {
			return fmt.Errorf("backtest run: invalid backtest.slippage: %w", err)
		}

		st := store.New(cfg.Backtest.DataDir)
		bars := make(map[string]models.BarSource, len(codes))
		symbols := make([]backtest.SymbolSpec, 0, len(codes))
		for _, code := range codes {
			tbl, err := st.Load(code, start.UnixMilli(), end.UnixMilli(), cfg.Backtest.HistoryBarLen)
			if err != nil {
				return fmt.Errorf("backtest run: loading %s: %w", code, err)
			}
			bars[code] = tbl
			symbols = append(symbols, defaultSymbolSpec(code))
		}

		src, err := readScriptSource(scriptPath)
		if err != nil {
			return err
		}
		strategy, err := script.Compile(src, scriptPath, cfg.GasMax)
		if err != nil {
			return fmt.Errorf("backtest run: compiling strategy: %w", err)
		}
		defer strategy.Close()

		btCfg := backtest.Config{
			Symbols:       symbols,
			Start:         start.UnixMilli(),
			End:           end.UnixMilli(),
			InitialCash:   cash,
			HistoryBarLen: cfg.Backtest.HistoryBarLen,
			MakerFeeRate:  makerFee,
			TakerFeeRate:  takerFee,
			Slippage:      slippage,
			Session:       session,
		}
		if err := btCfg.Validate(); err != nil {
			return fmt.Errorf("backtest run: %w", err)
		}

		engine, err := backtest.New(btCfg, strategy, bars)
		if err != nil {
			return fmt.Errorf("backtest run: %w", err)
		}

		done := logging.Span(logger, cfg.Log.ShowSpanTiming, "backtest.run")
		report, err := engine.Run()
		done()
		if err != nil {
			return fmt.Errorf("backtest run: %w", err)
		}

		if outputJSON, _ := cmd.Flags().GetBool("json"); outputJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}

		printReport(report)
		return nil
	},
}

func init() {
	backtestRunCmd.Flags().String("script", "", "strategy Lua script path (default from config)")
	backtestRunCmd.Flags().StringSlice("codes", nil, "contract codes to trade (default from config)")
	backtestRunCmd.Flags().Bool("json", false, "output the report as JSON")
}

func readScriptSource(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("backtest run: reading strategy %s: %w", path, err)
	}
	return string(data), nil
}

// defaultSymbolSpec seeds a symbol with permissive tick/lot defaults;
// a real deployment would source these per-contract from an exchange
// instrument listing, which is out of SPEC_FULL.md's scope.
func defaultSymbolSpec(code string) backtest.SymbolSpec {
	return backtest.SymbolSpec{
		Code:      code,
		PriceTick: decimal.NewFromFloat(0.0001),
		SizeTick:  decimal.NewFromFloat(0.0001),
		MinSize:   decimal.NewFromFloat(0.0001),
		MinCash:   decimal.NewFromInt(5),
		MaxLever:  decimal.NewFromInt(20),
		FaceVal:   decimal.NewFromInt(1),
	}
}

func printReport(r *models.Report) {
	fmt.Println("═══════════════════════════════════════")
	fmt.Println("  Backtest Report")
	fmt.Println("═══════════════════════════════════════")
	fmt.Printf("  Initial Equity: %s\n", r.InitialEquity.String())
	fmt.Printf("  Final Equity:   %s\n", r.FinalEquity.String())
	fmt.Printf("  Return:         %s\n", r.Ret.String())
	fmt.Printf("  Annualized:     %s\n", r.AR.String())
	fmt.Printf("  Max Drawdown:   %s\n", r.MDD.String())
	fmt.Printf("  Sharpe:         %s\n", r.SR.String())
	fmt.Printf("  Sortino:        %s\n", r.SOR.String())
	fmt.Printf("  Calmar:         %s\n", r.CR.String())
	fmt.Printf("  Win Rate:       %s\n", r.WinRate.String())
	fmt.Printf("  P/L Ratio:      %s\n", r.PLRatio.String())
	fmt.Printf("  Trade Count:    %d\n", r.TradeCount)
	fmt.Println("═══════════════════════════════════════")
}

// --- Agent Command ---

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Conversational agent commands",
}

var agentChatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session with the agent",
	Long: `Start a REPL against the configured local chat model, routing its
tool calls through the built-in registry and any configured MCP servers.

Type 'quit' or 'exit' to leave.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newInferenceEngine(cfg)
		if err != nil {
			return fmt.Errorf("agent chat: %w", err)
		}

		dialect, err := dialectFor(cfg.Agent.Dialect)
		if err != nil {
			return err
		}

		var mgr *mcp.Manager
		if len(cfg.MCP.Servers) > 0 {
			specs := make([]mcp.ServerSpec, len(cfg.MCP.Servers))
			for i, s := range cfg.MCP.Servers {
				specs[i] = mcp.ServerSpec{Name: s.Name, Command: s.Command, Args: s.Args, Env: s.Env}
			}
			mgr, err = mcp.Connect(specs)
			if err != nil {
				fmt.Fprintf(os.Stderr, "agent chat: connecting MCP servers: %v\n", err)
			}
			defer mgr.Close()
		}

		ctrl := agentloop.New(agentloop.Config{
			Engine:         engine,
			Dialect:        dialect,
			SystemPrompt:   cfg.Agent.SystemPrompt,
			EnableThinking: cfg.Agent.EnableThinking,
			MaxToolRounds:  cfg.Agent.MaxToolRounds,
			Builtins:       builtin.NewRegistry(),
			MCP:            mgr,
		})

		fmt.Println("💬 fuxiquant agent — type 'quit' or 'exit' to leave")
		fmt.Println()
		return runChatREPL(ctrl)
	},
}

func dialectFor(name string) (tool.Dialect, error) {
	switch strings.ToLower(name) {
	case "", "hermes":
		return tool.Hermes{}, nil
	case "react":
		return tool.React{}, nil
	default:
		return nil, fmt.Errorf("agent: unknown dialect %q (want hermes or react)", name)
	}
}

func runChatREPL(ctrl *agentloop.Controller) error {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			return nil
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "quit" || input == "exit" {
			fmt.Println("👋 Goodbye!")
			return nil
		}

		thinking := false
		final, err := ctrl.Run(input, func(ev chat.StreamEvent) {
			switch ev.Kind {
			case chat.EventThinkBegin:
				thinking = true
			case chat.EventThinkEnd:
				thinking = false
			case chat.EventToken:
				if !thinking {
					fmt.Print(ev.Data)
				}
			}
		})
		if err != nil {
			fmt.Printf("❌ Error: %v\n\n", err)
			continue
		}
		fmt.Printf("\n🤖 %s\n\n", final)
	}
}

// newInferenceEngine constructs the chat.Engine a real deployment would
// bind to an in-process GGUF/llama.cpp runtime. Token sampling and model
// loading are out of this module's scope (spec §1's "consumed, not
// built" primitives) and no such binding is grounded anywhere in the
// retrieved corpus, so none ships here — callers embed fuxiquant as a
// library and supply their own chat.Engine rather than going through
// this CLI entrypoint for live inference.
func newInferenceEngine(cfg *config.Config) (chat.Engine, error) {
	return nil, fmt.Errorf("no inference engine is linked into this binary; embed package chat with a GGUF-backed chat.Engine implementation")
}

// --- MCP Command ---

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Inspect configured MCP servers",
}

var mcpListToolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Connect to configured MCP servers and list their tools",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(cfg.MCP.Servers) == 0 {
			fmt.Println("no MCP servers configured")
			return nil
		}
		specs := make([]mcp.ServerSpec, len(cfg.MCP.Servers))
		for i, s := range cfg.MCP.Servers {
			specs[i] = mcp.ServerSpec{Name: s.Name, Command: s.Command, Args: s.Args, Env: s.Env}
		}
		mgr, err := mcp.Connect(specs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "mcp tools: %v\n", err)
		}
		defer mgr.Close()

		for _, t := range mgr.Tools() {
			fmt.Printf("  %-30s %s\n", t.Name, t.Description)
		}
		return nil
	},
}

// --- Serve Command ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the go-chi HTTP API exposing backtest/agent-chat endpoints and
the WebSocket event stream over REST, binding to the configured
api.host:api.port.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		srv, err := api.NewServer(cfg)
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		fmt.Printf("🚀 fuxiquant API listening on %s\n", addr)
		return srv.ListenAndServe(addr)
	},
}
