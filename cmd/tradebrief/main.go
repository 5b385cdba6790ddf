// tradebrief — conversational trading commentary bot.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/avralex/tradebrief/api"
	"github.com/avralex/tradebrief/internal/analysis"
	"github.com/avralex/tradebrief/internal/analyst"
	"github.com/avralex/tradebrief/internal/bot"
	"github.com/avralex/tradebrief/internal/config"
	"github.com/avralex/tradebrief/internal/datasource"
	"github.com/avralex/tradebrief/internal/llm"
	"github.com/avralex/tradebrief/internal/telegram"
	"github.com/avralex/tradebrief/pkg/models"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tradebrief",
	Short: "tradebrief — market snapshot and trading commentary bot",
	Long: `tradebrief fetches market data, computes technical indicators,
collects recent headlines, and asks an LLM for a structured trading
verdict. It runs as a Telegram bot, a one-shot CLI, or an HTTP API.`,
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
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
}

// newsSource picks the configured headline strategy.
func newsSource() datasource.NewsSource {
	if cfg.News.Source == "search" {
		return datasource.NewSearchNews()
	}
	return datasource.NewFeedNews()
}

// newProvider builds the LLM provider chain from config. The router skips
// any provider in the chain that is not registered, so a missing key for
// the non-primary provider just shortens the fallback chain.
func newProvider() (llm.Provider, error) {
	router := llm.NewRouter(cfg.LLM.Primary,
		llm.WithFallbacks(llm.ProviderGroq, llm.ProviderOpenAI))

	registered := 0
	if cfg.LLM.GroqKey != "" {
		p, err := llm.NewGroqProvider(cfg.LLM.GroqKey, llm.WithModel(cfg.LLM.Model))
		if err != nil {
			return nil, err
		}
		router.RegisterProvider(p)
		registered++
	}
	if cfg.LLM.OpenAIKey != "" {
		p, err := llm.NewOpenAIProvider(cfg.LLM.OpenAIKey)
		if err != nil {
			return nil, err
		}
		router.RegisterProvider(p)
		registered++
	}
	if registered == 0 {
		return nil, fmt.Errorf("no LLM API key configured; set TRADEBRIEF_LLM_GROQ_KEY or TRADEBRIEF_LLM_OPENAI_KEY")
	}
	return router, nil
}

// newAnalyst wires the verdict engine from config.
func newAnalyst() (*analyst.Analyst, error) {
	provider, err := newProvider()
	if err != nil {
		return nil, err
	}
	opts := &llm.ChatOptions{
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	}
	return analyst.New(provider, newsSource(),
		analyst.WithChatOptions(opts),
		analyst.WithNewsLimit(cfg.News.Limit),
	), nil
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tradebrief %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Run Command (Telegram bot) ---

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Telegram bot",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Telegram.Token == "" {
			return fmt.Errorf("telegram.token is not set; set TRADEBRIEF_TELEGRAM_TOKEN")
		}

		verdicter, err := newAnalyst()
		if err != nil {
			return err
		}

		var clientOpts []telegram.Option
		if cfg.Telegram.Proxy != "" {
			clientOpts = append(clientOpts, telegram.WithProxy(cfg.Telegram.Proxy))
		}
		client := telegram.NewClient(cfg.Telegram.Token, clientOpts...)

		market := datasource.NewYFinance()
		controller := bot.New(market, verdicter, client)

		withAPI, _ := cmd.Flags().GetBool("api")
		if withAPI {
			srv := api.NewServer(cfg, market, controller.Sessions())
			addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
			go func() {
				if err := srv.ListenAndServe(addr); err != nil {
					fmt.Fprintf(os.Stderr, "API server stopped: %v\n", err)
				}
			}()
		}

		fmt.Println("🤖 tradebrief bot started, polling for updates...")
		client.StartPolling(cmd.Context(), controller.Handle)
		return nil
	},
}

func init() {
	runCmd.Flags().Bool("api", false, "also start the HTTP API server")
}

// --- Analyze Command (one-shot CLI) ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze [ticker]",
	Short: "Run a one-shot analysis on a ticker",
	Long: `Fetch market data, compute indicators, collect headlines, and print
the LLM verdict to stdout. Example:

  tradebrief analyze BTC-USD --timeframe 1d --note "thinking of entering long"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ticker, err := bot.ValidateTicker(args[0])
		if err != nil {
			return err
		}

		tfStr, _ := cmd.Flags().GetString("timeframe")
		tf, ok := models.ParseTimeframe(strings.ToLower(tfStr))
		if !ok {
			return fmt.Errorf("unknown timeframe %q (choose from %v)", tfStr, models.Timeframes)
		}
		note, _ := cmd.Flags().GetString("note")

		verdicter, err := newAnalyst()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		market := datasource.NewYFinance()

		fmt.Printf("🔎 Fetching %s data on %s...\n", ticker, tf)
		candles, err := market.History(ctx, ticker, tf)
		if err != nil {
			return err
		}
		snap, err := analysis.BuildSnapshot(ticker, tf, candles)
		if err != nil {
			return err
		}

		fmt.Printf("📊 %s (%s)  price=%v  rsi=%v  trend=%s  atr=%v\n",
			snap.Ticker, snap.Timeframe, snap.Price, snap.RSI, snap.Trend, snap.ATR)

		var ref *models.Snapshot
		if refCandles, err := market.History(ctx, bot.ReferenceTicker, tf); err == nil {
			if r, err := analysis.BuildSnapshot(bot.ReferenceTicker, tf, refCandles); err == nil {
				ref = r
			}
		}

		fmt.Println("🧠 Analyzing...")
		verdict := verdicter.Analyze(ctx, analyst.Request{
			Ticker:    ticker,
			Timeframe: tf,
			Snapshot:  snap,
			Reference: ref,
			UserNote:  note,
		})
		fmt.Println()
		fmt.Println(verdict)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().String("timeframe", "1d", "candle timeframe (5m, 15m, 30m, 1h, 4h, 1d, 1wk, 1mo)")
	analyzeCmd.Flags().String("note", "", "extra context passed to the model")
}

// --- Serve Command (API server only) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		market := datasource.NewYFinance()
		srv := api.NewServer(cfg, market, nil)
		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		fmt.Printf("🌐 Starting tradebrief API server on %s\n", addr)
		return srv.ListenAndServe(addr)
	},
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and credential status",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  tradebrief — Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Println()

		fmt.Println("  Configuration:")
		fmt.Printf("    LLM Provider:  %s (model: %s)\n", cfg.LLM.Primary, cfg.LLM.Model)
		fmt.Printf("    News Source:   %s (limit: %d)\n", cfg.News.Source, cfg.News.Limit)
		fmt.Printf("    API Server:    %s:%d\n", cfg.API.Host, cfg.API.Port)
		fmt.Println()

		fmt.Println("  Credentials:")
		for _, k := range cfg.CheckKeys() {
			status := "❌ not set"
			if k.Configured {
				status = fmt.Sprintf("✅ set (%s)", k.Masked)
			}
			fmt.Printf("    %-20s %s\n", k.Name+":", status)
		}

		if cfg.Telegram.Token != "" {
			client := telegram.NewClient(cfg.Telegram.Token)
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			if me, err := client.GetMe(ctx); err == nil {
				fmt.Printf("\n  Bot: @%s (id %d)\n", me.Username, me.ID)
			} else {
				fmt.Printf("\n  Bot: unreachable (%v)\n", err)
			}
		}

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}
