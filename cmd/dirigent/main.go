package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"dirigent/internal/classify"
	"dirigent/internal/config"
	"dirigent/internal/dispatch"
	"dirigent/internal/llm"
	"dirigent/internal/logging"
	"dirigent/internal/plan"
	"dirigent/internal/store"
	"dirigent/internal/types"
	"dirigent/internal/workflow"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose   bool
	apiKey    string
	workspace string
	sessionID string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "dirigent",
	Short: "dirigent - intent-gated plan dispatch engine",
	Long: `dirigent turns free-text requests into proposed plans and executes them
only on explicit, confident confirmation.

Every utterance is classified against the pending plan; low-confidence
readings degrade to a clarifying question, never to an action.

Run without arguments to start the interactive chat interface.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractiveChat()
	},
}

// runCmd handles a single utterance and exits
var runCmd = &cobra.Command{
	Use:   "run [utterance]",
	Short: "Handle a single utterance non-interactively",
	Long: `Classifies and routes one utterance through the dispatch engine, printing
the response to stdout. New requests propose a plan; without a follow-up
confirmation nothing executes, so this is most useful for scripted
plan proposals and for inspecting classification behavior.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSingle,
}

// configCmd prints the effective configuration
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(workspace)
		if err != nil {
			return err
		}
		fmt.Printf("workspace:      %s\n", workspace)
		fmt.Printf("model:          %s/%s\n", cfg.Model.Provider, cfg.Model.Model)
		fmt.Printf("api key:        %s\n", maskKey(cfg.Model.APIKey))
		fmt.Printf("classify:       timeout=%v cache=%d ttl=%v\n",
			cfg.Classify.Timeout, cfg.Classify.CacheSize, cfg.Classify.CacheTTL)
		fmt.Printf("thresholds:     execute>%.2f confirm>=%.2f uncertain<%.2f\n",
			cfg.Thresholds.Execute, cfg.Thresholds.ConfirmFloor, cfg.Thresholds.Uncertain)
		fmt.Printf("fallback:       confirm=%.2f unmapped=%.2f\n",
			cfg.Thresholds.FallbackConfirm, cfg.Thresholds.FallbackUnmapped)
		fmt.Printf("conversation:   retention=%d context=%d archive=%d\n",
			cfg.Conversation.Retention, cfg.Conversation.ContextK, cfg.Conversation.MaxArchive)
		fmt.Printf("learning store: %s\n", cfg.Store.DatabasePath)
		return nil
	},
}

func maskKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// engineHandle bundles the wired engine with its shutdown hooks.
type engineHandle struct {
	engine  *dispatch.Engine
	watcher *config.Watcher
	client  llm.Client
}

func (h *engineHandle) close() {
	if h.watcher != nil {
		h.watcher.Stop()
	}
	if h.client != nil {
		_ = h.client.Close()
	}
	_ = h.engine.Close()
	logging.CloseAll()
}

// buildEngine wires the full pipeline from configuration. Without an API key
// the engine still works: classification and workers degrade to the
// deterministic keyword path.
func buildEngine(ctx context.Context, sink types.Sink) (*engineHandle, error) {
	if err := logging.Initialize(workspace); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging unavailable: %v\n", err)
	}

	cfg, err := config.Load(workspace)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if apiKey != "" {
		cfg.Model.APIKey = apiKey
	}

	thresholds := func() config.Thresholds { return cfg.Thresholds }
	watcher, werr := config.NewWatcher(workspace, cfg.Thresholds, func(th config.Thresholds) {
		logger.Info("thresholds reloaded",
			zap.Float64("execute", th.Execute),
			zap.Float64("confirm_floor", th.ConfirmFloor))
	})
	if werr != nil {
		logger.Warn("threshold hot-reload unavailable", zap.Error(werr))
		watcher = nil
	} else {
		_ = watcher.Start(ctx)
		thresholds = watcher.Thresholds
	}

	var (
		client  llm.Client
		primary types.Classifier
	)
	if cfg.Model.APIKey != "" {
		client, err = llm.NewGenAIClient(ctx, cfg.Model)
		if err != nil {
			return nil, err
		}
		primary = classify.NewModelClassifier(client)
	} else {
		fmt.Fprintln(os.Stderr, "Warning: no API key; running with keyword classification only")
		th := cfg.Thresholds
		primary = classify.NewKeywordClassifier(th.FallbackConfirm, th.FallbackUnmapped, nil)
	}

	classifier, err := classify.New(primary, cfg.Classify)
	if err != nil {
		return nil, err
	}

	registry := workflow.NewRegistry()
	if client != nil {
		workflow.RegisterBuiltins(registry, client)
	}
	executor := workflow.NewExecutor(registry, sink)

	var decomposer types.Decomposer
	if client != nil {
		decomposer = llm.NewModelDecomposer(client)
	}

	var blob types.BlobStore
	blob, err = store.NewSQLiteStore(cfg.Store.DatabasePath)
	if err != nil {
		logger.Warn("learning store unavailable, using memory", zap.Error(err))
		blob = store.NewMemoryStore()
	}

	engine, err := dispatch.New(dispatch.Options{
		Classifier: classifier,
		Runner:     executor,
		Decomposer: decomposer,
		Plans:      plan.NewStore(),
		Blob:       blob,
		Sink:       sink,
		Thresholds: thresholds,
		Classify:   cfg.Classify,
		Conv:       cfg.Conversation,
	})
	if err != nil {
		return nil, err
	}
	if err := engine.Init(); err != nil {
		logger.Warn("learning state not restored", zap.Error(err))
	}

	return &engineHandle{engine: engine, watcher: watcher, client: client}, nil
}

// stdoutSink prints engine output directly; used by the non-interactive path.
type stdoutSink struct{}

func (stdoutSink) Write(segment string) {
	fmt.Println(segment)
}

func runSingle(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	handle, err := buildEngine(ctx, stdoutSink{})
	if err != nil {
		return err
	}
	defer handle.close()

	utterance := ""
	for i, a := range args {
		if i > 0 {
			utterance += " "
		}
		utterance += a
	}
	return handle.engine.Handle(ctx, sessionID, utterance)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Model API key (or DIRIGENT_API_KEY / GEMINI_API_KEY)")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", ".", "Workspace directory")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", "default", "Session identifier")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
