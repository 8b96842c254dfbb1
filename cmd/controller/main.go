package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/affective-core/internal/config"
	"github.com/danielpatrickdp/affective-core/internal/eval"
	"github.com/danielpatrickdp/affective-core/internal/journal"
	"github.com/danielpatrickdp/affective-core/internal/logging"
	"github.com/danielpatrickdp/affective-core/internal/session"
	"github.com/danielpatrickdp/affective-core/internal/state"
)

// #region main
func main() {
	var configPath, sessionID string
	root := &cobra.Command{
		Use:          "controller",
		Short:        "Interactive affective controller",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, sessionID)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "config file (default $AFFECTIVE_CONFIG or ./affective.yaml)")
	root.Flags().StringVarP(&sessionID, "session", "s", "local", "session id to load and save")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(configPath, sessionID string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	r := &repl{sessionID: sessionID, logger: logger, out: os.Stdout}
	core := cfg.ToCognitive()
	opts := session.Options{
		MaxSessions: cfg.Session.MaxSessions,
		SaveEvery:   cfg.Session.SaveEvery,
		Core:        core,
		Eval:        eval.NewEvalHarness(eval.ConfigFor(core)),
		Logger:      logger,
	}
	if cfg.Storage.DBPath != "" {
		store, err := state.NewStore(cfg.Storage.DBPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()
		j, err := journal.NewStore(store.DB())
		if err != nil {
			return err
		}
		opts.Persister = store
		r.store, r.journal = store, j
	}

	sessions, err := session.NewManager(opts)
	if err != nil {
		return err
	}
	r.sessions = sessions
	defer func() {
		if err := sessions.Close(); err != nil {
			logger.Error("final checkpoint failed", zap.Error(err))
		}
	}()

	fmt.Println("Affective controller ready.")
	fmt.Printf("  DB: %s | Session: %s\n", dash(cfg.Storage.DBPath), sessionID)
	fmt.Println("Type a task, /help for commands, or 'quit' to exit:")
	return r.run(os.Stdin)
}

// #endregion main

// #region helpers
func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// #endregion helpers
