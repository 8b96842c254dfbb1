package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/affective-core/internal/config"
	"github.com/danielpatrickdp/affective-core/internal/eval"
	"github.com/danielpatrickdp/affective-core/internal/journal"
	"github.com/danielpatrickdp/affective-core/internal/logging"
	"github.com/danielpatrickdp/affective-core/internal/rpc"
	"github.com/danielpatrickdp/affective-core/internal/session"
	"github.com/danielpatrickdp/affective-core/internal/state"
)

// #region main
func main() {
	var configPath, addr string
	root := &cobra.Command{
		Use:          "server",
		Short:        "Serve cognitive sessions over gRPC",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, configPath, addr)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "config file (default $AFFECTIVE_CONFIG or ./affective.yaml)")
	root.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")

	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func serve(ctx context.Context, configPath, addr string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	core := cfg.ToCognitive()
	opts := session.Options{
		MaxSessions: cfg.Session.MaxSessions,
		SaveEvery:   cfg.Session.SaveEvery,
		Core:        core,
		Eval:        eval.NewEvalHarness(eval.ConfigFor(core)),
		Logger:      logger,
	}
	srvOpts := rpc.ServerOptions{Logger: logger}
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
		srvOpts.Decisions = store.DB()
		srvOpts.Journal = j
	} else {
		logger.Warn("storage.db_path is empty, sessions are not persisted")
	}

	sessions, err := session.NewManager(opts)
	if err != nil {
		return err
	}
	srvOpts.Sessions = sessions

	lis, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.Addr, err)
	}
	gs := rpc.NewGRPCServer(rpc.NewServer(srvOpts))

	errc := make(chan error, 1)
	go func() { errc <- gs.Serve(lis) }()
	logger.Info("serving", zap.String("addr", lis.Addr().String()), zap.String("db", cfg.Storage.DBPath))

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		gs.GracefulStop()
		<-errc
	case err = <-errc:
		logger.Error("serve failed", zap.Error(err))
	}
	if cerr := sessions.Close(); cerr != nil {
		logger.Error("final checkpoint failed", zap.Error(cerr))
	}
	return err
}

// #endregion main
