package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/siherrmann/archivist"
	"github.com/siherrmann/archivist/fixtures"
	"github.com/siherrmann/archivist/helper"
	"github.com/siherrmann/archivist/lock"
	"github.com/siherrmann/archivist/queue"
	"github.com/siherrmann/archivist/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version information - set at build time
	Version = "dev"
)

type app struct {
	v          *viper.Viper
	configPath string
	config     *Config
	logger     *slog.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:     "archivist",
		Short:   "Archival records search API",
		Long:    `Archivist indexes archival description components, materializes the references between them and serves them over HTTP.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default ./archivist.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	a.v.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(a.serveCmd())
	rootCmd.AddCommand(a.ingestCmd())
	rootCmd.AddCommand(a.consumeCmd())
	rootCmd.AddCommand(a.reconcileCmd())

	return rootCmd
}

func (a *app) init() error {
	config, err := loadConfig(a.v, a.configPath)
	if err != nil {
		return err
	}
	level, err := config.Log.level()
	if err != nil {
		return err
	}

	a.config = config
	a.logger = slog.New(helper.NewPrettyHandler(os.Stdout, helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{Level: level},
	}))
	return nil
}

// open connects the archivist. withLock adds the redis materializer lock when configured.
func (a *app) open(withLock bool) (*archivist.Archivist, func(), error) {
	dbConfig, err := helper.NewDatabaseConfiguration()
	if err != nil {
		return nil, nil, err
	}

	opts := []archivist.Option{
		archivist.WithLogger(a.logger),
		archivist.WithMaxLimit(a.config.Server.MaxLimit),
		archivist.WithMaxDepth(a.config.Hierarchy.MaxDepth),
	}

	var redisLocker *lock.RedisLocker
	if withLock && len(a.config.Redis.Addr) > 0 {
		redisLocker, err = lock.NewRedisLocker(a.config.redisConfig())
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, archivist.WithLocker(redisLocker))
		a.logger.Info("Using redis materializer lock", slog.String("addr", a.config.Redis.Addr))
	}

	arch, err := archivist.NewArchivist(dbConfig, opts...)
	if err != nil {
		if redisLocker != nil {
			redisLocker.Close()
		}
		return nil, nil, err
	}

	closeAll := func() {
		arch.Close()
		if redisLocker != nil {
			redisLocker.Close()
		}
	}
	return arch, closeAll, nil
}

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			arch, closeAll, err := a.open(false)
			if err != nil {
				return err
			}
			defer closeAll()

			return server.New(arch, a.config.serverConfig(), a.logger).ListenAndServe(ctx)
		},
	}
	cmd.Flags().String("addr", "", "listen address")
	a.v.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	return cmd
}

func (a *app) ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <dir>",
		Short: "Index fixture documents from {dir}/{agents,collections,objects,terms}/*.json",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			arch, closeAll, err := a.open(true)
			if err != nil {
				return err
			}
			defer closeAll()

			result, err := fixtures.Ingest(ctx, os.DirFS(args[0]), arch, a.logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d components, %d new references, %d rule errors\n", result.Indexed, result.References, result.RuleErrors)
			return nil
		},
	}
}

func (a *app) consumeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Index and delete components from the RabbitMQ queues",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			arch, closeAll, err := a.open(true)
			if err != nil {
				return err
			}
			defer closeAll()

			conn, err := queue.Dial(a.config.RabbitMQ.URL)
			if err != nil {
				return err
			}
			defer conn.Close()

			ch, err := conn.Channel()
			if err != nil {
				return helper.NewError("open channel", err)
			}
			defer ch.Close()

			return queue.NewConsumer(ch, arch, a.logger).Run(ctx)
		},
	}
	cmd.Flags().String("rabbitmq-url", "", "RabbitMQ connection url")
	a.v.BindPFlag("rabbitmq.url", cmd.Flags().Lookup("rabbitmq-url"))
	return cmd
}

func (a *app) reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Delete references whose owner or target no longer exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			arch, closeAll, err := a.open(false)
			if err != nil {
				return err
			}
			defer closeAll()

			deleted, err := arch.Reconcile(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d stale references\n", deleted)
			return nil
		},
	}
}
