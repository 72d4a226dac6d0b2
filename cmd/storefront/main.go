package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/AlexeySalamakhin/storefront/cmd/storefront/config"
	"github.com/AlexeySalamakhin/storefront/cmd/storefront/db"
	"github.com/AlexeySalamakhin/storefront/cmd/storefront/logging"
	"github.com/AlexeySalamakhin/storefront/cmd/storefront/routers"
	"github.com/AlexeySalamakhin/storefront/cmd/storefront/service"
)

var Version = "dev"

func main() {
	_ = godotenv.Load()

	if err := rootCmd(config.New()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "storefront",
		Short:         "Storefront loyalty service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cfg.ApplyEnv()
		},
	}
	root.PersistentFlags().StringVarP(&cfg.DatabaseURI, "database-uri", "d", cfg.DatabaseURI, "postgres DSN or sqlite path")
	root.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	root.PersistentFlags().StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "json or console")
	root.PersistentFlags().StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "also write logs to this rotated file")

	root.AddCommand(serveCmd(cfg))
	root.AddCommand(migrateCmd(cfg))
	return root
}

func serveCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&cfg.RunAddress, "address", "a", cfg.RunAddress, "listen address")
	cmd.Flags().StringSliceVar(&cfg.CORSOrigins, "cors-origins", cfg.CORSOrigins, "allowed CORS origins")
	cmd.Flags().DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "graceful shutdown timeout")
	cmd.Flags().IntVar(&cfg.HistoryLimit, "history-limit", cfg.HistoryLimit, "default history page size")
	return cmd
}

func migrateCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()

			dbConn, err := db.Init(cfg.DatabaseURI)
			if err != nil {
				return err
			}
			defer dbConn.Close()
			if err := db.Migrate(cmd.Context(), dbConn); err != nil {
				return err
			}
			logger.Info("Миграция БД выполнена", zap.String("dialect", string(dbConn.Dialect)))
			return nil
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger, err := logging.New(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	dbConn, err := db.Init(cfg.DatabaseURI)
	if err != nil {
		logger.Error("Ошибка подключения к БД", zap.Error(err))
		return err
	}
	defer func() {
		logger.Info("Закрытие соединения с БД")
		dbConn.Close()
	}()

	if err := db.Migrate(ctx, dbConn); err != nil {
		logger.Error("Ошибка миграции БД", zap.Error(err))
		return err
	}

	ledgerService := service.NewLedgerService(db.NewLedgerRepoPG(dbConn), logger)
	orderService := service.NewOrderService(db.NewOrderRepoPG(dbConn), ledgerService, logger)
	h := routers.NewHandler(ledgerService, orderService, logger, cfg.HistoryLimit)

	server := &http.Server{
		Addr:         cfg.RunAddress,
		Handler:      routers.SetupRoutersWithLogger(h, logger, cfg.JWTSecret, cfg.CORSOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Сервер запущен", zap.String("address", cfg.RunAddress), zap.String("dialect", string(dbConn.Dialect)))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Остановка сервера")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
