package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lumeno/chatsync/internal/config"
	"github.com/lumeno/chatsync/internal/database"
	"github.com/lumeno/chatsync/internal/logging"
	"github.com/lumeno/chatsync/internal/merge"
	"github.com/lumeno/chatsync/internal/pager"
	"github.com/lumeno/chatsync/internal/query"
	"github.com/lumeno/chatsync/internal/server"
	"github.com/lumeno/chatsync/internal/syncer"
	"github.com/lumeno/chatsync/internal/transport"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "chatsyncd",
		Short: "Local chat cache daemon",
		Long:  "chatsyncd keeps a local SQLite cache of the chat object graph in sync with a remote service and serves it over HTTP.",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := viper.GetViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite cache database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("api-base-url", defaults.GetString("api.base_url"), "Remote service base URL (page syncing disabled when empty)")
	cmd.PersistentFlags().String("events-url", defaults.GetString("events.url"), "Websocket event feed URL (event receiver disabled when empty)")
	cmd.PersistentFlags().Int("page-size", defaults.GetInt("sync.page_size"), "Channel page size")
	cmd.PersistentFlags().String("scope", defaults.GetString("sync.scope"), "Query scope name for synced channels")
	cmd.PersistentFlags().Int("reconnect-wait", defaults.GetInt("events.reconnect_wait_s"), "Seconds to wait before redialing the event feed")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "api.base_url", "api-base-url")
	bindFlag(cmd, "events.url", "events-url")
	bindFlag(cmd, "sync.page_size", "page-size")
	bindFlag(cmd, "sync.scope", "scope")
	bindFlag(cmd, "events.reconnect_wait_s", "reconnect-wait")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runDaemon(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	scope, err := query.NewScope(appConfig.ScopeName)
	if err != nil {
		return err
	}

	scopeIndex, err := query.NewIndex(query.IndexConfig{
		Database: db,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	mergeService, err := merge.NewService(merge.Config{
		Database: db,
		Clock:    time.Now,
		Logger:   logger,
		Scopes:   scopeIndex,
	})
	if err != nil {
		return err
	}

	channelPager, err := pager.New(pager.Config{
		FirstPageLimit: appConfig.PageSize,
		Logger:         logger,
	})
	if err != nil {
		return err
	}
	channelPager.Start()
	defer channelPager.Stop()

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if appConfig.APIBaseURL != "" {
		fetcher, err := transport.NewHTTPFetcher(transport.HTTPFetcherConfig{
			BaseURL: appConfig.APIBaseURL,
			Logger:  logger,
		})
		if err != nil {
			return err
		}
		pageSyncer, err := syncer.New(syncer.Config{
			Pager:   channelPager,
			Fetcher: fetcher,
			Merger:  mergeService,
			Scope:   scope,
			Logger:  logger,
		})
		if err != nil {
			return err
		}
		go func() {
			if err := pageSyncer.Run(signalCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("page syncer stopped", zap.Error(err))
			}
		}()
	}

	if appConfig.EventFeedURL != "" {
		receiver, err := transport.NewEventReceiver(transport.EventReceiverConfig{
			URL:                appConfig.EventFeedURL,
			Saver:              mergeService,
			Logger:             logger,
			OnConnectionChange: channelPager.SetConnected,
		})
		if err != nil {
			return err
		}
		reconnectWait := time.Duration(appConfig.ReconnectWaitSeconds) * time.Second
		go func() {
			for {
				if err := receiver.Run(signalCtx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Warn("event feed disconnected", zap.Error(err))
				}
				select {
				case <-signalCtx.Done():
					return
				case <-time.After(reconnectWait):
				}
			}
		}()
	} else {
		// Without an event feed there is no connectivity signal: treat the
		// daemon as online so page syncing can proceed.
		channelPager.SetConnected(true)
	}

	channelPager.Reload()

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Database: db,
		Scopes:   scopeIndex,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("cache server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
