package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/smtart/whiteboard-app/internal/board"
	"github.com/smtart/whiteboard-app/internal/config"
	"github.com/smtart/whiteboard-app/internal/gate"
	"github.com/smtart/whiteboard-app/internal/logging"
	"github.com/smtart/whiteboard-app/internal/room"
	"github.com/smtart/whiteboard-app/internal/server"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "whiteboard-api",
		Short: "Collaborative whiteboard sync service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().Int("empty-grace-minutes", defaults.GetInt("room.empty_grace_minutes"), "Minutes an empty room survives before deletion")
	cmd.PersistentFlags().Int("sweep-interval-minutes", defaults.GetInt("room.sweep_interval_minutes"), "Minutes between empty-room sweeps")
	cmd.PersistentFlags().Int("max-empty-hours", defaults.GetInt("room.max_empty_hours"), "Hours of emptiness before the sweep removes a room")
	cmd.PersistentFlags().Int("durable-per-sec", defaults.GetInt("limits.durable_per_sec"), "Durable operations allowed per connection per second")
	cmd.PersistentFlags().Int("cursor-per-sec", defaults.GetInt("limits.cursor_per_sec"), "Cursor updates allowed per connection per second")
	cmd.PersistentFlags().Int("preview-per-sec", defaults.GetInt("limits.preview_per_sec"), "Preview messages allowed per connection per second")
	cmd.PersistentFlags().Int("text-per-sec", defaults.GetInt("limits.text_per_sec"), "Text previews allowed per connection per second")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "room.empty_grace_minutes", "empty-grace-minutes")
	bindFlag(cmd, "room.sweep_interval_minutes", "sweep-interval-minutes")
	bindFlag(cmd, "room.max_empty_hours", "max-empty-hours")
	bindFlag(cmd, "limits.durable_per_sec", "durable-per-sec")
	bindFlag(cmd, "limits.cursor_per_sec", "cursor-per-sec")
	bindFlag(cmd, "limits.preview_per_sec", "preview-per-sec")
	bindFlag(cmd, "limits.text_per_sec", "text-per-sec")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	_ = godotenv.Load()

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

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	store := room.NewMemoryStore(room.MemoryStoreConfig{Logger: logger})
	ingress := gate.NewGate(gate.GateConfig{Limits: gate.Limits{
		DurablePerSecond: appConfig.DurablePerSecond,
		CursorPerSecond:  appConfig.CursorPerSecond,
		PreviewPerSecond: appConfig.PreviewPerSecond,
		TextPerSecond:    appConfig.TextPerSecond,
	}})

	hub, err := server.NewHub(server.HubConfig{
		Store:          store,
		Gate:           ingress,
		IDProvider:     board.NewUUIDProvider(),
		Logger:         logger,
		EmptyRoomGrace: appConfig.EmptyRoomGrace,
		SweepInterval:  appConfig.SweepInterval,
		MaxEmptyAge:    appConfig.MaxEmptyAge,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Hub:    hub,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
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
