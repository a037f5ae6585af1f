package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/parleyhq/parley/internal/profile"
	apiv1 "github.com/parleyhq/parley/server/router/api/v1"
	"github.com/parleyhq/parley/store"
	"github.com/parleyhq/parley/store/db"
)

const (
	greetingBanner = `parley - multilingual conversation server`
)

var (
	version = "0.1.0"

	rootCmd = &cobra.Command{
		Use:   "parley",
		Short: "A multilingual conversation server over pluggable chat models",
		Run: func(_ *cobra.Command, _ []string) {
			instanceProfile := &profile.Profile{
				Mode:                    viper.GetString("mode"),
				Addr:                    viper.GetString("addr"),
				Port:                    viper.GetInt("port"),
				Data:                    viper.GetString("data"),
				Driver:                  viper.GetString("driver"),
				DSN:                     viper.GetString("dsn"),
				Version:                 version,
				LLMBaseURL:              viper.GetString("llm-base-url"),
				LLMAPIKey:               viper.GetString("llm-api-key"),
				DefaultModel:            viper.GetString("default-model"),
				SystemPrompt:            viper.GetString("system-prompt"),
				DefaultLanguage:         viper.GetString("default-language"),
				DetectConfidence:        viper.GetFloat64("detect-confidence"),
				TikaServerURL:           viper.GetString("tika-url"),
				TranslateServerURL:      viper.GetString("translate-url"),
				DocExtractTimeout:       viper.GetDuration("docextract-timeout"),
				TranslateTimeout:        viper.GetDuration("translate-timeout"),
				DispatchTimeout:         viper.GetDuration("dispatch-timeout"),
				MaxConcurrentDispatches: viper.GetInt64("max-dispatches"),
			}
			if err := instanceProfile.Validate(); err != nil {
				slog.Error("invalid profile", "error", err)
				os.Exit(1)
			}
			if err := run(instanceProfile); err != nil {
				slog.Error("server terminated", "error", err)
				os.Exit(1)
			}
		},
	}
)

func run(instanceProfile *profile.Profile) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logLevel := slog.LevelInfo
	if instanceProfile.IsDev() {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	driver, err := db.NewDBDriver(instanceProfile)
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	var extraModels []store.ModelDescriptor
	if err := viper.UnmarshalKey("models", &extraModels); err != nil {
		return fmt.Errorf("failed to parse models config: %w", err)
	}

	st := store.New(driver, store.NewModelRegistry(extraModels), instanceProfile)
	defer st.Close()

	echoServer := echo.New()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.Use(middleware.Recover())
	echoServer.Use(middleware.CORS())

	apiService := apiv1.NewAPIV1Service(instanceProfile, st, logger)
	apiService.RegisterRoutes(echoServer)

	address := fmt.Sprintf("%s:%d", instanceProfile.Addr, instanceProfile.Port)
	errCh := make(chan error, 1)
	go func() {
		if err := echoServer.Start(address); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	fmt.Println(greetingBanner)
	logger.Info("server started",
		"address", address,
		"mode", instanceProfile.Mode,
		"driver", instanceProfile.Driver,
		"version", version,
	)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := echoServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("addr", "")
	viper.SetDefault("port", 8081)
	viper.SetDefault("driver", "sqlite")

	rootCmd.PersistentFlags().String("mode", "dev", `mode of the server, can be "prod", "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of the server")
	rootCmd.PersistentFlags().Int("port", 8081, "port of the server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", "database driver")
	rootCmd.PersistentFlags().String("dsn", "", "database source name (aka. DSN)")
	rootCmd.PersistentFlags().String("config", "", "path to an optional config file")

	for _, flag := range []string{"mode", "addr", "port", "data", "driver", "dsn"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("parley")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	cobra.OnInitialize(func() {
		configPath, _ := rootCmd.PersistentFlags().GetString("config")
		if configPath == "" {
			return
		}
		viper.SetConfigFile(configPath)
		if err := viper.ReadInConfig(); err != nil {
			slog.Error("failed to read config file", "path", configPath, "error", err)
			os.Exit(1)
		}
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
}
