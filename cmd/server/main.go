/*
main.go - Loan engine host entry point

STARTUP SEQUENCE:
  1. Load configuration (viper: file + environment + flag override)
  2. Build the zap logger
  3. Open the SQLite store
  4. Wire the HTTP handler and router
  5. Serve with graceful shutdown on SIGINT/SIGTERM

CONFIGURATION (config.yaml or environment):
  port:       HTTP port               (default 8080)
  db:         SQLite path             (default loans.db, ":memory:" works)
  log_level:  debug|info|warn|error   (default info)
  log_format: json|console            (default json)
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/warp/loan-engine/api"
	"github.com/warp/loan-engine/store/sqlite"
)

type config struct {
	Port      int    `mapstructure:"port"`
	DB        string `mapstructure:"db"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

func loadConfig(path string) (config, error) {
	viper.SetDefault("port", 8080)
	viper.SetDefault("db", "loans.db")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "json")
	viper.SetEnvPrefix("loan_engine")
	viper.AutomaticEnv()

	if path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg config
	if err := viper.Unmarshal(&cfg); err != nil {
		return config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func buildLogger(cfg config) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.LogLevel {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn", "warning":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		return nil, fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	var zc zap.Config
	switch cfg.LogFormat {
	case "console":
		zc = zap.NewDevelopmentConfig()
	case "json":
		zc = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func main() {
	configPath := flag.String("config", "", "path to configuration file (optional)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	store, err := sqlite.New(cfg.DB)
	if err != nil {
		logger.Fatal("failed to open store", zap.String("db", cfg.DB), zap.Error(err))
	}
	defer store.Close()

	handler := api.NewHandler(store, store, logger)
	router := api.NewRouter(handler)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	go func() {
		logger.Info("loan engine listening", zap.Int("port", cfg.Port), zap.String("db", cfg.DB))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
}
