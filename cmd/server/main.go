// Package main provides the entry point for the paper trading server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/atlas-desktop/papertrade/internal/api"
	"github.com/atlas-desktop/papertrade/internal/engine"
	"github.com/atlas-desktop/papertrade/internal/marketdata"
	"github.com/atlas-desktop/papertrade/internal/persist"
	"github.com/atlas-desktop/papertrade/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	host := flag.String("host", "", "Server host (overrides config)")
	port := flag.Int("port", 0, "Server port (overrides config)")
	dataDir := flag.String("data", "./data", "Data directory")
	configFile := flag.String("config", "", "Config file path (yaml)")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	autoStart := flag.Bool("auto-start", false, "Start a trading session immediately")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Synthetic market data seed")
	flag.Parse()

	logger := setupLogger(*logLevel)
	defer logger.Sync()

	engineConfig, serverConfig, err := loadConfig(*configFile, *host, *port)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger.Info("Starting paper trading server",
		zap.String("host", serverConfig.Host),
		zap.Int("port", serverConfig.Port),
		zap.String("dataDir", *dataDir),
		zap.String("strategy", engineConfig.Strategy),
	)

	store, err := persist.NewStore(logger, *dataDir)
	if err != nil {
		logger.Fatal("Failed to initialize persistence", zap.Error(err))
	}

	market := marketdata.NewSyntheticProvider(logger, *seed, time.Now(), time.Minute, 240)

	eng, err := engine.New(engine.Deps{
		Logger:     logger,
		Market:     market,
		Predictive: marketdata.NewHeuristicPredictor(20),
		Sentiment:  marketdata.StaticSentiment{},
		Store:      store,
	})
	if err != nil {
		logger.Fatal("Failed to initialize engine", zap.Error(err))
	}
	if err := eng.Configure(engineConfig); err != nil {
		logger.Fatal("Invalid engine configuration", zap.Error(err))
	}

	// A corrupt snapshot is fatal: better to refuse to start than to
	// trade on partial state.
	snapshot, err := store.Load()
	if err != nil {
		logger.Fatal("Failed to load snapshot", zap.Error(err))
	}
	if err := eng.RestoreSnapshot(snapshot); err != nil {
		logger.Fatal("Failed to restore snapshot", zap.Error(err))
	}

	server := api.NewServer(logger, serverConfig, eng)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("Server error", zap.Error(err))
		}
	}()

	if *autoStart {
		if err := eng.Start(); err != nil {
			logger.Error("Auto-start failed", zap.Error(err))
		}
	}

	logger.Info("Server started",
		zap.String("http", fmt.Sprintf("http://%s:%d/api/v1", serverConfig.Host, serverConfig.Port)),
		zap.String("ws", fmt.Sprintf("ws://%s:%d%s", serverConfig.Host, serverConfig.Port, serverConfig.WebSocketPath)),
	)

	<-sigChan
	logger.Info("Shutdown signal received")

	if state := eng.State(); state == types.SessionRunning || state == types.SessionPaused {
		if err := eng.Stop(); err != nil {
			logger.Error("Error stopping session", zap.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("Error during server shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}

// loadConfig merges defaults, an optional yaml file, environment
// variables (PAPERTRADE_ prefix), and flag overrides.
func loadConfig(configFile, host string, port int) (types.EngineConfig, types.ServerConfig, error) {
	v := viper.New()

	engineDefaults := types.DefaultEngineConfig()
	serverDefaults := types.DefaultServerConfig()

	v.SetDefault("engine.strategy", engineDefaults.Strategy)
	v.SetDefault("engine.watchlist", engineDefaults.Watchlist)
	v.SetDefault("engine.initialCapital", engineDefaults.InitialCapital.String())
	v.SetDefault("engine.cycleInterval", engineDefaults.CycleInterval)
	v.SetDefault("engine.lookback", engineDefaults.Lookback)
	v.SetDefault("engine.endOfDay", engineDefaults.EndOfDay)
	v.SetDefault("engine.autoRestart", engineDefaults.AutoRestart)
	v.SetDefault("engine.rebalanceEvery", engineDefaults.RebalanceEvery)
	v.SetDefault("engine.symbolTimeout", engineDefaults.SymbolTimeout)
	v.SetDefault("engine.risk.maxPositionPct", engineDefaults.Risk.MaxPositionPct.String())
	v.SetDefault("engine.risk.dailyLossPct", engineDefaults.Risk.DailyLossPct.String())
	v.SetDefault("engine.risk.sizingFraction", engineDefaults.Risk.SizingFraction.String())
	v.SetDefault("engine.risk.maxOrderValue", engineDefaults.Risk.MaxOrderValue.String())
	v.SetDefault("engine.rebalance.driftThreshold", engineDefaults.Rebalance.DriftThreshold.String())
	v.SetDefault("engine.rebalance.minTradePct", engineDefaults.Rebalance.MinTradePct.String())
	v.SetDefault("server.host", serverDefaults.Host)
	v.SetDefault("server.port", serverDefaults.Port)
	v.SetDefault("server.websocketPath", serverDefaults.WebSocketPath)
	v.SetDefault("server.readTimeout", serverDefaults.ReadTimeout)
	v.SetDefault("server.writeTimeout", serverDefaults.WriteTimeout)
	v.SetDefault("server.enableMetrics", serverDefaults.EnableMetrics)

	v.SetEnvPrefix("PAPERTRADE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return types.EngineConfig{}, types.ServerConfig{}, fmt.Errorf("read config: %w", err)
		}
	}

	capital, err := decimal.NewFromString(v.GetString("engine.initialCapital"))
	if err != nil {
		return types.EngineConfig{}, types.ServerConfig{}, fmt.Errorf("invalid initial capital: %w", err)
	}

	decimals := map[string]*decimal.Decimal{}
	riskParams := types.RiskParams{}
	rebalanceParams := types.RebalanceParams{}
	decimals["engine.risk.maxPositionPct"] = &riskParams.MaxPositionPct
	decimals["engine.risk.dailyLossPct"] = &riskParams.DailyLossPct
	decimals["engine.risk.sizingFraction"] = &riskParams.SizingFraction
	decimals["engine.risk.maxOrderValue"] = &riskParams.MaxOrderValue
	decimals["engine.rebalance.driftThreshold"] = &rebalanceParams.DriftThreshold
	decimals["engine.rebalance.minTradePct"] = &rebalanceParams.MinTradePct
	for key, dst := range decimals {
		value, err := decimal.NewFromString(v.GetString(key))
		if err != nil {
			return types.EngineConfig{}, types.ServerConfig{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = value
	}

	engineConfig := types.EngineConfig{
		Strategy:       v.GetString("engine.strategy"),
		Watchlist:      v.GetStringSlice("engine.watchlist"),
		InitialCapital: capital,
		CycleInterval:  v.GetDuration("engine.cycleInterval"),
		Lookback:       v.GetInt("engine.lookback"),
		EndOfDay:       v.GetString("engine.endOfDay"),
		AutoRestart:    v.GetBool("engine.autoRestart"),
		RebalanceEvery: v.GetInt("engine.rebalanceEvery"),
		SymbolTimeout:  v.GetDuration("engine.symbolTimeout"),
		Risk:           riskParams,
		Rebalance:      rebalanceParams,
	}
	if targets := v.GetStringMapString("engine.targetAllocation"); len(targets) > 0 {
		engineConfig.TargetAllocation = make(map[string]decimal.Decimal, len(targets))
		for symbol, weight := range targets {
			w, err := decimal.NewFromString(weight)
			if err != nil {
				return types.EngineConfig{}, types.ServerConfig{}, fmt.Errorf("invalid target weight for %s: %w", symbol, err)
			}
			engineConfig.TargetAllocation[strings.ToUpper(symbol)] = w
		}
	}

	serverConfig := types.ServerConfig{
		Host:          v.GetString("server.host"),
		Port:          v.GetInt("server.port"),
		WebSocketPath: v.GetString("server.websocketPath"),
		ReadTimeout:   v.GetDuration("server.readTimeout"),
		WriteTimeout:  v.GetDuration("server.writeTimeout"),
		EnableMetrics: v.GetBool("server.enableMetrics"),
	}
	if host != "" {
		serverConfig.Host = host
	}
	if port != 0 {
		serverConfig.Port = port
	}

	return engineConfig, serverConfig, nil
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := config.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
