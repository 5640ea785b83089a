// Package main wires the signal/paper-trading engine together: load
// config, build the single-writer symbol engine, start the websocket
// ingestor, the outbound notification worker and the status/metrics
// HTTP surface, then wait for a shutdown signal.
//
// Adapted from the teacher's cmd/server/main.go: flag parsing,
// setupLogger and the ordered start/shutdown-with-signal-handling idiom
// are kept; the PhD-level autonomous/blockchain/orchestrator stack is
// replaced with this engine's own pipeline.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/perpsignal/engine/internal/api"
	"github.com/perpsignal/engine/internal/config"
	"github.com/perpsignal/engine/internal/feed"
	"github.com/perpsignal/engine/internal/metrics"
	"github.com/perpsignal/engine/internal/notify"
	"github.com/perpsignal/engine/internal/symbolengine"
	"github.com/perpsignal/engine/pkg/types"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file (optional, env vars and defaults apply otherwise)")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	logger := setupLogger(*logLevel)
	defer logger.Sync()
	log := logger.Sugar()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalw("failed to load config", "error", err)
	}

	log.Infow("starting perpsignal engine",
		"symbols", cfg.Symbols,
		"main_timeframe_sec", cfg.MainTimeframeSec,
		"early_signals", cfg.EnableEarlySignals,
		"http_addr", cfg.HTTPAddr,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var collectors *metrics.Collectors
	if cfg.EnableMetrics {
		collectors = metrics.NewCollectors(prometheus.DefaultRegisterer)
	}

	formatter := notify.NewFormatter()
	notifyQueue := notify.NewQueue(notify.Config{
		Capacity: cfg.NotifyQueueCap,
		MinDelay: cfg.NotifyMinInterval,
	}, logSink(log), log)

	var server *api.Server
	var lastDropped int64

	hooks := symbolengine.Hooks{
		OnSignal: func(sig types.Signal) {
			notifyQueue.Enqueue(formatter.FormatSignal(sig))
			if collectors != nil {
				collectors.RecordSignal(sig)
			}
			if server != nil {
				server.BroadcastSignal(sig)
			}
		},
		OnOpen: func(pos types.Position, plan types.RiskPlan) {
			notifyQueue.Enqueue(formatter.FormatOpen(pos, plan))
			if collectors != nil {
				collectors.RecordOpen(pos)
			}
			if server != nil {
				server.BroadcastOpen(pos, plan)
			}
		},
		OnClose: func(res types.CloseResult, summary types.SimulatorSummary) {
			notifyQueue.Enqueue(formatter.FormatClose(res, summary))
			if collectors != nil {
				collectors.RecordClose(res)
			}
			if server != nil {
				server.BroadcastClose(res, summary)
			}
		},
		OnRegimeChange: func(res types.RegimeResult) {
			notifyQueue.Enqueue(formatter.FormatRegimeChange(res))
			if collectors != nil {
				collectors.SetRegime(res.Regime)
			}
			if server != nil {
				server.BroadcastRegime(res)
			}
		},
		OnGateReject: func(gate, reason string) {
			if collectors != nil {
				collectors.RecordGateRejection(gate)
			}
			log.Debugw("gate rejected", "gate", gate, "reason", reason)
		},
		OnDrawdown: func(state types.DrawdownState) {
			if collectors != nil {
				collectors.RecordDrawdown(state)
			}
		},
	}

	engine := symbolengine.New(cfg, log, hooks)

	server = api.NewServer(log, cfg.HTTPAddr, cfg.EnableMetrics, engine)

	streamSymbols := append([]string{}, cfg.Symbols...)
	for _, p := range cfg.Regime.ProxySymbols {
		if p != "" {
			streamSymbols = append(streamSymbols, p)
		}
	}
	ingestor := feed.NewIngestor(feed.Config{
		BookTickerURL:  cfg.WebsocketBaseURL + "/stream?streams=" + bookTickerStreams(streamSymbols),
		TradeURL:       cfg.WebsocketBaseURL + "/stream?streams=" + aggTradeStreams(streamSymbols),
		Symbols:        streamSymbols,
		ReportInterval: cfg.Simulator.ReportInterval,
		OnReport: func(summary types.SimulatorSummary) {
			notifyQueue.Enqueue(formatter.FormatStatus(summary))
			if collectors != nil {
				dropped := notifyQueue.Dropped()
				collectors.MessagesDropped.Add(float64(dropped - lastDropped))
				lastDropped = dropped
			}
		},
	}, engine, log)

	notifyQueue.Enqueue(formatter.FormatStartup(cfg.Symbols))

	go ingestor.Run(ctx)
	go notifyQueue.Run(ctx)
	go func() {
		if err := server.Start(ctx); err != nil {
			log.Errorw("api server error", "error", err)
		}
	}()

	log.Infow("engine started", "http_addr", cfg.HTTPAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutdown signal received")

	cancel()
	if err := server.Stop(context.Background()); err != nil {
		log.Errorw("error during api server shutdown", "error", err)
	}

	log.Info("engine stopped")
}

// logSink is the default notification sink: it logs every formatted
// alert rather than binding to any specific chat platform.
func logSink(log *zap.SugaredLogger) notify.Sink {
	return func(message string) error {
		log.Info(message)
		return nil
	}
}

func bookTickerStreams(symbols []string) string {
	return joinStreams(symbols, "@bookTicker")
}

func aggTradeStreams(symbols []string) string {
	return joinStreams(symbols, "@aggTrade")
}

func joinStreams(symbols []string, suffix string) string {
	out := ""
	for i, s := range symbols {
		if i > 0 {
			out += "/"
		}
		out += lower(s) + suffix
	}
	return out
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
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

	cfg := zap.Config{
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

	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
