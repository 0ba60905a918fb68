// streamtest connects to the freight realtime endpoint and streams
// decoded events to the console.
// Usage: go run ./cmd/streamtest --config configs/client.example.yaml --order <id>
//
// Required environment variables:
//
//	FREIGHT_TOKEN - Bearer token for the freight backend
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/avpopescu/freight-realtime/internal/config"
	"github.com/avpopescu/freight-realtime/internal/envelope"
	"github.com/avpopescu/freight-realtime/internal/session"
	"github.com/avpopescu/freight-realtime/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/client.example.yaml", "path to config file")
	orderID := flag.String("order", "", "order room to join on connect")
	verbose := flag.Bool("verbose", false, "print full envelope JSON")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	token := os.Getenv("FREIGHT_TOKEN")
	if token == "" {
		logger.Error("FREIGHT_TOKEN not set")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	var opts []session.Option
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		opts = append(opts, session.WithRegisterer(reg))

		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
		go func() {
			logger.Info("serving metrics", "addr", addr, "path", cfg.Metrics.Path)
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	sess := session.New(*cfg, logger, opts...)
	defer sess.Close()

	// Print every inbound event type.
	eventTypes := []string{
		envelope.EventConnectionEstablished,
		envelope.EventOrderStatusChanged,
		envelope.EventOrderUpdated,
		envelope.EventOrderPricingUpdated,
		envelope.EventOrderAIProcessing,
		envelope.EventUserJoinedOrder,
		envelope.EventUserLeftOrder,
		envelope.EventUserEditing,
		envelope.EventRoomState,
		envelope.EventPong,
		envelope.EventError,
	}
	for _, typ := range eventTypes {
		sess.Registry().Subscribe(typ, func(env envelope.Envelope) {
			if *verbose {
				data, _ := json.MarshalIndent(env, "", "  ")
				fmt.Printf("[%s] %s\n", typ, data)
			} else {
				fmt.Printf("[%s] order=%s payload=%s\n", typ, env.OrderID, env.Payload)
			}
		})
	}

	sess.Start(token)
	if *orderID != "" {
		sess.Room().AutoJoin(*orderID)
	}

	// Status printer; also nudges a fallback poll when degraded.
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ind := sess.Indicator()
				logger.Info("status",
					"state", sess.Manager().State(),
					"mode", ind.Mode,
					"room", sess.Room().CurrentOrderID(),
					"active_users", len(sess.Room().ActiveUsers()),
				)

				if sess.Fallback().IsFallback() {
					pollCtx, pollCancel := context.WithTimeout(ctx, cfg.Poll.Timeout)
					if err := sess.Fallback().TriggerPoll(pollCtx); err != nil {
						logger.Warn("fallback poll failed", "error", err)
					}
					pollCancel()
				}
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop", "version", version.String())

	<-ctx.Done()

	logger.Info("shutting down...")
	sess.Close()
	logger.Info("shutdown complete")
}
