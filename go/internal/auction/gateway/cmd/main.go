package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/gavel/go/internal/auction/api"
	"github.com/mcdev12/gavel/go/internal/auction/broadcast"
	"github.com/mcdev12/gavel/go/internal/auction/gateway"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if level, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info")); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	port := getEnv("GATEWAY_PORT", "8081")
	natsURL := getEnv("NATS_URL", "nats://localhost:4222")
	serverURL := getEnv("AUCTION_SERVER_URL", "http://localhost:8080")

	// Every relay needs its own consumer so each one sees the whole stream.
	hostname, _ := os.Hostname()
	consumerName := getEnv("GATEWAY_CONSUMER", "auction-gateway-"+sanitize(hostname))

	jsConfig := gateway.DefaultJetStreamConsumerConfig()
	jsConfig.URL = natsURL
	jsConfig.ConsumerName = consumerName

	connConfig := gateway.DefaultConnectionConfig()
	connConfig.SendBufferSize = getEnvAsInt("GATEWAY_SEND_BUFFER", connConfig.SendBufferSize)

	log.Info().
		Str("nats_url", natsURL).
		Str("auction_server", serverURL).
		Str("consumer", consumerName).
		Str("port", port).
		Msg("starting auction relay gateway")

	client := api.NewClient(&http.Client{Timeout: 10 * time.Second}, serverURL)
	relay := gateway.NewRelay(client, broadcast.DefaultConfig())

	gatewayService, err := gateway.NewRelayService(gateway.Config{
		ConnectionConfig: connConfig,
		JetStreamConfig:  jsConfig,
	}, relay)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create gateway service")
	}

	mux := http.NewServeMux()
	gatewayService.RegisterRoutes(mux)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		info := map[string]interface{}{
			"service":     "auction-relay-gateway",
			"connections": gatewayService.GetStats().TotalConnections,
		}
		consumer, err := gatewayService.ConsumerInfo(r.Context())
		if err != nil {
			log.Warn().Err(err).Msg("failed to read consumer info")
		} else if consumer != nil {
			info["consumer"] = consumer
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(info)
	})

	var origins []string
	if raw := getEnv("CORS_ORIGINS", ""); raw != "" {
		origins = strings.Split(raw, ",")
	}

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", port),
		Handler:     gateway.CORSMiddleware(origins)(mux),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := gatewayService.Start(ctx); err != nil {
			log.Error().Err(err).Msg("gateway service failed")
		}
	}()

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Closing the gateway first ends hijacked sockets, which Shutdown does not track.
	cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("auction relay gateway shutdown complete")
}

func sanitize(name string) string {
	if name == "" {
		return "local"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '-'
	}, name)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
