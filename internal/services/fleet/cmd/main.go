package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sensormesh/sensormesh/internal/model"
	"github.com/sensormesh/sensormesh/internal/services/fleet"
	"github.com/sensormesh/sensormesh/pkg/transport"
)

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mqClient, err := transport.NewConn(ctx, &transport.Config{
		Host:     env("MQTT_HOST", "localhost"),
		Port:     envInt("MQTT_PORT", 1883),
		User:     env("MQTT_USER", ""),
		Password: env("MQTT_PASSWORD", ""),
		ClientID: env("MQTT_CLIENT_ID", "fleet-service"),
	})
	if err != nil {
		log.Fatalf("mqtt connect failed: %v", err)
	}

	registry := fleet.NewRegistry(
		envDuration("NODE_TTL", 5*time.Minute),
		envDuration("NODE_GRACE", 30*time.Second),
	)
	consumer := transport.NewMultiConsumer(mqClient, []string{
		model.TopicReportPrefix + "/#",
		model.TopicPresentationPrefix + "/#",
	}, registry.HandleMessage)
	go consumer.ConsumeMessage(ctx)

	gw := fleet.NewGateway(fleet.Config{
		IngestBaseURL:   env("INGEST_URL", "http://localhost:8080"),
		HTTPTimeout:     envDuration("HTTP_TIMEOUT", 3*time.Second),
		BreakerFailures: envInt("CB_FAILURES", 3),
		BreakerOpenFor:  envDuration("CB_OPEN_FOR", 10*time.Second),
	}, registry, func(nodeID string) transport.IPublisher {
		return transport.NewPublisher(mqClient, model.CommandTopic(nodeID))
	})

	srv := &http.Server{
		Addr:              ":" + env("PORT", "8081"),
		Handler:           gw.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("fleet HTTP listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()
	stop()

	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shCtx)
	log.Println("fleet: shutdown complete")
}
