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

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"

	"github.com/sensormesh/sensormesh/internal/model"
	"github.com/sensormesh/sensormesh/internal/services/ingest"
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

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- MQTT ---
	mqCfg := &transport.Config{
		Host:     env("MQTT_HOST", "localhost"),
		Port:     envInt("MQTT_PORT", 1883),
		User:     env("MQTT_USER", ""),
		Password: env("MQTT_PASSWORD", ""),
		ClientID: env("MQTT_CLIENT_ID", "ingest-service"),
	}
	mqClient, err := transport.NewConn(ctx, mqCfg)
	if err != nil {
		log.Fatalf("mqtt connect failed: %v", err)
	}
	topic := env("REPORT_TOPIC", model.TopicReportPrefix+"/#")
	consumer := transport.NewConsumer(mqClient, topic, nil)

	// --- InfluxDB ---
	influxURL := env("INFLUX_URL", "http://localhost:8086")
	influxToken := env("INFLUX_TOKEN", "")
	influxOrg := env("INFLUX_ORG", "org")
	influxBucket := env("INFLUX_BUCKET", "sensor-reports")
	measurement := env("MEASUREMENT", "sensor_report")

	influxClient := influxdb2.NewClient(influxURL, influxToken)
	defer influxClient.Close()

	metrics := ingest.NewMetrics()
	writer := ingest.NewWriter(influxClient.WriteAPI(influxOrg, influxBucket), metrics.WriteErrorHook())

	svc, err := ingest.NewService(consumer, writer, metrics, measurement)
	if err != nil {
		log.Fatalf("ingest init failed: %v", err)
	}

	// --- HTTP ---
	router := ingest.NewRouter(svc, metrics, 30*time.Second)
	srv := &http.Server{
		Addr:              ":" + env("PORT", "8080"),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("ingest HTTP listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	go svc.Start(ctx)

	<-ctx.Done()
	stop()

	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shCtx)
	log.Println("ingest: shutdown complete")
}
