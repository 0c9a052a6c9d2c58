package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/sensormesh/sensormesh/internal/model"
	"github.com/sensormesh/sensormesh/internal/node"
	"github.com/sensormesh/sensormesh/internal/node/hal"
	"github.com/sensormesh/sensormesh/pkg/config"
	"github.com/sensormesh/sensormesh/pkg/transport"
)

func main() {
	cfgPath := flag.String("config", "node.yaml", "path to the node configuration file")
	selftest := flag.Bool("selftest", false, "run the startup self-test and exit")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// Simulated inputs; a hardware build swaps these for real drivers.
	seed := time.Now().UnixNano()
	hw := node.Hardware{
		Temperature: hal.NewSimAnalog(21, 0.2, -40, 60, seed),
		Humidity:    hal.NewSimAnalog(50, 1.0, 0, 100, seed+1),
		Door:        hal.NewSimSwitch(false),
		Motion:      hal.NewSimSwitch(false),
		Battery:     hal.NewSimBattery(0.01),
	}

	if *selftest {
		n := node.New(cfg, hw, nil, nil, nil, nil)
		if err := n.SelfTest(); err != nil {
			log.Fatalf("selftest: %v", err)
		}
		log.Println("selftest: all inputs ok")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := transport.NewConn(ctx, &transport.Config{
		Host:     cfg.MQTT.Host,
		Port:     cfg.MQTT.Port,
		User:     cfg.MQTT.User,
		Password: cfg.MQTT.Password,
		ClientID: cfg.Node.ID,
	})
	if err != nil {
		log.Fatalf("mqtt connect failed: %v", err)
	}

	reports := transport.NewPublisher(client, model.ReportTopic(cfg.Node.ID))
	presents := transport.NewPublisher(client, model.PresentationTopic(cfg.Node.ID))
	commands := transport.NewConsumer(client, model.CommandTopic(cfg.Node.ID), nil)
	netcfg := transport.NewConsumer(client, model.TopicNetworkConfig, nil)

	n := node.New(cfg, hw, reports, presents, commands, netcfg)
	n.AwaitNetworkConfig(ctx)
	n.Present()

	log.Printf("node %s: starting, interval %s", cfg.Node.ID, cfg.Measurement.Interval)
	n.Run(ctx)
	log.Printf("node %s: shutdown complete", cfg.Node.ID)
}
