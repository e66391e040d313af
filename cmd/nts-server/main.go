package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"NetTopoScope/internal/alerter"
	"NetTopoScope/internal/config"
	"NetTopoScope/internal/model"
	"NetTopoScope/internal/notification"
	"NetTopoScope/internal/server"
	"NetTopoScope/internal/topology"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file")
	flag.Parse()

	log.Println("Starting nts-server...")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Println("Configuration loaded successfully.")

	nodeTTL, err := config.Duration("node_ttl", cfg.Server.NodeTTL)
	if err != nil {
		log.Fatalf("%v", err)
	}
	edgeTTL, err := config.Duration("edge_ttl", cfg.Server.EdgeTTL)
	if err != nil {
		log.Fatalf("%v", err)
	}
	cleanupInterval, err := config.Duration("cleanup_interval", cfg.Server.CleanupInterval)
	if err != nil {
		log.Fatalf("%v", err)
	}
	pollTimeout, err := config.Duration("poll_timeout", cfg.Server.PollTimeout)
	if err != nil {
		log.Fatalf("%v", err)
	}
	exportInterval, err := config.Duration("export.interval", cfg.Export.Interval)
	if err != nil {
		log.Fatalf("%v", err)
	}

	exporter, err := newExportSink(cfg)
	if err != nil {
		log.Fatalf("Failed to set up snapshot export: %v", err)
	}

	var alertr *alerter.Alerter
	if cfg.Alerter.Enabled {
		var notifier model.Notifier
		if cfg.SMTP.Host != "" {
			notifier = notification.NewEmailNotifier(cfg.SMTP)
		}
		alertr, err = alerter.NewAlerter(&cfg.Alerter, notifier)
		if err != nil {
			log.Fatalf("Failed to create alerter: %v", err)
		}
		exporter.alertr = alertr
		go alertr.Start()
		log.Println("Alerter enabled and initialized.")
	}

	mgr := topology.NewManager(nodeTTL, edgeTTL)
	srv, err := server.New(cfg.Server.ListenAddr, mgr, server.Options{
		PollTimeout:     pollTimeout,
		CleanupInterval: cleanupInterval,
		ExportInterval:  exportInterval,
		Exporter:        exporter,
	})
	if err != nil {
		log.Fatalf("Failed to bind %s: %v", cfg.Server.ListenAddr, err)
	}

	exporter.start()
	go srv.Run()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutdown signal received, stopping server...")
	srv.Stop()
	if alertr != nil {
		alertr.Stop()
	}
	exporter.stop()
	log.Println("Shutdown complete.")
}
