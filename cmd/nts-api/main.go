package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"NetTopoScope/internal/config"
	"NetTopoScope/internal/model"
	"NetTopoScope/internal/publish"
)

// APIHandler serves the most recent topology snapshot received over NATS.
type APIHandler struct {
	mu     sync.RWMutex
	latest *model.TopologySnapshot
}

func (h *APIHandler) store(snap *model.TopologySnapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	// NATS delivery order is the publish order, but guard against a stale
	// redelivery racing a fresh snapshot.
	if h.latest == nil || snap.Seq > h.latest.Seq {
		h.latest = snap
	}
}

func (h *APIHandler) snapshot() *model.TopologySnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest
}

// topologyHandler serves the full latest snapshot.
func (h *APIHandler) topologyHandler(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshot()
	if snap == nil {
		http.Error(w, "no topology snapshot received yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, snap)
}

// statsHandler serves only the global aggregate stats.
func (h *APIHandler) statsHandler(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshot()
	if snap == nil {
		http.Error(w, "no topology snapshot received yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, snap.GlobalStats)
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	jsonBytes, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(jsonBytes)
}

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if !cfg.Export.NATS.Enabled {
		log.Fatalf("NATS export is disabled in config. API server cannot start.")
	}

	apiHandler := &APIHandler{}

	sub, err := publish.NewSubscriber(cfg.Export.NATS)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer sub.Close()
	if err := sub.Start(apiHandler.store); err != nil {
		log.Fatalf("Failed to subscribe to snapshots: %v", err)
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/v1/topology", apiHandler.topologyHandler).Methods("GET")
	r.HandleFunc("/api/v1/topology/stats", apiHandler.statsHandler).Methods("GET")

	httpServer := &http.Server{
		Addr:    cfg.API.ListenAddr,
		Handler: r,
	}

	go func() {
		log.Printf("API server starting on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v", httpServer.Addr, err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("API server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("API server exited.")
}
