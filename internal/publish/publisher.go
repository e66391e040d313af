// Package publish moves topology snapshots over NATS so out-of-process
// consumers (the HTTP API, visualizers) can follow the live graph.
package publish

import (
	"encoding/json"
	"log"

	"github.com/nats-io/nats.go"

	"NetTopoScope/internal/config"
	"NetTopoScope/internal/model"
)

// Publisher publishes exported snapshots to a NATS subject.
type Publisher struct {
	nc      *nats.Conn
	subject string
}

// NewPublisher connects to the NATS server.
func NewPublisher(cfg config.NATSConfig) (*Publisher, error) {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, err
	}
	log.Printf("Connected to NATS server at %s", cfg.URL)
	return &Publisher{nc: nc, subject: cfg.Subject}, nil
}

// Publish serializes a snapshot to JSON and publishes it to the configured
// NATS subject.
func (p *Publisher) Publish(snap *model.TopologySnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return p.nc.Publish(p.subject, data)
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		log.Println("NATS connection drained and closed.")
	}
}
