package main

import (
	"fmt"
	"log"
	"sync"

	"NetTopoScope/internal/alerter"
	"NetTopoScope/internal/config"
	"NetTopoScope/internal/model"
	"NetTopoScope/internal/publish"
	"NetTopoScope/internal/snapshot"
)

// exportSink fans exported snapshots out to the configured sinks. Sinks can
// touch the network, so writes happen on a dedicated goroutine fed by a
// buffered channel; the dispatcher loop never blocks on a slow sink.
type exportSink struct {
	publisher *publish.Publisher
	writers   []model.Writer
	alertr    *alerter.Alerter

	ch chan *model.TopologySnapshot
	wg sync.WaitGroup
}

func newExportSink(cfg *config.Config) (*exportSink, error) {
	sink := &exportSink{
		ch: make(chan *model.TopologySnapshot, 16),
	}

	if cfg.Export.NATS.Enabled {
		pub, err := publish.NewPublisher(cfg.Export.NATS)
		if err != nil {
			return nil, fmt.Errorf("failed to connect snapshot publisher: %w", err)
		}
		sink.publisher = pub
	}

	for _, def := range cfg.Export.Writers {
		if !def.Enabled {
			continue
		}
		switch def.Type {
		case "text":
			sink.writers = append(sink.writers, snapshot.NewTextWriter(def.RootPath))
		case "clickhouse":
			w, err := snapshot.NewClickHouseWriter(def.ClickHouse)
			if err != nil {
				return nil, fmt.Errorf("failed to create clickhouse writer: %w", err)
			}
			sink.writers = append(sink.writers, w)
		default:
			return nil, fmt.Errorf("unknown writer type: %q", def.Type)
		}
		log.Printf("Snapshot writer %q enabled.", def.Type)
	}

	return sink, nil
}

// Export implements server.Exporter. A full buffer drops the snapshot
// rather than stalling the dispatcher; the next export supersedes it.
func (s *exportSink) Export(snap *model.TopologySnapshot) {
	select {
	case s.ch <- snap:
	default:
		log.Printf("Export queue full, dropping snapshot %d", snap.Seq)
	}
}

func (s *exportSink) start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for snap := range s.ch {
			s.deliver(snap)
		}
	}()
}

func (s *exportSink) deliver(snap *model.TopologySnapshot) {
	if s.alertr != nil {
		s.alertr.Offer(snap)
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(snap); err != nil {
			log.Printf("Failed to publish snapshot %d: %v", snap.Seq, err)
		}
	}
	for _, w := range s.writers {
		if err := w.Write(snap); err != nil {
			log.Printf("Error writing snapshot %d with writer %s: %v", snap.Seq, w.Name(), err)
		}
	}
}

func (s *exportSink) stop() {
	close(s.ch)
	s.wg.Wait()
	if s.publisher != nil {
		s.publisher.Close()
	}
	for _, w := range s.writers {
		if err := w.Close(); err != nil {
			log.Printf("Error closing writer %s: %v", w.Name(), err)
		}
	}
}
