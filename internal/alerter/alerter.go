// Package alerter evaluates exported topology snapshots against threshold
// rules and pushes violations to a notifier.
package alerter

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"NetTopoScope/internal/config"
	"NetTopoScope/internal/model"
)

// Alerter is responsible for evaluating snapshots against predefined rules
// and triggering notifications if rules are violated.
type Alerter struct {
	rules         []config.AlerterRule
	notifier      model.Notifier
	checkInterval time.Duration

	mu     sync.Mutex
	latest *model.TopologySnapshot

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewAlerter creates a new Alerter instance.
func NewAlerter(cfg *config.AlerterConfig, notifier model.Notifier) (*Alerter, error) {
	interval, err := config.Duration("check_interval", cfg.CheckInterval)
	if err != nil {
		return nil, err
	}
	for _, rule := range cfg.Rules {
		switch rule.Metric {
		case "loss_rate", "ewma_latency_us", "ewma_jitter_us":
		default:
			return nil, fmt.Errorf("unknown alert metric %q in rule %q", rule.Metric, rule.Name)
		}
	}
	return &Alerter{
		rules:         cfg.Rules,
		notifier:      notifier,
		checkInterval: interval,
		stopChan:      make(chan struct{}),
	}, nil
}

// Offer hands the alerter the most recently exported snapshot. Snapshots
// are immutable once exported, so no copy is taken.
func (a *Alerter) Offer(snap *model.TopologySnapshot) {
	a.mu.Lock()
	a.latest = snap
	a.mu.Unlock()
}

// Start begins the periodic evaluation of alert rules.
func (a *Alerter) Start() {
	log.Println("Alerter started")

	a.wg.Add(1)
	defer a.wg.Done()

	ticker := time.NewTicker(a.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.evaluate()
		case <-a.stopChan:
			return
		}
	}
}

// Stop gracefully stops the alerter's evaluation loop.
func (a *Alerter) Stop() {
	log.Println("Stopping Alerter...")
	close(a.stopChan)
	a.wg.Wait()
	a.evaluate()
}

func (a *Alerter) evaluate() {
	a.mu.Lock()
	snap := a.latest
	a.latest = nil
	a.mu.Unlock()
	if snap == nil {
		return
	}

	messages := Evaluate(snap, a.rules)
	if len(messages) == 0 {
		return
	}

	body := strings.Join(messages, "\n")
	subject := fmt.Sprintf("NetTopoScope: %d alert(s) at snapshot %d", len(messages), snap.Seq)
	if a.notifier == nil {
		log.Printf("ALERT %s\n%s", subject, body)
		return
	}
	if err := a.notifier.Send(subject, body); err != nil {
		log.Printf("Failed to send alert notification: %v", err)
	}
}

// Evaluate returns one message per rule violation in the snapshot.
func Evaluate(snap *model.TopologySnapshot, rules []config.AlerterRule) []string {
	var messages []string
	for _, rule := range rules {
		for i := range snap.Edges {
			e := &snap.Edges[i]
			value, ok := edgeMetric(e, rule.Metric)
			if !ok || value <= rule.Threshold {
				continue
			}
			messages = append(messages, fmt.Sprintf(
				"rule %q: edge %s %s=%.2f exceeds threshold %.2f",
				rule.Name, e.ID, rule.Metric, value, rule.Threshold))
		}
	}
	return messages
}

func edgeMetric(e *model.EdgeSnapshot, metric string) (float64, bool) {
	switch metric {
	case "loss_rate":
		return e.LossRate, true
	case "ewma_latency_us":
		return e.EwmaLatencyUs, true
	case "ewma_jitter_us":
		return e.EwmaJitterUs, true
	default:
		return 0, false
	}
}
