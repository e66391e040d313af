package alerter

import (
	"strings"
	"testing"

	"NetTopoScope/internal/config"
	"NetTopoScope/internal/model"
)

func TestEvaluateFlagsThresholdViolations(t *testing.T) {
	var a, b model.NodeID
	a[0], b[0] = 0x01, 0x02
	snap := &model.TopologySnapshot{
		Seq: 1,
		Edges: []model.EdgeSnapshot{
			{ID: model.EdgeID{Src: a, Dst: b, Class: model.ClassAPI}, LossRate: 0.25, EwmaLatencyUs: 100},
			{ID: model.EdgeID{Src: b, Dst: a, Class: model.ClassAPI}, LossRate: 0.0, EwmaLatencyUs: 90_000},
		},
	}
	rules := []config.AlerterRule{
		{Name: "high-loss", Metric: "loss_rate", Threshold: 0.1},
		{Name: "slow-edge", Metric: "ewma_latency_us", Threshold: 50_000},
	}

	messages := Evaluate(snap, rules)
	if len(messages) != 2 {
		t.Fatalf("expected 2 violations, got %d: %v", len(messages), messages)
	}
	if !strings.Contains(messages[0], "high-loss") {
		t.Errorf("first message should be the loss rule: %s", messages[0])
	}
	if !strings.Contains(messages[1], "slow-edge") {
		t.Errorf("second message should be the latency rule: %s", messages[1])
	}
}

func TestEvaluateQuietWhenUnderThreshold(t *testing.T) {
	snap := &model.TopologySnapshot{
		Edges: []model.EdgeSnapshot{{LossRate: 0.01}},
	}
	rules := []config.AlerterRule{{Name: "high-loss", Metric: "loss_rate", Threshold: 0.1}}
	if messages := Evaluate(snap, rules); len(messages) != 0 {
		t.Errorf("expected no violations, got %v", messages)
	}
}

func TestNewAlerterRejectsUnknownMetric(t *testing.T) {
	cfg := &config.AlerterConfig{
		CheckInterval: "5s",
		Rules:         []config.AlerterRule{{Name: "bad", Metric: "cpu", Threshold: 1}},
	}
	if _, err := NewAlerter(cfg, nil); err == nil {
		t.Errorf("expected an error for unknown metric")
	}
}
