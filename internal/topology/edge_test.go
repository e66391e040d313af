package topology

import (
	"math"
	"testing"

	"NetTopoScope/internal/model"
)

func observe(e *Edge, seq uint32, bytes uint32, sentTs, nowUs uint64) {
	e.observe(&model.Data{
		Src:          e.ID.Src,
		Dst:          e.ID.Dst,
		Class:        e.ID.Class,
		Seq:          seq,
		SentTsUs:     sentTs,
		PayloadBytes: bytes,
	}, nowUs)
}

func TestEdgeJitterTracksLatencySwing(t *testing.T) {
	e := newEdge(model.EdgeID{Src: nid(0x01), Dst: nid(0x02), Class: model.ClassAPI}, 0)

	now := uint64(usPerSec)
	// Alternate 5ms and 15ms samples; jitter should settle near 5.5ms (each
	// sample lands about that far from the average) while latency settles
	// near the midpoint.
	for i := 0; i < 200; i++ {
		latency := uint64(5_000)
		if i%2 == 1 {
			latency = 15_000
		}
		observe(e, uint32(i), 100, now-latency, now)
		now += 10_000
	}

	if math.Abs(e.EwmaLatencyUs-10_000) > 2_000 {
		t.Errorf("ewma latency = %f, want near 10000", e.EwmaLatencyUs)
	}
	if e.EwmaJitterUs < 5_000 {
		t.Errorf("ewma jitter = %f, want a clearly nonzero swing", e.EwmaJitterUs)
	}
}

func TestEdgeLatencyTrendDelta(t *testing.T) {
	e := newEdge(model.EdgeID{Src: nid(0x01), Dst: nid(0x02), Class: model.ClassAPI}, 0)
	now := uint64(usPerSec)

	for i := 0; i < 50; i++ {
		observe(e, uint32(i), 100, now-1_000, now)
		now += 10_000
	}
	// A sudden slow sample shows up as a positive trend delta.
	observe(e, 50, 100, now-20_000, now)

	snap := e.snapshot(now)
	if snap.LatencyDeltaUs <= 0 {
		t.Errorf("latency delta = %f, want positive after a slow sample", snap.LatencyDeltaUs)
	}
	if snap.EwmaLatencyUs <= 1_000 {
		t.Errorf("ewma should move toward the slow sample, got %f", snap.EwmaLatencyUs)
	}
}

func TestEdgeCountsWithoutTimestamp(t *testing.T) {
	e := newEdge(model.EdgeID{Src: nid(0x01), Dst: nid(0x02), Class: model.ClassAPI}, 0)
	observe(e, 0, 250, 0, usPerSec)

	if e.Packets != 1 || e.Bytes != 250 {
		t.Errorf("packets/bytes = %d/%d, want 1/250", e.Packets, e.Bytes)
	}
	if e.LatencySamples != 0 {
		t.Errorf("a packet without a sender timestamp must not produce a latency sample")
	}
	snap := e.snapshot(usPerSec)
	if snap.EwmaLatencyUs != 0 {
		t.Errorf("ewma reported as %f with no samples, want 0", snap.EwmaLatencyUs)
	}
}
