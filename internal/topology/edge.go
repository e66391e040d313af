package topology

import (
	"NetTopoScope/internal/metrics"
	"NetTopoScope/internal/model"
)

// EwmaAlpha is the smoothing factor for latency and jitter averages.
const EwmaAlpha = 0.2

// Edge is the live state of one directed per-class traffic relation. The
// edge table owns these records and holds the endpoint NodeIDs by value, so
// there are no ownership cycles with the node table.
type Edge struct {
	ID             model.EdgeID
	EndpointDomain model.EndpointDomain

	Packets uint64
	Bytes   uint64

	EwmaLatencyUs  float64
	EwmaJitterUs   float64
	LastLatencyUs  float64
	LatencySamples uint64

	Rate    metrics.RateCalculator
	Tracker metrics.SequenceTracker

	FirstSeenUs uint64
	LastSeenUs  uint64
}

func newEdge(id model.EdgeID, nowUs uint64) *Edge {
	return &Edge{
		ID:          id,
		FirstSeenUs: nowUs,
		LastSeenUs:  nowUs,
	}
}

// observe applies one data packet to the edge at server time nowUs.
func (e *Edge) observe(pkt *model.Data, nowUs uint64) {
	e.EndpointDomain = pkt.EndpointDomain
	e.Packets++
	e.Bytes += uint64(pkt.PayloadBytes)
	e.LastSeenUs = nowUs

	e.Rate.Record(nowUs, 1, uint64(pkt.PayloadBytes))
	e.Tracker.Observe(pkt.Seq)

	// A sender timestamp ahead of our clock is a clock regression; skip the
	// sample rather than feeding a negative latency into the average.
	if pkt.SentTsUs == 0 || pkt.SentTsUs > nowUs {
		return
	}
	sample := float64(nowUs - pkt.SentTsUs)
	if e.LatencySamples == 0 {
		e.EwmaLatencyUs = sample
		e.EwmaJitterUs = 0
	} else {
		jitterSample := sample - e.EwmaLatencyUs
		if jitterSample < 0 {
			jitterSample = -jitterSample
		}
		e.EwmaLatencyUs = EwmaAlpha*sample + (1-EwmaAlpha)*e.EwmaLatencyUs
		e.EwmaJitterUs = EwmaAlpha*jitterSample + (1-EwmaAlpha)*e.EwmaJitterUs
	}
	e.LastLatencyUs = sample
	e.LatencySamples++
}

func (e *Edge) snapshot(nowUs uint64) model.EdgeSnapshot {
	pps, bps := e.Rate.Rate(nowUs)
	var latencyDelta float64
	if e.LatencySamples > 0 {
		latencyDelta = e.LastLatencyUs - e.EwmaLatencyUs
	}
	return model.EdgeSnapshot{
		ID:             e.ID,
		EndpointDomain: e.EndpointDomain,
		Packets:        e.Packets,
		Bytes:          e.Bytes,
		Pps:            pps,
		Bps:            bps,
		EwmaLatencyUs:  e.EwmaLatencyUs,
		EwmaJitterUs:   e.EwmaJitterUs,
		LatencyDeltaUs: latencyDelta,
		LossRate:       e.Tracker.LossRate(),
		FirstSeenUs:    e.FirstSeenUs,
		LastSeenUs:     e.LastSeenUs,
	}
}
