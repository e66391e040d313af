// Package metrics holds the per-edge streaming statistics: the sliding
// window rate calculator and the sequence tracker.
package metrics

const (
	// WindowSecs is the sliding-window horizon for rate queries.
	WindowSecs = 5
	// BucketSecs is the width of one bucket in the ring.
	BucketSecs = 1
)

type rateBucket struct {
	second  uint64
	packets uint64
	bytes   uint64
}

// RateCalculator computes packet and byte rates over a 5-second sliding
// window divided into 1-second buckets. Instances are per-edge; there is no
// state beyond the bucket ring.
type RateCalculator struct {
	buckets [WindowSecs]rateBucket
}

// Record accumulates a sample at the given monotonic microsecond time.
// A bucket left over from an earlier pass of the ring is reset before use.
func (r *RateCalculator) Record(nowUs uint64, packets, bytes uint64) {
	sec := nowUs / 1_000_000
	b := &r.buckets[sec%WindowSecs]
	if b.second != sec {
		b.second = sec
		b.packets = 0
		b.bytes = 0
	}
	b.packets += packets
	b.bytes += bytes
}

// Rate returns (pps, bps) over the window ending at nowUs. Buckets older
// than the window contribute zero.
func (r *RateCalculator) Rate(nowUs uint64) (float64, float64) {
	sec := nowUs / 1_000_000
	var packets, bytes uint64
	for i := range r.buckets {
		b := &r.buckets[i]
		if b.second > sec || sec-b.second >= WindowSecs {
			continue
		}
		packets += b.packets
		bytes += b.bytes
	}
	return float64(packets) / WindowSecs, float64(bytes) / WindowSecs
}
