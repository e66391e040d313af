package metrics

import (
	"testing"
)

const usPerSec = 1_000_000

func TestRateEmptyWindow(t *testing.T) {
	var r RateCalculator
	pps, bps := r.Rate(10 * usPerSec)
	if pps != 0 || bps != 0 {
		t.Errorf("expected zero rates with no traffic, got pps=%f bps=%f", pps, bps)
	}
}

func TestRateSingleSecond(t *testing.T) {
	var r RateCalculator
	now := uint64(100 * usPerSec)
	for i := 0; i < 10; i++ {
		r.Record(now, 1, 100)
	}
	pps, bps := r.Rate(now)
	if pps != 10.0/WindowSecs {
		t.Errorf("expected pps %f, got %f", 10.0/WindowSecs, pps)
	}
	if bps != 1000.0/WindowSecs {
		t.Errorf("expected bps %f, got %f", 1000.0/WindowSecs, bps)
	}
}

func TestRateSpreadAcrossWindow(t *testing.T) {
	var r RateCalculator
	base := uint64(200 * usPerSec)
	for s := uint64(0); s < WindowSecs; s++ {
		r.Record(base+s*usPerSec, 2, 200)
	}
	now := base + (WindowSecs-1)*usPerSec
	pps, bps := r.Rate(now)
	if pps != 2.0 {
		t.Errorf("expected pps 2.0, got %f", pps)
	}
	if bps != 200.0 {
		t.Errorf("expected bps 200.0, got %f", bps)
	}
}

func TestRateOldBucketsExpire(t *testing.T) {
	var r RateCalculator
	r.Record(50*usPerSec, 5, 500)
	pps, bps := r.Rate(60 * usPerSec)
	if pps != 0 || bps != 0 {
		t.Errorf("buckets older than the window must contribute zero, got pps=%f bps=%f", pps, bps)
	}
}

func TestRateBucketReuseResetsStaleSecond(t *testing.T) {
	var r RateCalculator
	// Same ring slot, one full ring revolution apart.
	r.Record(10*usPerSec, 3, 300)
	r.Record((10+WindowSecs)*usPerSec, 1, 100)
	pps, _ := r.Rate((10 + WindowSecs) * usPerSec)
	if pps != 1.0/WindowSecs {
		t.Errorf("stale bucket contents leaked into a reused slot: pps=%f", pps)
	}
}
