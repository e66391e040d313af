package metrics

import (
	"math"
	"testing"
)

func TestSequenceFirstPacket(t *testing.T) {
	var tr SequenceTracker
	tr.Observe(0)
	if tr.Received() != 1 || tr.Lost() != 0 {
		t.Errorf("first packet: received=%d lost=%d, want 1/0", tr.Received(), tr.Lost())
	}
}

func TestSequenceFirstPacketNonzeroStart(t *testing.T) {
	var tr SequenceTracker
	tr.Observe(1000)
	if tr.Received() != 1 || tr.Lost() != 0 {
		t.Errorf("nonzero start must not count as loss: received=%d lost=%d", tr.Received(), tr.Lost())
	}
	tr.Observe(1001)
	if tr.Received() != 2 || tr.Lost() != 0 {
		t.Errorf("in-order follow-up: received=%d lost=%d", tr.Received(), tr.Lost())
	}
}

func TestSequenceGapThenReorderCorrection(t *testing.T) {
	var tr SequenceTracker
	for _, s := range []uint32{0, 1, 2, 4, 5} {
		tr.Observe(s)
	}
	if tr.Received() != 5 || tr.Lost() != 1 || tr.Duplicates() != 0 || tr.OutOfOrder() != 0 {
		t.Fatalf("after 0,1,2,4,5: received=%d lost=%d dup=%d ooo=%d, want 5/1/0/0",
			tr.Received(), tr.Lost(), tr.Duplicates(), tr.OutOfOrder())
	}

	tr.Observe(3)
	if tr.Lost() != 0 || tr.OutOfOrder() != 1 {
		t.Errorf("late 3 must correct the loss: lost=%d ooo=%d, want 0/1", tr.Lost(), tr.OutOfOrder())
	}
	if tr.Received() != 6 {
		t.Errorf("late 3 still counts as received: received=%d, want 6", tr.Received())
	}
}

func TestSequenceDuplicateWithinWindow(t *testing.T) {
	var tr SequenceTracker
	tr.Observe(0)
	tr.Observe(1)
	tr.Observe(1)
	if tr.Duplicates() != 1 {
		t.Errorf("duplicates=%d, want 1", tr.Duplicates())
	}
	if tr.Received() != 2 {
		t.Errorf("duplicate must not count as received: received=%d, want 2", tr.Received())
	}
	// A duplicate never advances the stream position.
	tr.Observe(2)
	if tr.Lost() != 0 {
		t.Errorf("lost=%d after in-order 2, want 0", tr.Lost())
	}
}

func TestSequenceWindowEviction(t *testing.T) {
	var tr SequenceTracker
	for s := uint32(0); s < SeenWindow+1; s++ {
		tr.Observe(s)
	}
	// Sequence 0 has been evicted from the window, so a replay of it is no
	// longer flagged as a duplicate; it lands as out-of-order.
	tr.Observe(0)
	if tr.Duplicates() != 0 {
		t.Errorf("evicted sequence flagged as duplicate: duplicates=%d", tr.Duplicates())
	}
	if tr.OutOfOrder() != 1 {
		t.Errorf("replay past the window should be out-of-order: ooo=%d", tr.OutOfOrder())
	}
}

func TestSequenceLossRate(t *testing.T) {
	var tr SequenceTracker
	if tr.LossRate() != 0 {
		t.Errorf("empty tracker loss rate should be 0, got %f", tr.LossRate())
	}
	for _, s := range []uint32{0, 1, 2, 4, 5} {
		tr.Observe(s)
	}
	want := 1.0 / 6.0
	if math.Abs(tr.LossRate()-want) > 1e-12 {
		t.Errorf("loss rate %f, want %f", tr.LossRate(), want)
	}
}
