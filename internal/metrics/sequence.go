package metrics

// SeenWindow is the number of recent sequence numbers remembered for
// duplicate detection.
const SeenWindow = 64

// SequenceTracker detects loss, duplication and reordering on one
// (edge, traffic-class) stream of sequence numbers.
type SequenceTracker struct {
	expectedNext uint32
	primed       bool

	seen    [SeenWindow]uint32
	seenLen int
	seenPos int

	received   uint64
	lost       uint64
	duplicates uint64
	outOfOrder uint64
}

// Observe feeds one sequence number through the tracker.
func (t *SequenceTracker) Observe(seq uint32) {
	if t.inWindow(seq) {
		t.duplicates++
		return
	}

	switch {
	case !t.primed:
		// The very first sequence establishes the stream position; it is
		// never a loss no matter where it starts.
		t.primed = true
		t.received++
		t.expectedNext = seq + 1
	case seq == t.expectedNext:
		t.received++
		t.expectedNext = seq + 1
	case seq > t.expectedNext:
		t.lost += uint64(seq - t.expectedNext)
		t.received++
		t.expectedNext = seq + 1
	default:
		// A late packet we had already written off as lost.
		t.outOfOrder++
		t.received++
		if t.lost > 0 {
			t.lost--
		}
	}

	t.remember(seq)
}

func (t *SequenceTracker) inWindow(seq uint32) bool {
	for i := 0; i < t.seenLen; i++ {
		if t.seen[i] == seq {
			return true
		}
	}
	return false
}

func (t *SequenceTracker) remember(seq uint32) {
	t.seen[t.seenPos] = seq
	t.seenPos = (t.seenPos + 1) % SeenWindow
	if t.seenLen < SeenWindow {
		t.seenLen++
	}
}

// Received returns the count of accepted (non-duplicate) packets.
func (t *SequenceTracker) Received() uint64 { return t.received }

// Lost returns the current loss estimate, net of corrected reorders.
func (t *SequenceTracker) Lost() uint64 { return t.lost }

// Duplicates returns the count of sequence numbers seen more than once
// within the seen window.
func (t *SequenceTracker) Duplicates() uint64 { return t.duplicates }

// OutOfOrder returns the count of packets that arrived behind the stream
// position.
func (t *SequenceTracker) OutOfOrder() uint64 { return t.outOfOrder }

// LossRate is lost / max(1, received+lost) over the accumulated counters.
func (t *SequenceTracker) LossRate() float64 {
	denom := t.received + t.lost
	if denom == 0 {
		denom = 1
	}
	return float64(t.lost) / float64(denom)
}
