package model

// TopologySnapshot is the primary export: the live graph plus the delta of
// ids removed since the previous snapshot. Seq is strictly increasing
// across successive emissions.
type TopologySnapshot struct {
	Seq          uint64         `json:"seq"`
	TimestampUs  uint64         `json:"timestamp_us"`
	Nodes        []NodeSnapshot `json:"nodes"`
	Edges        []EdgeSnapshot `json:"edges"`
	RemovedNodes []NodeID       `json:"removed_nodes"`
	RemovedEdges []EdgeID       `json:"removed_edges"`
	GlobalStats  GlobalStats    `json:"global_stats"`
}

// NodeSnapshot is the exported view of one node.
type NodeSnapshot struct {
	ID             NodeID                    `json:"id"`
	Description    string                    `json:"description"`
	Domain         NodeDomain                `json:"domain"`
	Active         bool                      `json:"active"`
	PacketsByClass [NumTrafficClasses]uint64 `json:"packets_by_class"`
	BytesByClass   [NumTrafficClasses]uint64 `json:"bytes_by_class"`
	FirstSeenUs    uint64                    `json:"first_seen_us"`
	LastSeenUs     uint64                    `json:"last_seen_us"`
}

// EdgeSnapshot is the exported view of one directed per-class edge.
type EdgeSnapshot struct {
	ID             EdgeID         `json:"id"`
	EndpointDomain EndpointDomain `json:"endpoint_domain"`
	Packets        uint64         `json:"packets"`
	Bytes          uint64         `json:"bytes"`
	Pps            float64        `json:"pps"`
	Bps            float64        `json:"bps"`
	EwmaLatencyUs  float64        `json:"ewma_latency_us"`
	EwmaJitterUs   float64        `json:"ewma_jitter_us"`
	LatencyDeltaUs float64        `json:"latency_delta_us"`
	LossRate       float64        `json:"loss_rate"`
	FirstSeenUs    uint64         `json:"first_seen_us"`
	LastSeenUs     uint64         `json:"last_seen_us"`
}

// GlobalStats summarizes the whole graph for dashboard views.
// Total packet/byte counters are monotonic for the life of the server.
type GlobalStats struct {
	TotalNodes     uint64                    `json:"total_nodes"`
	TotalEdges     uint64                    `json:"total_edges"`
	TotalPackets   uint64                    `json:"total_packets"`
	TotalBytes     uint64                    `json:"total_bytes"`
	PacketsByClass [NumTrafficClasses]uint64 `json:"packets_by_class"`
	BytesByClass   [NumTrafficClasses]uint64 `json:"bytes_by_class"`
	AggregatePps   float64                   `json:"aggregate_pps"`
	AggregateBps   float64                   `json:"aggregate_bps"`
}

// AnalyticsSnapshot is the legacy flat export without the removed-delta
// channel. New consumers should use TopologySnapshot.
type AnalyticsSnapshot struct {
	TimestampUs uint64         `json:"timestamp_us"`
	Nodes       []NodeSnapshot `json:"nodes"`
	Edges       []EdgeSnapshot `json:"edges"`
	GlobalStats GlobalStats    `json:"global_stats"`
}
