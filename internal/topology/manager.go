package topology

import (
	"bytes"
	"sort"
	"time"

	"NetTopoScope/internal/metrics"
	"NetTopoScope/internal/model"
)

const (
	// DefaultNodeTTL is how long a silent node survives before cleanup.
	DefaultNodeTTL = 60 * time.Second
	// DefaultEdgeTTL is how long a silent edge survives before cleanup.
	DefaultEdgeTTL = 30 * time.Second
	// ActiveMultiplier scales the rate window into the "active" horizon.
	ActiveMultiplier = 3
)

// Manager owns the node and edge tables, the pending removal queues and
// the snapshot sequence counter. It is a plain state machine: every entry
// point takes the current monotonic microsecond time and runs to
// completion. The UDP dispatcher is its only caller, so no locking.
type Manager struct {
	nodes map[model.NodeID]*Node
	edges map[model.EdgeID]*Edge

	pendingRemovedNodes []model.NodeID
	pendingNodeSet      map[model.NodeID]struct{}
	pendingRemovedEdges []model.EdgeID
	pendingEdgeSet      map[model.EdgeID]struct{}

	snapshotSeq uint64

	totalPackets   uint64
	totalBytes     uint64
	packetsByClass [model.NumTrafficClasses]uint64
	bytesByClass   [model.NumTrafficClasses]uint64

	nodeTTLUs       uint64
	edgeTTLUs       uint64
	activeHorizonUs uint64
}

// NewManager creates a manager with the given TTLs. Non-positive TTLs fall
// back to the defaults.
func NewManager(nodeTTL, edgeTTL time.Duration) *Manager {
	if nodeTTL <= 0 {
		nodeTTL = DefaultNodeTTL
	}
	if edgeTTL <= 0 {
		edgeTTL = DefaultEdgeTTL
	}
	return &Manager{
		nodes:           make(map[model.NodeID]*Node),
		edges:           make(map[model.EdgeID]*Edge),
		pendingNodeSet:  make(map[model.NodeID]struct{}),
		pendingEdgeSet:  make(map[model.EdgeID]struct{}),
		nodeTTLUs:       uint64(nodeTTL.Microseconds()),
		edgeTTLUs:       uint64(edgeTTL.Microseconds()),
		activeHorizonUs: ActiveMultiplier * metrics.WindowSecs * 1_000_000,
	}
}

// Apply runs one message's effects against the tables and returns the reply
// to send back, or nil. For Data the reply is an Ack carrying nowUs as the
// server timestamp; the dispatcher finalizes ProcUs once apply has
// returned.
func (m *Manager) Apply(msg model.Message, nowUs uint64) model.Message {
	switch pkt := msg.(type) {
	case *model.RegisterNode:
		m.registerNode(pkt, nowUs)
		return nil
	case *model.UnregisterNode:
		m.unregisterNode(pkt.NodeID)
		return nil
	case *model.Data:
		if !pkt.Class.Valid() {
			return nil
		}
		m.applyData(pkt, nowUs)
		return &model.Ack{Seq: pkt.Seq, ServerTsUs: nowUs}
	case *model.RequestTopology:
		return &model.Topology{Snapshot: m.Snapshot(nowUs)}
	case *model.RequestAnalytics:
		return &model.Analytics{Snapshot: m.Analytics(nowUs)}
	default:
		// Ack/Topology/Analytics are replies; a server never consumes them.
		return nil
	}
}

func (m *Manager) registerNode(pkt *model.RegisterNode, nowUs uint64) {
	node, ok := m.nodes[pkt.NodeID]
	if !ok {
		node = newNode(pkt.NodeID, nowUs)
		m.nodes[pkt.NodeID] = node
	}
	node.Description = pkt.Description
	node.Domain = pkt.Domain
	node.LastSeenUs = nowUs
}

func (m *Manager) unregisterNode(id model.NodeID) {
	if _, ok := m.nodes[id]; !ok {
		return
	}
	delete(m.nodes, id)
	m.enqueueRemovedNode(id)
	m.removeEdgesReferencing(id)
}

// ensureNode returns the node, implicitly creating an External node with an
// empty description when a data packet names an unknown endpoint.
func (m *Manager) ensureNode(id model.NodeID, nowUs uint64) *Node {
	node, ok := m.nodes[id]
	if !ok {
		node = newNode(id, nowUs)
		m.nodes[id] = node
	}
	return node
}

func (m *Manager) applyData(pkt *model.Data, nowUs uint64) {
	src := m.ensureNode(pkt.Src, nowUs)
	dst := m.ensureNode(pkt.Dst, nowUs)

	// Traffic keeps both endpoints alive, but the counters are the
	// sender's.
	src.LastSeenUs = nowUs
	dst.LastSeenUs = nowUs
	src.PacketsByClass[pkt.Class]++
	src.BytesByClass[pkt.Class] += uint64(pkt.PayloadBytes)

	m.totalPackets++
	m.totalBytes += uint64(pkt.PayloadBytes)
	m.packetsByClass[pkt.Class]++
	m.bytesByClass[pkt.Class] += uint64(pkt.PayloadBytes)

	id := model.EdgeID{Src: pkt.Src, Dst: pkt.Dst, Class: pkt.Class}
	edge, ok := m.edges[id]
	if !ok {
		edge = newEdge(id, nowUs)
		m.edges[id] = edge
	}
	edge.observe(pkt, nowUs)
}

// Tick sweeps expired entities: nodes past the node TTL first, then edges
// past the edge TTL or orphaned by a node removal. Every removal lands in
// the pending queues for the next snapshot.
func (m *Manager) Tick(nowUs uint64) {
	for id, node := range m.nodes {
		if nowUs-node.LastSeenUs > m.nodeTTLUs {
			delete(m.nodes, id)
			m.enqueueRemovedNode(id)
		}
	}
	for id, edge := range m.edges {
		_, srcOK := m.nodes[id.Src]
		_, dstOK := m.nodes[id.Dst]
		if !srcOK || !dstOK || nowUs-edge.LastSeenUs > m.edgeTTLUs {
			delete(m.edges, id)
			m.enqueueRemovedEdge(id)
		}
	}
}

func (m *Manager) removeEdgesReferencing(id model.NodeID) {
	for eid := range m.edges {
		if eid.Src == id || eid.Dst == id {
			delete(m.edges, eid)
			m.enqueueRemovedEdge(eid)
		}
	}
}

func (m *Manager) enqueueRemovedNode(id model.NodeID) {
	if _, ok := m.pendingNodeSet[id]; ok {
		return
	}
	m.pendingNodeSet[id] = struct{}{}
	m.pendingRemovedNodes = append(m.pendingRemovedNodes, id)
}

func (m *Manager) enqueueRemovedEdge(id model.EdgeID) {
	if _, ok := m.pendingEdgeSet[id]; ok {
		return
	}
	m.pendingEdgeSet[id] = struct{}{}
	m.pendingRemovedEdges = append(m.pendingRemovedEdges, id)
}

// Snapshot assembles a TopologySnapshot, drains the pending removal queues
// into it and increments the snapshot sequence.
func (m *Manager) Snapshot(nowUs uint64) *model.TopologySnapshot {
	m.snapshotSeq++
	snap := &model.TopologySnapshot{
		Seq:          m.snapshotSeq,
		TimestampUs:  nowUs,
		Nodes:        m.nodeSnapshots(nowUs),
		Edges:        m.edgeSnapshots(nowUs),
		RemovedNodes: make([]model.NodeID, 0, len(m.pendingRemovedNodes)),
		RemovedEdges: make([]model.EdgeID, 0, len(m.pendingRemovedEdges)),
		GlobalStats:  m.globalStats(nowUs),
	}

	// An id that came back to life since its removal stays out of the
	// removed list: a snapshot never both contains and removes an id.
	for _, id := range m.pendingRemovedNodes {
		if _, live := m.nodes[id]; !live {
			snap.RemovedNodes = append(snap.RemovedNodes, id)
		}
	}
	for _, id := range m.pendingRemovedEdges {
		if _, live := m.edges[id]; !live {
			snap.RemovedEdges = append(snap.RemovedEdges, id)
		}
	}
	m.pendingRemovedNodes = m.pendingRemovedNodes[:0]
	m.pendingRemovedEdges = m.pendingRemovedEdges[:0]
	clear(m.pendingNodeSet)
	clear(m.pendingEdgeSet)

	return snap
}

// Analytics assembles the legacy flat snapshot. It neither drains the
// removal queues nor advances the snapshot sequence.
func (m *Manager) Analytics(nowUs uint64) *model.AnalyticsSnapshot {
	return &model.AnalyticsSnapshot{
		TimestampUs: nowUs,
		Nodes:       m.nodeSnapshots(nowUs),
		Edges:       m.edgeSnapshots(nowUs),
		GlobalStats: m.globalStats(nowUs),
	}
}

func (m *Manager) nodeSnapshots(nowUs uint64) []model.NodeSnapshot {
	out := make([]model.NodeSnapshot, 0, len(m.nodes))
	for _, node := range m.nodes {
		out = append(out, node.snapshot(nowUs, m.activeHorizonUs))
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
	})
	return out
}

func (m *Manager) edgeSnapshots(nowUs uint64) []model.EdgeSnapshot {
	out := make([]model.EdgeSnapshot, 0, len(m.edges))
	for _, edge := range m.edges {
		out = append(out, edge.snapshot(nowUs))
	}
	sort.Slice(out, func(i, j int) bool {
		return lessEdgeID(out[i].ID, out[j].ID)
	})
	return out
}

func lessEdgeID(a, b model.EdgeID) bool {
	if c := bytes.Compare(a.Src[:], b.Src[:]); c != 0 {
		return c < 0
	}
	if c := bytes.Compare(a.Dst[:], b.Dst[:]); c != 0 {
		return c < 0
	}
	return a.Class < b.Class
}

func (m *Manager) globalStats(nowUs uint64) model.GlobalStats {
	var pps, bps float64
	for _, edge := range m.edges {
		p, b := edge.Rate.Rate(nowUs)
		pps += p
		bps += b
	}
	return model.GlobalStats{
		TotalNodes:     uint64(len(m.nodes)),
		TotalEdges:     uint64(len(m.edges)),
		TotalPackets:   m.totalPackets,
		TotalBytes:     m.totalBytes,
		PacketsByClass: m.packetsByClass,
		BytesByClass:   m.bytesByClass,
		AggregatePps:   pps,
		AggregateBps:   bps,
	}
}

// NodeCount reports the current size of the node table.
func (m *Manager) NodeCount() int { return len(m.nodes) }

// EdgeCount reports the current size of the edge table.
func (m *Manager) EdgeCount() int { return len(m.edges) }
