// Package topology is the in-memory graph state machine: the node and edge
// tables, per-edge streaming statistics, TTL cleanup with delta emission,
// and snapshot assembly.
package topology

import "NetTopoScope/internal/model"

// Node is the live state of one registered (or implicitly created) node.
// The node table is the sole owner of these records.
type Node struct {
	ID          model.NodeID
	Description string
	Domain      model.NodeDomain

	PacketsByClass [model.NumTrafficClasses]uint64
	BytesByClass   [model.NumTrafficClasses]uint64

	FirstSeenUs uint64
	LastSeenUs  uint64
}

func newNode(id model.NodeID, nowUs uint64) *Node {
	return &Node{
		ID:          id,
		Domain:      model.DomainExternal,
		FirstSeenUs: nowUs,
		LastSeenUs:  nowUs,
	}
}

// active reports whether the node has seen traffic within three rate
// windows of now.
func (n *Node) active(nowUs, activeHorizonUs uint64) bool {
	return nowUs-n.LastSeenUs <= activeHorizonUs
}

func (n *Node) snapshot(nowUs, activeHorizonUs uint64) model.NodeSnapshot {
	return model.NodeSnapshot{
		ID:             n.ID,
		Description:    n.Description,
		Domain:         n.Domain,
		Active:         n.active(nowUs, activeHorizonUs),
		PacketsByClass: n.PacketsByClass,
		BytesByClass:   n.BytesByClass,
		FirstSeenUs:    n.FirstSeenUs,
		LastSeenUs:     n.LastSeenUs,
	}
}
