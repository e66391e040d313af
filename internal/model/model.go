package model

import (
	"encoding/hex"
	"fmt"
)

// NodeID is the stable 16-byte identity of a node (typically a UUID).
// It is opaque: equality and hashing are byte-wise and it is never derived
// from a UDP source address.
type NodeID [16]byte

func (id NodeID) String() string {
	return hex.EncodeToString(id[:])
}

// MarshalJSON renders the id as a 32-char hex string.
func (id NodeID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.String() + `"`), nil
}

// UnmarshalJSON parses the hex form produced by MarshalJSON.
func (id *NodeID) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("node id must be a JSON string")
	}
	raw, err := hex.DecodeString(string(data[1 : len(data)-1]))
	if err != nil {
		return fmt.Errorf("invalid node id hex: %w", err)
	}
	if len(raw) != len(id) {
		return fmt.Errorf("node id must be %d bytes, got %d", len(id), len(raw))
	}
	copy(id[:], raw)
	return nil
}

// TrafficClass labels the kind of traffic carried on an edge.
type TrafficClass uint8

const (
	ClassAPI TrafficClass = iota
	ClassHeavyCompute
	ClassBackground
	ClassHealthCheck

	// NumTrafficClasses sizes the per-class counter arrays.
	NumTrafficClasses = 4
)

func (c TrafficClass) Valid() bool {
	return c < NumTrafficClasses
}

func (c TrafficClass) String() string {
	switch c {
	case ClassAPI:
		return "api"
	case ClassHeavyCompute:
		return "heavy_compute"
	case ClassBackground:
		return "background"
	case ClassHealthCheck:
		return "health_check"
	default:
		return fmt.Sprintf("class(%d)", uint8(c))
	}
}

// NodeDomain classifies where a node lives relative to the simulated fleet.
type NodeDomain uint8

const (
	DomainInternal NodeDomain = iota
	DomainExternal
)

func (d NodeDomain) Valid() bool {
	return d == DomainInternal || d == DomainExternal
}

func (d NodeDomain) String() string {
	if d == DomainInternal {
		return "internal"
	}
	return "external"
}

// EndpointDomain is the (src-domain, dst-domain) pair declared on a data
// packet. It annotates the edge's route style.
type EndpointDomain struct {
	Src NodeDomain `json:"src"`
	Dst NodeDomain `json:"dst"`
}

// EdgeID identifies a directed per-class traffic relation. The reverse
// triple is a distinct edge.
type EdgeID struct {
	Src   NodeID       `json:"src"`
	Dst   NodeID       `json:"dst"`
	Class TrafficClass `json:"class"`
}

func (e EdgeID) String() string {
	return fmt.Sprintf("%s->%s/%s", e.Src, e.Dst, e.Class)
}

// Message is one protocol message. The set of variants is closed; adding
// one requires a codec version bump.
type Message interface {
	isMessage()
}

// RegisterNode declares a node's identity, description and domain.
// Re-registration overwrites description and domain (last-declared wins).
type RegisterNode struct {
	NodeID      NodeID
	Description string
	Domain      NodeDomain
}

// UnregisterNode removes a node and all edges referencing it.
type UnregisterNode struct {
	NodeID NodeID
}

// Data is one simulated packet on the edge (Src, Dst, Class). PayloadBytes
// stands in for byte accounting; no application payload travels on the wire.
type Data struct {
	Src            NodeID
	Dst            NodeID
	Class          TrafficClass
	EndpointDomain EndpointDomain
	Seq            uint32
	SentTsUs       uint64
	PayloadBytes   uint32
}

// Ack is the server's reply to a Data packet, used by clients solely for
// RTT measurement.
type Ack struct {
	Seq        uint32
	ServerTsUs uint64
	ProcUs     uint64
}

// RequestTopology asks the server for a TopologySnapshot.
type RequestTopology struct{}

// Topology carries a TopologySnapshot back to the requester.
type Topology struct {
	Snapshot *TopologySnapshot
}

// RequestAnalytics asks for the legacy flat AnalyticsSnapshot.
type RequestAnalytics struct{}

// Analytics carries the legacy AnalyticsSnapshot back to the requester.
type Analytics struct {
	Snapshot *AnalyticsSnapshot
}

func (*RegisterNode) isMessage()     {}
func (*UnregisterNode) isMessage()   {}
func (*Data) isMessage()             {}
func (*Ack) isMessage()              {}
func (*RequestTopology) isMessage()  {}
func (*Topology) isMessage()         {}
func (*RequestAnalytics) isMessage() {}
func (*Analytics) isMessage()        {}
