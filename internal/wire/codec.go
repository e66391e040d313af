// Package wire implements the binary frame codec for the UDP protocol.
//
// One message per datagram. A frame is a variant tag byte followed by the
// message fields in declaration order: integers little-endian fixed width,
// float64 as IEEE-754 bits little-endian, strings and lists prefixed by an
// unsigned varint length, node ids as 16 raw bytes, bools as one byte.
// The layout is byte-identical across implementations; changing tag order
// or field order is a codec version bump.
package wire

import (
	"encoding/binary"
	"fmt"
	"math"

	"NetTopoScope/internal/model"
)

// Variant tags. Order is stable across versions.
const (
	tagRegisterNode byte = iota
	tagUnregisterNode
	tagData
	tagAck
	tagRequestTopology
	tagTopology
	tagRequestAnalytics
	tagAnalytics
)

// maxElems bounds decoded list lengths so a malformed length prefix cannot
// drive a huge allocation. A UDP datagram cannot carry more elements anyway.
const maxElems = 1 << 20

// Encode serializes a message into a single datagram-sized frame.
func Encode(msg model.Message) ([]byte, error) {
	var b buffer
	switch m := msg.(type) {
	case *model.RegisterNode:
		b.u8(tagRegisterNode)
		b.id(m.NodeID)
		b.str(m.Description)
		b.u8(byte(m.Domain))
	case *model.UnregisterNode:
		b.u8(tagUnregisterNode)
		b.id(m.NodeID)
	case *model.Data:
		b.u8(tagData)
		b.id(m.Src)
		b.id(m.Dst)
		b.u8(byte(m.Class))
		b.u8(byte(m.EndpointDomain.Src))
		b.u8(byte(m.EndpointDomain.Dst))
		b.u32(m.Seq)
		b.u64(m.SentTsUs)
		b.u32(m.PayloadBytes)
	case *model.Ack:
		b.u8(tagAck)
		b.u32(m.Seq)
		b.u64(m.ServerTsUs)
		b.u64(m.ProcUs)
	case *model.RequestTopology:
		b.u8(tagRequestTopology)
	case *model.Topology:
		b.u8(tagTopology)
		encodeTopology(&b, m.Snapshot)
	case *model.RequestAnalytics:
		b.u8(tagRequestAnalytics)
	case *model.Analytics:
		b.u8(tagAnalytics)
		encodeAnalytics(&b, m.Snapshot)
	default:
		return nil, fmt.Errorf("unknown message type %T", msg)
	}
	return b.data, nil
}

// Decode parses one frame. Malformed frames yield an error; the caller
// drops the datagram and counts it.
func Decode(data []byte) (model.Message, error) {
	r := reader{data: data}
	tag, err := r.u8()
	if err != nil {
		return nil, err
	}
	var msg model.Message
	switch tag {
	case tagRegisterNode:
		m := &model.RegisterNode{}
		if m.NodeID, err = r.id(); err != nil {
			return nil, err
		}
		if m.Description, err = r.str(); err != nil {
			return nil, err
		}
		var d byte
		if d, err = r.u8(); err != nil {
			return nil, err
		}
		m.Domain = model.NodeDomain(d)
		if !m.Domain.Valid() {
			return nil, fmt.Errorf("invalid node domain %d", d)
		}
		msg = m
	case tagUnregisterNode:
		m := &model.UnregisterNode{}
		if m.NodeID, err = r.id(); err != nil {
			return nil, err
		}
		msg = m
	case tagData:
		m := &model.Data{}
		if m.Src, err = r.id(); err != nil {
			return nil, err
		}
		if m.Dst, err = r.id(); err != nil {
			return nil, err
		}
		var c, sd, dd byte
		if c, err = r.u8(); err != nil {
			return nil, err
		}
		m.Class = model.TrafficClass(c)
		if !m.Class.Valid() {
			return nil, fmt.Errorf("invalid traffic class %d", c)
		}
		if sd, err = r.u8(); err != nil {
			return nil, err
		}
		if dd, err = r.u8(); err != nil {
			return nil, err
		}
		m.EndpointDomain = model.EndpointDomain{Src: model.NodeDomain(sd), Dst: model.NodeDomain(dd)}
		if !m.EndpointDomain.Src.Valid() || !m.EndpointDomain.Dst.Valid() {
			return nil, fmt.Errorf("invalid endpoint domain (%d,%d)", sd, dd)
		}
		if m.Seq, err = r.u32(); err != nil {
			return nil, err
		}
		if m.SentTsUs, err = r.u64(); err != nil {
			return nil, err
		}
		if m.PayloadBytes, err = r.u32(); err != nil {
			return nil, err
		}
		msg = m
	case tagAck:
		m := &model.Ack{}
		if m.Seq, err = r.u32(); err != nil {
			return nil, err
		}
		if m.ServerTsUs, err = r.u64(); err != nil {
			return nil, err
		}
		if m.ProcUs, err = r.u64(); err != nil {
			return nil, err
		}
		msg = m
	case tagRequestTopology:
		msg = &model.RequestTopology{}
	case tagTopology:
		snap, err := decodeTopology(&r)
		if err != nil {
			return nil, err
		}
		msg = &model.Topology{Snapshot: snap}
	case tagRequestAnalytics:
		msg = &model.RequestAnalytics{}
	case tagAnalytics:
		snap, err := decodeAnalytics(&r)
		if err != nil {
			return nil, err
		}
		msg = &model.Analytics{Snapshot: snap}
	default:
		return nil, fmt.Errorf("unknown message tag %d", tag)
	}
	if r.pos != len(r.data) {
		return nil, fmt.Errorf("trailing garbage: %d bytes after message", len(r.data)-r.pos)
	}
	return msg, nil
}

func encodeTopology(b *buffer, s *model.TopologySnapshot) {
	b.u64(s.Seq)
	b.u64(s.TimestampUs)
	b.uvarint(uint64(len(s.Nodes)))
	for i := range s.Nodes {
		encodeNode(b, &s.Nodes[i])
	}
	b.uvarint(uint64(len(s.Edges)))
	for i := range s.Edges {
		encodeEdge(b, &s.Edges[i])
	}
	b.uvarint(uint64(len(s.RemovedNodes)))
	for _, id := range s.RemovedNodes {
		b.id(id)
	}
	b.uvarint(uint64(len(s.RemovedEdges)))
	for _, id := range s.RemovedEdges {
		b.edgeID(id)
	}
	encodeGlobalStats(b, &s.GlobalStats)
}

func decodeTopology(r *reader) (*model.TopologySnapshot, error) {
	s := &model.TopologySnapshot{}
	var err error
	if s.Seq, err = r.u64(); err != nil {
		return nil, err
	}
	if s.TimestampUs, err = r.u64(); err != nil {
		return nil, err
	}
	n, err := r.count()
	if err != nil {
		return nil, err
	}
	s.Nodes = make([]model.NodeSnapshot, n)
	for i := range s.Nodes {
		if err = decodeNode(r, &s.Nodes[i]); err != nil {
			return nil, err
		}
	}
	if n, err = r.count(); err != nil {
		return nil, err
	}
	s.Edges = make([]model.EdgeSnapshot, n)
	for i := range s.Edges {
		if err = decodeEdge(r, &s.Edges[i]); err != nil {
			return nil, err
		}
	}
	if n, err = r.count(); err != nil {
		return nil, err
	}
	s.RemovedNodes = make([]model.NodeID, n)
	for i := range s.RemovedNodes {
		if s.RemovedNodes[i], err = r.id(); err != nil {
			return nil, err
		}
	}
	if n, err = r.count(); err != nil {
		return nil, err
	}
	s.RemovedEdges = make([]model.EdgeID, n)
	for i := range s.RemovedEdges {
		if s.RemovedEdges[i], err = r.edgeID(); err != nil {
			return nil, err
		}
	}
	if err = decodeGlobalStats(r, &s.GlobalStats); err != nil {
		return nil, err
	}
	return s, nil
}

func encodeAnalytics(b *buffer, s *model.AnalyticsSnapshot) {
	b.u64(s.TimestampUs)
	b.uvarint(uint64(len(s.Nodes)))
	for i := range s.Nodes {
		encodeNode(b, &s.Nodes[i])
	}
	b.uvarint(uint64(len(s.Edges)))
	for i := range s.Edges {
		encodeEdge(b, &s.Edges[i])
	}
	encodeGlobalStats(b, &s.GlobalStats)
}

func decodeAnalytics(r *reader) (*model.AnalyticsSnapshot, error) {
	s := &model.AnalyticsSnapshot{}
	var err error
	if s.TimestampUs, err = r.u64(); err != nil {
		return nil, err
	}
	n, err := r.count()
	if err != nil {
		return nil, err
	}
	s.Nodes = make([]model.NodeSnapshot, n)
	for i := range s.Nodes {
		if err = decodeNode(r, &s.Nodes[i]); err != nil {
			return nil, err
		}
	}
	if n, err = r.count(); err != nil {
		return nil, err
	}
	s.Edges = make([]model.EdgeSnapshot, n)
	for i := range s.Edges {
		if err = decodeEdge(r, &s.Edges[i]); err != nil {
			return nil, err
		}
	}
	if err = decodeGlobalStats(r, &s.GlobalStats); err != nil {
		return nil, err
	}
	return s, nil
}

func encodeNode(b *buffer, n *model.NodeSnapshot) {
	b.id(n.ID)
	b.str(n.Description)
	b.u8(byte(n.Domain))
	b.bool(n.Active)
	for _, v := range n.PacketsByClass {
		b.u64(v)
	}
	for _, v := range n.BytesByClass {
		b.u64(v)
	}
	b.u64(n.FirstSeenUs)
	b.u64(n.LastSeenUs)
}

func decodeNode(r *reader, n *model.NodeSnapshot) error {
	var err error
	if n.ID, err = r.id(); err != nil {
		return err
	}
	if n.Description, err = r.str(); err != nil {
		return err
	}
	var d byte
	if d, err = r.u8(); err != nil {
		return err
	}
	n.Domain = model.NodeDomain(d)
	if n.Active, err = r.bool(); err != nil {
		return err
	}
	for i := range n.PacketsByClass {
		if n.PacketsByClass[i], err = r.u64(); err != nil {
			return err
		}
	}
	for i := range n.BytesByClass {
		if n.BytesByClass[i], err = r.u64(); err != nil {
			return err
		}
	}
	if n.FirstSeenUs, err = r.u64(); err != nil {
		return err
	}
	if n.LastSeenUs, err = r.u64(); err != nil {
		return err
	}
	return nil
}

func encodeEdge(b *buffer, e *model.EdgeSnapshot) {
	b.edgeID(e.ID)
	b.u8(byte(e.EndpointDomain.Src))
	b.u8(byte(e.EndpointDomain.Dst))
	b.u64(e.Packets)
	b.u64(e.Bytes)
	b.f64(e.Pps)
	b.f64(e.Bps)
	b.f64(e.EwmaLatencyUs)
	b.f64(e.EwmaJitterUs)
	b.f64(e.LatencyDeltaUs)
	b.f64(e.LossRate)
	b.u64(e.FirstSeenUs)
	b.u64(e.LastSeenUs)
}

func decodeEdge(r *reader, e *model.EdgeSnapshot) error {
	var err error
	if e.ID, err = r.edgeID(); err != nil {
		return err
	}
	var sd, dd byte
	if sd, err = r.u8(); err != nil {
		return err
	}
	if dd, err = r.u8(); err != nil {
		return err
	}
	e.EndpointDomain = model.EndpointDomain{Src: model.NodeDomain(sd), Dst: model.NodeDomain(dd)}
	if e.Packets, err = r.u64(); err != nil {
		return err
	}
	if e.Bytes, err = r.u64(); err != nil {
		return err
	}
	if e.Pps, err = r.f64(); err != nil {
		return err
	}
	if e.Bps, err = r.f64(); err != nil {
		return err
	}
	if e.EwmaLatencyUs, err = r.f64(); err != nil {
		return err
	}
	if e.EwmaJitterUs, err = r.f64(); err != nil {
		return err
	}
	if e.LatencyDeltaUs, err = r.f64(); err != nil {
		return err
	}
	if e.LossRate, err = r.f64(); err != nil {
		return err
	}
	if e.FirstSeenUs, err = r.u64(); err != nil {
		return err
	}
	if e.LastSeenUs, err = r.u64(); err != nil {
		return err
	}
	return nil
}

func encodeGlobalStats(b *buffer, g *model.GlobalStats) {
	b.u64(g.TotalNodes)
	b.u64(g.TotalEdges)
	b.u64(g.TotalPackets)
	b.u64(g.TotalBytes)
	for _, v := range g.PacketsByClass {
		b.u64(v)
	}
	for _, v := range g.BytesByClass {
		b.u64(v)
	}
	b.f64(g.AggregatePps)
	b.f64(g.AggregateBps)
}

func decodeGlobalStats(r *reader, g *model.GlobalStats) error {
	var err error
	if g.TotalNodes, err = r.u64(); err != nil {
		return err
	}
	if g.TotalEdges, err = r.u64(); err != nil {
		return err
	}
	if g.TotalPackets, err = r.u64(); err != nil {
		return err
	}
	if g.TotalBytes, err = r.u64(); err != nil {
		return err
	}
	for i := range g.PacketsByClass {
		if g.PacketsByClass[i], err = r.u64(); err != nil {
			return err
		}
	}
	for i := range g.BytesByClass {
		if g.BytesByClass[i], err = r.u64(); err != nil {
			return err
		}
	}
	if g.AggregatePps, err = r.f64(); err != nil {
		return err
	}
	if g.AggregateBps, err = r.f64(); err != nil {
		return err
	}
	return nil
}

// buffer accumulates an encoded frame.
type buffer struct {
	data []byte
}

func (b *buffer) u8(v byte) {
	b.data = append(b.data, v)
}

func (b *buffer) bool(v bool) {
	if v {
		b.u8(1)
	} else {
		b.u8(0)
	}
}

func (b *buffer) u32(v uint32) {
	b.data = binary.LittleEndian.AppendUint32(b.data, v)
}

func (b *buffer) u64(v uint64) {
	b.data = binary.LittleEndian.AppendUint64(b.data, v)
}

func (b *buffer) f64(v float64) {
	b.u64(math.Float64bits(v))
}

func (b *buffer) uvarint(v uint64) {
	b.data = binary.AppendUvarint(b.data, v)
}

func (b *buffer) id(id model.NodeID) {
	b.data = append(b.data, id[:]...)
}

func (b *buffer) edgeID(id model.EdgeID) {
	b.id(id.Src)
	b.id(id.Dst)
	b.u8(byte(id.Class))
}

func (b *buffer) str(s string) {
	b.uvarint(uint64(len(s)))
	b.data = append(b.data, s...)
}

// reader walks an encoded frame, failing on any truncation.
type reader struct {
	data []byte
	pos  int
}

func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || len(r.data)-r.pos < n {
		return nil, fmt.Errorf("truncated frame: need %d bytes at offset %d, have %d", n, r.pos, len(r.data)-r.pos)
	}
	out := r.data[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *reader) u8() (byte, error) {
	raw, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return raw[0], nil
}

func (r *reader) bool() (bool, error) {
	v, err := r.u8()
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("invalid bool byte %d", v)
	}
}

func (r *reader) u32() (uint32, error) {
	raw, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(raw), nil
}

func (r *reader) u64() (uint64, error) {
	raw, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(raw), nil
}

func (r *reader) f64() (float64, error) {
	bits, err := r.u64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

func (r *reader) uvarint() (uint64, error) {
	v, n := binary.Uvarint(r.data[r.pos:])
	if n <= 0 {
		return 0, fmt.Errorf("invalid varint at offset %d", r.pos)
	}
	r.pos += n
	return v, nil
}

func (r *reader) count() (int, error) {
	v, err := r.uvarint()
	if err != nil {
		return 0, err
	}
	if v > maxElems {
		return 0, fmt.Errorf("list length %d exceeds limit", v)
	}
	return int(v), nil
}

func (r *reader) id() (model.NodeID, error) {
	var id model.NodeID
	raw, err := r.take(len(id))
	if err != nil {
		return id, err
	}
	copy(id[:], raw)
	return id, nil
}

func (r *reader) edgeID() (model.EdgeID, error) {
	var id model.EdgeID
	var err error
	if id.Src, err = r.id(); err != nil {
		return id, err
	}
	if id.Dst, err = r.id(); err != nil {
		return id, err
	}
	var c byte
	if c, err = r.u8(); err != nil {
		return id, err
	}
	id.Class = model.TrafficClass(c)
	return id, nil
}

func (r *reader) str() (string, error) {
	n, err := r.count()
	if err != nil {
		return "", err
	}
	raw, err := r.take(n)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
