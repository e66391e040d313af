package server

import (
	"net"
	"testing"
	"time"

	"NetTopoScope/internal/model"
	"NetTopoScope/internal/topology"
	"NetTopoScope/internal/wire"
)

func nid(b byte) model.NodeID {
	var id model.NodeID
	for i := range id {
		id[i] = b
	}
	return id
}

func startServer(t *testing.T) (*Server, *net.UDPConn) {
	t.Helper()
	mgr := topology.NewManager(0, 0)
	srv, err := New("127.0.0.1:0", mgr, Options{PollTimeout: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("failed to bind: %v", err)
	}
	go srv.Run()
	t.Cleanup(srv.Stop)

	conn, err := net.Dial("udp", srv.Addr().String())
	if err != nil {
		t.Fatalf("failed to dial server: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return srv, conn.(*net.UDPConn)
}

func send(t *testing.T, conn *net.UDPConn, msg model.Message) {
	t.Helper()
	data, err := wire.Encode(msg)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if _, err := conn.Write(data); err != nil {
		t.Fatalf("send failed: %v", err)
	}
}

func recv(t *testing.T, conn *net.UDPConn) model.Message {
	t.Helper()
	buf := make([]byte, 64*1024)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("no reply from server: %v", err)
	}
	msg, err := wire.Decode(buf[:n])
	if err != nil {
		t.Fatalf("reply failed to decode: %v", err)
	}
	return msg
}

func TestDataProducesAck(t *testing.T) {
	_, conn := startServer(t)

	send(t, conn, &model.Data{
		Src:          nid(0x01),
		Dst:          nid(0x02),
		Class:        model.ClassAPI,
		Seq:          42,
		SentTsUs:     1,
		PayloadBytes: 100,
	})
	reply := recv(t, conn)
	ack, ok := reply.(*model.Ack)
	if !ok {
		t.Fatalf("expected an ack, got %T", reply)
	}
	if ack.Seq != 42 {
		t.Errorf("ack seq = %d, want 42", ack.Seq)
	}
	if ack.ProcUs > uint64(time.Second.Microseconds()) {
		t.Errorf("proc_us implausibly large: %d", ack.ProcUs)
	}
}

func TestTopologyRequestFlow(t *testing.T) {
	_, conn := startServer(t)

	send(t, conn, &model.RegisterNode{NodeID: nid(0x01), Description: "a", Domain: model.DomainInternal})
	send(t, conn, &model.RegisterNode{NodeID: nid(0x02), Description: "b", Domain: model.DomainInternal})
	send(t, conn, &model.Data{
		Src:          nid(0x01),
		Dst:          nid(0x02),
		Class:        model.ClassAPI,
		Seq:          0,
		PayloadBytes: 100,
	})
	recv(t, conn) // ack

	send(t, conn, &model.RequestTopology{})
	reply := recv(t, conn)
	topo, ok := reply.(*model.Topology)
	if !ok {
		t.Fatalf("expected topology, got %T", reply)
	}
	if len(topo.Snapshot.Nodes) != 2 || len(topo.Snapshot.Edges) != 1 {
		t.Errorf("snapshot nodes/edges = %d/%d, want 2/1",
			len(topo.Snapshot.Nodes), len(topo.Snapshot.Edges))
	}
	if topo.Snapshot.Seq == 0 {
		t.Errorf("snapshot seq must start at 1")
	}

	send(t, conn, &model.RequestAnalytics{})
	reply = recv(t, conn)
	if _, ok := reply.(*model.Analytics); !ok {
		t.Fatalf("expected analytics, got %T", reply)
	}
}

func TestMalformedDatagramIsDroppedAndCounted(t *testing.T) {
	srv, conn := startServer(t)

	if _, err := conn.Write([]byte{0xff, 0x00, 0x01}); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	// A well-formed request afterwards still gets served.
	send(t, conn, &model.RequestTopology{})
	reply := recv(t, conn)
	if _, ok := reply.(*model.Topology); !ok {
		t.Fatalf("server wedged after bad frame: got %T", reply)
	}
	if srv.BadFrames() != 1 {
		t.Errorf("bad frame counter = %d, want 1", srv.BadFrames())
	}
}

type captureExporter struct {
	snaps chan *model.TopologySnapshot
}

func (c *captureExporter) Export(s *model.TopologySnapshot) {
	select {
	case c.snaps <- s:
	default:
	}
}

func TestPeriodicExport(t *testing.T) {
	mgr := topology.NewManager(0, 0)
	exp := &captureExporter{snaps: make(chan *model.TopologySnapshot, 4)}
	srv, err := New("127.0.0.1:0", mgr, Options{
		PollTimeout:    20 * time.Millisecond,
		ExportInterval: 50 * time.Millisecond,
		Exporter:       exp,
	})
	if err != nil {
		t.Fatalf("failed to bind: %v", err)
	}
	go srv.Run()
	defer srv.Stop()

	var last uint64
	for i := 0; i < 2; i++ {
		select {
		case snap := <-exp.snaps:
			if snap.Seq <= last {
				t.Fatalf("export seq %d not increasing past %d", snap.Seq, last)
			}
			last = snap.Seq
		case <-time.After(2 * time.Second):
			t.Fatalf("no export after %d snapshots", i)
		}
	}
}
