package main

import (
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"NetTopoScope/internal/identity"
	"NetTopoScope/internal/model"
	"NetTopoScope/internal/wire"
)

func main() {
	serverAddr := flag.String("server", "127.0.0.1:8080", "Server address to send traffic to")
	idPath := flag.String("id", "client_id.txt", "Path to the persisted node id")
	desc := flag.String("desc", "loadgen", "Node description to register")
	domain := flag.String("domain", "internal", "Node domain: internal or external")
	peers := flag.Int("peers", 2, "Number of synthetic peer nodes to spray traffic at")
	class := flag.String("class", "api", "Traffic class: api, heavy_compute, background, health_check")
	rate := flag.Int("rate", 80, "Packets per second")
	bytesPerPacket := flag.Int("bytes", 512, "Declared payload bytes per packet")
	pollTopology := flag.Bool("poll-topology", false, "Request a topology snapshot every 5s and log its size")
	flag.Parse()

	nodeID, err := identity.LoadOrCreate(*idPath)
	if err != nil {
		log.Fatalf("Failed to load node identity: %v", err)
	}

	nodeDomain, ok := parseDomain(*domain)
	if !ok {
		log.Fatalf("Unknown domain %q", *domain)
	}
	trafficClass, ok := parseClass(*class)
	if !ok {
		log.Fatalf("Unknown traffic class %q", *class)
	}
	if *rate < 1 {
		log.Fatalf("Rate must be at least 1 pps")
	}

	conn, err := net.Dial("udp", *serverAddr)
	if err != nil {
		log.Fatalf("Failed to dial %s: %v", *serverAddr, err)
	}
	defer conn.Close()

	g := &generator{
		conn:     conn,
		nodeID:   nodeID,
		domain:   nodeDomain,
		class:    trafficClass,
		bytes:    uint32(*bytesPerPacket),
		interval: time.Second / time.Duration(*rate),
		pending:  make(map[uint32]time.Time),
	}
	for i := 0; i < *peers; i++ {
		peer := uuid.New()
		var pid model.NodeID
		copy(pid[:], peer[:])
		g.peers = append(g.peers, pid)
	}

	g.send(&model.RegisterNode{NodeID: nodeID, Description: *desc, Domain: nodeDomain})
	log.Printf("Registered node %s as %q (%s), %d peers, %s @ %d pps",
		nodeID, *desc, nodeDomain, *peers, trafficClass, *rate)

	go g.readReplies()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sendTicker := time.NewTicker(g.interval)
	defer sendTicker.Stop()
	var topoTicker <-chan time.Time
	if *pollTopology {
		t := time.NewTicker(5 * time.Second)
		defer t.Stop()
		topoTicker = t.C
	}

	for {
		select {
		case <-sendTicker.C:
			g.sendData()
		case <-topoTicker:
			g.send(&model.RequestTopology{})
		case <-sigChan:
			g.send(&model.UnregisterNode{NodeID: nodeID})
			g.mu.Lock()
			log.Printf("Sent %d packets; acks=%d rtt min/avg/max = %s/%s/%s",
				g.sent, g.acks, g.minRTT, g.avgRTT(), g.maxRTT)
			g.mu.Unlock()
			return
		}
	}
}

type generator struct {
	conn   net.Conn
	nodeID model.NodeID
	domain model.NodeDomain
	class  model.TrafficClass
	bytes  uint32
	peers  []model.NodeID

	interval time.Duration
	nextPeer int
	seq      uint32
	sent     uint64

	mu      sync.Mutex
	pending map[uint32]time.Time

	acks   uint64
	minRTT time.Duration
	maxRTT time.Duration
	sumRTT time.Duration
}

func (g *generator) send(msg model.Message) {
	data, err := wire.Encode(msg)
	if err != nil {
		log.Printf("Encode error: %v", err)
		return
	}
	if _, err := g.conn.Write(data); err != nil {
		log.Printf("Send error: %v", err)
	}
}

func (g *generator) sendData() {
	peer := g.peers[g.nextPeer%len(g.peers)]
	g.nextPeer++
	g.mu.Lock()
	g.pending[g.seq] = time.Now()
	g.mu.Unlock()
	g.send(&model.Data{
		Src:            g.nodeID,
		Dst:            peer,
		Class:          g.class,
		EndpointDomain: model.EndpointDomain{Src: g.domain, Dst: model.DomainExternal},
		Seq:            g.seq,
		SentTsUs:       uint64(time.Now().UnixMicro()),
		PayloadBytes:   g.bytes,
	})
	g.seq++
	g.sent++
}

// readReplies consumes acks and topology replies off the socket. Each ack
// is matched to its pending send time by sequence number to yield an RTT.
func (g *generator) readReplies() {
	buf := make([]byte, 64*1024)
	for {
		n, err := g.conn.Read(buf)
		if err != nil {
			return
		}
		now := time.Now()
		msg, err := wire.Decode(buf[:n])
		if err != nil {
			log.Printf("Undecodable reply: %v", err)
			continue
		}
		switch m := msg.(type) {
		case *model.Ack:
			g.mu.Lock()
			sentAt, ok := g.pending[m.Seq]
			delete(g.pending, m.Seq)
			if ok {
				rtt := now.Sub(sentAt)
				g.acks++
				if g.minRTT == 0 || rtt < g.minRTT {
					g.minRTT = rtt
				}
				if rtt > g.maxRTT {
					g.maxRTT = rtt
				}
				g.sumRTT += rtt
			}
			g.mu.Unlock()
		case *model.Topology:
			log.Printf("Topology seq=%d: %d nodes, %d edges, %d removed",
				m.Snapshot.Seq, len(m.Snapshot.Nodes), len(m.Snapshot.Edges),
				len(m.Snapshot.RemovedNodes)+len(m.Snapshot.RemovedEdges))
		}
	}
}

func (g *generator) avgRTT() time.Duration {
	if g.acks == 0 {
		return 0
	}
	return g.sumRTT / time.Duration(g.acks)
}

func parseDomain(s string) (model.NodeDomain, bool) {
	switch s {
	case "internal":
		return model.DomainInternal, true
	case "external":
		return model.DomainExternal, true
	default:
		return 0, false
	}
}

func parseClass(s string) (model.TrafficClass, bool) {
	switch s {
	case "api":
		return model.ClassAPI, true
	case "heavy_compute":
		return model.ClassHeavyCompute, true
	case "background":
		return model.ClassBackground, true
	case "health_check":
		return model.ClassHealthCheck, true
	default:
		return 0, false
	}
}
