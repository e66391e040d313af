// Package server runs the UDP dispatcher: a single-threaded cooperative
// loop that owns the socket and the topology manager. The socket poll is
// the only blocking call; its timeout paces the periodic cleanup tick and
// the snapshot export when traffic is idle.
package server

import (
	"errors"
	"log"
	"net"
	"sync/atomic"
	"time"

	"NetTopoScope/internal/model"
	"NetTopoScope/internal/topology"
	"NetTopoScope/internal/wire"
)

const (
	// PollTimeout bounds the socket read so the tick can run when idle.
	PollTimeout = 250 * time.Millisecond
	// CleanupInterval is the minimum spacing of TTL sweeps.
	CleanupInterval = time.Second

	maxDatagram = 64 * 1024
)

// Exporter receives every periodically exported snapshot. Implementations
// must not block for longer than a publish.
type Exporter interface {
	Export(snapshot *model.TopologySnapshot)
}

// Options tune the dispatcher. Zero values fall back to the defaults above.
type Options struct {
	PollTimeout     time.Duration
	CleanupInterval time.Duration

	// ExportInterval enables periodic snapshot export when positive.
	ExportInterval time.Duration
	Exporter       Exporter
}

// Server owns the socket, the manager and the monotonic clock.
type Server struct {
	conn  *net.UDPConn
	mgr   *topology.Manager
	opts  Options
	start time.Time

	done chan struct{}

	badFrames  atomic.Uint64
	sendErrors atomic.Uint64
}

// New binds the UDP socket. A bind failure is fatal to the caller.
func New(listenAddr string, mgr *topology.Manager, opts Options) (*Server, error) {
	addr, err := net.ResolveUDPAddr("udp", listenAddr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, err
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = PollTimeout
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = CleanupInterval
	}
	return &Server{
		conn:  conn,
		mgr:   mgr,
		opts:  opts,
		start: time.Now(),
		done:  make(chan struct{}),
	}, nil
}

// Addr returns the bound socket address.
func (s *Server) Addr() net.Addr {
	return s.conn.LocalAddr()
}

// nowUs reads the monotonic microsecond clock.
func (s *Server) nowUs() uint64 {
	return uint64(time.Since(s.start).Microseconds())
}

// Run executes the receive loop until Stop is called. All state mutation is
// serialized by this loop; packet handling and snapshot assembly run to
// completion without yield points.
func (s *Server) Run() {
	log.Printf("Dispatcher listening on %s", s.conn.LocalAddr())

	buf := make([]byte, maxDatagram)
	cleanupUs := uint64(s.opts.CleanupInterval.Microseconds())
	exportUs := uint64(s.opts.ExportInterval.Microseconds())
	lastTick := s.nowUs()
	lastExport := lastTick

	for {
		select {
		case <-s.done:
			log.Printf("Dispatcher stopped: %d bad frames, %d send errors", s.badFrames.Load(), s.sendErrors.Load())
			return
		default:
		}

		s.conn.SetReadDeadline(time.Now().Add(s.opts.PollTimeout))
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err == nil {
			s.handleDatagram(buf[:n], addr)
		} else if !isTimeout(err) {
			select {
			case <-s.done:
				log.Printf("Dispatcher stopped: %d bad frames, %d send errors", s.badFrames.Load(), s.sendErrors.Load())
				return
			default:
			}
			log.Printf("Socket read error: %v", err)
		}

		now := s.nowUs()
		if now-lastTick >= cleanupUs {
			s.mgr.Tick(now)
			lastTick = now
		}
		if exportUs > 0 && s.opts.Exporter != nil && now-lastExport >= exportUs {
			s.opts.Exporter.Export(s.mgr.Snapshot(now))
			lastExport = now
		}
	}
}

// Stop terminates the loop between iterations.
func (s *Server) Stop() {
	close(s.done)
	s.conn.Close()
}

func (s *Server) handleDatagram(data []byte, addr *net.UDPAddr) {
	msg, err := wire.Decode(data)
	if err != nil {
		s.badFrames.Add(1)
		return
	}

	t0 := s.nowUs()
	reply := s.mgr.Apply(msg, t0)
	if reply == nil {
		return
	}

	// The manager stamps the ack with its apply time; the processing
	// duration is only known here, once apply has returned.
	if ack, ok := reply.(*model.Ack); ok {
		now := s.nowUs()
		ack.ServerTsUs = now
		ack.ProcUs = now - t0
	}

	out, err := wire.Encode(reply)
	if err != nil {
		log.Printf("Failed to encode reply for %s: %v", addr, err)
		return
	}
	if _, err := s.conn.WriteToUDP(out, addr); err != nil {
		s.sendErrors.Add(1)
		log.Printf("Failed to send reply to %s: %v", addr, err)
	}
}

func isTimeout(err error) bool {
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

// BadFrames reports how many datagrams failed to decode.
func (s *Server) BadFrames() uint64 { return s.badFrames.Load() }

// SendErrors reports how many replies failed to send.
func (s *Server) SendErrors() uint64 { return s.sendErrors.Load() }
