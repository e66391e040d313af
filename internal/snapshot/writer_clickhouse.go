package snapshot

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"NetTopoScope/internal/config"
	"NetTopoScope/internal/model"
)

const createEdgeTableStatement = `
CREATE TABLE IF NOT EXISTS edge_metrics (
    Timestamp     DateTime,
    SnapshotSeq   UInt64,
    SrcNode       String,
    DstNode       String,
    Class         UInt8,
    Packets       UInt64,
    Bytes         UInt64,
    Pps           Float64,
    Bps           Float64,
    EwmaLatencyUs Float64,
    EwmaJitterUs  Float64,
    LossRate      Float64
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (SrcNode, DstNode, Class, Timestamp);
`

const createNodeTableStatement = `
CREATE TABLE IF NOT EXISTS node_metrics (
    Timestamp    DateTime,
    SnapshotSeq  UInt64,
    Node         String,
    Description  String,
    Domain       UInt8,
    Active       UInt8,
    TotalPackets UInt64,
    TotalBytes   UInt64
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (Node, Timestamp);
`

// ClickHouseWriter implements model.Writer against an edge/node metrics
// history in ClickHouse.
type ClickHouseWriter struct {
	conn driver.Conn
}

// NewClickHouseWriter connects and ensures the metric tables exist.
func NewClickHouseWriter(cfg config.ClickHouseConfig) (model.Writer, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	for _, stmt := range []string{createEdgeTableStatement, createNodeTableStatement} {
		if err := conn.Exec(context.Background(), stmt); err != nil {
			return nil, fmt.Errorf("failed to create table: %w", err)
		}
	}
	log.Println("Successfully connected to ClickHouse and ensured tables exist.")
	return &ClickHouseWriter{conn: conn}, nil
}

func connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

func (w *ClickHouseWriter) Name() string { return "clickhouse" }

// Write inserts one row per edge and per node for this snapshot.
func (w *ClickHouseWriter) Write(snap *model.TopologySnapshot) error {
	now := time.Now()

	batch, err := w.conn.PrepareBatch(context.Background(), "INSERT INTO edge_metrics")
	if err != nil {
		return fmt.Errorf("failed to prepare edge batch: %w", err)
	}
	for i := range snap.Edges {
		e := &snap.Edges[i]
		err = batch.Append(
			now,
			snap.Seq,
			e.ID.Src.String(),
			e.ID.Dst.String(),
			uint8(e.ID.Class),
			e.Packets,
			e.Bytes,
			e.Pps,
			e.Bps,
			e.EwmaLatencyUs,
			e.EwmaJitterUs,
			e.LossRate,
		)
		if err != nil {
			return fmt.Errorf("failed to append edge to batch: %w", err)
		}
	}
	if len(snap.Edges) > 0 {
		if err := batch.Send(); err != nil {
			return fmt.Errorf("failed to send edge batch: %w", err)
		}
	}

	batch, err = w.conn.PrepareBatch(context.Background(), "INSERT INTO node_metrics")
	if err != nil {
		return fmt.Errorf("failed to prepare node batch: %w", err)
	}
	for i := range snap.Nodes {
		n := &snap.Nodes[i]
		var packets, bytes uint64
		for c := 0; c < model.NumTrafficClasses; c++ {
			packets += n.PacketsByClass[c]
			bytes += n.BytesByClass[c]
		}
		active := uint8(0)
		if n.Active {
			active = 1
		}
		err = batch.Append(
			now,
			snap.Seq,
			n.ID.String(),
			n.Description,
			uint8(n.Domain),
			active,
			packets,
			bytes,
		)
		if err != nil {
			return fmt.Errorf("failed to append node to batch: %w", err)
		}
	}
	if len(snap.Nodes) == 0 {
		return nil
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send node batch: %w", err)
	}

	return nil
}

func (w *ClickHouseWriter) Close() error {
	return w.conn.Close()
}
