package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ClickHouseArchive keeps a history of settlement outcomes for analytics.
// It is write-only from the matcher's point of view; reconciliation never
// reads it back.
type ClickHouseArchive struct {
	conn driver.Conn
}

// NewClickHouseArchive connects and verifies the connection.
func NewClickHouseArchive(addr, database, username, password string) (*ClickHouseArchive, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	return &ClickHouseArchive{conn: conn}, nil
}

// ArchiveDeal records one deal transition.
func (a *ClickHouseArchive) ArchiveDeal(ctx context.Context, rec *DealRecord) error {
	query := `
		INSERT INTO deals (
			tx_id, parent_tx_id, seq, status,
			info_capacity, pool_capacity, float_capacity,
			consumed_refs, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := a.conn.Exec(ctx, query,
		rec.TxID,
		rec.ParentTxID,
		rec.Seq,
		string(rec.Status),
		rec.Info.Capacity,
		rec.Pool.Capacity,
		rec.Float.Capacity,
		strings.Join(rec.ConsumedRefs, ","),
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to archive deal: %w", err)
	}
	return nil
}

func (a *ClickHouseArchive) Close() error {
	return a.conn.Close()
}
