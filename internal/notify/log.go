package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DeliveryLog appends one row per committed dispatch, keeping enough context
// (match, event signature, counts) to audit or replay a send manually.
type DeliveryLog struct {
	pool *pgxpool.Pool
}

// NewDeliveryLog creates a log backed by the shared pool.
func NewDeliveryLog(pool *pgxpool.Pool) *DeliveryLog {
	return &DeliveryLog{pool: pool}
}

// Record appends a delivery row.
func (l *DeliveryLog) Record(ctx context.Context, matchID, eventKind, signature, title string, sum Summary) error {
	_, err := l.pool.Exec(ctx, "delivery_log_insert",
		uuid.New(), matchID, eventKind, signature, title,
		sum.Accepted, sum.Failed, sum.Skipped, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert delivery log: %w", err)
	}
	return nil
}
