package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// AuditHandler logs every order event it sees. Undecodable messages are
// logged and skipped so they do not block the partition.
func AuditHandler(log *zap.SugaredLogger) Handler {
	return func(_ context.Context, m kafka.Message) error {
		ev, err := DecodeEvent(m.Value)
		if err != nil {
			log.Warnw("skipping malformed order event", "partition", m.Partition, "offset", m.Offset, "err", err)
			return nil
		}
		log.Infow("order event",
			"event_id", ev.EventID,
			"action", ev.Action,
			"order_id", ev.OrderID,
			"producer", ev.Producer,
			"occurred_at", ev.OccurredAt,
			"partition", m.Partition,
			"offset", m.Offset,
		)
		return nil
	}
}
