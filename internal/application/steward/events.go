package steward

import (
	"context"
	"encoding/json"

	"steward-backend/internal/domain"
	engine "steward-backend/internal/steward"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EventsChannel is the Redis pub/sub channel committed events are published on.
const EventsChannel = "steward:events"

const defaultEventLimit = 50

// EventMessage is the JSON shape of a published or listed event.
type EventMessage struct {
	Seq        int64             `json:"seq,omitempty"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	OccurredAt int64             `json:"occurred_at"`
}

func appendEvents(tx *gorm.DB, events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}
	var last int64
	if err := tx.Model(&domain.StewardEvent{}).Select("COALESCE(MAX(seq), 0)").Scan(&last).Error; err != nil {
		return err
	}
	for i, evt := range events {
		payload, err := json.Marshal(evt.Attributes)
		if err != nil {
			return err
		}
		row := domain.StewardEvent{
			Seq:        last + int64(i) + 1,
			Type:       evt.Type,
			Payload:    datatypes.JSON(payload),
			OccurredAt: evt.Time,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

// publishEvents fans committed events out to subscribers. Delivery is best
// effort: the event log in the database is authoritative.
func publishEvents(ctx context.Context, rdb *redis.Client, events []engine.Event) {
	if rdb == nil {
		return
	}
	for _, evt := range events {
		b, _ := json.Marshal(EventMessage{Type: evt.Type, Attributes: evt.Attributes, OccurredAt: evt.Time})
		if err := rdb.Publish(ctx, EventsChannel, b).Err(); err != nil {
			log.Warn().Str("type", evt.Type).Err(err).Msg("publish steward event")
		}
	}
}

// Events lists committed events newest first. A non-empty eventType filters.
func (s *Service) Events(ctx context.Context, eventType string, limit int) ([]EventMessage, error) {
	if limit <= 0 || limit > 500 {
		limit = defaultEventLimit
	}
	q := s.DB.WithContext(ctx).Order("seq desc").Limit(limit)
	if eventType != "" {
		q = q.Where("type = ?", eventType)
	}
	var rows []domain.StewardEvent
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]EventMessage, 0, len(rows))
	for _, row := range rows {
		attrs := map[string]string{}
		if err := json.Unmarshal(row.Payload, &attrs); err != nil {
			return nil, err
		}
		out = append(out, EventMessage{Seq: row.Seq, Type: row.Type, Attributes: attrs, OccurredAt: row.OccurredAt})
	}
	return out, nil
}
