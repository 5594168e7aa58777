package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	RKBookPriceUpdated = "catalog.book.price_updated"
	RKBookDeleted      = "catalog.book.deleted"
)

type Events interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

type BookPriceUpdated struct {
	Title string  `json:"title"`
	Price float64 `json:"price"`
}

type BookDeleted struct {
	Title string `json:"title"`
}

// Service emits domain events for the mutating steps. Events are best
// effort: a failed publish is logged and never fails the step.
type Service struct {
	events Events
	runID  string
}

func NewService(events Events, runID string) *Service {
	return &Service{events: events, runID: runID}
}

func (s *Service) publish(ctx context.Context, key string, payload any) {
	if s == nil || s.events == nil {
		return
	}
	body, err := json.Marshal(struct {
		Type      string    `json:"type"`
		RunID     string    `json:"run_id"`
		Timestamp time.Time `json:"timestamp"`
		Payload   any       `json:"payload"`
	}{
		Type:      key,
		RunID:     s.runID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("encode event")
		return
	}
	if err := s.events.Publish(ctx, key, body); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("publish event")
		return
	}
	log.Debug().Str("key", key).Msg("event published")
}

func (s *Service) OnPriceUpdated(ctx context.Context, st UpdateStatus) {
	if st.Matched == 0 {
		return
	}
	s.publish(ctx, RKBookPriceUpdated, BookPriceUpdated{Title: st.Title, Price: st.Price})
}

func (s *Service) OnDeleted(ctx context.Context, st DeleteStatus) {
	if st.Deleted == 0 {
		return
	}
	s.publish(ctx, RKBookDeleted, BookDeleted{Title: st.Title})
}
