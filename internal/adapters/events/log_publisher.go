package events

import (
	"context"
	"log"

	"github.com/atvirokodosprendimai/civicregistry/internal/core/domain"
)

type LogPublisher struct{}

func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

func (p *LogPublisher) Publish(_ context.Context, topic string, event domain.ChangeEnvelope) error {
	log.Printf("change publish topic=%s event_id=%s event_type=%s person_id=%d actor=%s", topic, event.EventID, event.EventType, event.PersonID, event.Actor)
	return nil
}
