package sqlite

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/civicregistry/internal/core/domain"
)

func seedOutboxEvent(t *testing.T, persons *PersonRepository) {
	t.Helper()
	if _, err := persons.Create(context.Background(), seedPerson("Schmidt", "anna@example.org", "ID-1"), domain.ActionCreated); err != nil {
		t.Fatalf("seed create: %v", err)
	}
}

func TestOutboxRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	persons := NewPersonRepository(db)
	outbox := NewOutboxRepository(db)

	seedOutboxEvent(t, persons)

	pending, err := outbox.FetchPending(ctx, 10)
	if err != nil {
		t.Fatalf("fetch pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending event, got %d", len(pending))
	}
	event := pending[0]
	if event.Status != "pending" || event.EventID == "" {
		t.Fatalf("unexpected event: %+v", event)
	}

	var envelope domain.ChangeEnvelope
	if err := json.Unmarshal(event.PayloadJSON, &envelope); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if envelope.EventType != domain.ActionCreated || envelope.Actor != "clerk@example.org" {
		t.Fatalf("unexpected envelope: %+v", envelope)
	}

	if err := outbox.MarkDispatched(ctx, event.ID); err != nil {
		t.Fatalf("mark dispatched: %v", err)
	}
	after, err := outbox.FetchPending(ctx, 10)
	if err != nil {
		t.Fatalf("fetch after dispatch: %v", err)
	}
	if len(after) != 0 {
		t.Fatalf("dispatched events must leave the pending set, got %d", len(after))
	}
}

func TestOutboxRepositoryMarkFailedDefersRetry(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	persons := NewPersonRepository(db)
	outbox := NewOutboxRepository(db)

	seedOutboxEvent(t, persons)

	pending, err := outbox.FetchPending(ctx, 10)
	if err != nil {
		t.Fatalf("fetch pending: %v", err)
	}
	event := pending[0]

	future := time.Now().UTC().Add(time.Hour).Format(time.RFC3339Nano)
	if err := outbox.MarkFailed(ctx, event.ID, 1, future, "receiver down"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	deferred, err := outbox.FetchPending(ctx, 10)
	if err != nil {
		t.Fatalf("fetch deferred: %v", err)
	}
	if len(deferred) != 0 {
		t.Fatalf("event with a future attempt time must not be fetched, got %d", len(deferred))
	}

	past := time.Now().UTC().Add(-time.Minute).Format(time.RFC3339Nano)
	if err := outbox.MarkFailed(ctx, event.ID, 2, past, "receiver down"); err != nil {
		t.Fatalf("mark failed again: %v", err)
	}
	due, err := outbox.FetchPending(ctx, 10)
	if err != nil {
		t.Fatalf("fetch due: %v", err)
	}
	if len(due) != 1 || due[0].Attempts != 2 || due[0].LastError != "receiver down" {
		t.Fatalf("unexpected due event: %+v", due)
	}
}

func TestOutboxRepositoryMarkDead(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	persons := NewPersonRepository(db)
	outbox := NewOutboxRepository(db)

	seedOutboxEvent(t, persons)

	pending, err := outbox.FetchPending(ctx, 10)
	if err != nil {
		t.Fatalf("fetch pending: %v", err)
	}

	if err := outbox.MarkDead(ctx, pending[0].ID, 5, "gave up"); err != nil {
		t.Fatalf("mark dead: %v", err)
	}

	after, err := outbox.FetchPending(ctx, 10)
	if err != nil {
		t.Fatalf("fetch after dead: %v", err)
	}
	if len(after) != 0 {
		t.Fatalf("dead events must leave the pending set, got %d", len(after))
	}
}
