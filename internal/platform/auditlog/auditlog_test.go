package auditlog

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestEventValidate(t *testing.T) {
	ev := Event{
		OccurredAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Actor:        "forge-containers",
		Action:       "container.create",
		ResourceType: "project",
		ResourceID:   "p1",
	}
	if err := ev.Validate(); err != nil {
		t.Fatalf("Validate() err=%v", err)
	}
	ev.Action = " "
	if err := ev.Validate(); err == nil {
		t.Fatalf("Validate() expected error for blank action")
	}
}

func TestComputeIntegrityIsStable(t *testing.T) {
	ev := Event{
		OccurredAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Actor:        "forge-containers",
		Action:       "container.stop",
		ResourceType: "project",
		ResourceID:   "p1",
		RequestID:    "abc",
	}
	a, err := ComputeIntegritySHA256(ev, []byte(`{"driver":"stub"}`))
	if err != nil {
		t.Fatalf("ComputeIntegritySHA256() err=%v", err)
	}
	b, _ := ComputeIntegritySHA256(ev, []byte(`{"driver":"stub"}`))
	if a != b {
		t.Fatalf("integrity not stable: %s != %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("len(integrity)=%d, want 64", len(a))
	}
	c, _ := ComputeIntegritySHA256(ev, []byte(`{"driver":"docker"}`))
	if a == c {
		t.Fatalf("integrity ignores payload")
	}
}

func TestInsertQueryTargetsContainerEvents(t *testing.T) {
	if !strings.Contains(insertEventQuery, "INSERT INTO container_events") {
		t.Fatalf("unexpected insert query: %s", insertEventQuery)
	}
	if !strings.Contains(insertEventQuery, "RETURNING event_id") {
		t.Fatalf("expected event id to be returned")
	}
}

func TestInsertRequiresQueryer(t *testing.T) {
	if _, err := Insert(context.Background(), nil, Event{}); err == nil {
		t.Fatalf("Insert() expected error without queryer")
	}
}
