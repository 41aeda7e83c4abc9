package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/arklim/ticket-tracker/internal/core/domain"
)

func TestLoadSeed(t *testing.T) {
	dir := NewDirectory()
	doc := `{
		"users": ["owner", "alice"],
		"projects": [{"id": "p1", "owner_id": "owner", "admin_ids": ["alice"]}],
		"tickets": [
			{"id": "T1", "project_id": "p1", "assignee_ids": ["alice"]},
			{"id": "T2", "project_id": "p1", "status": "DONE"}
		]
	}`
	if err := dir.LoadSeed(strings.NewReader(doc)); err != nil {
		t.Fatalf("LoadSeed: %v", err)
	}

	ctx := context.Background()
	access, err := dir.GetAccess(ctx, "p1")
	if err != nil {
		t.Fatalf("GetAccess: %v", err)
	}
	if !access.IsAdmin("alice") || !access.IsOwner("owner") {
		t.Fatalf("unexpected access: %+v", access)
	}

	t1, err := dir.GetTicket(ctx, "T1")
	if err != nil {
		t.Fatalf("GetTicket: %v", err)
	}
	if t1.Status != domain.TicketStatusTodo {
		t.Fatalf("expected TODO default, got %s", t1.Status)
	}
	t2, _ := dir.GetTicket(ctx, "T2")
	if !t2.IsDone() {
		t.Fatalf("expected T2 done")
	}

	if ok, _ := dir.Exists(ctx, "alice"); !ok {
		t.Fatalf("expected alice to exist")
	}
}

func TestLoadSeedRejectsIncompleteTickets(t *testing.T) {
	dir := NewDirectory()
	if err := dir.LoadSeed(strings.NewReader(`{"tickets":[{"id":"T1"}]}`)); err == nil {
		t.Fatalf("expected error for ticket without project")
	}
	if err := dir.LoadSeed(strings.NewReader(`{`)); err == nil {
		t.Fatalf("expected decode error")
	}
}
