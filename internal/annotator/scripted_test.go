package annotator

import (
	"context"
	"strings"
	"testing"

	"annotify/internal/annotator/scenarios"
	"annotify/internal/engine"
)

func TestScenarioListAndLoad(t *testing.T) {
	names := scenarios.List()
	if len(names) < 2 {
		t.Fatalf("List() = %v, want at least the shipped scenarios", names)
	}
	for _, name := range names {
		if _, err := scenarios.Load(name); err != nil {
			t.Fatalf("Load(%q) error = %v", name, err)
		}
	}
	if _, err := scenarios.Load("no_such_scenario"); err == nil {
		t.Fatalf("Load(missing) did not fail")
	}
}

func TestScriptedClientReplaysInventoryVendor(t *testing.T) {
	sc, err := scenarios.Load("inventory_vendor")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	a := New(NewScriptedClient(sc))

	req := engine.AnnotateRequest{
		Artifact: &engine.Artifact{
			ID:     "f1",
			Name:   "inventory.xlsx",
			Fields: map[string]string{"Company Code": "string", "Product Cost": "float", "Quantity": "integer"},
		},
		Task:  engine.TaskConfirmFields,
		Reply: "yes",
	}
	got, err := a.Annotate(context.Background(), req)
	if err != nil {
		t.Fatalf("Annotate(confirm) error = %v", err)
	}
	if got.Fields["Company Code"].Role != engine.RoleJoinField {
		t.Fatalf("Company Code role = %q", got.Fields["Company Code"].Role)
	}

	req.Task = engine.TaskIncorporatePurpose
	req.Working = got
	req.Reply = "monthly inventory"
	got, err = a.Annotate(context.Background(), req)
	if err != nil {
		t.Fatalf("Annotate(purpose) error = %v", err)
	}
	if got.Purpose == "" {
		t.Fatalf("purpose not set from scenario")
	}
}

func TestScriptedClientTaskMismatch(t *testing.T) {
	sc, _ := scenarios.Load("inventory_vendor")
	a := New(NewScriptedClient(sc))
	req := engine.AnnotateRequest{
		Artifact: &engine.Artifact{ID: "f1", Name: "inventory.xlsx", Fields: map[string]string{"A": "string"}},
		Task:     engine.TaskIncorporatePurpose,
		Reply:    "skip ahead",
	}
	_, err := a.Annotate(context.Background(), req)
	if err == nil || !strings.Contains(err.Error(), "scripted for task") {
		t.Fatalf("Annotate(out of order) error = %v", err)
	}
}

func TestScriptedClientFailureResponse(t *testing.T) {
	sc, _ := scenarios.Load("flaky_purpose")
	a := New(NewScriptedClient(sc))
	req := engine.AnnotateRequest{
		Artifact: &engine.Artifact{ID: "f1", Name: "inventory.xlsx", Fields: map[string]string{"Company Code": "string", "Product Cost": "float"}},
		Task:     engine.TaskConfirmFields,
		Reply:    "yes",
	}
	working, err := a.Annotate(context.Background(), req)
	if err != nil {
		t.Fatalf("Annotate(confirm) error = %v", err)
	}
	req.Task = engine.TaskIncorporatePurpose
	req.Working = working
	req.Reply = "monthly inventory"
	_, err = a.Annotate(context.Background(), req)
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("Annotate(scripted failure) error = %v", err)
	}
}
