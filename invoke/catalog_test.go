package invoke_test

import (
	"errors"
	"testing"

	arena "github.com/lemon-tea-ai/arena"
	"github.com/lemon-tea-ai/arena/invoke"
)

func TestCatalog_Known(t *testing.T) {
	c := invoke.NewCatalog(
		arena.Model{Name: "gpt-4o", ID: "gpt-4o"},
		arena.Model{Name: "gpt-4o-mini", ID: "gpt-4o-mini"},
	)

	if !c.Known("gpt-4o") {
		t.Error("expected gpt-4o to be known")
	}
	if c.Known("gpt-9") {
		t.Error("expected gpt-9 to be unknown")
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
}

func TestCatalog_Resolve(t *testing.T) {
	c := invoke.NewCatalog(
		arena.Model{Name: "gpt-4o", ID: "gpt-4o"},
		arena.Model{Name: "gpt-4o-mini", ID: "gpt-4o-mini"},
	)

	models, err := c.Resolve([]string{"gpt-4o-mini", "gpt-4o"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(models))
	}
	// Resolve preserves request order.
	if models[0].Name != "gpt-4o-mini" || models[1].Name != "gpt-4o" {
		t.Errorf("order = [%s, %s], want [gpt-4o-mini, gpt-4o]", models[0].Name, models[1].Name)
	}

	_, err = c.Resolve([]string{"gpt-4o", "nope"})
	if !errors.Is(err, arena.ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown model, got %v", err)
	}
}

func TestCatalog_NamesSorted(t *testing.T) {
	c := invoke.NewCatalog(
		arena.Model{Name: "zeta", ID: "z"},
		arena.Model{Name: "alpha", ID: "a"},
	)

	names := c.Names()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "zeta" {
		t.Errorf("Names = %v, want [alpha zeta]", names)
	}

	models := c.Models()
	if len(models) != 2 || models[0].Name != "alpha" {
		t.Errorf("Models = %v, want alpha first", models)
	}
}

func TestDefaultCatalog(t *testing.T) {
	c := invoke.DefaultCatalog()
	if c.Len() == 0 {
		t.Fatal("default catalog is empty")
	}
	if !c.Known("gpt-4o") {
		t.Error("default catalog should include gpt-4o")
	}
}
