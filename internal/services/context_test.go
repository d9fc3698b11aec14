package services_test

import (
	"context"
	"testing"

	"glimpse/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithCycleID(ctx, "cycle-1")
	ctx = services.WithDisplay(ctx, 1)
	ctx = services.WithTrigger(ctx, "adhoc")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.CycleIDFromContext(ctx); !ok || id != "cycle-1" {
		t.Fatalf("unexpected cycle id: %v %v", id, ok)
	}
	if display, ok := services.DisplayFromContext(ctx); !ok || display != 1 {
		t.Fatalf("unexpected display: %v %v", display, ok)
	}
	if trigger, ok := services.TriggerFromContext(ctx); !ok || trigger != "adhoc" {
		t.Fatalf("unexpected trigger: %v %v", trigger, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithCycleID(ctx, "")
	ctx = services.WithTrigger(ctx, "")
	if _, ok := services.CycleIDFromContext(ctx); ok {
		t.Fatal("expected no cycle id")
	}
	if _, ok := services.TriggerFromContext(ctx); ok {
		t.Fatal("expected no trigger")
	}
	if _, ok := services.DisplayFromContext(ctx); ok {
		t.Fatal("expected no display")
	}
}
