package badger

import (
	"context"
	"testing"

	"github.com/fiscus/taxchat/core"
)

func TestCheckpointSaveLoad(t *testing.T) {
	backend, err := OpenBackend("", true)
	if err != nil {
		t.Fatalf("Failed to open backend: %v", err)
	}
	defer backend.Close()

	repo := NewCheckpointRepository(backend)
	ctx := context.Background()

	// No checkpoint yet
	cp, err := repo.LoadCheckpoint(ctx, "reindex")
	if err != nil {
		t.Fatalf("Failed to load missing checkpoint: %v", err)
	}
	if cp != nil {
		t.Fatal("Expected nil checkpoint before save")
	}

	// Save and load
	err = repo.SaveCheckpoint(ctx, &core.Checkpoint{
		ProcessorType: "reindex",
		LastID:        core.ID(500),
	})
	if err != nil {
		t.Fatalf("Failed to save checkpoint: %v", err)
	}

	cp, err = repo.LoadCheckpoint(ctx, "reindex")
	if err != nil {
		t.Fatalf("Failed to load checkpoint: %v", err)
	}
	if cp == nil {
		t.Fatal("Expected checkpoint after save")
	}
	if cp.LastID != core.ID(500) {
		t.Fatalf("Expected LastID 500, got %d", cp.LastID)
	}
	if cp.UpdatedAt.IsZero() {
		t.Fatal("Expected UpdatedAt to be set")
	}

	// Saving again replaces the previous checkpoint
	err = repo.SaveCheckpoint(ctx, &core.Checkpoint{
		ProcessorType: "reindex",
		LastID:        core.ID(900),
	})
	if err != nil {
		t.Fatalf("Failed to overwrite checkpoint: %v", err)
	}

	cp, err = repo.LoadCheckpoint(ctx, "reindex")
	if err != nil {
		t.Fatalf("Failed to reload checkpoint: %v", err)
	}
	if cp.LastID != core.ID(900) {
		t.Fatalf("Expected LastID 900, got %d", cp.LastID)
	}
}
