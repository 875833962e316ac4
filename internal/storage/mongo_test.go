package storage

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"
)

func TestMongoStorage(t *testing.T) {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set")
	}

	ctx := context.Background()
	database := fmt.Sprintf("agora_test_%d", time.Now().UnixNano())

	store, err := NewMongoStorage(ctx, uri, database)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer func() {
		store.db.Drop(context.Background())
		store.Close()
	}()

	if err := store.Initialize(); err != nil {
		t.Fatalf("failed to initialize: %v", err)
	}

	runStorageSuite(t, store)
}

func TestNewMongoStorageRequiresURI(t *testing.T) {
	if _, err := NewMongoStorage(context.Background(), "", "agora"); err == nil {
		t.Error("expected error for empty uri")
	}
}
