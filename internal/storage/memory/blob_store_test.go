package memory

import (
	"bytes"
	"context"
	"testing"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("content")
	uri, err := store.PutObject(context.Background(), "stenogram_101_1_abc.txt", "text/plain", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}
	if uri != "memory://stenogram_101_1_abc.txt" {
		t.Fatalf("unexpected uri %s", uri)
	}
	payload[0] = 'C'
	stored, ok := store.Get("stenogram_101_1_abc.txt")
	if !ok || string(stored) != "content" {
		t.Fatalf("expected stored copy to be immutable, got %q", stored)
	}
}

func TestBlobStoreExists(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	ok, err := store.Exists(context.Background(), "protocol_1_1_x.txt")
	if err != nil || ok {
		t.Fatalf("Exists() = %v, %v; want false, nil", ok, err)
	}
	if _, err := store.PutObject(context.Background(), "protocol_1_1_x.txt", "text/plain", bytes.NewReader(nil)); err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}
	ok, err = store.Exists(context.Background(), "protocol_1_1_x.txt")
	if err != nil || !ok {
		t.Fatalf("Exists() = %v, %v; want true, nil", ok, err)
	}
	if store.Len() != 1 {
		t.Fatalf("Len() = %d; want 1", store.Len())
	}
}
