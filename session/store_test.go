package session

import (
	"context"
	"testing"

	"github.com/Chandan5689/SajiloFix-sub002/models"
)

func TestMemoryStore_PutOverwrites(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first := Record{ProviderRef: "P1", TransactionUID: "T1", BookingID: 42}
	if err := store.Put(ctx, "sess1", models.MethodKhalti, first); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	// A second checkout attempt must fully replace the record, not merge.
	second := Record{ProviderRef: "P2", TransactionUID: "T2"}
	if err := store.Put(ctx, "sess1", models.MethodKhalti, second); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	got, err := store.Get(ctx, "sess1", models.MethodKhalti)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected a record")
	}
	if got.ProviderRef != "P2" || got.TransactionUID != "T2" || got.BookingID != 0 {
		t.Errorf("stale fields bled through overwrite: %+v", got)
	}
}

func TestMemoryStore_GetMissingReturnsNil(t *testing.T) {
	store := NewMemoryStore()

	got, err := store.Get(context.Background(), "sess1", models.MethodEsewa)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil record, got %+v", got)
	}
}

func TestMemoryStore_RecordsScopedByGateway(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	rec := Record{ProviderRef: "P1", TransactionUID: "T1", BookingID: 1}
	if err := store.Put(ctx, "sess1", models.MethodKhalti, rec); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	other, err := store.Get(ctx, "sess1", models.MethodEsewa)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if other != nil {
		t.Error("record for one gateway must not be visible under another")
	}

	if err := store.Clear(ctx, "sess1", models.MethodKhalti); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	got, _ := store.Get(ctx, "sess1", models.MethodKhalti)
	if got != nil {
		t.Error("record should be gone after clear")
	}
}

func TestMemoryStore_AcquireVerifyOneShot(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	ok, err := store.AcquireVerify(ctx, "sess1", models.MethodKhalti, "P1")
	if err != nil || !ok {
		t.Fatalf("first acquire should succeed, got ok=%v err=%v", ok, err)
	}

	ok, err = store.AcquireVerify(ctx, "sess1", models.MethodKhalti, "P1")
	if err != nil {
		t.Fatalf("second acquire errored: %v", err)
	}
	if ok {
		t.Error("second acquire for the same correlation id must fail")
	}

	// A different correlation id is a new checkout attempt.
	ok, _ = store.AcquireVerify(ctx, "sess1", models.MethodKhalti, "P2")
	if !ok {
		t.Error("acquire for a different correlation id should succeed")
	}
}

func TestMemoryStore_ReleaseVerifyAllowsRetry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	ok, err := store.AcquireVerify(ctx, "sess1", models.MethodKhalti, "P1")
	if err != nil || !ok {
		t.Fatalf("first acquire should succeed, got ok=%v err=%v", ok, err)
	}

	if err := store.ReleaseVerify(ctx, "sess1", models.MethodKhalti, "P1"); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	// A failed verification returns the token; the next attempt must be able
	// to reach the gateway again.
	ok, err = store.AcquireVerify(ctx, "sess1", models.MethodKhalti, "P1")
	if err != nil || !ok {
		t.Errorf("acquire after release should succeed, got ok=%v err=%v", ok, err)
	}
}
