package testutil

import (
	"context"
	"testing"

	"github.com/nhle/rfp-inbound/internal/model"
	"github.com/nhle/rfp-inbound/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// SeedVendor inserts a vendor with the given name and address.
func SeedVendor(t *testing.T, s store.Store, name, email string) *model.Vendor {
	t.Helper()

	v, err := s.CreateVendor(context.Background(), model.Vendor{Name: name, Email: email})
	if err != nil {
		t.Fatalf("seeding vendor %s: %v", email, err)
	}
	return v
}

// SeedRequest inserts a sent request with a fixed ID.
func SeedRequest(t *testing.T, s store.Store, id, title string) *model.Request {
	t.Helper()

	r, err := s.CreateRequest(context.Background(), model.Request{
		ID:     id,
		Title:  title,
		Status: model.RequestStatusSent,
	})
	if err != nil {
		t.Fatalf("seeding request %s: %v", id, err)
	}
	return r
}
