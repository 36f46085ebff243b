package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/rfp-inbound/internal/model"
)

// FindVendorByEmail looks a vendor up by exact address equality.
func (s *SQLiteStore) FindVendorByEmail(
	ctx context.Context,
	email string,
) (*model.Vendor, error) {
	var v model.Vendor
	err := s.db.GetContext(ctx, &v, "SELECT * FROM vendors WHERE email = ?", email)
	if err != nil {
		return nil, notFound(err, "vendor "+email)
	}
	return &v, nil
}

// FindRequestByID retrieves a single request by its ID.
func (s *SQLiteStore) FindRequestByID(
	ctx context.Context,
	id string,
) (*model.Request, error) {
	var r model.Request
	err := s.db.GetContext(ctx, &r, "SELECT * FROM requests WHERE id = ?", id)
	if err != nil {
		return nil, notFound(err, "request "+id)
	}
	return &r, nil
}

// CreateVendor inserts a vendor. If the vendor has no ID, a new UUID is
// generated.
func (s *SQLiteStore) CreateVendor(
	ctx context.Context,
	v model.Vendor,
) (*model.Vendor, error) {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	v.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO vendors (id, name, email, created_at) VALUES (?, ?, ?, ?)",
		v.ID, v.Name, v.Email, v.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating vendor %s: %w", v.Email, err)
	}
	return &v, nil
}

// CreateRequest inserts a request. Request IDs appear in subject tags, so
// generated IDs are UUIDs with the dashes removed.
func (s *SQLiteStore) CreateRequest(
	ctx context.Context,
	r model.Request,
) (*model.Request, error) {
	if r.ID == "" {
		id := uuid.New()
		r.ID = fmt.Sprintf("%x", id[:])
	}
	if r.Status == "" {
		r.Status = model.RequestStatusDraft
	}
	r.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO requests (id, title, description, status, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.Title, r.Description, r.Status, r.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating request %s: %w", r.ID, err)
	}
	return &r, nil
}
